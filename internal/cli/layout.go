package cli

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	tio "github.com/matzehuels/territory/pkg/io"
	"github.com/matzehuels/territory/pkg/pipeline"
)

// layoutCommand creates the layout command for packing one zone.
func (c *CLI) layoutCommand() *cobra.Command {
	var (
		output  string
		noCache bool
	)
	opts := pipeline.Options{}

	cmd := &cobra.Command{
		Use:   "layout [entities.json]",
		Short: "Pack a list of entities into a zone of the given capacity",
		Long: `Pack a list of entities into a zone of the given capacity.

The input is a JSON array of entities, or an object with an "entities" array.
Every entity gets a rectangle proportional to its share of the total weight;
the heaviest entity is placed first, at the top-left corner.

Results are cached locally for faster subsequent runs.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runLayout(cmd.Context(), args[0], opts, output, noCache)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default: <input>.layout.json)")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "disable caching")
	cmd.Flags().BoolVar(&opts.Refresh, "refresh", false, "recompute even when cached")
	cmd.Flags().IntVarP(&opts.Capacity, "capacity", "c", 100, "zone capacity in cells")

	return cmd
}

// runLayout loads the entities, computes the layout, and writes output.
func (c *CLI) runLayout(ctx context.Context, input string, opts pipeline.Options, output string, noCache bool) error {
	entities, err := tio.ImportEntities(input)
	if err != nil {
		return fmt.Errorf("load entities %s: %w", input, err)
	}

	runner, err := c.newRunner(noCache)
	if err != nil {
		return fmt.Errorf("initialize runner: %w", err)
	}
	defer runner.Close()

	spinner := newSpinnerWithContext(ctx, fmt.Sprintf("Packing %d entities...", len(entities)))
	spinner.Start()

	res, err := runner.Execute(ctx, entities, opts)
	if err != nil {
		spinner.StopWithError("Layout failed")
		return fmt.Errorf("compute layout: %w", err)
	}
	spinner.Stop()

	if ctx.Err() != nil {
		return ctx.Err()
	}

	outputPath := output
	if outputPath == "" {
		base := strings.TrimSuffix(input, filepath.Ext(input))
		outputPath = base + ".layout.json"
	}

	if err := tio.ExportJSON(res.Layout, outputPath); err != nil {
		return fmt.Errorf("write output %s: %w", outputPath, err)
	}

	printSuccess("Layout complete")
	printFile(outputPath)
	printStats(len(entities), res.Layout.Boundary.Width, res.Layout.Boundary.Height, res.CacheInfo.LayoutHit)
	if dropped := len(entities) - res.Layout.Len(); dropped > 0 {
		printWarning("%d entities did not fit into capacity %d", dropped, opts.Capacity)
	}
	return nil
}
