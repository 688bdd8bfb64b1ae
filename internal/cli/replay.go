package cli

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matzehuels/territory/pkg/config"
	"github.com/matzehuels/territory/pkg/core/position"
	"github.com/matzehuels/territory/pkg/feed"
	"github.com/matzehuels/territory/pkg/feed/replay"
	tio "github.com/matzehuels/territory/pkg/io"
	"github.com/matzehuels/territory/pkg/store"
)

type replayOptions struct {
	zonesFile string
	seedFile  string
	output    string
	all       bool
	noCache   bool
	gap       float64
}

// replayCommand creates the replay command for applying a recorded event log.
func (c *CLI) replayCommand() *cobra.Command {
	var opts replayOptions

	cmd := &cobra.Command{
		Use:   "replay [events.jsonl]",
		Short: "Apply a recorded event log and write the resulting snapshot",
		Long: `Apply a recorded event log and write the resulting snapshot.

The log holds one change event per line, as written by 'serve --record'.
Logs ending in .zst are zstd compressed. Malformed lines are reported and
skipped. Every event is ingested as its own batch, exactly as a live feed
would deliver it.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runReplay(cmd.Context(), args[0], opts)
		},
	}

	cmd.Flags().StringVarP(&opts.zonesFile, "zones", "z", "zones.toml", "zones file")
	cmd.Flags().StringVarP(&opts.seedFile, "seed", "s", "", "entities to seed the store with")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "output file (default: <input>.snapshot.json)")
	cmd.Flags().BoolVar(&opts.all, "all", false, "log every notification, not only visible ones")
	cmd.Flags().BoolVar(&opts.noCache, "no-cache", false, "disable the layout cache")
	cmd.Flags().Float64Var(&opts.gap, "gap", position.DefaultGap, "gap between zones")

	return cmd
}

func (c *CLI) runReplay(ctx context.Context, input string, opts replayOptions) error {
	logger := loggerFromContext(ctx)

	zones, err := config.LoadZones(opts.zonesFile)
	if err != nil {
		return fmt.Errorf("load zones: %w", err)
	}

	runner, err := c.newRunner(opts.noCache)
	if err != nil {
		return fmt.Errorf("initialize runner: %w", err)
	}
	defer runner.Close()

	counts := make(map[store.Kind]int)
	var sink store.Sink = store.SinkFunc(func(ctx context.Context, batch []store.Notification) {
		for _, n := range batch {
			counts[n.Kind]++
		}
	})
	if opts.all {
		sink = store.MultiSink{sink, store.LogSink{Logger: logger}}
	}

	st := store.New(zones,
		store.WithLogger(logger),
		store.WithLayoutFunc(runner.LayoutFunc()),
		store.WithResolver(position.NewResolver(zones, position.WithGap(opts.gap))),
		store.WithSink(sink),
	)

	if opts.seedFile != "" {
		entities, err := tio.ImportEntities(opts.seedFile)
		if err != nil {
			return fmt.Errorf("load seed: %w", err)
		}
		n := st.Seed(ctx, entities)
		logger.Info("seeded", "entities", n)
	}

	prog := newProgress(logger)
	spinner := newSpinnerWithContext(ctx, "Replaying "+filepath.Base(input)+"...")
	spinner.Start()

	stats, err := replay.Each(ctx, input, func(ctx context.Context, ev feed.Event) {
		st.Ingest(ctx, ev)
	}, func(err error) {
		logger.Warn("skipping line", "err", err)
	})
	spinner.Stop()
	if err != nil {
		return fmt.Errorf("replay %s: %w", input, err)
	}
	prog.done(fmt.Sprintf("Replayed %d events", stats.Events))

	outputPath := opts.output
	if outputPath == "" {
		base := strings.TrimSuffix(strings.TrimSuffix(input, ".zst"), filepath.Ext(strings.TrimSuffix(input, ".zst")))
		outputPath = base + ".snapshot.json"
	}
	snap := st.Snapshot()
	if err := tio.ExportSnapshot(snap, outputPath); err != nil {
		return fmt.Errorf("write output %s: %w", outputPath, err)
	}

	printSuccess("Replay complete")
	printFile(outputPath)
	printKeyValue("entities", fmt.Sprint(st.Len()))
	printKinds(counts)
	if stats.Malformed > 0 {
		printWarning("%d malformed lines skipped", stats.Malformed)
	}
	printNewline()
	printNextStep("Browse", appName+" view "+outputPath)
	return nil
}
