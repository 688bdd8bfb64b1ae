package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/matzehuels/territory/pkg/cache"
	"github.com/matzehuels/territory/pkg/config"
	"github.com/matzehuels/territory/pkg/core/model"
	"github.com/matzehuels/territory/pkg/core/position"
	"github.com/matzehuels/territory/pkg/feed"
	"github.com/matzehuels/territory/pkg/feed/replay"
	tio "github.com/matzehuels/territory/pkg/io"
	"github.com/matzehuels/territory/pkg/observability/prom"
	"github.com/matzehuels/territory/pkg/pipeline"
	"github.com/matzehuels/territory/pkg/server"
	"github.com/matzehuels/territory/pkg/store"
)

const closeTimeout = 5 * time.Second

// serveFlagKeys binds serve flags to config keys.
var serveFlagKeys = map[string]string{
	"listen": config.KeyListen,
	"record": config.KeyRecord,
	"zones":  config.KeyZonesFile,
	"source": config.KeySourceKind,
	"dsn":    config.KeySourceDSN,
	"cache":  config.KeyCacheBackend,
}

// serveCommand creates the serve command.
func (c *CLI) serveCommand() *cobra.Command {
	var (
		configFile string
		seedFile   string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Keep layouts in sync with a live source and serve them over HTTP",
		Long: `Keep layouts in sync with a live source and serve them over HTTP.

The store is seeded from the configured source (memory, sqlite, mongo or
redis) and then follows its change stream. Layouts are served under /zones,
notification batches are streamed on /ws, and Prometheus metrics are
exposed on /metrics.

Settings come from territory.toml, TERRITORY_* environment variables and
the flags below, in increasing precedence.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(config.LoadOptions{
				File:     configFile,
				Flags:    cmd.Flags(),
				FlagKeys: serveFlagKeys,
			})
			if err != nil {
				return err
			}
			return c.runServe(cmd.Context(), cfg, seedFile)
		},
	}

	cmd.Flags().StringVar(&configFile, "config", "", "config file (default: ./territory.toml)")
	cmd.Flags().String("listen", ":8080", "HTTP listen address")
	cmd.Flags().String("record", "", "append every received event to this log (.jsonl or .jsonl.zst)")
	cmd.Flags().StringP("zones", "z", "", "zones file (default: zones from the source)")
	cmd.Flags().String("source", config.SourceMemory, "source kind: memory, sqlite, mongo, redis")
	cmd.Flags().String("dsn", "", "source connection string or path")
	cmd.Flags().String("cache", cache.BackendMemory, "layout cache: none, file, memory, redis")
	cmd.Flags().StringVarP(&seedFile, "seed", "s", "", "entities for the memory source")

	return cmd
}

func (c *CLI) runServe(ctx context.Context, cfg *config.Config, seedFile string) (err error) {
	logger := loggerFromContext(ctx)
	if cfg.File != "" {
		logger.Debug("using config", "file", cfg.File)
	}

	// Zones and source depend on each other: a memory source is built from
	// the zones file, the others may serve the zones themselves.
	var (
		zones *model.Zones
		seed  []model.Entity
	)
	if cfg.Source.Kind == config.SourceMemory {
		if cfg.ZonesFile == "" {
			return errors.New("the memory source needs a zones file (--zones)")
		}
		if zones, err = config.LoadZones(cfg.ZonesFile); err != nil {
			return fmt.Errorf("load zones: %w", err)
		}
		if seedFile != "" {
			if seed, err = tio.ImportEntities(seedFile); err != nil {
				return fmt.Errorf("load seed: %w", err)
			}
		}
	}

	src, err := openSource(ctx, cfg, zones, seed, logger)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), closeTimeout)
		defer cancel()
		if cerr := src.close(closeCtx); cerr != nil {
			logger.Warn("close source", "kind", src.kind, "err", cerr)
		}
	}()

	if zones == nil {
		if zones, err = loadZones(ctx, cfg.ZonesFile, src); err != nil {
			return err
		}
	}
	logger.Info("zones loaded", "count", zones.Len(), "central", zones.CentralID())

	layoutCache, err := cache.Open(ctx, cfg.Cache.Options())
	if err != nil {
		return fmt.Errorf("open cache: %w", err)
	}
	runner := pipeline.NewRunner(layoutCache, cache.NewScopedKeyer(nil, cfg.Source.Prefix), logger)
	defer runner.Close()

	metrics, err := prom.New(prometheus.NewRegistry())
	if err != nil {
		return fmt.Errorf("register metrics: %w", err)
	}
	metrics.Install()

	hub := server.NewHub(logger)
	sinks := store.MultiSink{store.LogSink{Logger: logger}, hub}
	if src.publisher != nil {
		sinks = append(sinks, src.publisher)
	}

	st := store.New(zones,
		store.WithLogger(logger),
		store.WithLayoutFunc(runner.LayoutFunc()),
		store.WithResolver(position.NewResolver(zones, position.WithGap(cfg.Layout.Gap))),
		store.WithSink(sinks),
	)

	prog := newProgress(logger)
	n, err := st.SeedFrom(ctx, src)
	if err != nil {
		return fmt.Errorf("seed: %w", err)
	}
	prog.done(fmt.Sprintf("Seeded %d entities", n))

	var sub feed.Subscriber = src
	if cfg.Record != "" {
		rec, err := replay.Create(cfg.Record)
		if err != nil {
			return fmt.Errorf("open record log: %w", err)
		}
		defer func() {
			if cerr := rec.Close(); cerr != nil {
				logger.Warn("close record log", "err", cerr)
			}
			logger.Info("recorded events", "count", rec.Count(), "file", cfg.Record)
		}()
		sub = replay.Tee(src, rec, func(err error) {
			logger.Warn("record event", "err", err)
		})
	}

	g, gctx := errgroup.WithContext(ctx)

	unsub, err := st.Attach(gctx, sub)
	if err != nil {
		return err
	}
	logger.Info("following source", "kind", src.kind)

	srv := server.New(st,
		server.WithLogger(logger),
		server.WithHub(hub),
		server.WithMetrics(metrics.Registry()),
	)
	g.Go(func() error {
		return srv.Run(gctx, cfg.Listen)
	})
	printInfo("Serving %d zones on %s", zones.Len(), StyleLink.Render(cfg.Listen))
	g.Go(func() error {
		<-gctx.Done()
		unsub()
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}
