package cli

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/territory/pkg/config"
	"github.com/matzehuels/territory/pkg/core/model"
	"github.com/matzehuels/territory/pkg/feed"
	"github.com/matzehuels/territory/pkg/feed/mongofeed"
	"github.com/matzehuels/territory/pkg/feed/redisfeed"
	"github.com/matzehuels/territory/pkg/feed/sqlitefeed"
	"github.com/matzehuels/territory/pkg/store"
)

// source is an opened data source together with what the serve loop needs
// to shut it down and to publish back to it.
type source struct {
	feed.Source
	kind  string
	close func(context.Context) error

	// publisher, when set, receives every notification batch.
	publisher store.Sink
}

// openSource connects the source selected by cfg. A memory source starts
// with zones and entities.
func openSource(ctx context.Context, cfg *config.Config, zones *model.Zones, seed []model.Entity, logger *log.Logger) (*source, error) {
	sc := cfg.Source
	switch sc.Kind {
	case config.SourceMemory:
		var zs []model.Zone
		if zones != nil {
			zs = zones.All()
		}
		return &source{
			Source: feed.NewMemory(zs, seed),
			kind:   sc.Kind,
			close:  func(context.Context) error { return nil },
		}, nil

	case config.SourceSQLite:
		src, err := sqlitefeed.Open(ctx, sc.DSN,
			sqlitefeed.WithPollInterval(cfg.PollInterval),
			sqlitefeed.WithLogger(logger))
		if err != nil {
			return nil, fmt.Errorf("open sqlite %s: %w", sc.DSN, err)
		}
		return &source{
			Source: src,
			kind:   sc.Kind,
			close:  func(context.Context) error { return src.Close() },
		}, nil

	case config.SourceMongo:
		src, err := mongofeed.Connect(ctx, sc.DSN, sc.Database, mongofeed.WithLogger(logger))
		if err != nil {
			return nil, fmt.Errorf("connect mongo: %w", err)
		}
		return &source{Source: src, kind: sc.Kind, close: src.Close}, nil

	case config.SourceRedis:
		src, err := redisfeed.Dial(ctx, sc.DSN, sc.Prefix,
			redisfeed.WithEventsChannel(sc.Channel),
			redisfeed.WithLogger(logger))
		if err != nil {
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		return &source{
			Source:    src,
			kind:      sc.Kind,
			close:     func(context.Context) error { return src.Close() },
			publisher: redisfeed.NewPublisher(src.Client(), src.Keys().Notifications, true, logger),
		}, nil
	}
	return nil, fmt.Errorf("unknown source kind %q", sc.Kind)
}

// loadZones reads the zones file when one is configured and otherwise asks
// the source.
func loadZones(ctx context.Context, path string, l feed.Lister) (*model.Zones, error) {
	if path != "" {
		return config.LoadZones(path)
	}
	zs, err := l.ListZones(ctx)
	if err != nil {
		return nil, fmt.Errorf("list zones: %w", err)
	}
	return model.NewZones(zs)
}
