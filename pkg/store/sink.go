package store

import (
	"context"

	"github.com/charmbracelet/log"
)

// Sink receives each notification batch after the store has applied it.
// Notify runs on the ingesting goroutine, so batches arrive in order; a
// slow sink delays the next ingestion.
//
// Notify is called while the store still serializes ingestion. It may read
// the store (Placement, Position, Snapshot and the other getters), but it
// must not call Ingest, Seed, SeedFrom or Reload on the same store: that
// deadlocks. A sink that turns notifications into follow-up events hands
// them to another goroutine instead.
type Sink interface {
	Notify(ctx context.Context, batch []Notification)
}

// SinkFunc adapts a function to [Sink].
type SinkFunc func(ctx context.Context, batch []Notification)

// Notify calls f.
func (f SinkFunc) Notify(ctx context.Context, batch []Notification) { f(ctx, batch) }

// MultiSink fans a batch out to several sinks in order.
type MultiSink []Sink

// Notify delivers batch to every sink.
func (m MultiSink) Notify(ctx context.Context, batch []Notification) {
	for _, s := range m {
		if s != nil {
			s.Notify(ctx, batch)
		}
	}
}

// LogSink writes visible notifications to a logger at info level and the
// rest at debug level.
type LogSink struct {
	Logger *log.Logger
}

// Notify logs each notification of batch.
func (s LogSink) Notify(_ context.Context, batch []Notification) {
	if s.Logger == nil {
		return
	}
	for _, n := range batch {
		kv := []any{"entity", n.EntityID, "kind", n.Kind, "zone", n.ZoneID}
		if n.PreviousWeight != nil {
			kv = append(kv, "previous_weight", *n.PreviousWeight)
		}
		if n.PreviousZoneID != "" {
			kv = append(kv, "previous_zone", n.PreviousZoneID)
		}
		if n.Kind.Visible() {
			s.Logger.Info("change", kv...)
		} else {
			s.Logger.Debug("change", kv...)
		}
	}
}

type nopSink struct{}

func (nopSink) Notify(context.Context, []Notification) {}
