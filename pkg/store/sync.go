package store

import (
	"context"
	"slices"
	"strings"

	"github.com/matzehuels/territory/pkg/core/model"
	"github.com/matzehuels/territory/pkg/errors"
	"github.com/matzehuels/territory/pkg/feed"
)

// Attach subscribes the store to a change feed. Every delivered event is
// ingested as its own batch. Unsubscribing, or cancelling ctx, detaches the
// store without touching its state; attaching again resumes from the live
// stream. Call [Store.Reload] first when changes may have been missed.
func (s *Store) Attach(ctx context.Context, sub feed.Subscriber) (feed.Unsubscribe, error) {
	unsub, err := sub.Subscribe(ctx, func(ctx context.Context, ev feed.Event) {
		s.Ingest(ctx, ev)
	})
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeNetwork, err, "subscribe")
	}
	return unsub, nil
}

// Reload fetches a fresh listing and ingests the difference from canonical
// state as one batch: an update for every new or changed record and a
// delete for every record that disappeared. Unchanged records produce no
// events.
func (s *Store) Reload(ctx context.Context, l feed.Lister) ([]Notification, error) {
	listed, err := l.ListEntities(ctx)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeNetwork, err, "list entities")
	}

	s.ingestMu.Lock()
	defer s.ingestMu.Unlock()

	events := s.diff(listed)
	if len(events) == 0 {
		return nil, nil
	}
	s.logger.Info("reloading", "events", len(events))
	return s.ingest(ctx, events), nil
}

func (s *Store) diff(listed []model.Entity) []feed.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sorted := slices.Clone(listed)
	slices.SortStableFunc(sorted, func(a, b model.Entity) int { return strings.Compare(a.ID, b.ID) })

	seen := make(map[string]struct{}, len(sorted))
	var events []feed.Event
	for _, e := range sorted {
		seen[e.ID] = struct{}{}
		if cur, ok := s.entities[e.ID]; ok && cur.Equal(e) {
			continue
		}
		events = append(events, feed.UpdateOf(e))
	}

	var gone []string
	for id := range s.entities {
		if _, ok := seen[id]; !ok {
			gone = append(gone, id)
		}
	}
	slices.Sort(gone)
	for _, id := range gone {
		events = append(events, feed.DeleteOf(id))
	}
	return events
}
