package feed

import (
	"context"
	"slices"
	"strings"
	"sync"

	"github.com/matzehuels/territory/pkg/core/model"
	"github.com/matzehuels/territory/pkg/observability"
)

const memoryBuffer = 64

// Memory is an in-process [Source]. It keeps a table of entities, applies
// published events to it, and fans them out to subscribers. It backs the
// "memory" source kind and tests.
type Memory struct {
	mu       sync.Mutex
	zones    []model.Zone
	entities map[string]model.Entity
	subs     map[*subscription]struct{}
}

type subscription struct {
	ch   chan Event
	quit chan struct{}
	done chan struct{}
	once sync.Once
}

// NewMemory creates a source seeded with zones and entities.
func NewMemory(zones []model.Zone, entities []model.Entity) *Memory {
	m := &Memory{
		zones:    slices.Clone(zones),
		entities: make(map[string]model.Entity, len(entities)),
		subs:     make(map[*subscription]struct{}),
	}
	for _, e := range entities {
		m.entities[e.ID] = e.Clone()
	}
	return m
}

// ListEntities returns the current table sorted by id.
func (m *Memory) ListEntities(ctx context.Context) ([]model.Entity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]model.Entity, 0, len(m.entities))
	for _, e := range m.entities {
		out = append(out, e.Clone())
	}
	slices.SortFunc(out, func(a, b model.Entity) int { return strings.Compare(a.ID, b.ID) })
	return out, nil
}

// ListZones returns the configured zones.
func (m *Memory) ListZones(ctx context.Context) ([]model.Zone, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return slices.Clone(m.zones), nil
}

// Subscribe delivers every subsequently published event to h on a
// dedicated goroutine. The returned Unsubscribe must not be called from
// inside h.
func (m *Memory) Subscribe(ctx context.Context, h Handler) (Unsubscribe, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	sub := &subscription{
		ch:   make(chan Event, memoryBuffer),
		quit: make(chan struct{}),
		done: make(chan struct{}),
	}

	m.mu.Lock()
	m.subs[sub] = struct{}{}
	m.mu.Unlock()

	observability.Feed().OnSubscribe(ctx, "memory")
	go func() {
		defer func() {
			m.mu.Lock()
			delete(m.subs, sub)
			m.mu.Unlock()
			close(sub.done)
		}()
		for {
			select {
			case <-sub.quit:
				return
			case <-ctx.Done():
				return
			case ev := <-sub.ch:
				observability.Feed().OnEvent(ctx, "memory", string(ev.Type))
				h(ctx, ev)
			}
		}
	}()

	return func() {
		sub.once.Do(func() {
			close(sub.quit)
			<-sub.done
			observability.Feed().OnUnsubscribe(context.Background(), "memory")
		})
	}, nil
}

// Publish applies events to the table and hands them to every live
// subscriber. It blocks while a subscriber's buffer is full.
func (m *Memory) Publish(ctx context.Context, events ...Event) error {
	m.mu.Lock()
	for _, ev := range events {
		switch ev.Type {
		case Insert, Update:
			m.entities[ev.Record.ID] = ev.Record.Clone()
		case Delete:
			delete(m.entities, ev.Record.ID)
		}
	}
	subs := make([]*subscription, 0, len(m.subs))
	for s := range m.subs {
		subs = append(subs, s)
	}
	m.mu.Unlock()

	for _, s := range subs {
		for _, ev := range events {
			select {
			case s.ch <- ev:
			case <-s.done:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	return nil
}

// Subscribers returns the number of live subscriptions.
func (m *Memory) Subscribers() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.subs)
}
