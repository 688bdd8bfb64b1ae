// Package redisfeed serves entities from a Redis hash and streams changes
// over Redis pub/sub.
//
// Key layout, for a prefix of "territory:":
//
//	territory:entities       hash, entity id -> JSON wire record
//	territory:zones          string, JSON array of zones in order
//	territory:events         channel, one JSON wire event per message
//	territory:notifications  channel, one JSON notification batch per message
//
// Pub/sub is fire and forget: events published while no subscription is
// live are lost, so consumers reload from the hash after reconnecting.
package redisfeed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/redis/go-redis/v9"

	"github.com/matzehuels/territory/pkg/core/model"
	"github.com/matzehuels/territory/pkg/feed"
	"github.com/matzehuels/territory/pkg/observability"
	"github.com/matzehuels/territory/pkg/store"
)

const sourceName = "redis"

// DefaultPrefix namespaces every key.
const DefaultPrefix = "territory:"

// Keys are the Redis keys and channels a Source uses.
type Keys struct {
	Entities      string
	Zones         string
	Events        string
	Notifications string
}

// KeysFor derives the key layout from prefix.
func KeysFor(prefix string) Keys {
	return Keys{
		Entities:      prefix + "entities",
		Zones:         prefix + "zones",
		Events:        prefix + "events",
		Notifications: prefix + "notifications",
	}
}

// Source is a Redis backed [feed.Source].
type Source struct {
	client redis.UniversalClient
	keys   Keys
	logger *log.Logger
	owned  bool

	wg sync.WaitGroup
}

// Option configures a Source.
type Option func(*Source)

// WithKeys overrides the key layout.
func WithKeys(k Keys) Option {
	return func(s *Source) { s.keys = k }
}

// WithEventsChannel overrides only the events channel.
func WithEventsChannel(ch string) Option {
	return func(s *Source) {
		if ch != "" {
			s.keys.Events = ch
		}
	}
}

// WithLogger sets the logger for skipped records and messages.
func WithLogger(l *log.Logger) Option {
	return func(s *Source) {
		if l != nil {
			s.logger = l
		}
	}
}

// New wraps client. Close leaves the client open.
func New(client redis.UniversalClient, prefix string, opts ...Option) *Source {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	s := &Source{
		client: client,
		keys:   KeysFor(prefix),
		logger: log.New(io.Discard),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Dial parses a redis:// URL, connects and pings.
func Dial(ctx context.Context, url, prefix string, opts ...Option) (*Source, error) {
	o, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(o)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping %s: %w", o.Addr, err)
	}
	s := New(client, prefix, opts...)
	s.owned = true
	return s, nil
}

// Client returns the underlying client.
func (s *Source) Client() redis.UniversalClient { return s.client }

// Keys returns the key layout in use.
func (s *Source) Keys() Keys { return s.keys }

// Close waits for subscriptions to stop and closes the client if Dial
// created it.
func (s *Source) Close() error {
	s.wg.Wait()
	if s.owned {
		return s.client.Close()
	}
	return nil
}

// ===== Query side =====

// ListEntities returns every entity in the hash, ordered by id. Records
// that fail validation are skipped and logged.
func (s *Source) ListEntities(ctx context.Context) ([]model.Entity, error) {
	all, err := s.client.HGetAll(ctx, s.keys.Entities).Result()
	if err != nil {
		return nil, fmt.Errorf("hgetall %s: %w", s.keys.Entities, err)
	}
	out := make([]model.Entity, 0, len(all))
	for id, raw := range all {
		e, err := decodeRecord(id, raw)
		if err != nil {
			s.logger.Warn("skipping entity record", "id", id, "err", err)
			continue
		}
		out = append(out, e)
	}
	slices.SortFunc(out, func(a, b model.Entity) int { return strings.Compare(a.ID, b.ID) })
	return out, nil
}

// ListZones returns the zones stored under the zones key.
func (s *Source) ListZones(ctx context.Context) ([]model.Zone, error) {
	raw, err := s.client.Get(ctx, s.keys.Zones).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", s.keys.Zones, err)
	}
	return decodeZones(raw)
}

// decodeRecord validates a hash value. The hash field is authoritative for
// the id.
func decodeRecord(id, raw string) (model.Entity, error) {
	var record map[string]any
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&record); err != nil {
		return model.Entity{}, fmt.Errorf("decode record: %w", err)
	}
	record["id"] = id
	ev, err := feed.DecodeRecord(feed.Insert, record)
	if err != nil {
		return model.Entity{}, err
	}
	return ev.Record, nil
}

func decodeZones(raw []byte) ([]model.Zone, error) {
	var zones []model.Zone
	if err := json.Unmarshal(raw, &zones); err != nil {
		return nil, fmt.Errorf("decode zones: %w", err)
	}
	for i, z := range zones {
		if z.Direction == "" {
			continue
		}
		d, err := model.ParseDirection(string(z.Direction))
		if err != nil {
			return nil, fmt.Errorf("zone %s: %w", z.ID, err)
		}
		zones[i].Direction = d
	}
	return zones, nil
}

// ===== Write side =====

// PutZones stores zones under the zones key.
func (s *Source) PutZones(ctx context.Context, zones []model.Zone) error {
	data, err := json.Marshal(zones)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, s.keys.Zones, data, 0).Err()
}

// Apply updates the hash and publishes each event in one MULTI/EXEC
// transaction.
func (s *Source) Apply(ctx context.Context, events ...feed.Event) error {
	for _, ev := range events {
		if err := ev.Validate(); err != nil {
			return err
		}
	}
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, ev := range events {
			payload, err := feed.Encode(ev)
			if err != nil {
				return err
			}
			switch ev.Type {
			case feed.Insert, feed.Update:
				record, err := json.Marshal(feed.Record(ev.Record))
				if err != nil {
					return err
				}
				pipe.HSet(ctx, s.keys.Entities, ev.Record.ID, record)
			case feed.Delete:
				pipe.HDel(ctx, s.keys.Entities, ev.Record.ID)
			}
			pipe.Publish(ctx, s.keys.Events, payload)
		}
		return nil
	})
	return err
}

// ===== Stream side =====

// Subscribe listens on the events channel. It returns once Redis has
// confirmed the subscription.
func (s *Source) Subscribe(ctx context.Context, h feed.Handler) (feed.Unsubscribe, error) {
	ps := s.client.Subscribe(ctx, s.keys.Events)
	if _, err := ps.Receive(ctx); err != nil {
		ps.Close()
		return nil, fmt.Errorf("subscribe %s: %w", s.keys.Events, err)
	}

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	hooks := observability.Feed()
	hooks.OnSubscribe(ctx, sourceName)

	msgs := ps.Channel()
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer close(done)
		defer hooks.OnUnsubscribe(context.Background(), sourceName)
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				ev, err := feed.Decode([]byte(msg.Payload))
				if err != nil {
					hooks.OnDecodeError(ctx, sourceName, err)
					s.logger.Warn("skipping message", "channel", msg.Channel, "err", err)
					continue
				}
				hooks.OnEvent(ctx, sourceName, string(ev.Type))
				h(ctx, ev)
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			cancel()
			ps.Close()
			<-done
		})
	}, nil
}

// ===== Notifications =====

// Publisher is a [store.Sink] that publishes every notification batch to a
// Redis channel.
type Publisher struct {
	client  redis.UniversalClient
	channel string
	visible bool
	logger  *log.Logger
}

// NewPublisher creates a publisher. With visibleOnly set, batches are
// filtered with [store.Visible] and empty results are not published.
func NewPublisher(client redis.UniversalClient, channel string, visibleOnly bool, logger *log.Logger) *Publisher {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Publisher{client: client, channel: channel, visible: visibleOnly, logger: logger}
}

// Notify publishes batch. Failures are logged; the store never waits on a
// retry.
func (p *Publisher) Notify(ctx context.Context, batch []store.Notification) {
	payload, ok := p.encode(batch)
	if !ok {
		return
	}
	if err := p.client.Publish(ctx, p.channel, payload).Err(); err != nil {
		p.logger.Warn("publish notifications failed", "channel", p.channel, "err", err)
	}
}

func (p *Publisher) encode(batch []store.Notification) ([]byte, bool) {
	if p.visible {
		batch = store.Visible(batch)
	}
	if len(batch) == 0 {
		return nil, false
	}
	data, err := json.Marshal(store.NewBatch(batch))
	if err != nil {
		p.logger.Warn("encode notifications failed", "err", err)
		return nil, false
	}
	return data, true
}

var (
	_ feed.Source = (*Source)(nil)
	_ store.Sink  = (*Publisher)(nil)
)
