package sqlitefeed

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/matzehuels/territory/pkg/feed"
	"github.com/matzehuels/territory/pkg/observability"
)

// Subscribe polls the outbox for rows appended after the call and delivers
// them to h in sequence order. Rows that fail to decode are skipped.
func (s *Source) Subscribe(ctx context.Context, h feed.Handler) (feed.Unsubscribe, error) {
	last, err := s.head(ctx)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	hooks := observability.Feed()
	hooks.OnSubscribe(ctx, sourceName)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer close(done)
		defer hooks.OnUnsubscribe(context.Background(), sourceName)

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
			next, err := s.poll(ctx, last, h)
			if err != nil && ctx.Err() == nil {
				s.logger.Warn("outbox poll failed", "after", last, "err", err)
			}
			last = next
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			cancel()
			<-done
		})
	}, nil
}

// head returns the current highest outbox sequence.
func (s *Source) head(ctx context.Context) (int64, error) {
	var seq sql.NullInt64
	if err := s.db.QueryRowContext(ctx, `SELECT MAX(seq) FROM outbox`).Scan(&seq); err != nil {
		return 0, fmt.Errorf("outbox head: %w", err)
	}
	return seq.Int64, nil
}

// poll delivers the rows after seq and returns the new high-water mark.
// Rows are read fully before any handler runs so the single connection is
// free while h executes.
func (s *Source) poll(ctx context.Context, after int64, h feed.Handler) (int64, error) {
	type row struct {
		seq     int64
		payload string
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT seq, payload FROM outbox WHERE seq > ? ORDER BY seq LIMIT ?`, after, pollBatch)
	if err != nil {
		return after, err
	}
	var batch []row
	for rows.Next() {
		var r row
		if err := rows.Scan(&r.seq, &r.payload); err != nil {
			rows.Close()
			return after, err
		}
		batch = append(batch, r)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return after, err
	}

	hooks := observability.Feed()
	for _, r := range batch {
		if ctx.Err() != nil {
			return after, ctx.Err()
		}
		after = r.seq
		ev, err := feed.Decode([]byte(r.payload))
		if err != nil {
			hooks.OnDecodeError(ctx, sourceName, err)
			s.logger.Warn("skipping outbox row", "seq", r.seq, "err", err)
			continue
		}
		hooks.OnEvent(ctx, sourceName, string(ev.Type))
		h(ctx, ev)
	}
	return after, nil
}
