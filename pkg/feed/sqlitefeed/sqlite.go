// Package sqlitefeed serves entities and zones from a SQLite database and
// streams changes by polling an outbox table.
//
// Writers append every change to the outbox in the same transaction that
// updates the entities table ([Source.Apply] does exactly that). Subscribers
// remember the highest outbox sequence they have seen and poll for newer
// rows, so a subscription never replays changes made before it started.
package sqlitefeed

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	_ "modernc.org/sqlite"

	"github.com/matzehuels/territory/pkg/core/model"
	"github.com/matzehuels/territory/pkg/feed"
)

const sourceName = "sqlite"

// DefaultPollInterval is used when no interval is configured.
const DefaultPollInterval = time.Second

// pollBatch caps the outbox rows read per poll.
const pollBatch = 512

// Source is a SQLite backed [feed.Source].
type Source struct {
	db       *sql.DB
	interval time.Duration
	logger   *log.Logger

	wg sync.WaitGroup
}

// Option configures a Source.
type Option func(*Source)

// WithPollInterval sets how often subscriptions poll the outbox.
func WithPollInterval(d time.Duration) Option {
	return func(s *Source) {
		if d > 0 {
			s.interval = d
		}
	}
}

// WithLogger sets the logger for skipped outbox rows.
func WithLogger(l *log.Logger) Option {
	return func(s *Source) {
		if l != nil {
			s.logger = l
		}
	}
}

// Open opens (creating if needed) the database at path and applies the
// schema.
func Open(ctx context.Context, path string, opts ...Option) (*Source, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if !strings.HasPrefix(path, "file:") && path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, err
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	s := New(db, opts...)
	if err := s.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// New wraps an open database. Call [Source.Migrate] if the schema may be
// missing.
func New(db *sql.DB, opts ...Option) *Source {
	s := &Source{
		db:       db,
		interval: DefaultPollInterval,
		logger:   log.New(io.Discard),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func initPragmas(ctx context.Context, db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

// Migrate creates the tables if they do not exist.
func (s *Source) Migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS zones (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL DEFAULT '',
			capacity INTEGER NOT NULL,
			central INTEGER NOT NULL DEFAULT 0,
			direction TEXT NOT NULL DEFAULT '',
			elevation REAL NOT NULL DEFAULT 0,
			position INTEGER NOT NULL DEFAULT 0
		);`,
		`CREATE TABLE IF NOT EXISTS entities (
			id TEXT PRIMARY KEY,
			zone_id TEXT NOT NULL,
			weight REAL NOT NULL,
			name TEXT NOT NULL DEFAULT '',
			image_status TEXT NOT NULL DEFAULT '',
			attributes TEXT NOT NULL DEFAULT '{}'
		);`,
		`CREATE TABLE IF NOT EXISTS outbox (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			payload TEXT NOT NULL,
			created_at TEXT NOT NULL
		);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

// DB returns the underlying database.
func (s *Source) DB() *sql.DB { return s.db }

// Close waits for running subscriptions to stop and closes the database.
// Unsubscribe or cancel every subscription first.
func (s *Source) Close() error {
	s.wg.Wait()
	return s.db.Close()
}

// ===== Query side =====

// ListEntities returns every row of the entities table, ordered by id. Rows
// that fail validation are skipped and logged.
func (s *Source) ListEntities(ctx context.Context) ([]model.Entity, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, zone_id, weight, name, image_status, attributes FROM entities ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list entities: %w", err)
	}
	defer rows.Close()

	var out []model.Entity
	for rows.Next() {
		var (
			e     model.Entity
			attrs string
		)
		if err := rows.Scan(&e.ID, &e.ZoneID, &e.Weight, &e.Name, &e.ImageStatus, &attrs); err != nil {
			return nil, fmt.Errorf("scan entity: %w", err)
		}
		if err := decodeAttributes(attrs, &e); err != nil {
			s.logger.Warn("skipping entity row", "id", e.ID, "err", err)
			continue
		}
		if err := e.Validate(); err != nil {
			s.logger.Warn("skipping entity row", "id", e.ID, "err", err)
			continue
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// ListZones returns every row of the zones table in position order.
func (s *Source) ListZones(ctx context.Context) ([]model.Zone, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, capacity, central, direction, elevation FROM zones ORDER BY position, id`)
	if err != nil {
		return nil, fmt.Errorf("list zones: %w", err)
	}
	defer rows.Close()

	var out []model.Zone
	for rows.Next() {
		var (
			z   model.Zone
			dir string
		)
		if err := rows.Scan(&z.ID, &z.Name, &z.Capacity, &z.Central, &dir, &z.Elevation); err != nil {
			return nil, fmt.Errorf("scan zone: %w", err)
		}
		if dir != "" {
			d, err := model.ParseDirection(dir)
			if err != nil {
				return nil, fmt.Errorf("zone %s: %w", z.ID, err)
			}
			z.Direction = d
		}
		out = append(out, z)
	}
	return out, rows.Err()
}

func decodeAttributes(raw string, e *model.Entity) error {
	if raw == "" || raw == "{}" {
		return nil
	}
	var attrs map[string]any
	if err := json.Unmarshal([]byte(raw), &attrs); err != nil {
		return fmt.Errorf("attributes: %w", err)
	}
	if len(attrs) > 0 {
		e.Attributes = attrs
	}
	return nil
}

// ===== Write side =====

// PutZones replaces the zones table, keeping the given order.
func (s *Source) PutZones(ctx context.Context, zones []model.Zone) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM zones`); err != nil {
		return err
	}
	for i, z := range zones {
		dir := string(z.Direction)
		if z.Central {
			dir = ""
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO zones (id, name, capacity, central, direction, elevation, position) VALUES (?, ?, ?, ?, ?, ?, ?)`,
			z.ID, z.Name, z.Capacity, z.Central, dir, z.Elevation, i); err != nil {
			return fmt.Errorf("insert zone %s: %w", z.ID, err)
		}
	}
	return tx.Commit()
}

// Apply writes events to the entities table and appends them to the outbox
// in one transaction.
func (s *Source) Apply(ctx context.Context, events ...feed.Event) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	now := time.Now().UTC().Format(time.RFC3339Nano)
	for _, ev := range events {
		if err := ev.Validate(); err != nil {
			return err
		}
		switch ev.Type {
		case feed.Insert, feed.Update:
			attrs := []byte("{}")
			if len(ev.Record.Attributes) > 0 {
				if attrs, err = json.Marshal(ev.Record.Attributes); err != nil {
					return fmt.Errorf("attributes of %s: %w", ev.Record.ID, err)
				}
			}
			_, err = tx.ExecContext(ctx,
				`INSERT INTO entities (id, zone_id, weight, name, image_status, attributes) VALUES (?, ?, ?, ?, ?, ?)
				 ON CONFLICT(id) DO UPDATE SET zone_id = excluded.zone_id, weight = excluded.weight,
				   name = excluded.name, image_status = excluded.image_status, attributes = excluded.attributes`,
				ev.Record.ID, ev.Record.ZoneID, ev.Record.Weight, ev.Record.Name, ev.Record.ImageStatus, string(attrs))
		case feed.Delete:
			_, err = tx.ExecContext(ctx, `DELETE FROM entities WHERE id = ?`, ev.Record.ID)
		}
		if err != nil {
			return fmt.Errorf("apply %s %s: %w", ev.Type, ev.Record.ID, err)
		}

		payload, err := feed.Encode(ev)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO outbox (payload, created_at) VALUES (?, ?)`, string(payload), now); err != nil {
			return fmt.Errorf("append outbox: %w", err)
		}
	}
	return tx.Commit()
}

// AppendRaw appends a payload to the outbox without touching the entities
// table. Producers that write their own rows use it; so do tests.
func (s *Source) AppendRaw(ctx context.Context, payload []byte) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO outbox (payload, created_at) VALUES (?, ?)`,
		string(payload), time.Now().UTC().Format(time.RFC3339Nano))
	return err
}

// Trim deletes outbox rows at or below seq.
func (s *Source) Trim(ctx context.Context, seq int64) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM outbox WHERE seq <= ?`, seq)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

var _ feed.Source = (*Source)(nil)
