// Package replay reads and writes change-feed event logs.
//
// A log holds one wire event per line (JSONL). Files whose name ends in
// ".zst" are zstd compressed. Logs recorded from a live feed can be
// replayed into a store to reproduce its state offline.
package replay

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/klauspost/compress/zstd"

	"github.com/matzehuels/territory/pkg/errors"
	"github.com/matzehuels/territory/pkg/feed"
)

// maxLine bounds a single log line.
const maxLine = 8 * 1024 * 1024

// compressed reports whether path names a zstd file.
func compressed(path string) bool {
	return strings.HasSuffix(path, ".zst")
}

// ===== Reading =====

// Reader yields events from a log in order.
type Reader struct {
	sc     *bufio.Scanner
	closer func() error
	line   int
}

// NewReader reads an uncompressed log from r.
func NewReader(r io.Reader) *Reader {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), maxLine)
	return &Reader{sc: sc, closer: func() error { return nil }}
}

// Open opens the log at path, decompressing ".zst" files.
func Open(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	if !compressed(path) {
		r := NewReader(f)
		r.closer = f.Close
		return r, nil
	}
	dec, err := zstd.NewReader(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	r := NewReader(dec)
	r.closer = func() error {
		dec.Close()
		return f.Close()
	}
	return r, nil
}

// Next returns the next event. It returns io.EOF at the end of the log. A
// line that fails to decode yields a MALFORMED_EVENT error naming the line;
// reading may continue past it. Blank lines are skipped.
func (r *Reader) Next() (feed.Event, error) {
	for r.sc.Scan() {
		r.line++
		line := r.sc.Bytes()
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		ev, err := feed.Decode(line)
		if err != nil {
			return feed.Event{}, errors.Wrap(errors.ErrCodeMalformedEvent, err, "line %d", r.line)
		}
		return ev, nil
	}
	if err := r.sc.Err(); err != nil {
		return feed.Event{}, err
	}
	return feed.Event{}, io.EOF
}

// Line returns the number of the line last read.
func (r *Reader) Line() int { return r.line }

// Close releases the underlying file.
func (r *Reader) Close() error { return r.closer() }

// Stats summarizes a replay.
type Stats struct {
	Events    int `json:"events"`
	Malformed int `json:"malformed"`
}

// Each calls fn for every event in the log at path. Malformed lines are
// counted and passed to onError when it is non-nil; other read errors stop
// the replay.
func Each(ctx context.Context, path string, fn feed.Handler, onError func(error)) (Stats, error) {
	r, err := Open(path)
	if err != nil {
		return Stats{}, err
	}
	defer r.Close()

	var st Stats
	for {
		if err := ctx.Err(); err != nil {
			return st, err
		}
		ev, err := r.Next()
		if err == io.EOF {
			return st, nil
		}
		if err != nil {
			if !errors.Is(err, errors.ErrCodeMalformedEvent) {
				return st, err
			}
			st.Malformed++
			if onError != nil {
				onError(err)
			}
			continue
		}
		st.Events++
		fn(ctx, ev)
	}
}

// ===== Writing =====

// Recorder appends events to a log. It is safe for concurrent use.
type Recorder struct {
	mu  sync.Mutex
	f   *os.File
	enc *zstd.Encoder
	w   *bufio.Writer
	n   int
}

// Create opens path for appending, creating parent directories. A ".zst"
// path gets a zstd stream; appending to an existing compressed log adds a
// new frame, which readers handle transparently.
func Create(path string) (*Recorder, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}
	rec := &Recorder{f: f}
	if compressed(path) {
		enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
		if err != nil {
			f.Close()
			return nil, err
		}
		rec.enc = enc
		rec.w = bufio.NewWriterSize(enc, 128*1024)
	} else {
		rec.w = bufio.NewWriterSize(f, 64*1024)
	}
	return rec, nil
}

// Write appends ev and flushes it to the file.
func (r *Recorder) Write(ev feed.Event) error {
	b, err := feed.Encode(ev)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.w == nil {
		return os.ErrClosed
	}
	if _, err := r.w.Write(b); err != nil {
		return err
	}
	if err := r.w.WriteByte('\n'); err != nil {
		return err
	}
	r.n++
	if err := r.w.Flush(); err != nil {
		return err
	}
	if r.enc != nil {
		return r.enc.Flush()
	}
	return nil
}

// Count returns the number of events written.
func (r *Recorder) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.n
}

// Close flushes and closes the log.
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.w == nil {
		return nil
	}
	err := r.w.Flush()
	if r.enc != nil {
		if cerr := r.enc.Close(); err == nil {
			err = cerr
		}
	}
	if cerr := r.f.Close(); err == nil {
		err = cerr
	}
	r.w, r.enc, r.f = nil, nil, nil
	return err
}

// Tee wraps sub so that every delivered event is also recorded. Write
// failures go to onError when it is non-nil; delivery continues either way.
func Tee(sub feed.Subscriber, rec *Recorder, onError func(error)) feed.Subscriber {
	return teeSubscriber{sub: sub, rec: rec, onError: onError}
}

type teeSubscriber struct {
	sub     feed.Subscriber
	rec     *Recorder
	onError func(error)
}

func (t teeSubscriber) Subscribe(ctx context.Context, h feed.Handler) (feed.Unsubscribe, error) {
	return t.sub.Subscribe(ctx, func(ctx context.Context, ev feed.Event) {
		if err := t.rec.Write(ev); err != nil && t.onError != nil {
			t.onError(err)
		}
		h(ctx, ev)
	})
}
