package cache

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func init() {
	backoffBase = time.Millisecond
}

func TestNullCache(t *testing.T) {
	ctx := context.Background()
	c := NewNullCache()
	defer c.Close()

	if err := c.Set(ctx, "key", []byte("value"), time.Hour); err != nil {
		t.Fatalf("Set error: %v", err)
	}
	data, hit, err := c.Get(ctx, "key")
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if hit || data != nil {
		t.Error("NullCache should not store data")
	}
	if err := c.Delete(ctx, "key"); err != nil {
		t.Errorf("Delete error: %v", err)
	}
}

// backends returns every backend that needs no external service.
func backends(t *testing.T) map[string]Cache {
	t.Helper()
	fc, err := NewFileCache(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileCache: %v", err)
	}
	mc := NewMemoryCache(0)
	t.Cleanup(func() { mc.Close() })
	return map[string]Cache{"file": fc, "memory": mc}
}

func TestBackends(t *testing.T) {
	ctx := context.Background()
	for name, c := range backends(t) {
		t.Run(name, func(t *testing.T) {
			if _, hit, err := c.Get(ctx, "missing"); err != nil || hit {
				t.Fatalf("Get(missing) = hit %v, err %v", hit, err)
			}

			if err := c.Set(ctx, "k", []byte("v1"), 0); err != nil {
				t.Fatalf("Set: %v", err)
			}
			data, hit, err := c.Get(ctx, "k")
			if err != nil || !hit || string(data) != "v1" {
				t.Fatalf("Get(k) = %q, %v, %v", data, hit, err)
			}

			if err := c.Set(ctx, "k", []byte("v2"), time.Hour); err != nil {
				t.Fatalf("Set: %v", err)
			}
			data, _, _ = c.Get(ctx, "k")
			if string(data) != "v2" {
				t.Errorf("overwrite: got %q", data)
			}

			if err := c.Delete(ctx, "k"); err != nil {
				t.Fatalf("Delete: %v", err)
			}
			if _, hit, _ := c.Get(ctx, "k"); hit {
				t.Error("Get after Delete should miss")
			}
			if err := c.Delete(ctx, "k"); err != nil {
				t.Errorf("Delete(missing): %v", err)
			}
		})
	}
}

func TestBackendsExpire(t *testing.T) {
	ctx := context.Background()
	for name, c := range backends(t) {
		t.Run(name, func(t *testing.T) {
			if err := c.Set(ctx, "short", []byte("x"), 10*time.Millisecond); err != nil {
				t.Fatalf("Set: %v", err)
			}
			time.Sleep(30 * time.Millisecond)
			if _, hit, _ := c.Get(ctx, "short"); hit {
				t.Error("expired entry should miss")
			}
		})
	}
}

func TestMemoryCacheCopiesData(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(0)
	defer c.Close()

	buf := []byte("abc")
	_ = c.Set(ctx, "k", buf, 0)
	buf[0] = 'z'

	data, _, _ := c.Get(ctx, "k")
	if string(data) != "abc" {
		t.Errorf("stored value changed with caller's buffer: %q", data)
	}
	if c.Len() != 1 {
		t.Errorf("Len = %d, want 1", c.Len())
	}
	c.Close()
	if c.Len() != 0 {
		t.Errorf("Len after Close = %d, want 0", c.Len())
	}
}

func TestFileCacheCorruptEntry(t *testing.T) {
	ctx := context.Background()
	c, err := NewFileCache(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	_ = c.Set(ctx, "k", []byte("v"), 0)

	path := c.path("k")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, hit, err := c.Get(ctx, "k"); hit || err != nil {
		t.Errorf("corrupt entry: hit %v, err %v", hit, err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("corrupt entry should be removed")
	}
}

func TestFileCacheStatsAndClear(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	c, err := NewFileCache(dir)
	if err != nil {
		t.Fatal(err)
	}
	for _, k := range []string{"a", "b", "c"} {
		if err := c.Set(ctx, k, []byte(k), 0); err != nil {
			t.Fatal(err)
		}
	}

	n, size, err := c.Stats()
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if n != 3 || size == 0 {
		t.Errorf("Stats = %d entries, %d bytes", n, size)
	}

	if err := c.Clear(); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if n, _, _ := c.Stats(); n != 0 {
		t.Errorf("entries after Clear = %d", n)
	}
	if _, err := os.Stat(dir); err != nil {
		t.Errorf("Clear removed the directory: %v", err)
	}
	if got := filepath.Clean(c.Dir()); got != filepath.Clean(dir) {
		t.Errorf("Dir = %s", got)
	}
}

func TestJSONHelpers(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(0)
	defer c.Close()

	type payload struct {
		W int `json:"w"`
		H int `json:"h"`
	}
	var got payload
	if err := GetJSON(ctx, c, "p", &got); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("GetJSON(missing) = %v, want ErrCacheMiss", err)
	}

	n, err := SetJSON(ctx, c, "p", payload{W: 3, H: 2}, TTLLayout)
	if err != nil || n == 0 {
		t.Fatalf("SetJSON = %d, %v", n, err)
	}
	if err := GetJSON(ctx, c, "p", &got); err != nil {
		t.Fatalf("GetJSON: %v", err)
	}
	if got != (payload{W: 3, H: 2}) {
		t.Errorf("GetJSON = %+v", got)
	}

	_ = c.Set(ctx, "bad", []byte("nope"), 0)
	if err := GetJSON(ctx, c, "bad", &got); !errors.Is(err, ErrCacheMiss) {
		t.Errorf("undecodable entry = %v, want ErrCacheMiss", err)
	}
	if _, hit, _ := c.Get(ctx, "bad"); hit {
		t.Error("undecodable entry should be deleted")
	}
}

func TestHash(t *testing.T) {
	h1 := Hash([]byte("hello"))
	if h1 != Hash([]byte("hello")) {
		t.Error("Hash should be deterministic")
	}
	if h1 == Hash([]byte("world")) {
		t.Error("Different inputs should produce different hashes")
	}
	if len(h1) != 64 {
		t.Errorf("Hash length should be 64, got %d", len(h1))
	}
}

func TestDefaultKeyer(t *testing.T) {
	k := NewDefaultKeyer()

	a := k.LayoutKey("hash123", LayoutKeyOpts{Capacity: 100})
	if a != k.LayoutKey("hash123", LayoutKeyOpts{Capacity: 100}) {
		t.Error("LayoutKey should be deterministic")
	}
	if a == k.LayoutKey("hash123", LayoutKeyOpts{Capacity: 25}) {
		t.Error("capacity should change the key")
	}
	if a == k.LayoutKey("hash456", LayoutKeyOpts{Capacity: 100}) {
		t.Error("input hash should change the key")
	}
	if a == k.LayoutKey("hash123", LayoutKeyOpts{Capacity: 100, Version: "v2"}) {
		t.Error("version should change the key")
	}
	if len(a) != len("layout:")+64 || a[:7] != "layout:" {
		t.Errorf("unexpected key format: %s", a)
	}
}

func TestScopedKeyer(t *testing.T) {
	inner := NewDefaultKeyer()
	k := NewScopedKeyer(inner, "staging:")

	opts := LayoutKeyOpts{Capacity: 16}
	if got, want := k.LayoutKey("h", opts), "staging:"+inner.LayoutKey("h", opts); got != want {
		t.Errorf("LayoutKey = %s, want %s", got, want)
	}

	k = NewScopedKeyer(nil, "p:")
	if got := k.LayoutKey("h", opts); got != "p:"+inner.LayoutKey("h", opts) {
		t.Errorf("nil inner should fall back to default keyer, got %s", got)
	}
}

func TestOpen(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		name    string
		opts    Options
		want    any
		wantErr error
	}{
		{"empty", Options{}, &NullCache{}, nil},
		{"none", Options{Backend: BackendNone}, &NullCache{}, nil},
		{"file", Options{Backend: BackendFile, Dir: t.TempDir()}, &FileCache{}, nil},
		{"memory", Options{Backend: BackendMemory}, &MemoryCache{}, nil},
		{"unknown", Options{Backend: "etcd"}, nil, ErrUnknownBackend},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := Open(ctx, tt.opts)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("err = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Open: %v", err)
			}
			defer c.Close()
			switch tt.want.(type) {
			case *NullCache:
				_, ok := c.(*NullCache)
				if !ok {
					t.Errorf("got %T", c)
				}
			case *FileCache:
				if _, ok := c.(*FileCache); !ok {
					t.Errorf("got %T", c)
				}
			case *MemoryCache:
				if _, ok := c.(*MemoryCache); !ok {
					t.Errorf("got %T", c)
				}
			}
		})
	}
}

func TestRedisCache(t *testing.T) {
	addr := os.Getenv("TERRITORY_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TERRITORY_TEST_REDIS_ADDR not set")
	}
	ctx := context.Background()
	c, err := NewRedisCache(ctx, addr, "", 0)
	if err != nil {
		t.Fatalf("NewRedisCache: %v", err)
	}
	defer c.Close()

	key := "territory-test:" + Hash([]byte(t.Name()))
	defer c.Delete(ctx, key)

	if _, hit, err := c.Get(ctx, key); err != nil || hit {
		t.Fatalf("Get(missing) = %v, %v", hit, err)
	}
	if err := c.Set(ctx, key, []byte("v"), time.Minute); err != nil {
		t.Fatalf("Set: %v", err)
	}
	data, hit, err := c.Get(ctx, key)
	if err != nil || !hit || string(data) != "v" {
		t.Fatalf("Get = %q, %v, %v", data, hit, err)
	}
}

func TestRetryableError(t *testing.T) {
	if Retryable(nil) != nil {
		t.Error("Retryable(nil) should return nil")
	}

	baseErr := errors.New("connection reset")
	err := Retryable(baseErr)
	if !IsRetryable(err) {
		t.Error("wrapped error should be retryable")
	}
	if !errors.Is(err, baseErr) {
		t.Error("Retryable should unwrap to the original error")
	}
	if err.Error() != baseErr.Error() {
		t.Errorf("Error() = %q", err.Error())
	}
	if IsRetryable(baseErr) {
		t.Error("plain error should not be retryable")
	}
}

func TestRetryWithBackoff(t *testing.T) {
	ctx := context.Background()

	t.Run("success first try", func(t *testing.T) {
		calls := 0
		err := RetryWithBackoff(ctx, func() error {
			calls++
			return nil
		})
		if err != nil || calls != 1 {
			t.Errorf("err = %v, calls = %d", err, calls)
		}
	})

	t.Run("non-retryable stops", func(t *testing.T) {
		calls := 0
		err := RetryWithBackoff(ctx, func() error {
			calls++
			return errors.New("permanent")
		})
		if err == nil || calls != 1 {
			t.Errorf("err = %v, calls = %d", err, calls)
		}
	})

	t.Run("retryable then success", func(t *testing.T) {
		calls := 0
		err := RetryWithBackoff(ctx, func() error {
			calls++
			if calls < 2 {
				return Retryable(errors.New("transient"))
			}
			return nil
		})
		if err != nil || calls != 2 {
			t.Errorf("err = %v, calls = %d", err, calls)
		}
	})

	t.Run("gives up after three attempts", func(t *testing.T) {
		calls := 0
		err := RetryWithBackoff(ctx, func() error {
			calls++
			return Retryable(errors.New("down"))
		})
		if !IsRetryable(err) || calls != 3 {
			t.Errorf("err = %v, calls = %d", err, calls)
		}
	})
}

func TestRetryWithBackoffContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := RetryWithBackoff(ctx, func() error {
		calls++
		return Retryable(errors.New("transient"))
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}
