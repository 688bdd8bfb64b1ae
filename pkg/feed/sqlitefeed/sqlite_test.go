package sqlitefeed

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/matzehuels/territory/pkg/core/model"
	"github.com/matzehuels/territory/pkg/feed"
	"github.com/matzehuels/territory/pkg/store"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func openTest(t *testing.T) *Source {
	t.Helper()
	s, err := Open(t.Context(), filepath.Join(t.TempDir(), "territory.db"), WithPollInterval(5*time.Millisecond))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

var testZones = []model.Zone{
	{ID: "vip", Capacity: 16, Central: true, Direction: model.Center},
	{ID: "north", Name: "North", Capacity: 100, Direction: model.North},
	{ID: "east", Capacity: 25, Direction: model.East, Elevation: 1.5},
}

// collector gathers delivered events.
type collector struct {
	mu     sync.Mutex
	events []feed.Event
}

func (c *collector) handle(_ context.Context, ev feed.Event) {
	c.mu.Lock()
	c.events = append(c.events, ev)
	c.mu.Unlock()
}

func (c *collector) ids() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.events))
	for i, ev := range c.events {
		out[i] = string(ev.Type) + ":" + ev.Record.ID
	}
	return out
}

func TestZones(t *testing.T) {
	s := openTest(t)
	ctx := t.Context()

	require.NoError(t, s.PutZones(ctx, testZones))
	got, err := s.ListZones(ctx)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, []string{"vip", "north", "east"}, []string{got[0].ID, got[1].ID, got[2].ID})
	assert.True(t, got[0].Central)
	assert.Equal(t, model.North, got[1].Direction)
	assert.Equal(t, 1.5, got[2].Elevation)

	_, err = model.NewZones(got)
	assert.NoError(t, err, "listed zones should validate")
}

func TestApplyAndList(t *testing.T) {
	s := openTest(t)
	ctx := t.Context()

	require.NoError(t, s.Apply(ctx,
		feed.InsertOf(model.Entity{ID: "b", ZoneID: "north", Weight: 2, Attributes: map[string]any{"tier": "gold"}}),
		feed.InsertOf(model.Entity{ID: "a", ZoneID: "north", Weight: 5, Name: "Alpha"}),
		feed.UpdateOf(model.Entity{ID: "c", ZoneID: "east", Weight: 1}),
		feed.DeleteOf("c"),
		feed.UpdateOf(model.Entity{ID: "b", ZoneID: "east", Weight: 3, Attributes: map[string]any{"tier": "gold"}}),
	))

	got, err := s.ListEntities(ctx)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.True(t, got[0].Equal(model.Entity{ID: "a", ZoneID: "north", Weight: 5, Name: "Alpha"}))
	assert.True(t, got[1].Equal(model.Entity{ID: "b", ZoneID: "east", Weight: 3, Attributes: map[string]any{"tier": "gold"}}))
}

func TestApplyRejectsInvalidEvents(t *testing.T) {
	s := openTest(t)
	ctx := t.Context()

	err := s.Apply(ctx,
		feed.InsertOf(model.Entity{ID: "a", ZoneID: "north", Weight: 1}),
		feed.InsertOf(model.Entity{ID: "b", ZoneID: "north", Weight: -1}),
	)
	require.Error(t, err)

	got, err := s.ListEntities(ctx)
	require.NoError(t, err)
	assert.Empty(t, got, "a failed batch must not be partially applied")
}

func TestSubscribeDeliversOnlyNewRows(t *testing.T) {
	s := openTest(t)
	ctx := t.Context()

	require.NoError(t, s.Apply(ctx, feed.InsertOf(model.Entity{ID: "old", ZoneID: "north", Weight: 1})))

	var c collector
	unsub, err := s.Subscribe(ctx, c.handle)
	require.NoError(t, err)
	defer unsub()

	require.NoError(t, s.Apply(ctx, feed.InsertOf(model.Entity{ID: "a", ZoneID: "north", Weight: 1})))
	require.NoError(t, s.AppendRaw(ctx, []byte(`{"eventType":"upsert","record":{"id":"x"}}`)))
	require.NoError(t, s.Apply(ctx,
		feed.UpdateOf(model.Entity{ID: "a", ZoneID: "north", Weight: 4}),
		feed.DeleteOf("old"),
	))

	want := []string{"insert:a", "update:a", "delete:old"}
	require.Eventually(t, func() bool { return len(c.ids()) == len(want) }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, want, c.ids())
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	s := openTest(t)
	ctx := t.Context()

	var c collector
	unsub, err := s.Subscribe(ctx, c.handle)
	require.NoError(t, err)
	unsub()
	unsub()

	require.NoError(t, s.Apply(ctx, feed.InsertOf(model.Entity{ID: "a", ZoneID: "north", Weight: 1})))
	time.Sleep(30 * time.Millisecond)
	assert.Empty(t, c.ids())
}

func TestContextCancelStopsSubscription(t *testing.T) {
	s := openTest(t)

	ctx, cancel := context.WithCancel(t.Context())
	var c collector
	unsub, err := s.Subscribe(ctx, c.handle)
	require.NoError(t, err)
	cancel()
	unsub()
}

func TestTrim(t *testing.T) {
	s := openTest(t)
	ctx := t.Context()

	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, s.Apply(ctx, feed.InsertOf(model.Entity{ID: id, ZoneID: "north", Weight: 1})))
	}
	n, err := s.Trim(ctx, 2)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	head, err := s.head(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 3, head)
}

func TestStoreFollowsSource(t *testing.T) {
	s := openTest(t)
	ctx := t.Context()

	require.NoError(t, s.PutZones(ctx, testZones))
	require.NoError(t, s.Apply(ctx, feed.InsertOf(model.Entity{ID: "a", ZoneID: "north", Weight: 3})))

	listed, err := s.ListZones(ctx)
	require.NoError(t, err)
	zones, err := model.NewZones(listed)
	require.NoError(t, err)

	st := store.New(zones)
	n, err := st.SeedFrom(ctx, s)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	unsub, err := st.Attach(ctx, s)
	require.NoError(t, err)
	defer unsub()

	require.NoError(t, s.Apply(ctx, feed.InsertOf(model.Entity{ID: "b", ZoneID: "east", Weight: 9})))
	require.Eventually(t, func() bool {
		_, ok := st.Placement("east")
		return ok
	}, 2*time.Second, 5*time.Millisecond)

	top, ok := st.Top("east")
	require.True(t, ok)
	assert.Equal(t, "b", top.ID)
}
