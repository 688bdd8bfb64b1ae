package mongofeed

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/matzehuels/territory/pkg/core/model"
	"github.com/matzehuels/territory/pkg/feed"
)

func TestEntityFromDoc(t *testing.T) {
	oid := primitive.NewObjectID()
	tests := []struct {
		name    string
		doc     bson.M
		want    model.Entity
		wantErr bool
	}{
		{
			name: "string id",
			doc:  bson.M{"_id": "p1", "zoneId": "north", "weight": 12.5, "name": "P"},
			want: model.Entity{ID: "p1", ZoneID: "north", Weight: 12.5, Name: "P"},
		},
		{
			name: "object id and integer weight",
			doc:  bson.M{"_id": oid, "zoneId": "east", "weight": int32(7)},
			want: model.Entity{ID: oid.Hex(), ZoneID: "east", Weight: 7},
		},
		{
			name: "nested attributes",
			doc: bson.M{"_id": "p2", "zoneId": "east", "weight": int64(1),
				"seat": bson.D{{Key: "row", Value: int32(4)}}, "tags": bson.A{"a", "b"}},
			want: model.Entity{ID: "p2", ZoneID: "east", Weight: 1, Attributes: map[string]any{
				"seat": map[string]any{"row": 4.0},
				"tags": []any{"a", "b"},
			}},
		},
		{name: "missing id", doc: bson.M{"zoneId": "east", "weight": 1.0}, wantErr: true},
		{name: "numeric id", doc: bson.M{"_id": 3, "zoneId": "east", "weight": 1.0}, wantErr: true},
		{name: "missing zone", doc: bson.M{"_id": "x", "weight": 1.0}, wantErr: true},
		{name: "string weight", doc: bson.M{"_id": "x", "zoneId": "e", "weight": "heavy"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := entityFromDoc(tt.doc)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got), "got %+v", got)
		})
	}
}

func TestDocFromEntityRoundTrip(t *testing.T) {
	e := model.Entity{ID: "p1", ZoneID: "north", Weight: 3, ImageStatus: "ready", Attributes: map[string]any{"seat": "A4"}}
	doc := docFromEntity(e)
	assert.Equal(t, "p1", doc["_id"])
	assert.NotContains(t, doc, "id")

	got, err := entityFromDoc(doc)
	require.NoError(t, err)
	assert.True(t, e.Equal(got))
}

func TestEventFromChange(t *testing.T) {
	full := bson.M{"_id": "p1", "zoneId": "north", "weight": 2.0}
	tests := []struct {
		name     string
		ce       changeEvent
		wantType feed.EventType
		wantOK   bool
		wantErr  bool
	}{
		{"insert", changeEvent{OperationType: "insert", FullDocument: full}, feed.Insert, true, false},
		{"update", changeEvent{OperationType: "update", FullDocument: full}, feed.Update, true, false},
		{"replace", changeEvent{OperationType: "replace", FullDocument: full}, feed.Update, true, false},
		{"update of deleted document", changeEvent{OperationType: "update"}, "", false, false},
		{"delete", changeEvent{OperationType: "delete", DocumentKey: bson.M{"_id": "p1"}}, feed.Delete, true, false},
		{"delete without key", changeEvent{OperationType: "delete"}, "", false, true},
		{"drop", changeEvent{OperationType: "drop"}, "", false, false},
		{"invalid document", changeEvent{OperationType: "insert", FullDocument: bson.M{"_id": "p1"}}, "", false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, ok, err := eventFromChange(tt.ce)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantOK, ok)
			if ok {
				assert.Equal(t, tt.wantType, ev.Type)
				assert.Equal(t, "p1", ev.Record.ID)
			}
		})
	}
}

func TestZoneFromDoc(t *testing.T) {
	z, err := zoneFromDoc(zoneDoc{ID: "n", Capacity: 9, Direction: "NE"})
	require.NoError(t, err)
	assert.Equal(t, model.NorthEast, z.Direction)

	_, err = zoneFromDoc(zoneDoc{ID: "n", Capacity: 9, Direction: "sideways"})
	assert.Error(t, err)
}

// TestChangeStream needs a replica set.
func TestChangeStream(t *testing.T) {
	uri := os.Getenv("TERRITORY_TEST_MONGO_URI")
	if uri == "" {
		t.Skip("TERRITORY_TEST_MONGO_URI not set")
	}
	ctx := t.Context()
	s, err := Connect(ctx, uri, "territory_test")
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = s.entities.Drop(context.Background())
		_ = s.zones.Drop(context.Background())
		_ = s.Close(context.Background())
	})

	zones := []model.Zone{
		{ID: "vip", Capacity: 16, Central: true},
		{ID: "n", Capacity: 9, Direction: model.North},
	}
	require.NoError(t, s.PutZones(ctx, zones))
	listed, err := s.ListZones(ctx)
	require.NoError(t, err)
	require.Len(t, listed, 2)
	assert.Equal(t, "vip", listed[0].ID)

	var (
		mu  sync.Mutex
		got []feed.Event
	)
	unsub, err := s.Subscribe(ctx, func(_ context.Context, ev feed.Event) {
		mu.Lock()
		got = append(got, ev)
		mu.Unlock()
	})
	require.NoError(t, err)
	defer unsub()

	require.NoError(t, s.Apply(ctx,
		feed.InsertOf(model.Entity{ID: "a", ZoneID: "n", Weight: 1}),
		feed.UpdateOf(model.Entity{ID: "a", ZoneID: "n", Weight: 2}),
		feed.DeleteOf("a"),
	))
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 3
	}, 5*time.Second, 20*time.Millisecond)
}
