// Package mongofeed serves entities and zones from MongoDB collections and
// streams changes from a change stream on the entities collection.
//
// Entity documents use the wire record field names with the entity id as
// _id:
//
//	{"_id": "p1", "zoneId": "north", "weight": 12, "name": "P1", "seat": "A4"}
//
// Change streams need a replica set or sharded cluster.
package mongofeed

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/charmbracelet/log"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/matzehuels/territory/pkg/core/model"
	"github.com/matzehuels/territory/pkg/feed"
	"github.com/matzehuels/territory/pkg/observability"
)

const sourceName = "mongo"

// Collection names.
const (
	EntitiesCollection = "entities"
	ZonesCollection    = "zones"
)

// Source is a MongoDB backed [feed.Source].
type Source struct {
	client   *mongo.Client
	entities *mongo.Collection
	zones    *mongo.Collection
	logger   *log.Logger
	owned    bool

	wg sync.WaitGroup
}

// Option configures a Source.
type Option func(*Source)

// WithLogger sets the logger for skipped documents.
func WithLogger(l *log.Logger) Option {
	return func(s *Source) {
		if l != nil {
			s.logger = l
		}
	}
}

// Connect dials uri, pings the primary and opens database.
func Connect(ctx context.Context, uri, database string, opts ...Option) (*Source, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping: %w", err)
	}
	s := New(client.Database(database), opts...)
	s.client = client
	s.owned = true
	return s, nil
}

// New uses the collections of db. Close leaves the client connected.
func New(db *mongo.Database, opts ...Option) *Source {
	s := &Source{
		entities: db.Collection(EntitiesCollection),
		zones:    db.Collection(ZonesCollection),
		logger:   log.New(io.Discard),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Close waits for subscriptions to stop and disconnects if Connect created
// the client.
func (s *Source) Close(ctx context.Context) error {
	s.wg.Wait()
	if s.owned {
		return s.client.Disconnect(ctx)
	}
	return nil
}

// ===== Query side =====

// ListEntities returns every entity document, ordered by id. Documents
// that fail validation are skipped and logged.
func (s *Source) ListEntities(ctx context.Context) ([]model.Entity, error) {
	cur, err := s.entities.Find(ctx, bson.D{}, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("find entities: %w", err)
	}
	defer cur.Close(ctx)

	var out []model.Entity
	for cur.Next(ctx) {
		var doc bson.M
		if err := cur.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decode entity: %w", err)
		}
		e, err := entityFromDoc(doc)
		if err != nil {
			s.logger.Warn("skipping entity document", "id", doc["_id"], "err", err)
			continue
		}
		out = append(out, e)
	}
	return out, cur.Err()
}

type zoneDoc struct {
	ID        string  `bson:"_id"`
	Name      string  `bson:"name,omitempty"`
	Capacity  int     `bson:"capacity"`
	Central   bool    `bson:"central,omitempty"`
	Direction string  `bson:"direction,omitempty"`
	Elevation float64 `bson:"elevation,omitempty"`
	Position  int     `bson:"position"`
}

// ListZones returns the zone documents ordered by their position field.
func (s *Source) ListZones(ctx context.Context) ([]model.Zone, error) {
	cur, err := s.zones.Find(ctx, bson.D{}, options.Find().SetSort(bson.D{{Key: "position", Value: 1}, {Key: "_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("find zones: %w", err)
	}
	defer cur.Close(ctx)

	var docs []zoneDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode zones: %w", err)
	}
	out := make([]model.Zone, len(docs))
	for i, d := range docs {
		z, err := zoneFromDoc(d)
		if err != nil {
			return nil, err
		}
		out[i] = z
	}
	return out, nil
}

func zoneFromDoc(d zoneDoc) (model.Zone, error) {
	z := model.Zone{
		ID:        d.ID,
		Name:      d.Name,
		Capacity:  d.Capacity,
		Central:   d.Central,
		Elevation: d.Elevation,
	}
	if d.Direction != "" {
		dir, err := model.ParseDirection(d.Direction)
		if err != nil {
			return model.Zone{}, fmt.Errorf("zone %s: %w", d.ID, err)
		}
		z.Direction = dir
	}
	return z, nil
}

// ===== Write side =====

// PutZones replaces the zones collection.
func (s *Source) PutZones(ctx context.Context, zones []model.Zone) error {
	if _, err := s.zones.DeleteMany(ctx, bson.D{}); err != nil {
		return fmt.Errorf("clear zones: %w", err)
	}
	if len(zones) == 0 {
		return nil
	}
	docs := make([]any, len(zones))
	for i, z := range zones {
		d := zoneDoc{ID: z.ID, Name: z.Name, Capacity: z.Capacity, Central: z.Central, Elevation: z.Elevation, Position: i}
		if !z.Central {
			d.Direction = string(z.Direction)
		}
		docs[i] = d
	}
	_, err := s.zones.InsertMany(ctx, docs)
	return err
}

// Apply writes events to the entities collection; the change stream picks
// them up from there.
func (s *Source) Apply(ctx context.Context, events ...feed.Event) error {
	for _, ev := range events {
		if err := ev.Validate(); err != nil {
			return err
		}
		var err error
		switch ev.Type {
		case feed.Insert, feed.Update:
			_, err = s.entities.ReplaceOne(ctx, bson.M{"_id": ev.Record.ID}, docFromEntity(ev.Record),
				options.Replace().SetUpsert(true))
		case feed.Delete:
			_, err = s.entities.DeleteOne(ctx, bson.M{"_id": ev.Record.ID})
		}
		if err != nil {
			return fmt.Errorf("apply %s %s: %w", ev.Type, ev.Record.ID, err)
		}
	}
	return nil
}

// ===== Stream side =====

// Subscribe opens a change stream on the entities collection. Updates are
// delivered with the full current document.
func (s *Source) Subscribe(ctx context.Context, h feed.Handler) (feed.Unsubscribe, error) {
	cs, err := s.entities.Watch(ctx, mongo.Pipeline{},
		options.ChangeStream().SetFullDocument(options.UpdateLookup))
	if err != nil {
		return nil, fmt.Errorf("watch entities: %w", err)
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
		defer cs.Close(context.Background())

		for cs.Next(ctx) {
			var ce changeEvent
			if err := cs.Decode(&ce); err != nil {
				hooks.OnDecodeError(ctx, sourceName, err)
				s.logger.Warn("skipping change", "err", err)
				continue
			}
			ev, ok, err := eventFromChange(ce)
			if err != nil {
				hooks.OnDecodeError(ctx, sourceName, err)
				s.logger.Warn("skipping change", "op", ce.OperationType, "err", err)
				continue
			}
			if !ok {
				continue
			}
			hooks.OnEvent(ctx, sourceName, string(ev.Type))
			h(ctx, ev)
		}
		if err := cs.Err(); err != nil && ctx.Err() == nil {
			s.logger.Error("change stream ended", "err", err)
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

// changeEvent holds the change stream fields we read.
type changeEvent struct {
	OperationType string `bson:"operationType"`
	DocumentKey   bson.M `bson:"documentKey"`
	FullDocument  bson.M `bson:"fullDocument"`
}

// eventFromChange maps a change to a feed event. Operations that do not
// concern single documents, and updates whose document is already gone,
// report ok=false.
func eventFromChange(ce changeEvent) (feed.Event, bool, error) {
	switch ce.OperationType {
	case "insert", "update", "replace":
		if ce.FullDocument == nil {
			return feed.Event{}, false, nil
		}
		e, err := entityFromDoc(ce.FullDocument)
		if err != nil {
			return feed.Event{}, false, err
		}
		if ce.OperationType == "insert" {
			return feed.InsertOf(e), true, nil
		}
		return feed.UpdateOf(e), true, nil
	case "delete":
		id, err := idString(ce.DocumentKey["_id"])
		if err != nil {
			return feed.Event{}, false, err
		}
		ev := feed.DeleteOf(id)
		return ev, true, ev.Validate()
	}
	return feed.Event{}, false, nil
}

// ===== Documents =====

// entityFromDoc validates a document through the wire decoder.
func entityFromDoc(doc bson.M) (model.Entity, error) {
	id, err := idString(doc["_id"])
	if err != nil {
		return model.Entity{}, err
	}
	record := make(map[string]any, len(doc))
	for k, v := range doc {
		if k == "_id" {
			continue
		}
		record[k] = plain(v)
	}
	record["id"] = id
	ev, err := feed.DecodeRecord(feed.Insert, record)
	if err != nil {
		return model.Entity{}, err
	}
	return ev.Record, nil
}

func docFromEntity(e model.Entity) bson.M {
	doc := bson.M{}
	for k, v := range feed.Record(e) {
		doc[k] = v
	}
	delete(doc, "id")
	doc["_id"] = e.ID
	return doc
}

func idString(v any) (string, error) {
	switch id := v.(type) {
	case string:
		return id, nil
	case primitive.ObjectID:
		return id.Hex(), nil
	case nil:
		return "", fmt.Errorf("document has no _id")
	}
	return "", fmt.Errorf("unsupported _id type %T", v)
}

// plain converts BSON container and scalar types into values that encode
// to the same JSON the wire format uses.
func plain(v any) any {
	switch x := v.(type) {
	case primitive.M:
		out := make(map[string]any, len(x))
		for k, vv := range x {
			out[k] = plain(vv)
		}
		return out
	case primitive.D:
		out := make(map[string]any, len(x))
		for _, e := range x {
			out[e.Key] = plain(e.Value)
		}
		return out
	case primitive.A:
		out := make([]any, len(x))
		for i, vv := range x {
			out[i] = plain(vv)
		}
		return out
	case primitive.ObjectID:
		return x.Hex()
	case primitive.DateTime:
		return x.Time().UTC().Format("2006-01-02T15:04:05.000Z07:00")
	case primitive.Decimal128:
		return x.String()
	case int32:
		return float64(x)
	case int64:
		return float64(x)
	}
	return v
}

var _ feed.Source = (*Source)(nil)
