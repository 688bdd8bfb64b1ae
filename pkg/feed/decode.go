package feed

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"math"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/matzehuels/territory/pkg/core/model"
	"github.com/matzehuels/territory/pkg/errors"
)

// Record field names on the wire. Anything else lands in Attributes.
const (
	fieldID          = "id"
	fieldZoneID      = "zoneId"
	fieldWeight      = "weight"
	fieldName        = "name"
	fieldImageStatus = "imageStatus"
)

//go:embed event.schema.json
var eventSchemaJSON string

var eventSchema = jsonschema.MustCompileString("event.schema.json", eventSchemaJSON)

type wireEvent struct {
	EventType string         `json:"eventType"`
	Record    map[string]any `json:"record"`
}

// Decode parses a wire payload into an Event.
//
// The payload is checked against the embedded event schema before any field
// is read, so a payload that decodes always carries a known event type and a
// record with the fields that type requires. Failures are reported with
// [errors.ErrCodeMalformedEvent].
func Decode(data []byte) (Event, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw any
	if err := dec.Decode(&raw); err != nil {
		return Event{}, errors.Wrap(errors.ErrCodeMalformedEvent, err, "decode event")
	}
	if err := eventSchema.Validate(raw); err != nil {
		return Event{}, errors.Wrap(errors.ErrCodeMalformedEvent, err, "invalid event")
	}

	obj := raw.(map[string]any)
	record := obj["record"].(map[string]any)

	ev := Event{Type: EventType(obj["eventType"].(string))}
	e, err := entityFromRecord(record)
	if err != nil {
		return Event{}, err
	}
	ev.Record = e
	return ev, nil
}

func entityFromRecord(record map[string]any) (model.Entity, error) {
	var e model.Entity
	for k, v := range record {
		switch k {
		case fieldID:
			e.ID, _ = v.(string)
		case fieldZoneID:
			e.ZoneID, _ = v.(string)
		case fieldName:
			e.Name, _ = v.(string)
		case fieldImageStatus:
			e.ImageStatus, _ = v.(string)
		case fieldWeight:
			w, err := toFloat(v)
			if err != nil {
				return model.Entity{}, errors.Wrap(errors.ErrCodeMalformedEvent, err, "record %v: weight", record[fieldID])
			}
			e.Weight = w
		default:
			if e.Attributes == nil {
				e.Attributes = make(map[string]any)
			}
			e.Attributes[k] = plain(v)
		}
	}
	return e, nil
}

func toFloat(v any) (float64, error) {
	switch n := v.(type) {
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return 0, err
		}
		if math.IsInf(f, 0) || math.IsNaN(f) {
			return 0, fmt.Errorf("weight %s out of range", n)
		}
		return f, nil
	case float64:
		return n, nil
	}
	return 0, fmt.Errorf("weight has type %T", v)
}

// plain converts json.Number leaves to float64 so attributes compare equal
// to values decoded without UseNumber.
func plain(v any) any {
	switch x := v.(type) {
	case json.Number:
		if f, err := x.Float64(); err == nil {
			return f
		}
		return x.String()
	case map[string]any:
		for k, vv := range x {
			x[k] = plain(vv)
		}
		return x
	case []any:
		for i, vv := range x {
			x[i] = plain(vv)
		}
		return x
	}
	return v
}

// DecodeRecord validates a record that a driver has already parsed, such
// as a database row or document, by routing it through [Decode].
func DecodeRecord(t EventType, record map[string]any) (Event, error) {
	data, err := json.Marshal(wireEvent{EventType: string(t), Record: record})
	if err != nil {
		return Event{}, errors.Wrap(errors.ErrCodeMalformedEvent, err, "encode record")
	}
	return Decode(data)
}

// Record flattens e into the wire record shape, attributes included.
func Record(e model.Entity) map[string]any {
	record := make(map[string]any, len(e.Attributes)+5)
	for k, v := range e.Attributes {
		record[k] = v
	}
	record[fieldID] = e.ID
	record[fieldZoneID] = e.ZoneID
	record[fieldWeight] = e.Weight
	if e.Name != "" {
		record[fieldName] = e.Name
	}
	if e.ImageStatus != "" {
		record[fieldImageStatus] = e.ImageStatus
	}
	return record
}
