package io

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/matzehuels/territory/pkg/core/model"
	"github.com/matzehuels/territory/pkg/errors"
	"github.com/matzehuels/territory/pkg/store"
)

type fixture struct {
	Entities []model.Entity `json:"entities"`
}

// ReadEntities decodes an entity fixture from r.
//
// It fails when the JSON is malformed, a record has an invalid id or
// weight, or an id repeats. Records without a zone are accepted.
func ReadEntities(r io.Reader) ([]model.Entity, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read: %w", err)
	}

	var entities []model.Entity
	if trimmed := bytes.TrimSpace(data); len(trimmed) > 0 && trimmed[0] == '[' {
		err = json.Unmarshal(trimmed, &entities)
	} else {
		var fx fixture
		err = json.Unmarshal(data, &fx)
		entities = fx.Entities
	}
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "decode entities")
	}

	seen := make(map[string]struct{}, len(entities))
	for i, e := range entities {
		if err := errors.ValidateID("entity", e.ID); err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "record %d", i)
		}
		if err := errors.ValidateWeight(e.Weight); err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "entity %s", e.ID)
		}
		if _, dup := seen[e.ID]; dup {
			return nil, errors.New(errors.ErrCodeInvalidInput, "duplicate entity id %q", e.ID)
		}
		seen[e.ID] = struct{}{}
	}
	return entities, nil
}

// ImportEntities reads the fixture file at path.
func ImportEntities(path string) ([]model.Entity, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	return ReadEntities(f)
}

// ReadSnapshot decodes a snapshot written by [WriteSnapshot].
func ReadSnapshot(r io.Reader) (store.Snapshot, error) {
	var snap store.Snapshot
	if err := json.NewDecoder(r).Decode(&snap); err != nil {
		return store.Snapshot{}, errors.Wrap(errors.ErrCodeInvalidInput, err, "decode snapshot")
	}
	return snap, nil
}

// ImportSnapshot reads the snapshot file at path.
func ImportSnapshot(path string) (store.Snapshot, error) {
	f, err := os.Open(path)
	if err != nil {
		return store.Snapshot{}, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	return ReadSnapshot(f)
}
