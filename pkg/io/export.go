package io

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/matzehuels/territory/pkg/core/model"
	"github.com/matzehuels/territory/pkg/store"
)

// WriteJSON encodes v as indented JSON.
func WriteJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	return nil
}

// WriteEntities writes entities as a fixture object that [ReadEntities]
// accepts.
func WriteEntities(w io.Writer, entities []model.Entity) error {
	if entities == nil {
		entities = []model.Entity{}
	}
	return WriteJSON(w, fixture{Entities: entities})
}

// WriteSnapshot writes snap as indented JSON.
func WriteSnapshot(w io.Writer, snap store.Snapshot) error {
	return WriteJSON(w, snap)
}

// ExportSnapshot writes snap to the file at path.
func ExportSnapshot(snap store.Snapshot, path string) error {
	return exportFile(path, func(w io.Writer) error { return WriteSnapshot(w, snap) })
}

// ExportJSON writes v as indented JSON to the file at path.
func ExportJSON(v any, path string) error {
	return exportFile(path, func(w io.Writer) error { return WriteJSON(w, v) })
}

// ExportEntities writes a fixture file at path.
func ExportEntities(entities []model.Entity, path string) error {
	return exportFile(path, func(w io.Writer) error { return WriteEntities(w, entities) })
}

func exportFile(path string, write func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
