package config

import (
	"fmt"
	"io"
	"os"
	"slices"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/matzehuels/territory/pkg/core/model"
	"github.com/matzehuels/territory/pkg/errors"
)

// zonesFile is the TOML layout of a zones file.
type zonesFile struct {
	Zone []zoneRecord `toml:"zone"`
}

type zoneRecord struct {
	ID        string  `toml:"id"`
	Name      string  `toml:"name"`
	Capacity  int     `toml:"capacity"`
	Central   bool    `toml:"central"`
	Direction string  `toml:"direction"`
	Elevation float64 `toml:"elevation"`
}

// ReadZones decodes a zones file:
//
//	[[zone]]
//	id = "vip"
//	capacity = 64
//	central = true
//
//	[[zone]]
//	id = "north"
//	capacity = 100
//	direction = "north"
//
// Directions accept the spellings [model.ParseDirection] does. Unknown keys
// are rejected so typos do not silently drop settings.
func ReadZones(r io.Reader) (*model.Zones, error) {
	var f zonesFile
	md, err := toml.NewDecoder(r).Decode(&f)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidConfig, err, "decode zones")
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		slices.Sort(keys)
		return nil, errors.New(errors.ErrCodeInvalidConfig, "unknown zone keys: %s", strings.Join(keys, ", "))
	}
	if len(f.Zone) == 0 {
		return nil, errors.New(errors.ErrCodeInvalidConfig, "no zones defined")
	}

	zones := make([]model.Zone, len(f.Zone))
	for i, rec := range f.Zone {
		dir, err := model.ParseDirection(rec.Direction)
		if err != nil {
			return nil, fmt.Errorf("zone %q: %w", rec.ID, err)
		}
		if !rec.Central && rec.Direction == "" {
			dir = ""
		}
		zones[i] = model.Zone{
			ID:        rec.ID,
			Name:      rec.Name,
			Capacity:  rec.Capacity,
			Central:   rec.Central,
			Direction: dir,
			Elevation: rec.Elevation,
		}
	}
	return model.NewZones(zones)
}

// LoadZones reads the zones file at path.
func LoadZones(path string) (*model.Zones, error) {
	if err := errors.ValidatePath(path); err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidConfig, err, "open zones file")
	}
	defer f.Close()
	return ReadZones(f)
}

// WriteZones encodes zones in the format [ReadZones] accepts.
func WriteZones(w io.Writer, zones *model.Zones) error {
	f := zonesFile{Zone: make([]zoneRecord, 0, zones.Len())}
	for _, z := range zones.All() {
		rec := zoneRecord{
			ID:        z.ID,
			Name:      z.Name,
			Capacity:  z.Capacity,
			Central:   z.Central,
			Elevation: z.Elevation,
		}
		if !z.Central {
			rec.Direction = string(z.Direction)
		}
		f.Zone = append(f.Zone, rec)
	}
	return toml.NewEncoder(w).Encode(f)
}
