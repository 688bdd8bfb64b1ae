package model

import (
	"math"
	"strings"

	"github.com/matzehuels/territory/pkg/errors"
)

// Direction is the compass point a non-central zone is pushed toward.
type Direction string

// Compass directions. Center is reserved for the central zone.
const (
	Center    Direction = "center"
	North     Direction = "north"
	NorthEast Direction = "northeast"
	East      Direction = "east"
	SouthEast Direction = "southeast"
	South     Direction = "south"
	SouthWest Direction = "southwest"
	West      Direction = "west"
	NorthWest Direction = "northwest"
)

// directionVectors maps each direction to its unit step on the world grid.
// X grows toward east, Y grows toward north.
var directionVectors = map[Direction][2]float64{
	Center:    {0, 0},
	North:     {0, 1},
	NorthEast: {1, 1},
	East:      {1, 0},
	SouthEast: {1, -1},
	South:     {0, -1},
	SouthWest: {-1, -1},
	West:      {-1, 0},
	NorthWest: {-1, 1},
}

// ParseDirection normalizes s ("NorthWest", "north-west", "nw") into a
// Direction.
func ParseDirection(s string) (Direction, error) {
	norm := strings.ToLower(strings.NewReplacer("-", "", "_", "", " ", "").Replace(s))
	switch norm {
	case "", "c", "center", "centre":
		return Center, nil
	case "n":
		return North, nil
	case "ne":
		return NorthEast, nil
	case "e":
		return East, nil
	case "se":
		return SouthEast, nil
	case "s":
		return South, nil
	case "sw":
		return SouthWest, nil
	case "w":
		return West, nil
	case "nw":
		return NorthWest, nil
	}
	if _, ok := directionVectors[Direction(norm)]; ok {
		return Direction(norm), nil
	}
	return "", errors.New(errors.ErrCodeInvalidConfig, "unknown direction %q", s)
}

// Vector returns the unit step (dx, dy) for d. Unknown directions map to
// the origin.
func (d Direction) Vector() (dx, dy float64) {
	v := directionVectors[d]
	return v[0], v[1]
}

// Horizontal reports whether d points due east or due west.
func (d Direction) Horizontal() bool {
	return d == East || d == West
}

// Zone is a named packing region.
type Zone struct {
	ID        string    `json:"id" toml:"id"`
	Name      string    `json:"name,omitempty" toml:"name"`
	Capacity  int       `json:"capacity" toml:"capacity"`
	Central   bool      `json:"central,omitempty" toml:"central"`
	Direction Direction `json:"direction,omitempty" toml:"direction"`
	Elevation float64   `json:"elevation,omitempty" toml:"elevation"`
}

// NominalSide is the side length of the square grid the zone's capacity
// describes: ceil(sqrt(capacity)).
func (z Zone) NominalSide() int {
	return NominalSide(z.Capacity)
}

// NominalSide returns ceil(sqrt(capacity)), or 0 for non-positive capacity.
func NominalSide(capacity int) int {
	if capacity <= 0 {
		return 0
	}
	side := int(math.Sqrt(float64(capacity)))
	for side*side < capacity {
		side++
	}
	return side
}

// Validate checks a single zone record.
func (z Zone) Validate() error {
	if err := errors.ValidateID("zone", z.ID); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidConfig, err, "zone")
	}
	if z.Capacity <= 0 {
		return errors.New(errors.ErrCodeInvalidConfig, "zone %q: capacity must be positive, got %d", z.ID, z.Capacity)
	}
	if z.Central {
		if z.Direction != "" && z.Direction != Center {
			return errors.New(errors.ErrCodeInvalidConfig, "zone %q: central zone cannot have direction %q", z.ID, z.Direction)
		}
		return nil
	}
	if _, ok := directionVectors[z.Direction]; !ok || z.Direction == Center {
		return errors.New(errors.ErrCodeInvalidConfig, "zone %q: needs a compass direction, got %q", z.ID, z.Direction)
	}
	return nil
}

// Zones is a validated, read-only zone configuration.
type Zones struct {
	byID    map[string]Zone
	order   []string
	central string
	lane    float64
}

// NewZones validates zs and indexes it. It enforces unique ids, at most one
// central zone, and one non-central zone per compass direction.
func NewZones(zs []Zone) (*Zones, error) {
	idx := &Zones{byID: make(map[string]Zone, len(zs))}
	directions := make(map[Direction]string)

	for _, z := range zs {
		if z.Central && z.Direction == "" {
			z.Direction = Center
		}
		if err := z.Validate(); err != nil {
			return nil, err
		}
		if _, dup := idx.byID[z.ID]; dup {
			return nil, errors.New(errors.ErrCodeInvalidConfig, "duplicate zone id %q", z.ID)
		}
		if z.Central {
			if idx.central != "" {
				return nil, errors.New(errors.ErrCodeInvalidConfig, "zones %q and %q are both central", idx.central, z.ID)
			}
			idx.central = z.ID
		} else {
			if other, taken := directions[z.Direction]; taken {
				return nil, errors.New(errors.ErrCodeInvalidConfig, "zones %q and %q share direction %q", other, z.ID, z.Direction)
			}
			directions[z.Direction] = z.ID
			if half := float64(z.NominalSide()) / 2; half > idx.lane {
				idx.lane = half
			}
		}
		idx.byID[z.ID] = z
		idx.order = append(idx.order, z.ID)
	}
	return idx, nil
}

// Get returns the zone with the given id.
func (zs *Zones) Get(id string) (Zone, bool) {
	z, ok := zs.byID[id]
	return z, ok
}

// Central returns the central zone, if one is configured.
func (zs *Zones) Central() (Zone, bool) {
	if zs.central == "" {
		return Zone{}, false
	}
	return zs.byID[zs.central], true
}

// CentralID returns the central zone id or "".
func (zs *Zones) CentralID() string { return zs.central }

// IsCentral reports whether id names the central zone.
func (zs *Zones) IsCentral(id string) bool { return id != "" && id == zs.central }

// All returns the zones in configuration order.
func (zs *Zones) All() []Zone {
	out := make([]Zone, len(zs.order))
	for i, id := range zs.order {
		out[i] = zs.byID[id]
	}
	return out
}

// IDs returns the zone ids in configuration order.
func (zs *Zones) IDs() []string {
	return append([]string(nil), zs.order...)
}

// Len returns the number of configured zones.
func (zs *Zones) Len() int { return len(zs.order) }

// Lane is half the largest nominal grid side among non-central zones.
func (zs *Zones) Lane() float64 { return zs.lane }
