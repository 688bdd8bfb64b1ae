package position

import (
	"github.com/matzehuels/territory/pkg/core/layout"
	"github.com/matzehuels/territory/pkg/core/model"
)

// DefaultGap is the separation, in grid units, kept between the central
// zone's box and the lane ring that surrounds it.
const DefaultGap = 1.0

// Position is the world-space centre of a zone's bounding box.
// X points east, Y points north, Z is the zone's configured elevation.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Origin is where the central zone always sits.
var Origin = Position{}

// Resolver assigns world positions to zones. It is safe for concurrent use;
// all state is fixed at construction.
type Resolver struct {
	gap  float64
	lane float64
}

// Option configures a [Resolver].
type Option func(*Resolver)

// WithGap sets the separation between the central box and the lane ring.
// Negative values are ignored.
func WithGap(gap float64) Option {
	return func(r *Resolver) {
		if gap >= 0 {
			r.gap = gap
		}
	}
}

// NewResolver creates a resolver for the given zone configuration. The lane
// width is taken from the largest nominal grid among non-central zones.
func NewResolver(zones *model.Zones, opts ...Option) *Resolver {
	r := &Resolver{gap: DefaultGap}
	if zones != nil {
		r.lane = zones.Lane()
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Gap returns the configured separation.
func (r *Resolver) Gap() float64 { return r.gap }

// Lane returns the half-width of the ring reserved around the central box.
func (r *Resolver) Lane() float64 { return r.lane }

// Resolve returns the position of zone.
//
// The central zone is always at the origin. Any other zone is pushed along
// its compass direction past the central box (zero-sized when central is
// nil), the gap, the lane, and half of its own box, so its inner edge stays
// anchored however far it overflows. Only the zone's own layout and the
// central layout are consulted, so a change in one non-central zone never
// moves another.
//
// zoneLayout must be oriented for the zone, as [layout.ComputeZone] does.
// Its extent across the zone's direction then never exceeds the nominal
// side, which is at most twice the lane, and boxes of distinct zones never
// overlap even when zones hold more entities than their capacity.
func (r *Resolver) Resolve(zone model.Zone, zoneLayout layout.Result, central *layout.Result) Position {
	if zone.Central {
		return Origin
	}

	var cw, ch float64
	if central != nil {
		cw, ch = central.Boundary.HalfExtents()
	}
	hw, hh := zoneLayout.Boundary.HalfExtents()
	dx, dy := zone.Direction.Vector()

	return Position{
		X: dx * (cw + r.gap + r.lane + hw),
		Y: dy * (ch + r.gap + r.lane + hh),
		Z: zone.Elevation,
	}
}
