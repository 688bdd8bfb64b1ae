// Package position places zones in world space around the central zone.
//
// The central zone sits at the origin. Every other zone is offset along its
// compass direction by four terms:
//
//	offset = central half-extent + gap + lane + own half-extent
//
// The central half-extent makes a growing central zone push its neighbours
// outward symmetrically. The lane is half of the largest nominal grid side
// among non-central zones; it is fixed by configuration, so a zone's
// position never depends on a sibling's layout. Together these keep the
// world boxes of distinct zones apart as long as every zone's layout fits
// its nominal grid. A zone in graceful overflow grows downward past its
// nominal square and may then reach into a neighbour's lane.
package position
