package toyenv

import "math"

// Circle is a fixed circular obstacle in the arm's plane.
type Circle struct {
	Name   string
	Center [2]float64
	Radius float64
}

// segmentDistance returns the closest distance between point p and the
// segment [a,b], along with the closest point on the segment.
func segmentDistance(p, a, b [2]float64) (float64, [2]float64) {
	ab := [2]float64{b[0] - a[0], b[1] - a[1]}
	ap := [2]float64{p[0] - a[0], p[1] - a[1]}
	denom := ab[0]*ab[0] + ab[1]*ab[1]
	t := 0.0
	if denom > 0 {
		t = (ap[0]*ab[0] + ap[1]*ab[1]) / denom
		if t < 0 {
			t = 0
		} else if t > 1 {
			t = 1
		}
	}
	closest := [2]float64{a[0] + t*ab[0], a[1] + t*ab[1]}
	dx, dy := p[0]-closest[0], p[1]-closest[1]
	return math.Hypot(dx, dy), closest
}

// circleSegmentDistance returns the signed surface-to-surface distance
// between circle c and segment [a,b] (negative when penetrating), the
// closest point on the segment, and the unit normal from the circle's
// surface toward the segment.
func circleSegmentDistance(c Circle, a, b [2]float64) (dist float64, onSegment, normal [2]float64) {
	d, closest := segmentDistance(c.Center, a, b)
	dist = d - c.Radius
	dx, dy := closest[0]-c.Center[0], closest[1]-c.Center[1]
	n := math.Hypot(dx, dy)
	if n < 1e-12 {
		return dist, closest, [2]float64{1, 0}
	}
	return dist, closest, [2]float64{dx / n, dy / n}
}
