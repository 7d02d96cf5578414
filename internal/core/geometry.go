package core

import (
	"math"
	"sort"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/clip"
	"github.com/paulmach/orb/planar"
)

const areaEpsilon = 1e-9

func PolygonArea(p orb.Polygon) float64 {
	if len(p) == 0 {
		return 0
	}
	return math.Abs(planar.Area(p))
}

// IoU returns the intersection over union of two polygons, 0 when they do not
// overlap or the union is degenerate.
func IoU(a, b orb.Polygon) float64 {
	inter := IntersectionArea(a, b)
	if inter <= 0 {
		return 0
	}
	union := PolygonArea(a) + PolygonArea(b) - inter
	if union <= areaEpsilon {
		return 0
	}
	return inter / union
}

// IntersectionArea computes the overlap of two polygons. Axis aligned
// rectangles are clipped exactly with orb/clip. Other shapes are clipped with
// Sutherland-Hodgman against whichever polygon is convex; when neither is, the
// second polygon is replaced by its convex hull, which overestimates the
// overlap for concave shapes. Holes are only honoured on the rectangle path.
func IntersectionArea(a, b orb.Polygon) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	if !a.Bound().Intersects(b.Bound()) {
		return 0
	}

	switch {
	case isRectangle(b):
		return PolygonArea(clip.Polygon(b.Bound(), a.Clone()))
	case isRectangle(a):
		return PolygonArea(clip.Polygon(a.Bound(), b.Clone()))
	case isConvex(b[0]):
		return ringArea(clipConvex(a[0], b[0]))
	case isConvex(a[0]):
		return ringArea(clipConvex(b[0], a[0]))
	default:
		return ringArea(clipConvex(a[0], convexHull(b[0])))
	}
}

func isRectangle(p orb.Polygon) bool {
	if len(p) != 1 {
		return false
	}
	bound := p.Bound()
	boundArea := (bound.Max[0] - bound.Min[0]) * (bound.Max[1] - bound.Min[1])
	return boundArea > 0 && math.Abs(PolygonArea(p)-boundArea) <= areaEpsilon*math.Max(1, boundArea)
}

func openRing(r orb.Ring) []orb.Point {
	pts := []orb.Point(r)
	if len(pts) > 1 && pts[0] == pts[len(pts)-1] {
		pts = pts[:len(pts)-1]
	}
	return pts
}

func signedArea(pts []orb.Point) float64 {
	sum := 0.0
	for i := range pts {
		j := (i + 1) % len(pts)
		sum += pts[i][0]*pts[j][1] - pts[j][0]*pts[i][1]
	}
	return sum / 2
}

func ringArea(pts []orb.Point) float64 {
	if len(pts) < 3 {
		return 0
	}
	return math.Abs(signedArea(pts))
}

func cross(o, a, b orb.Point) float64 {
	return (a[0]-o[0])*(b[1]-o[1]) - (a[1]-o[1])*(b[0]-o[0])
}

func isConvex(r orb.Ring) bool {
	pts := openRing(r)
	if len(pts) < 3 {
		return false
	}
	sign := 0.0
	for i := range pts {
		c := cross(pts[i], pts[(i+1)%len(pts)], pts[(i+2)%len(pts)])
		if math.Abs(c) <= areaEpsilon {
			continue
		}
		if sign == 0 {
			sign = c
		} else if (c > 0) != (sign > 0) {
			return false
		}
	}
	return sign != 0
}

// clipConvex clips subject against a convex clip ring of either orientation.
func clipConvex(subject orb.Ring, clipRing []orb.Point) []orb.Point {
	output := openRing(subject)
	edges := openRing(orb.Ring(clipRing))
	if len(edges) < 3 {
		return nil
	}

	orientation := 1.0
	if signedArea(edges) < 0 {
		orientation = -1
	}
	inside := func(p, a, b orb.Point) bool {
		return cross(a, b, p)*orientation >= 0
	}

	for i := range edges {
		if len(output) == 0 {
			break
		}
		a, b := edges[i], edges[(i+1)%len(edges)]
		input := output
		output = make([]orb.Point, 0, len(input)+2)

		prev := input[len(input)-1]
		for _, curr := range input {
			currIn, prevIn := inside(curr, a, b), inside(prev, a, b)
			if currIn {
				if !prevIn {
					output = append(output, lineIntersection(prev, curr, a, b))
				}
				output = append(output, curr)
			} else if prevIn {
				output = append(output, lineIntersection(prev, curr, a, b))
			}
			prev = curr
		}
	}

	return output
}

func lineIntersection(p1, p2, a, b orb.Point) orb.Point {
	d1x, d1y := p2[0]-p1[0], p2[1]-p1[1]
	d2x, d2y := b[0]-a[0], b[1]-a[1]
	denom := d1x*d2y - d1y*d2x
	if math.Abs(denom) <= areaEpsilon {
		return p2
	}
	t := ((a[0]-p1[0])*d2y - (a[1]-p1[1])*d2x) / denom
	return orb.Point{p1[0] + t*d1x, p1[1] + t*d1y}
}

// convexHull uses the monotone chain algorithm and returns a counter clockwise
// open ring.
func convexHull(r orb.Ring) []orb.Point {
	pts := append([]orb.Point(nil), openRing(r)...)
	if len(pts) < 3 {
		return pts
	}
	sort.Slice(pts, func(i, j int) bool {
		if pts[i][0] == pts[j][0] {
			return pts[i][1] < pts[j][1]
		}
		return pts[i][0] < pts[j][0]
	})

	hull := make([]orb.Point, 0, 2*len(pts))
	for _, p := range pts {
		for len(hull) >= 2 && cross(hull[len(hull)-2], hull[len(hull)-1], p) <= 0 {
			hull = hull[:len(hull)-1]
		}
		hull = append(hull, p)
	}
	lower := len(hull) + 1
	for i := len(pts) - 2; i >= 0; i-- {
		for len(hull) >= lower && cross(hull[len(hull)-2], hull[len(hull)-1], pts[i]) <= 0 {
			hull = hull[:len(hull)-1]
		}
		hull = append(hull, pts[i])
	}
	return hull[:len(hull)-1]
}
