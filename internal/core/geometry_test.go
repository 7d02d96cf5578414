package core

import (
	"testing"

	"satinel-backend/internal/core/types"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
)

func TestIoURectangles(t *testing.T) {
	a := types.RectPolygon(0, 0, 10, 10)

	assert.InDelta(t, 1.0, IoU(a, types.RectPolygon(0, 0, 10, 10)), 1e-9)
	assert.Equal(t, 0.0, IoU(a, types.RectPolygon(20, 20, 30, 30)))
	// touching edges share no area
	assert.Equal(t, 0.0, IoU(a, types.RectPolygon(10, 0, 20, 10)))
	// half overlap: 50 / 150
	assert.InDelta(t, 1.0/3.0, IoU(a, types.RectPolygon(5, 0, 15, 10)), 1e-9)
}

func TestIntersectionAreaConvex(t *testing.T) {
	triangle := orb.Polygon{orb.Ring{{0, 0}, {10, 0}, {0, 10}, {0, 0}}}
	diamond := orb.Polygon{orb.Ring{{5, 0}, {10, 5}, {5, 10}, {0, 5}, {5, 0}}}

	assert.InDelta(t, 50.0, IntersectionArea(triangle, triangle), 1e-9)
	// clockwise clip ring gives the same answer
	reversed := orb.Polygon{orb.Ring{{0, 0}, {0, 10}, {10, 0}, {0, 0}}}
	assert.InDelta(t, 50.0, IntersectionArea(triangle, reversed), 1e-9)

	// x+y=10 cuts the diamond in half
	assert.InDelta(t, 25.0, IntersectionArea(diamond, triangle), 1e-9)
	assert.InDelta(t, 25.0, IntersectionArea(triangle, diamond), 1e-9)
}

func TestIntersectionAreaRectangleAgainstTriangle(t *testing.T) {
	triangle := orb.Polygon{orb.Ring{{0, 0}, {10, 0}, {0, 10}, {0, 0}}}
	square := types.RectPolygon(0, 0, 5, 5)

	assert.InDelta(t, 25.0, IntersectionArea(triangle, square), 1e-9)
	assert.InDelta(t, 25.0, IntersectionArea(square, triangle), 1e-9)
}

func TestConvexHull(t *testing.T) {
	lShape := orb.Ring{{0, 0}, {10, 0}, {10, 5}, {5, 5}, {5, 10}, {0, 10}, {0, 0}}
	assert.False(t, isConvex(lShape))

	hull := convexHull(lShape)
	assert.Len(t, hull, 5)
	assert.InDelta(t, 87.5, ringArea(hull), 1e-9)
}

func TestPolygonAreaIgnoresOrientation(t *testing.T) {
	cw := orb.Polygon{orb.Ring{{0, 0}, {0, 4}, {4, 4}, {4, 0}, {0, 0}}}
	assert.InDelta(t, 16.0, PolygonArea(cw), 1e-9)
	assert.Equal(t, 0.0, PolygonArea(nil))
}
