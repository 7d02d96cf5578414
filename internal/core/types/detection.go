package types

import (
	"encoding/json"
	"fmt"

	"github.com/paulmach/orb"
)

// BBox is an axis aligned box in pixel coordinates. Max values are exclusive.
type BBox struct {
	X1 float64 `json:"x1"`
	Y1 float64 `json:"y1"`
	X2 float64 `json:"x2"`
	Y2 float64 `json:"y2"`
}

func (b BBox) Width() float64 {
	return b.X2 - b.X1
}

func (b BBox) Height() float64 {
	return b.Y2 - b.Y1
}

func (b BBox) Polygon() orb.Polygon {
	return RectPolygon(b.X1, b.Y1, b.X2, b.Y2)
}

func RectPolygon(x1, y1, x2, y2 float64) orb.Polygon {
	return orb.Polygon{orb.Ring{
		{x1, y1}, {x2, y1}, {x2, y2}, {x1, y2}, {x1, y1},
	}}
}

// Geometry is an optional polygon. The zero value has no polygon.
type Geometry struct {
	polygon orb.Polygon
	present bool
}

func NewGeometry(p orb.Polygon) Geometry {
	if len(p) == 0 || len(p[0]) < 3 {
		return Geometry{}
	}
	return Geometry{polygon: closeRings(p), present: true}
}

func NoGeometry() Geometry {
	return Geometry{}
}

func (g Geometry) Polygon() (orb.Polygon, bool) {
	return g.polygon, g.present
}

func (g Geometry) Present() bool {
	return g.present
}

func (g Geometry) MarshalJSON() ([]byte, error) {
	if !g.present {
		return []byte("null"), nil
	}
	rings := make([][][2]float64, len(g.polygon))
	for i, r := range g.polygon {
		rings[i] = make([][2]float64, len(r))
		for j, p := range r {
			rings[i][j] = [2]float64{p[0], p[1]}
		}
	}
	return json.Marshal(rings)
}

func (g *Geometry) UnmarshalJSON(data []byte) error {
	var rings [][][2]float64
	if err := json.Unmarshal(data, &rings); err != nil {
		return fmt.Errorf("invalid polygon: %w", err)
	}
	if rings == nil {
		*g = Geometry{}
		return nil
	}
	p := make(orb.Polygon, len(rings))
	for i, r := range rings {
		p[i] = make(orb.Ring, len(r))
		for j, pt := range r {
			p[i][j] = orb.Point{pt[0], pt[1]}
		}
	}
	*g = NewGeometry(p)
	return nil
}

func closeRings(p orb.Polygon) orb.Polygon {
	out := make(orb.Polygon, 0, len(p))
	for _, r := range p {
		if len(r) == 0 {
			continue
		}
		ring := append(orb.Ring(nil), r...)
		if !ring.Closed() {
			ring = append(ring, ring[0])
		}
		out = append(out, ring)
	}
	return out
}

// Detection is one object found in one image. Detections are never mutated
// once a provider returns them.
type Detection struct {
	Geometry   Geometry `json:"geometry"`
	Area       float64  `json:"area"`
	BBox       *BBox    `json:"bbox,omitempty"`
	Confidence float64  `json:"confidence"`
}

// NewDetection builds a detection from a polygon, deriving its bbox.
func NewDetection(p orb.Polygon, area float64) Detection {
	d := Detection{Geometry: NewGeometry(p), Area: max(area, 0), Confidence: 1.0}
	if bbox, ok := d.Bounds(); ok {
		d.BBox = &bbox
	}
	return d
}

// Bounds returns the explicit bbox, or derives one from the geometry.
func (d Detection) Bounds() (BBox, bool) {
	if d.BBox != nil {
		return *d.BBox, true
	}
	p, ok := d.Geometry.Polygon()
	if !ok {
		return BBox{}, false
	}
	b := p.Bound()
	return BBox{X1: b.Min[0], Y1: b.Min[1], X2: b.Max[0], Y2: b.Max[1]}, true
}

// WithGeometry keeps only detections carrying a polygon.
func WithGeometry(detections []Detection) []Detection {
	out := make([]Detection, 0, len(detections))
	for _, d := range detections {
		if d.Geometry.Present() {
			out = append(out, d)
		}
	}
	return out
}
