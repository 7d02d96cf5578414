package core

import (
	"fmt"
	"image"

	"satinel-backend/internal/core/types"
)

const DefaultMinObjectPixels = 10

// Mask is a binary raster, true marks object pixels.
type Mask struct {
	Width  int
	Height int
	pix    []bool
}

func NewMask(width, height int) *Mask {
	return &Mask{Width: width, Height: height, pix: make([]bool, width*height)}
}

// MaskAbove marks every pixel of a grayscale image brighter than level. Fully
// transparent pixels are background.
func MaskAbove(img *image.NRGBA, level uint8) *Mask {
	b := img.Bounds()
	m := NewMask(b.Dx(), b.Dy())
	for y := 0; y < m.Height; y++ {
		for x := 0; x < m.Width; x++ {
			i := img.PixOffset(b.Min.X+x, b.Min.Y+y)
			m.pix[y*m.Width+x] = img.Pix[i+3] != 0 && img.Pix[i] > level
		}
	}
	return m
}

func (m *Mask) At(x, y int) bool {
	if x < 0 || y < 0 || x >= m.Width || y >= m.Height {
		return false
	}
	return m.pix[y*m.Width+x]
}

func (m *Mask) Set(x, y int, v bool) {
	if x < 0 || y < 0 || x >= m.Width || y >= m.Height {
		return
	}
	m.pix[y*m.Width+x] = v
}

func (m *Mask) Count() int {
	n := 0
	for _, v := range m.pix {
		if v {
			n++
		}
	}
	return n
}

// Component is a 4-connected group of object pixels. Max bounds are exclusive.
type Component struct {
	MinX, MinY int
	MaxX, MaxY int
	Pixels     int
}

func (c Component) Detection() types.Detection {
	poly := types.RectPolygon(float64(c.MinX), float64(c.MinY), float64(c.MaxX), float64(c.MaxY))
	return types.NewDetection(poly, float64(c.Pixels))
}

// Components labels 4-connected regions in row major order and drops regions
// smaller than minPixels.
func (m *Mask) Components(minPixels int) []Component {
	visited := make([]bool, len(m.pix))
	var components []Component
	queue := make([]int, 0, 64)

	for start, set := range m.pix {
		if !set || visited[start] {
			continue
		}

		sx, sy := start%m.Width, start/m.Width
		c := Component{MinX: sx, MinY: sy, MaxX: sx + 1, MaxY: sy + 1}
		visited[start] = true
		queue = append(queue[:0], start)

		for len(queue) > 0 {
			idx := queue[0]
			queue = queue[1:]
			x, y := idx%m.Width, idx/m.Width

			c.Pixels++
			c.MinX, c.MinY = min(c.MinX, x), min(c.MinY, y)
			c.MaxX, c.MaxY = max(c.MaxX, x+1), max(c.MaxY, y+1)

			for _, n := range [4][2]int{{x - 1, y}, {x + 1, y}, {x, y - 1}, {x, y + 1}} {
				if !m.At(n[0], n[1]) {
					continue
				}
				nIdx := n[1]*m.Width + n[0]
				if !visited[nIdx] {
					visited[nIdx] = true
					queue = append(queue, nIdx)
				}
			}
		}

		if c.Pixels >= minPixels {
			components = append(components, c)
		}
	}

	return components
}

func (m *Mask) Detections(minPixels int) []types.Detection {
	components := m.Components(minPixels)
	detections := make([]types.Detection, 0, len(components))
	for _, c := range components {
		detections = append(detections, c.Detection())
	}
	return detections
}

// ChangeFromMasks diffs two masks pixel by pixel and counts the connected
// regions that appeared, disappeared or persisted.
func ChangeFromMasks(before, after *Mask, minObjectPixels int) (types.ChangeStats, error) {
	if before.Width != after.Width || before.Height != after.Height {
		return types.ChangeStats{}, fmt.Errorf("mask dimensions differ: %dx%d vs %dx%d", before.Width, before.Height, after.Width, after.Height)
	}

	added := NewMask(before.Width, before.Height)
	removed := NewMask(before.Width, before.Height)
	unchanged := NewMask(before.Width, before.Height)
	for i := range before.pix {
		b, a := before.pix[i], after.pix[i]
		added.pix[i] = a && !b
		removed.pix[i] = b && !a
		unchanged.pix[i] = a && b
	}

	numNew := len(added.Components(minObjectPixels))
	numRemoved := len(removed.Components(minObjectPixels))
	numUnchanged := len(unchanged.Components(minObjectPixels))

	return ChangeScores(numUnchanged+numRemoved, numUnchanged+numNew, numUnchanged), nil
}
