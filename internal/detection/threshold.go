package detection

import (
	"context"
	"fmt"
	"image"

	"satinel-backend/internal/core"
	"satinel-backend/internal/core/types"
	"satinel-backend/internal/imagery"

	"github.com/disintegration/imaging"
)

const DefaultThreshold = 120

// ThresholdDetector treats every tile pixel brighter than a gray level as part
// of an object and extracts 4-connected components.
type ThresholdDetector struct {
	level     uint8
	minPixels int
}

var _ core.DetectionProvider = (*ThresholdDetector)(nil)

func NewThresholdDetector(level uint8, minPixels int) *ThresholdDetector {
	return &ThresholdDetector{level: level, minPixels: minPixels}
}

func (d *ThresholdDetector) Detect(ctx context.Context, tile imagery.Tile, prompt string) ([]types.Detection, error) {
	img, err := imaging.Open(tile.Path)
	if err != nil {
		return nil, fmt.Errorf("%w: unable to open tile %s: %w", types.ErrDetectionFailed, tile.Path, err)
	}

	return binarize(img, d.level).Detections(d.minPixels), nil
}

// binarize marks pixels whose luminance is strictly above level.
func binarize(img image.Image, level uint8) *core.Mask {
	return core.MaskAbove(imaging.Grayscale(img), level)
}
