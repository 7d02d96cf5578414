package detection

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"satinel-backend/internal/core"
	"satinel-backend/internal/core/types"
	"satinel-backend/internal/imagery"

	"github.com/disintegration/imaging"
)

// MaskDetector reads precomputed segmentation masks stored as
// {dir}/{area}/{date}_mask.png. Tiles without a mask go to fallback.
type MaskDetector struct {
	dir       string
	minPixels int
	fallback  core.DetectionProvider
}

var _ core.DetectionProvider = (*MaskDetector)(nil)

func NewMaskDetector(dir string, minPixels int, fallback core.DetectionProvider) *MaskDetector {
	return &MaskDetector{dir: dir, minPixels: minPixels, fallback: fallback}
}

func MaskPath(dir, areaId, date string) string {
	return filepath.Join(dir, areaId, date+"_mask.png")
}

func (d *MaskDetector) Detect(ctx context.Context, tile imagery.Tile, prompt string) ([]types.Detection, error) {
	path := MaskPath(d.dir, tile.AreaId, tile.Date)

	if _, err := os.Stat(path); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: unable to stat mask %s: %w", types.ErrDetectionFailed, path, err)
		}
		if d.fallback == nil {
			return nil, fmt.Errorf("%w: no precomputed mask for %s on %s", types.ErrDetectionFailed, tile.AreaId, tile.Date)
		}
		slog.Info("no precomputed mask, running fallback detector", "area_id", tile.AreaId, "date", tile.Date)
		return d.fallback.Detect(ctx, tile, prompt)
	}

	mask, err := LoadMask(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", types.ErrDetectionFailed, err)
	}

	detections := mask.Detections(d.minPixels)
	slog.Info("loaded precomputed mask", "area_id", tile.AreaId, "date", tile.Date, "detections", len(detections))

	return detections, nil
}

// LoadMask decodes a mask image where any non black, non transparent pixel is
// foreground. 0/1 label masks load the same as 0/255 ones.
func LoadMask(path string) (*core.Mask, error) {
	img, err := imaging.Open(path)
	if err != nil {
		return nil, fmt.Errorf("unable to open mask %s: %w", path, err)
	}
	return binarize(img, 0), nil
}
