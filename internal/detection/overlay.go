package detection

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"log/slog"
	"path/filepath"

	"satinel-backend/internal/core"
	"satinel-backend/internal/core/types"
	"satinel-backend/internal/imagery"
	"satinel-backend/internal/storage"

	"github.com/disintegration/imaging"
)

var (
	colorNew       = color.NRGBA{R: 0, G: 255, B: 0, A: 255}
	colorRemoved   = color.NRGBA{R: 255, G: 0, B: 0, A: 255}
	colorUnchanged = color.NRGBA{R: 255, G: 255, B: 0, A: 255}
	colorDetection = color.NRGBA{R: 255, G: 0, B: 0, A: 255}
)

const outlineWidth = 2

// OverlayRenderer draws detection outlines on top of the imagery tile. The
// png is written under dir and, when a provider is set, uploaded to bucket.
type OverlayRenderer struct {
	dir      string
	provider storage.Provider
	bucket   string
}

var _ core.OverlayRenderer = (*OverlayRenderer)(nil)

func NewOverlayRenderer(dir string, provider storage.Provider, bucket string) *OverlayRenderer {
	return &OverlayRenderer{dir: dir, provider: provider, bucket: bucket}
}

func (r *OverlayRenderer) RenderDetections(ctx context.Context, tile imagery.Tile, detections []types.Detection) (string, error) {
	canvas, err := openCanvas(tile.Path)
	if err != nil {
		return "", err
	}

	for _, d := range detections {
		drawOutline(canvas, d, colorDetection)
	}

	return r.save(ctx, canvas, tile.AreaId, tile.Date+"_overlay.png")
}

// RenderChange draws on the current tile: new objects in green, removed in
// red, matched in yellow.
func (r *OverlayRenderer) RenderChange(ctx context.Context, historical, current imagery.Tile, match types.MatchResult) (string, error) {
	canvas, err := openCanvas(current.Path)
	if err != nil {
		return "", err
	}

	for _, i := range match.RemovedIndices() {
		drawOutline(canvas, match.Historical[i], colorRemoved)
	}
	for _, i := range match.NewIndices() {
		drawOutline(canvas, match.Current[i], colorNew)
	}
	for _, p := range match.Pairs {
		drawOutline(canvas, match.Current[p.Current], colorUnchanged)
	}

	name := fmt.Sprintf("%s_%s_change.png", historical.Date, current.Date)
	return r.save(ctx, canvas, current.AreaId, name)
}

func openCanvas(path string) (*image.NRGBA, error) {
	img, err := imaging.Open(path)
	if err != nil {
		return nil, fmt.Errorf("unable to open tile %s for overlay: %w", path, err)
	}
	return imaging.Clone(img), nil
}

func drawOutline(canvas *image.NRGBA, d types.Detection, c color.NRGBA) {
	bbox, ok := d.Bounds()
	if !ok {
		return
	}
	x1, y1, x2, y2 := int(bbox.X1), int(bbox.Y1), int(bbox.X2)-1, int(bbox.Y2)-1
	for w := 0; w < outlineWidth; w++ {
		for x := x1; x <= x2; x++ {
			canvas.SetNRGBA(x, y1+w, c)
			canvas.SetNRGBA(x, y2-w, c)
		}
		for y := y1; y <= y2; y++ {
			canvas.SetNRGBA(x1+w, y, c)
			canvas.SetNRGBA(x2-w, y, c)
		}
	}
}

func (r *OverlayRenderer) save(ctx context.Context, canvas *image.NRGBA, areaId, name string) (string, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, canvas, imaging.PNG); err != nil {
		return "", fmt.Errorf("unable to encode overlay: %w", err)
	}

	path := filepath.Join(r.dir, areaId, name)
	if err := storage.WriteFileAtomic(path, bytes.NewReader(buf.Bytes())); err != nil {
		return "", fmt.Errorf("unable to write overlay: %w", err)
	}

	if r.provider == nil || r.bucket == "" {
		return path, nil
	}

	key := areaId + "/" + name
	if err := r.provider.PutObject(ctx, r.bucket, key, bytes.NewReader(buf.Bytes())); err != nil {
		slog.Error("unable to upload overlay, using local copy", "bucket", r.bucket, "key", key, "error", err)
		return path, nil
	}

	return r.provider.ObjectURL(r.bucket, key), nil
}
