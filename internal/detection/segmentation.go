package detection

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"satinel-backend/internal/core"
	"satinel-backend/internal/core/types"
	"satinel-backend/internal/imagery"

	"github.com/go-resty/resty/v2"
)

// SegmentationClient sends tiles to a remote prompt driven segmentation model.
type SegmentationClient struct {
	client *resty.Client
}

var _ core.DetectionProvider = (*SegmentationClient)(nil)

type segmentationResponse struct {
	Detections []types.Detection `json:"detections"`
}

func NewSegmentationClient(baseURL string, timeout time.Duration) *SegmentationClient {
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json")

	return &SegmentationClient{client: client}
}

func (c *SegmentationClient) Detect(ctx context.Context, tile imagery.Tile, prompt string) ([]types.Detection, error) {
	res, err := c.client.R().
		SetContext(ctx).
		SetFile("image", tile.Path).
		SetFormData(map[string]string{
			"prompt":  prompt,
			"area_id": tile.AreaId,
			"date":    tile.Date,
		}).
		Post("/segment")
	if err != nil {
		return nil, fmt.Errorf("%w: segmentation request failed: %w", types.ErrDetectionFailed, err)
	}

	if !res.IsSuccess() {
		slog.Error("segmentation service returned error", "status_code", res.StatusCode(), "body", res.String())
		return nil, fmt.Errorf("%w: segmentation service returned status %d", types.ErrDetectionFailed, res.StatusCode())
	}

	var body segmentationResponse
	if err := json.Unmarshal(res.Body(), &body); err != nil {
		return nil, fmt.Errorf("%w: invalid segmentation response: %w", types.ErrDetectionFailed, err)
	}

	for i := range body.Detections {
		d := &body.Detections[i]
		if d.BBox == nil {
			if bbox, ok := d.Bounds(); ok {
				d.BBox = &bbox
			}
		}
		if d.Confidence == 0 {
			d.Confidence = 1.0
		}
	}

	return body.Detections, nil
}
