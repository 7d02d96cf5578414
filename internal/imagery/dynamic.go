package imagery

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"satinel-backend/internal/core/types"

	"github.com/go-resty/resty/v2"
)

const dynamicFetchTimeout = 60 * time.Second

// DynamicSource requests a rendered tile for an area bbox and date from a
// remote imagery service.
type DynamicSource struct {
	client *resty.Client
	cache  *TileCache
}

var _ Source = (*DynamicSource)(nil)

func NewDynamicSource(baseURL, apiKey string, cache *TileCache) *DynamicSource {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(dynamicFetchTimeout).
		SetHeader("Accept", "image/png")
	if apiKey != "" {
		client.SetAuthToken(apiKey)
	}
	return &DynamicSource{client: client, cache: cache}
}

func (s *DynamicSource) FetchTile(ctx context.Context, req TileRequest) (Tile, error) {
	path, hit, err := s.cache.GetOrFill(ctx, string(types.ImageryDynamic), req.Area.Id, req.Date, func(ctx context.Context) (io.ReadCloser, error) {
		return s.download(ctx, req)
	})
	if err != nil {
		return Tile{}, fmt.Errorf("%w: dynamic tile for %s on %s: %w", types.ErrImageryUnavailable, req.Area.Id, req.Date, err)
	}

	slog.Info("dynamic tile ready", "area_id", req.Area.Id, "date", req.Date, "cached", hit)

	return Tile{AreaId: req.Area.Id, Date: req.Date, Path: path, Source: types.ImageryDynamic}, nil
}

func (s *DynamicSource) download(ctx context.Context, req TileRequest) (io.ReadCloser, error) {
	b := req.Area.BBox
	res, err := s.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"area_id": req.Area.Id,
			"date":    req.Date,
			"bbox":    fmt.Sprintf("%f,%f,%f,%f", b[0], b[1], b[2], b[3]),
		}).
		Get("")
	if err != nil {
		return nil, fmt.Errorf("imagery request failed: %w", err)
	}

	if !res.IsSuccess() {
		return nil, fmt.Errorf("imagery service returned status %d: %s", res.StatusCode(), strings.TrimSpace(res.String()))
	}

	if ct := res.Header().Get("Content-Type"); ct != "" && !strings.HasPrefix(ct, "image/") {
		return nil, fmt.Errorf("imagery service returned unexpected content type %s", ct)
	}

	if len(res.Body()) == 0 {
		return nil, fmt.Errorf("imagery service returned an empty body")
	}

	return io.NopCloser(bytes.NewReader(res.Body())), nil
}
