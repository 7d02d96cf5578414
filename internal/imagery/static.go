package imagery

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"

	"satinel-backend/internal/core/types"
	"satinel-backend/internal/storage"
)

// StaticSource serves pre-downloaded tiles stored as {area}/{date}.png in an
// object store bucket.
type StaticSource struct {
	provider storage.Provider
	bucket   string
	cache    *TileCache
}

var _ Source = (*StaticSource)(nil)

func NewStaticSource(provider storage.Provider, bucket string, cache *TileCache) *StaticSource {
	return &StaticSource{provider: provider, bucket: bucket, cache: cache}
}

func StaticKey(areaId, date string) string {
	return fmt.Sprintf("%s/%s.png", areaId, date)
}

func (s *StaticSource) FetchTile(ctx context.Context, req TileRequest) (Tile, error) {
	key := StaticKey(req.Area.Id, req.Date)

	path, hit, err := s.cache.GetOrFill(ctx, string(types.ImageryStatic), req.Area.Id, req.Date, func(ctx context.Context) (io.ReadCloser, error) {
		data, err := s.provider.GetObject(ctx, s.bucket, key)
		if err != nil {
			return nil, err
		}
		return io.NopCloser(bytes.NewReader(data)), nil
	})
	if err != nil {
		return Tile{}, fmt.Errorf("%w: static tile %s/%s: %w", types.ErrImageryUnavailable, s.bucket, key, err)
	}

	slog.Info("static tile ready", "area_id", req.Area.Id, "date", req.Date, "cached", hit)

	return Tile{AreaId: req.Area.Id, Date: req.Date, Path: path, Source: types.ImageryStatic}, nil
}
