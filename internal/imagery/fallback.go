package imagery

import (
	"context"
	"fmt"
	"log/slog"
)

// FallbackSource tries primary and falls back to secondary when it fails.
type FallbackSource struct {
	primary   Source
	secondary Source
}

var _ Source = (*FallbackSource)(nil)

func NewFallbackSource(primary, secondary Source) *FallbackSource {
	return &FallbackSource{primary: primary, secondary: secondary}
}

func (s *FallbackSource) FetchTile(ctx context.Context, req TileRequest) (Tile, error) {
	tile, err := s.primary.FetchTile(ctx, req)
	if err == nil {
		return tile, nil
	}
	if ctx.Err() != nil {
		return Tile{}, err
	}

	slog.Warn("primary imagery source failed, falling back", "area_id", req.Area.Id, "date", req.Date, "error", err)

	tile, fallbackErr := s.secondary.FetchTile(ctx, req)
	if fallbackErr != nil {
		return Tile{}, fmt.Errorf("%w (fallback: %w)", err, fallbackErr)
	}
	return tile, nil
}
