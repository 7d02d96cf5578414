package imagery

import (
	"context"
	"fmt"

	"satinel-backend/internal/areas"
	"satinel-backend/internal/core/types"
)

type TileRequest struct {
	Area areas.Area
	Date string
	Mode types.ImagerySourceMode
}

// Tile is a raster on local disk. Path never points at a partially written
// file.
type Tile struct {
	AreaId string
	Date   string
	Path   string
	Source types.ImagerySourceMode
}

type Source interface {
	FetchTile(ctx context.Context, req TileRequest) (Tile, error)
}

// Router dispatches a request to the source registered for its mode, using
// the default mode when the request does not name one.
type Router struct {
	sources     map[types.ImagerySourceMode]Source
	defaultMode types.ImagerySourceMode
}

var _ Source = (*Router)(nil)

func NewRouter(defaultMode types.ImagerySourceMode) *Router {
	if defaultMode == "" {
		defaultMode = types.ImageryStatic
	}
	return &Router{sources: make(map[types.ImagerySourceMode]Source), defaultMode: defaultMode}
}

func (r *Router) Register(mode types.ImagerySourceMode, source Source) *Router {
	r.sources[mode] = source
	return r
}

func (r *Router) FetchTile(ctx context.Context, req TileRequest) (Tile, error) {
	if req.Mode == "" {
		req.Mode = r.defaultMode
	}
	source, ok := r.sources[req.Mode]
	if !ok {
		return Tile{}, fmt.Errorf("%w: imagery source '%s' is not configured", types.ErrImageryUnavailable, req.Mode)
	}
	return source.FetchTile(ctx, req)
}
