package areas

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"satinel-backend/internal/core/types"
)

const DefaultSnapThresholdDeg = 0.5

type Resolver struct {
	repo          Repository
	snapThreshold float64
	defaultAreaId string
}

type ResolverOption func(*Resolver)

func WithSnapThreshold(deg float64) ResolverOption {
	return func(r *Resolver) {
		if deg > 0 {
			r.snapThreshold = deg
		}
	}
}

// WithDefaultArea makes coordinates that match no area resolve to id instead
// of failing.
func WithDefaultArea(id string) ResolverOption {
	return func(r *Resolver) {
		r.defaultAreaId = id
	}
}

func NewResolver(repo Repository, opts ...ResolverOption) *Resolver {
	r := &Resolver{repo: repo, snapThreshold: DefaultSnapThresholdDeg}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Resolver) Repository() Repository {
	return r.repo
}

// Resolve returns the explicitly named area, or the registered area whose
// center is closest to the coordinates and within the snap threshold.
// Distances are euclidean in degrees.
func (r *Resolver) Resolve(ctx context.Context, areaId string, lat, lon *float64) (Area, error) {
	if areaId != "" {
		return r.repo.Get(ctx, areaId)
	}

	if lat == nil || lon == nil {
		return Area{}, fmt.Errorf("%w: no area id or coordinates given", types.ErrAreaNotFound)
	}

	area, dist, found, err := r.nearest(ctx, *lat, *lon)
	if err != nil {
		return Area{}, err
	}
	if found && dist <= r.snapThreshold {
		slog.Debug("snapped coordinates to area", "lat", *lat, "lon", *lon, "area_id", area.Id, "distance_deg", dist)
		return area, nil
	}

	if r.defaultAreaId != "" {
		slog.Warn("no area near coordinates, using default area", "lat", *lat, "lon", *lon, "default_area_id", r.defaultAreaId)
		return r.repo.Get(ctx, r.defaultAreaId)
	}

	return Area{}, fmt.Errorf("%w: nothing within %.2f degrees of (%f, %f)", types.ErrAreaNotFound, r.snapThreshold, *lat, *lon)
}

func (r *Resolver) nearest(ctx context.Context, lat, lon float64) (Area, float64, bool, error) {
	list, err := r.repo.List(ctx)
	if err != nil {
		return Area{}, 0, false, fmt.Errorf("error listing areas: %w", err)
	}

	var best Area
	bestDist := math.Inf(1)
	for _, a := range list {
		d := math.Hypot(lat-a.Center.Lat, lon-a.Center.Lon)
		if d < bestDist {
			best, bestDist = a, d
		}
	}

	return best, bestDist, len(list) > 0, nil
}
