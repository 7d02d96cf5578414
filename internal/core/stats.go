package core

import (
	"satinel-backend/internal/core/types"
)

const DefaultPixelResolutionM = 10.0

type StatisticsAggregator struct {
	pixelAreaM2 float64
}

// NewStatisticsAggregator takes the ground resolution of one pixel in meters.
func NewStatisticsAggregator(pixelResolutionM float64) *StatisticsAggregator {
	if pixelResolutionM <= 0 {
		pixelResolutionM = DefaultPixelResolutionM
	}
	return &StatisticsAggregator{pixelAreaM2: pixelResolutionM * pixelResolutionM}
}

func (a *StatisticsAggregator) PixelAreaM2() float64 {
	return a.pixelAreaM2
}

func (a *StatisticsAggregator) BuildingStats(detections []types.Detection, aoiAreaKm2 float64) types.BuildingStats {
	detections = types.WithGeometry(detections)
	if len(detections) == 0 {
		return types.BuildingStats{}
	}

	stats := types.BuildingStats{Count: len(detections)}
	for _, d := range detections {
		areaM2 := d.Area * a.pixelAreaM2
		stats.TotalFootprintAreaM2 += areaM2
		stats.LargestBuildingM2 = max(stats.LargestBuildingM2, areaM2)
	}
	stats.AvgBuildingSizeM2 = round2(stats.TotalFootprintAreaM2 / float64(stats.Count))
	if aoiAreaKm2 > 0 {
		stats.DensityPerKm2 = round2(float64(stats.Count) / aoiAreaKm2)
	}

	return stats
}

// ChangeSummary passes match output through, or zero stats in single date
// mode where no match was run.
func (a *StatisticsAggregator) ChangeSummary(result *types.MatchResult) types.ChangeStats {
	if result == nil {
		return types.ChangeStats{}
	}
	return result.Stats
}
