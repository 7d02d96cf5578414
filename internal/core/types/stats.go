package types

type BuildingStats struct {
	Count                int     `json:"count"`
	TotalFootprintAreaM2 float64 `json:"total_footprint_area_m2"`
	DensityPerKm2        float64 `json:"density_per_km2"`
	AvgBuildingSizeM2    float64 `json:"avg_building_size_m2"`
	LargestBuildingM2    float64 `json:"largest_building_m2"`
}

// ChangeStats compares a historical and a current detection set. Unchanged +
// Removed is always the historical count and Unchanged + New the current count.
type ChangeStats struct {
	New               int     `json:"new"`
	Removed           int     `json:"removed"`
	Unchanged         int     `json:"unchanged"`
	ActivityScore     float64 `json:"activity_score"`
	TemporalChangePct float64 `json:"temporal_change_pct"`
}

// MatchPair links a historical detection to the current detection it was
// matched with, by index into the filtered input lists.
type MatchPair struct {
	Historical int     `json:"historical"`
	Current    int     `json:"current"`
	IoU        float64 `json:"iou"`
}

type MatchResult struct {
	Stats ChangeStats
	Pairs []MatchPair

	// Filtered inputs the pair indices refer to.
	Historical []Detection
	Current    []Detection
}

// NewIndices returns the current detections that were not matched.
func (m MatchResult) NewIndices() []int {
	matched := make(map[int]bool, len(m.Pairs))
	for _, p := range m.Pairs {
		matched[p.Current] = true
	}
	var out []int
	for i := range m.Current {
		if !matched[i] {
			out = append(out, i)
		}
	}
	return out
}

// RemovedIndices returns the historical detections that were not matched.
func (m MatchResult) RemovedIndices() []int {
	matched := make(map[int]bool, len(m.Pairs))
	for _, p := range m.Pairs {
		matched[p.Historical] = true
	}
	var out []int
	for i := range m.Historical {
		if !matched[i] {
			out = append(out, i)
		}
	}
	return out
}
