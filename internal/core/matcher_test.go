package core

import (
	"testing"

	"satinel-backend/internal/core/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rect(x1, y1, x2, y2 float64) types.Detection {
	return types.NewDetection(types.RectPolygon(x1, y1, x2, y2), (x2-x1)*(y2-y1))
}

func TestMatchEndToEndScenario(t *testing.T) {
	historical := []types.Detection{rect(10, 10, 30, 30)}
	current := []types.Detection{rect(10, 10, 30, 30), rect(100, 100, 120, 120)}

	result := NewChangeMatcher(0.3).Match(historical, current)

	assert.Equal(t, types.ChangeStats{
		New:               1,
		Removed:           0,
		Unchanged:         1,
		ActivityScore:     50.0,
		TemporalChangePct: 100.0,
	}, result.Stats)
	require.Len(t, result.Pairs, 1)
	assert.Equal(t, 0, result.Pairs[0].Historical)
	assert.Equal(t, 0, result.Pairs[0].Current)
	assert.Equal(t, []int{1}, result.NewIndices())
	assert.Empty(t, result.RemovedIndices())
}

func TestMatchIdenticalSets(t *testing.T) {
	var dets []types.Detection
	for i := 0; i < 5; i++ {
		x := float64(i * 50)
		dets = append(dets, rect(x, 0, x+20, 20))
	}

	stats := NewChangeMatcher(0.3).Match(dets, dets).Stats
	assert.Equal(t, types.ChangeStats{Unchanged: 5}, stats)
}

func TestMatchDisjointSets(t *testing.T) {
	cases := []struct {
		h, c     int
		activity float64
	}{
		{3, 2, 100},
		{1, 4, 100},
		{2, 2, 100},
	}

	for _, tc := range cases {
		var hist, curr []types.Detection
		for i := 0; i < tc.h; i++ {
			hist = append(hist, rect(float64(i*30), 0, float64(i*30+10), 10))
		}
		for i := 0; i < tc.c; i++ {
			curr = append(curr, rect(float64(i*30), 500, float64(i*30+10), 510))
		}

		stats := NewChangeMatcher(0.3).Match(hist, curr).Stats
		assert.Equal(t, 0, stats.Unchanged)
		assert.Equal(t, tc.c, stats.New)
		assert.Equal(t, tc.h, stats.Removed)
		assert.Equal(t, tc.activity, stats.ActivityScore)
	}
}

func TestMatchEmptyInputs(t *testing.T) {
	m := NewChangeMatcher(0.3)

	assert.Equal(t, types.ChangeStats{}, m.Match(nil, nil).Stats)

	stats := m.Match(nil, []types.Detection{rect(0, 0, 5, 5)}).Stats
	assert.Equal(t, 100.0, stats.TemporalChangePct)
	assert.Equal(t, 100.0, stats.ActivityScore)
	assert.Equal(t, 1, stats.New)

	stats = m.Match([]types.Detection{rect(0, 0, 5, 5), rect(10, 10, 15, 15)}, nil).Stats
	assert.Equal(t, -100.0, stats.TemporalChangePct)
	assert.Equal(t, 2, stats.Removed)
}

func TestMatchDropsGeometrylessDetections(t *testing.T) {
	noGeom := types.Detection{Geometry: types.NoGeometry(), Area: 50, Confidence: 1}

	result := NewChangeMatcher(0.3).Match(
		[]types.Detection{noGeom, rect(0, 0, 10, 10)},
		[]types.Detection{rect(0, 0, 10, 10), noGeom},
	)

	assert.Equal(t, types.ChangeStats{Unchanged: 1}, result.Stats)
	assert.Len(t, result.Historical, 1)
	assert.Len(t, result.Current, 1)
}

func TestMatchThresholdMonotonic(t *testing.T) {
	hist := []types.Detection{rect(0, 0, 10, 10), rect(20, 0, 30, 10), rect(40, 0, 50, 10)}
	curr := []types.Detection{rect(1, 0, 11, 10), rect(24, 0, 34, 10), rect(48, 0, 58, 10)}

	prev := len(hist) + 1
	for _, threshold := range []float64{0.05, 0.1, 0.3, 0.5, 0.7, 0.9, 1.0} {
		unchanged := NewChangeMatcher(threshold).Match(hist, curr).Stats.Unchanged
		assert.LessOrEqual(t, unchanged, prev, "threshold %v", threshold)
		prev = unchanged
	}
}

func TestMatchIsGreedyInHistoricalOrder(t *testing.T) {
	// b overlaps the current box more than a does, but a comes first and
	// claims it.
	a := rect(0, 0, 10, 10)
	b := rect(4, 0, 14, 10)
	curr := []types.Detection{rect(3, 0, 13, 10)}

	result := NewChangeMatcher(0.3).Match([]types.Detection{a, b}, curr)
	require.Len(t, result.Pairs, 1)
	assert.Equal(t, 0, result.Pairs[0].Historical)
	assert.InDelta(t, 70.0/130.0, result.Pairs[0].IoU, 1e-9)
	assert.Equal(t, []int{1}, result.RemovedIndices())

	result = NewChangeMatcher(0.3).Match([]types.Detection{b, a}, curr)
	require.Len(t, result.Pairs, 1)
	assert.InDelta(t, 90.0/110.0, result.Pairs[0].IoU, 1e-9)
}

func TestMatchZeroOverlapNeverMatches(t *testing.T) {
	result := NewChangeMatcher(0.0000001).Match(
		[]types.Detection{rect(0, 0, 10, 10)},
		[]types.Detection{rect(10, 0, 20, 10)},
	)
	assert.Empty(t, result.Pairs)
}

func TestChangeScoresRounding(t *testing.T) {
	stats := ChangeScores(3, 4, 2)
	assert.Equal(t, 1, stats.Removed)
	assert.Equal(t, 2, stats.New)
	assert.Equal(t, 75.0, stats.ActivityScore)
	assert.Equal(t, 33.33, stats.TemporalChangePct)
}
