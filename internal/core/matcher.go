package core

import (
	"math"

	"satinel-backend/internal/core/types"
)

const DefaultIoUThreshold = 0.3

type ChangeMatcher struct {
	threshold float64
}

func NewChangeMatcher(threshold float64) *ChangeMatcher {
	if threshold <= 0 {
		threshold = DefaultIoUThreshold
	}
	return &ChangeMatcher{threshold: threshold}
}

func (m *ChangeMatcher) Threshold() float64 {
	return m.threshold
}

// Match greedily pairs each historical detection, in order, with the unmatched
// current detection of highest IoU. A pair is kept only when its IoU is at
// least the threshold, so pairs with no overlap are never matched. The result
// depends on input order and is not a globally optimal assignment.
func (m *ChangeMatcher) Match(historical, current []types.Detection) types.MatchResult {
	historical = types.WithGeometry(historical)
	current = types.WithGeometry(current)

	matchedCurrent := make([]bool, len(current))
	pairs := make([]types.MatchPair, 0, min(len(historical), len(current)))

	for hi, h := range historical {
		hPoly, _ := h.Geometry.Polygon()

		best, bestIdx := 0.0, -1
		for ci, c := range current {
			if matchedCurrent[ci] {
				continue
			}
			cPoly, _ := c.Geometry.Polygon()
			if iou := IoU(hPoly, cPoly); iou > best {
				best, bestIdx = iou, ci
			}
		}

		if bestIdx >= 0 && best >= m.threshold {
			matchedCurrent[bestIdx] = true
			pairs = append(pairs, types.MatchPair{Historical: hi, Current: bestIdx, IoU: best})
		}
	}

	return types.MatchResult{
		Stats:      ChangeScores(len(historical), len(current), len(pairs)),
		Pairs:      pairs,
		Historical: historical,
		Current:    current,
	}
}

// ChangeScores derives change counts and scores from the two population sizes
// and the number of matched objects.
func ChangeScores(historicalCount, currentCount, unchanged int) types.ChangeStats {
	stats := types.ChangeStats{
		Unchanged: unchanged,
		Removed:   historicalCount - unchanged,
		New:       currentCount - unchanged,
	}

	if maxCount := max(historicalCount, currentCount); maxCount > 0 {
		activity := float64(stats.New+stats.Removed) / float64(maxCount) * 100
		stats.ActivityScore = round2(math.Min(100, activity))
	}

	switch {
	case historicalCount > 0:
		stats.TemporalChangePct = round2(float64(currentCount-historicalCount) / float64(historicalCount) * 100)
	case currentCount > 0:
		stats.TemporalChangePct = 100
	}

	return stats
}

func round2(x float64) float64 {
	return math.Round(x*100) / 100
}
