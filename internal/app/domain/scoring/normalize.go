package scoring

import "github.com/cairntrips/cairn/internal/app/models"

// NormalizeScore converts a raw total score to the 0-100 scale clients see.
func NormalizeScore(total, maxPossible float64) uint8 {
	if maxPossible <= 0 {
		return 0
	}
	normalized := total / maxPossible * 100.0
	return uint8(clamp(normalized))
}

// NormalizeBreakdown rescales each dimension to 0-100 against its own weight.
func NormalizeBreakdown(breakdown models.ScoreBreakdown, weights models.SearchWeights) models.ScoreBreakdown {
	return models.ScoreBreakdown{
		LocationScore:       normalizeComponent(breakdown.LocationScore, weights.LocationWeight),
		ActivityScore:       normalizeComponent(breakdown.ActivityScore, weights.ActivityWeight),
		GroupSizeScore:      normalizeComponent(breakdown.GroupSizeScore, weights.GroupSizeWeight),
		LodgingScore:        normalizeComponent(breakdown.LodgingScore, weights.LodgingWeight),
		TransportationScore: normalizeComponent(breakdown.TransportationScore, weights.TransportationWeight),
		TripPaceScore:       normalizeComponent(breakdown.TripPaceScore, weights.TripPaceWeight),
	}
}

func normalizeComponent(score, weight float64) float64 {
	if weight <= 0 {
		return 0
	}
	return clamp(score / weight * 100.0)
}

func clamp(v float64) float64 {
	if v > 100 {
		return 100
	}
	if v < 0 {
		return 0
	}
	return v
}
