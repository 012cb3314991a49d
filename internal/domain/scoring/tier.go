package scoring

// Tier buckets a confidence for display.
type Tier string

// Confidence tiers. Lower bounds are inclusive.
const (
	TierHigh   Tier = "high"   // >= 0.8
	TierMedium Tier = "medium" // [0.6, 0.8)
	TierLow    Tier = "low"    // < 0.6
)

// ConfidenceTier classifies a confidence value.
func ConfidenceTier(confidence float64) Tier {
	switch {
	case confidence >= 0.8:
		return TierHigh
	case confidence >= 0.6:
		return TierMedium
	default:
		return TierLow
	}
}
