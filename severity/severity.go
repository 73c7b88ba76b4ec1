package severity

import (
	"fraud-verify-service/config"
	"fraud-verify-service/models"
)

// Classify derives the civic-impact tier from a detection list and the
// aggregate covered area. Tiers are evaluated in table order, highest
// first, so a higher tier always wins when its floors are met; the
// monotonicity of the table is enforced at configuration load.
//
// Boxes may overlap and totalAreaPercentage is their plain sum: the metric
// measures claimed coverage, not deduplicated pixels.
func Classify(detections []models.Detection, totalAreaPercentage float64, tiers []config.SeverityTier) models.Severity {
	if len(detections) == 0 {
		return models.SeverityNone
	}

	maxConfidence := 0.0
	for _, d := range detections {
		if d.Confidence > maxConfidence {
			maxConfidence = d.Confidence
		}
	}

	for _, tier := range tiers {
		if maxConfidence >= tier.Confidence && totalAreaPercentage >= tier.AreaPercentage {
			return tier.Level
		}
	}

	// Detections exist but no tier matched: still a reportable issue.
	return models.SeverityLow
}
