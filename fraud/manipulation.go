package fraud

import (
	"fraud-verify-service/config"
	"fraud-verify-service/models"
)

// ManipulationResult is the outcome of the editing-detection ensemble.
type ManipulationResult struct {
	Manipulated bool     `json:"manipulated"`
	Confidence  float64  `json:"confidence"`
	Indicators  []string `json:"indicators"`
}

// CheckManipulation runs an ensemble of four independent weak editing
// signals over the extracted image features. Each is additive; the image
// is declared manipulated when the clamped sum passes the threshold.
func CheckManipulation(features *models.ImageFeatures, weights config.ManipulationWeights, thresholds config.QualityThresholds) ManipulationResult {
	result := ManipulationResult{Indicators: []string{}}
	score := 0.0

	if features.BlurScore < thresholds.NoiseVarianceFloor {
		result.Indicators = append(result.Indicators, "Unusual noise pattern detected")
		score += weights.LowNoiseVariance
	}
	if features.HistogramVariance < thresholds.HistVarianceFloor {
		result.Indicators = append(result.Indicators, "Low histogram variance (possible editing)")
		score += weights.LowHistogramVariance
	}
	if features.EdgeDensity < thresholds.EdgeDensityFloor {
		result.Indicators = append(result.Indicators, "Unnatural edge distribution")
		score += weights.SparseEdges
	}
	if features.SaturationMean < thresholds.SaturationFloor {
		result.Indicators = append(result.Indicators, "Unusual color saturation")
		score += weights.LowSaturation
	}

	result.Confidence = clamp01(score)
	result.Manipulated = result.Confidence > weights.Threshold
	return result
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
