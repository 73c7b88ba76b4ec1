package fraud

import (
	"math"
	"time"

	"fraud-verify-service/config"
	"fraud-verify-service/models"
)

// Signals are the independent inputs the aggregator combines. Each field
// is produced by a different component; none of them alone decides trust.
type Signals struct {
	Features         *models.ImageFeatures
	DetectionCount   int
	ImageWidth       int
	ImageHeight      int
	Manipulated      bool
	GPSSpoofing      bool
	HourlyCount      int64
	ClientTimestamp  time.Time
	CaptureTimestamp *time.Time
}

// Aggregator combines the weighted fraud signals into a single clamped
// score with an ordered, auditable factor list.
type Aggregator struct {
	weights    config.FraudWeights
	thresholds config.QualityThresholds
	rateLimit  int64
	minWidth   int
	minHeight  int
	highFloor  float64
	medFloor   float64
}

// NewAggregator creates an aggregator from the configured weight and
// threshold tables.
func NewAggregator(cfg *config.Config) *Aggregator {
	return &Aggregator{
		weights:    cfg.Fraud,
		thresholds: cfg.Quality,
		rateLimit:  cfg.RateThreshold,
		minWidth:   cfg.MinimumWidth,
		minHeight:  cfg.MinimumHeight,
		highFloor:  cfg.RiskHighFloor,
		medFloor:   cfg.RiskMediumFloor,
	}
}

// Assess is total: any well-formed signal set yields a concrete verdict.
// Weights are additive, applied only when their condition holds, and the
// sum is clamped to [0, 1].
func (a *Aggregator) Assess(s Signals) models.FraudAssessment {
	score := 0.0
	factors := []string{}

	if s.Features != nil && s.Features.BlurScore < a.thresholds.BlurFloor {
		factors = append(factors, "Low image quality detected")
		score += a.weights.LowBlur
	}
	if s.DetectionCount > a.thresholds.MaxDetections {
		factors = append(factors, "Unusually high number of issues in single image")
		score += a.weights.TooManyDetections
	}
	// Redundant with the hard ingestion reject, kept as a safety net in
	// case the ingestion thresholds are ever relaxed.
	if s.ImageWidth < a.minWidth || s.ImageHeight < a.minHeight {
		factors = append(factors, "Image resolution below recommended minimum")
		score += a.weights.LowResolution
	}
	if s.Features != nil &&
		(s.Features.MeanBrightness < a.thresholds.BrightnessMin || s.Features.MeanBrightness > a.thresholds.BrightnessMax) {
		factors = append(factors, "Unusual lighting conditions")
		score += a.weights.ExtremeBrightness
	}
	if s.Manipulated {
		factors = append(factors, "Image manipulation detected")
		score += a.weights.Manipulation
	}
	if s.GPSSpoofing {
		factors = append(factors, "GPS spoofing suspected")
		score += a.weights.GPSSpoofing
	}
	if s.HourlyCount > a.rateLimit {
		factors = append(factors, "Abnormal submission frequency")
		score += a.weights.HighSubmissionRate
	}
	// Skipped entirely when the header carried no capture time.
	if s.CaptureTimestamp != nil && !s.ClientTimestamp.IsZero() {
		skew := math.Abs(s.ClientTimestamp.Sub(*s.CaptureTimestamp).Seconds())
		if skew > a.thresholds.TimestampSkew.Seconds() {
			factors = append(factors, "EXIF timestamp mismatch")
			score += a.weights.TimestampMismatch
		}
	}

	score = clamp01(score)
	return models.FraudAssessment{
		RiskScore:   math.Round(score*100) / 100,
		RiskLevel:   a.riskLevel(score),
		RiskFactors: factors,
	}
}

func (a *Aggregator) riskLevel(score float64) models.RiskLevel {
	switch {
	case score >= a.highFloor:
		return models.RiskHigh
	case score >= a.medFloor:
		return models.RiskMedium
	default:
		return models.RiskLow
	}
}
