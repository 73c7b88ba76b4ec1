package fraud

import (
	"reflect"
	"testing"
	"time"

	"fraud-verify-service/config"
	"fraud-verify-service/models"
)

func newTestAggregator(t *testing.T) *Aggregator {
	t.Helper()
	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	return NewAggregator(cfg)
}

func cleanSignals() Signals {
	return Signals{
		Features:        cleanFeatures(),
		DetectionCount:  2,
		ImageWidth:      1280,
		ImageHeight:     960,
		HourlyCount:     3,
		ClientTimestamp: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestAssessCleanSubmission(t *testing.T) {
	agg := newTestAggregator(t)

	got := agg.Assess(cleanSignals())
	if got.RiskScore != 0 {
		t.Errorf("risk score = %v, want 0", got.RiskScore)
	}
	if got.RiskLevel != models.RiskLow {
		t.Errorf("risk level = %v, want LOW", got.RiskLevel)
	}
	if len(got.RiskFactors) != 0 {
		t.Errorf("risk factors = %v, want none", got.RiskFactors)
	}
}

func TestAssessIndividualFactors(t *testing.T) {
	agg := newTestAggregator(t)
	capture := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	closeCapture := time.Date(2026, 3, 1, 11, 30, 0, 0, time.UTC)

	testCases := []struct {
		name        string
		mutate      func(*Signals)
		wantScore   float64
		wantLevel   models.RiskLevel
		wantFactors []string
	}{
		{
			name:        "blurry image",
			mutate:      func(s *Signals) { s.Features.BlurScore = 50 },
			wantScore:   0.2,
			wantLevel:   models.RiskLow,
			wantFactors: []string{"Low image quality detected"},
		},
		{
			name:        "too many detections",
			mutate:      func(s *Signals) { s.DetectionCount = 11 },
			wantScore:   0.3,
			wantLevel:   models.RiskLow,
			wantFactors: []string{"Unusually high number of issues in single image"},
		},
		{
			name:        "exactly at the detection cap does not trigger",
			mutate:      func(s *Signals) { s.DetectionCount = 10 },
			wantScore:   0,
			wantLevel:   models.RiskLow,
			wantFactors: []string{},
		},
		{
			name:        "low resolution",
			mutate:      func(s *Signals) { s.ImageWidth = 320; s.ImageHeight = 240 },
			wantScore:   0.1,
			wantLevel:   models.RiskLow,
			wantFactors: []string{"Image resolution below recommended minimum"},
		},
		{
			name:        "too dark",
			mutate:      func(s *Signals) { s.Features.MeanBrightness = 10 },
			wantScore:   0.15,
			wantLevel:   models.RiskLow,
			wantFactors: []string{"Unusual lighting conditions"},
		},
		{
			name:        "too bright",
			mutate:      func(s *Signals) { s.Features.MeanBrightness = 240 },
			wantScore:   0.15,
			wantLevel:   models.RiskLow,
			wantFactors: []string{"Unusual lighting conditions"},
		},
		{
			name:        "manipulation detected",
			mutate:      func(s *Signals) { s.Manipulated = true },
			wantScore:   0.3,
			wantLevel:   models.RiskLow,
			wantFactors: []string{"Image manipulation detected"},
		},
		{
			name:        "gps spoofing is medium risk",
			mutate:      func(s *Signals) { s.GPSSpoofing = true },
			wantScore:   0.4,
			wantLevel:   models.RiskMedium,
			wantFactors: []string{"GPS spoofing suspected"},
		},
		{
			name:        "submission rate above threshold",
			mutate:      func(s *Signals) { s.HourlyCount = 11 },
			wantScore:   0.2,
			wantLevel:   models.RiskLow,
			wantFactors: []string{"Abnormal submission frequency"},
		},
		{
			name:        "exactly at the rate threshold does not trigger",
			mutate:      func(s *Signals) { s.HourlyCount = 10 },
			wantScore:   0,
			wantLevel:   models.RiskLow,
			wantFactors: []string{},
		},
		{
			name:        "capture timestamp three hours off",
			mutate:      func(s *Signals) { s.CaptureTimestamp = &capture },
			wantScore:   0.15,
			wantLevel:   models.RiskLow,
			wantFactors: []string{"EXIF timestamp mismatch"},
		},
		{
			name:        "capture timestamp within the skew allowance",
			mutate:      func(s *Signals) { s.CaptureTimestamp = &closeCapture },
			wantScore:   0,
			wantLevel:   models.RiskLow,
			wantFactors: []string{},
		},
		{
			name:        "missing capture timestamp skips the check",
			mutate:      func(s *Signals) { s.CaptureTimestamp = nil },
			wantScore:   0,
			wantLevel:   models.RiskLow,
			wantFactors: []string{},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			signals := cleanSignals()
			tc.mutate(&signals)

			got := agg.Assess(signals)
			if got.RiskScore != tc.wantScore {
				t.Errorf("risk score = %v, want %v", got.RiskScore, tc.wantScore)
			}
			if got.RiskLevel != tc.wantLevel {
				t.Errorf("risk level = %v, want %v", got.RiskLevel, tc.wantLevel)
			}
			if !reflect.DeepEqual(got.RiskFactors, tc.wantFactors) {
				t.Errorf("risk factors = %v, want %v", got.RiskFactors, tc.wantFactors)
			}
		})
	}
}

func TestAssessClampsAtOne(t *testing.T) {
	agg := newTestAggregator(t)
	capture := time.Date(2026, 3, 1, 2, 0, 0, 0, time.UTC)

	signals := cleanSignals()
	signals.Features.BlurScore = 5
	signals.Features.MeanBrightness = 250
	signals.DetectionCount = 25
	signals.ImageWidth = 100
	signals.ImageHeight = 100
	signals.Manipulated = true
	signals.GPSSpoofing = true
	signals.HourlyCount = 100
	signals.CaptureTimestamp = &capture

	got := agg.Assess(signals)
	// Raw sum is 1.8; the score clamps.
	if got.RiskScore != 1 {
		t.Errorf("risk score = %v, want 1", got.RiskScore)
	}
	if got.RiskLevel != models.RiskHigh {
		t.Errorf("risk level = %v, want HIGH", got.RiskLevel)
	}
	if len(got.RiskFactors) != 8 {
		t.Errorf("got %d risk factors, want 8: %v", len(got.RiskFactors), got.RiskFactors)
	}
}

func TestAssessNilFeatures(t *testing.T) {
	agg := newTestAggregator(t)

	signals := cleanSignals()
	signals.Features = nil
	got := agg.Assess(signals)
	if got.RiskScore != 0 {
		t.Errorf("risk score = %v, want 0", got.RiskScore)
	}
}

func TestRiskLevelBoundaries(t *testing.T) {
	agg := newTestAggregator(t)

	testCases := []struct {
		score float64
		want  models.RiskLevel
	}{
		{0.0, models.RiskLow},
		{0.39, models.RiskLow},
		{0.4, models.RiskMedium},
		{0.69, models.RiskMedium},
		{0.7, models.RiskHigh},
		{1.0, models.RiskHigh},
	}
	for _, tc := range testCases {
		if got := agg.riskLevel(tc.score); got != tc.want {
			t.Errorf("riskLevel(%v) = %v, want %v", tc.score, got, tc.want)
		}
	}
}
