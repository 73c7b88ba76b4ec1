package config

import (
	"testing"

	"fraud-verify-service/models"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.DedupRadiusKm != 0.1 {
		t.Errorf("DedupRadiusKm = %v, want 0.1", cfg.DedupRadiusKm)
	}
	if cfg.RateThreshold != 10 {
		t.Errorf("RateThreshold = %v, want 10", cfg.RateThreshold)
	}
	if len(cfg.SeverityTiers) != 4 {
		t.Fatalf("expected 4 severity tiers, got %d", len(cfg.SeverityTiers))
	}
	if cfg.SeverityTiers[0].Level != models.SeverityCritical {
		t.Errorf("first tier = %v, want CRITICAL", cfg.SeverityTiers[0].Level)
	}
}

func TestValidateSeverityTiers(t *testing.T) {
	testCases := []struct {
		name      string
		tiers     []SeverityTier
		expectErr bool
	}{
		{
			name: "monotonic defaults",
			tiers: []SeverityTier{
				{Level: models.SeverityCritical, Confidence: 0.85, AreaPercentage: 30},
				{Level: models.SeverityHigh, Confidence: 0.75, AreaPercentage: 20},
				{Level: models.SeverityMedium, Confidence: 0.65, AreaPercentage: 10},
				{Level: models.SeverityLow, Confidence: 0.50, AreaPercentage: 5},
			},
			expectErr: false,
		},
		{
			name: "confidence floor not decreasing",
			tiers: []SeverityTier{
				{Level: models.SeverityCritical, Confidence: 0.85, AreaPercentage: 30},
				{Level: models.SeverityHigh, Confidence: 0.85, AreaPercentage: 20},
			},
			expectErr: true,
		},
		{
			name: "lower tier area floor exceeds higher tier",
			tiers: []SeverityTier{
				{Level: models.SeverityMedium, Confidence: 0.65, AreaPercentage: 10},
				{Level: models.SeverityLow, Confidence: 0.50, AreaPercentage: 15},
			},
			expectErr: true,
		},
		{
			name:      "empty table",
			tiers:     []SeverityTier{},
			expectErr: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := validateSeverityTiers(tc.tiers)
			if tc.expectErr && err == nil {
				t.Error("expected error, got nil")
			}
			if !tc.expectErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}
