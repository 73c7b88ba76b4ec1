package verify

import (
	"context"
	"errors"
	"math"
	"reflect"
	"strings"
	"testing"
	"time"

	"fraud-verify-service/config"
	"fraud-verify-service/models"
)

// fakeDetector returns a canned detection count per image payload.
type fakeDetector struct {
	counts map[string]int
	err    error
}

func (f *fakeDetector) Detect(_ context.Context, image []byte) (*models.DetectionResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	n := f.counts[string(image)]
	return &models.DetectionResult{Detected: n > 0, NumDetections: n}, nil
}

type fakeComparator struct {
	similarity float64
	err        error
}

func (f *fakeComparator) Similarity(_, _ []byte) (float64, error) {
	return f.similarity, f.err
}

// fakeAnalyzer serves both feature and metadata extraction. Manipulated
// payloads get features below every manipulation floor; clean payloads sit
// comfortably above them.
type fakeAnalyzer struct {
	manipulated map[string]bool
	timestamps  map[string]time.Time
}

func (f *fakeAnalyzer) ExtractFeatures(data []byte) (*models.ImageFeatures, error) {
	if f.manipulated[string(data)] {
		return &models.ImageFeatures{BlurScore: 10, EdgeDensity: 0.001, HistogramVariance: 100, SaturationMean: 5}, nil
	}
	return &models.ImageFeatures{BlurScore: 500, EdgeDensity: 0.05, HistogramVariance: 5000, SaturationMean: 80, MeanBrightness: 120}, nil
}

func (f *fakeAnalyzer) ExtractCaptureMetadata(data []byte) *models.CaptureMetadata {
	meta := &models.CaptureMetadata{}
	if ts, ok := f.timestamps[string(data)]; ok {
		meta.CaptureTimestamp = &ts
	}
	return meta
}

func newTestVerifier(t *testing.T, detector *fakeDetector, compare *fakeComparator, analyzer *fakeAnalyzer) *Verifier {
	t.Helper()
	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	return NewVerifier(detector, compare, analyzer, analyzer, cfg)
}

func TestVerifyResolved(t *testing.T) {
	before, after := []byte("before"), []byte("after")
	detector := &fakeDetector{counts: map[string]int{"before": 3, "after": 0}}
	verifier := newTestVerifier(t, detector, &fakeComparator{similarity: 0.40}, &fakeAnalyzer{})

	result, err := verifier.Verify(context.Background(), before, after)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}

	if !result.IssueResolved {
		t.Error("expected resolved")
	}
	// 0.5*(1-0.40) + 0.5*(1-0/3) = 0.80
	if result.VerificationConfidence != 0.8 {
		t.Errorf("confidence = %v, want 0.8", result.VerificationConfidence)
	}
	if result.Recommendation != models.RecommendApprove {
		t.Errorf("recommendation = %v, want APPROVE", result.Recommendation)
	}
	if !result.TimestampValid {
		t.Error("missing timestamps should leave TimestampValid true")
	}
	if len(result.Flags) != 0 {
		t.Errorf("flags = %v, want none", result.Flags)
	}
	if !strings.HasPrefix(result.Analysis, "Issue verified as resolved.") {
		t.Errorf("analysis = %q", result.Analysis)
	}
}

func TestVerifyNotResolved(t *testing.T) {
	testCases := []struct {
		name         string
		beforeCount  int
		afterCount   int
		similarity   float64
		wantRec      models.Recommendation
		wantAnalysis string
	}{
		{
			name:         "partial reduction does not count",
			beforeCount:  2,
			afterCount:   1,
			similarity:   0.40,
			wantRec:      models.RecommendReject,
			wantAnalysis: "Issue not resolved. After image still shows 1 issue(s).",
		},
		{
			name:         "near identical images",
			beforeCount:  3,
			afterCount:   0,
			similarity:   0.99,
			wantRec:      models.RecommendReview,
			wantAnalysis: "Images are too similar. Possible duplicate or no work performed.",
		},
		{
			name:         "similarity exactly at the ceiling",
			beforeCount:  3,
			afterCount:   0,
			similarity:   0.95,
			wantRec:      models.RecommendReview,
			wantAnalysis: "Images are too similar. Possible duplicate or no work performed.",
		},
		{
			name:         "nothing detected before",
			beforeCount:  0,
			afterCount:   0,
			similarity:   0.40,
			wantRec:      models.RecommendReview,
			wantAnalysis: "Issue not resolved. After image still shows 0 issue(s).",
		},
		{
			name:         "more issues after than before",
			beforeCount:  1,
			afterCount:   4,
			similarity:   0.40,
			wantRec:      models.RecommendReject,
			wantAnalysis: "Issue not resolved. After image still shows 4 issue(s).",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			detector := &fakeDetector{counts: map[string]int{"before": tc.beforeCount, "after": tc.afterCount}}
			verifier := newTestVerifier(t, detector, &fakeComparator{similarity: tc.similarity}, &fakeAnalyzer{})

			result, err := verifier.Verify(context.Background(), []byte("before"), []byte("after"))
			if err != nil {
				t.Fatalf("Verify failed: %v", err)
			}
			if result.IssueResolved {
				t.Error("expected not resolved")
			}
			if result.VerificationConfidence != 0 {
				t.Errorf("confidence = %v, want 0", result.VerificationConfidence)
			}
			if result.Recommendation != tc.wantRec {
				t.Errorf("recommendation = %v, want %v", result.Recommendation, tc.wantRec)
			}
			if result.Analysis != tc.wantAnalysis {
				t.Errorf("analysis = %q, want %q", result.Analysis, tc.wantAnalysis)
			}
		})
	}
}

func TestVerifyTimestampDecay(t *testing.T) {
	detector := &fakeDetector{counts: map[string]int{"before": 3, "after": 0}}
	analyzer := &fakeAnalyzer{timestamps: map[string]time.Time{
		"before": time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC),
		"after":  time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
	}}
	verifier := newTestVerifier(t, detector, &fakeComparator{similarity: 0.40}, analyzer)

	result, err := verifier.Verify(context.Background(), []byte("before"), []byte("after"))
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}

	if result.TimestampValid {
		t.Error("after-before inversion should invalidate timestamps")
	}
	if !result.IssueResolved {
		t.Error("timestamp inversion must not flip the resolution verdict")
	}
	// 0.80 * 0.7 = 0.56
	if result.VerificationConfidence != 0.56 {
		t.Errorf("confidence = %v, want 0.56", result.VerificationConfidence)
	}
	if result.Recommendation != models.RecommendReview {
		t.Errorf("recommendation = %v, want REVIEW", result.Recommendation)
	}
	if !reflect.DeepEqual(result.Flags, []string{"Timestamp inconsistency detected"}) {
		t.Errorf("flags = %v", result.Flags)
	}
}

func TestVerifyDecaysCompound(t *testing.T) {
	detector := &fakeDetector{counts: map[string]int{"before": 3, "after": 0}}
	analyzer := &fakeAnalyzer{
		manipulated: map[string]bool{"after": true},
		timestamps: map[string]time.Time{
			"before": time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC),
			"after":  time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
		},
	}
	verifier := newTestVerifier(t, detector, &fakeComparator{similarity: 0.40}, analyzer)

	result, err := verifier.Verify(context.Background(), []byte("before"), []byte("after"))
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}

	// 0.80 * 0.7 * 0.6 = 0.336
	if math.Abs(result.VerificationConfidence-0.336) > 1e-9 {
		t.Errorf("confidence = %v, want 0.336", result.VerificationConfidence)
	}
	wantFlags := []string{"Timestamp inconsistency detected", "After image may be manipulated"}
	if !reflect.DeepEqual(result.Flags, wantFlags) {
		t.Errorf("flags = %v, want %v", result.Flags, wantFlags)
	}
	if result.Recommendation != models.RecommendReview {
		t.Errorf("recommendation = %v, want REVIEW", result.Recommendation)
	}
}

func TestVerifyEqualTimestampsAreInconsistent(t *testing.T) {
	ts := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	detector := &fakeDetector{counts: map[string]int{"before": 1, "after": 0}}
	analyzer := &fakeAnalyzer{timestamps: map[string]time.Time{"before": ts, "after": ts}}
	verifier := newTestVerifier(t, detector, &fakeComparator{similarity: 0.40}, analyzer)

	result, err := verifier.Verify(context.Background(), []byte("before"), []byte("after"))
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if result.TimestampValid {
		t.Error("equal capture timestamps should be treated as inconsistent")
	}
}

func TestVerifyDetectorFailure(t *testing.T) {
	wantErr := errors.New("model unavailable")
	verifier := newTestVerifier(t, &fakeDetector{err: wantErr}, &fakeComparator{similarity: 0.40}, &fakeAnalyzer{})

	_, err := verifier.Verify(context.Background(), []byte("before"), []byte("after"))
	if !errors.Is(err, wantErr) {
		t.Errorf("err = %v, want %v", err, wantErr)
	}
}
