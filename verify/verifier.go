package verify

import (
	"context"
	"fmt"
	"math"

	"github.com/apex/log"

	"fraud-verify-service/config"
	"fraud-verify-service/fraud"
	"fraud-verify-service/models"
)

// State is a step of the verification pipeline. FLAGGED is only entered
// when at least one decay flag fires; DECIDED is terminal.
type State string

const (
	StateReceived         State = "RECEIVED"
	StateTimestampChecked State = "TIMESTAMP_CHECKED"
	StateCompared         State = "COMPARED"
	StateFlagged          State = "FLAGGED"
	StateDecided          State = "DECIDED"
)

// Detector runs the external object detection model on one image.
type Detector interface {
	Detect(ctx context.Context, image []byte) (*models.DetectionResult, error)
}

// Comparator scores structural similarity between two images.
type Comparator interface {
	Similarity(before, after []byte) (float64, error)
}

// FeatureExtractor computes quality metrics for the manipulation check.
type FeatureExtractor interface {
	ExtractFeatures(data []byte) (*models.ImageFeatures, error)
}

// MetadataExtractor recovers optional capture metadata from image headers.
type MetadataExtractor interface {
	ExtractCaptureMetadata(data []byte) *models.CaptureMetadata
}

// Verifier decides whether a claimed fix is real by comparing the before
// and after images of a completion claim.
type Verifier struct {
	detector Detector
	compare  Comparator
	features FeatureExtractor
	metadata MetadataExtractor
	cfg      *config.Config
}

// NewVerifier wires the verifier's collaborators.
func NewVerifier(detector Detector, compare Comparator, features FeatureExtractor, metadata MetadataExtractor, cfg *config.Config) *Verifier {
	return &Verifier{
		detector: detector,
		compare:  compare,
		features: features,
		metadata: metadata,
		cfg:      cfg,
	}
}

// Verify walks the state machine RECEIVED → TIMESTAMP_CHECKED → COMPARED
// → FLAGGED (optional) → DECIDED and returns the terminal recommendation.
// External model calls may be slow; nothing here holds shared state.
func (v *Verifier) Verify(ctx context.Context, beforeImage, afterImage []byte) (*models.VerificationResult, error) {
	state := StateReceived

	// RECEIVED → TIMESTAMP_CHECKED. Timestamps are advisory: an inverted
	// or missing pair never aborts verification, it only decays confidence.
	timestampValid := true
	beforeMeta := v.metadata.ExtractCaptureMetadata(beforeImage)
	afterMeta := v.metadata.ExtractCaptureMetadata(afterImage)
	if beforeMeta.CaptureTimestamp != nil && afterMeta.CaptureTimestamp != nil {
		if !afterMeta.CaptureTimestamp.After(*beforeMeta.CaptureTimestamp) {
			timestampValid = false
			log.Warn("After image capture timestamp is not later than before image")
		}
	}
	state = StateTimestampChecked

	// TIMESTAMP_CHECKED → COMPARED.
	similarity, err := v.compare.Similarity(beforeImage, afterImage)
	if err != nil {
		return nil, err
	}
	beforeDetection, err := v.detector.Detect(ctx, beforeImage)
	if err != nil {
		return nil, err
	}
	afterDetection, err := v.detector.Detect(ctx, afterImage)
	if err != nil {
		return nil, err
	}
	state = StateCompared

	beforeCount := beforeDetection.NumDetections
	afterCount := afterDetection.NumDetections
	resolved, confidence := decide(beforeCount, afterCount, similarity, v.cfg.SimilarityCeiling)

	// COMPARED → FLAGGED. Decay multipliers apply sequentially in the
	// order the flags are evaluated; multiple flags compound.
	flags := []string{}
	if !timestampValid {
		flags = append(flags, "Timestamp inconsistency detected")
		confidence *= v.cfg.TimestampDecay
	}
	if afterFeatures, err := v.features.ExtractFeatures(afterImage); err == nil {
		manipulation := fraud.CheckManipulation(afterFeatures, v.cfg.Manipulation, v.cfg.Quality)
		if manipulation.Manipulated {
			flags = append(flags, "After image may be manipulated")
			confidence *= v.cfg.ManipulationDecay
		}
	} else {
		log.Warnf("Skipping manipulation check on after image: %v", err)
	}
	if len(flags) > 0 {
		state = StateFlagged
	}

	// → DECIDED.
	result := &models.VerificationResult{
		IssueResolved:          resolved,
		VerificationConfidence: round3(confidence),
		SimilarityScore:        round3(similarity),
		BeforeDetections:       beforeCount,
		AfterDetections:        afterCount,
		TimestampValid:         timestampValid,
		Flags:                  flags,
		Recommendation:         recommend(resolved, flags, afterCount),
		Analysis:               analysis(resolved, similarity, beforeCount, afterCount, v.cfg.SimilarityCeiling),
	}
	state = StateDecided
	log.Infof("Verification %s: resolved=%t recommendation=%s", state, resolved, result.Recommendation)

	return result, nil
}

// decide applies the resolution predicate: the issue counts as resolved
// only when the after image differs from the before image AND every
// previously detected issue is gone. Partial reduction does not count,
// and a near-identical resubmission is not evidence of work.
func decide(beforeCount, afterCount int, similarity, similarityCeiling float64) (bool, float64) {
	resolved := afterCount < beforeCount &&
		similarity < similarityCeiling &&
		beforeCount > 0 && afterCount == 0

	if !resolved {
		return false, 0
	}

	confidence := 0.5*(1-similarity) +
		0.5*(1-float64(afterCount)/math.Max(float64(beforeCount), 1))
	if confidence > 1 {
		confidence = 1
	}
	if confidence < 0 {
		confidence = 0
	}
	return true, confidence
}

func recommend(resolved bool, flags []string, afterCount int) models.Recommendation {
	switch {
	case resolved && len(flags) == 0:
		return models.RecommendApprove
	case resolved:
		return models.RecommendReview
	case afterCount == 0:
		// No issues remain but the images barely changed: ambiguous.
		return models.RecommendReview
	default:
		return models.RecommendReject
	}
}

func analysis(resolved bool, similarity float64, beforeCount, afterCount int, similarityCeiling float64) string {
	switch {
	case resolved:
		return fmt.Sprintf("Issue verified as resolved. Before: %d issue(s), After: %d issue(s). Images show %.1f%% change.",
			beforeCount, afterCount, (1-similarity)*100)
	case similarity >= similarityCeiling:
		return "Images are too similar. Possible duplicate or no work performed."
	case afterCount >= beforeCount:
		return fmt.Sprintf("Issue not resolved. After image still shows %d issue(s).", afterCount)
	default:
		return "Unable to verify complete resolution. Some issues may remain."
	}
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
