package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/apex/log"

	"fraud-verify-service/cache"
	"fraud-verify-service/config"
	"fraud-verify-service/fraud"
	"fraud-verify-service/metrics"
	"fraud-verify-service/models"
	"fraud-verify-service/severity"
	"fraud-verify-service/validation"
	"fraud-verify-service/verify"
)

// Detector runs the external object detection model on one image.
type Detector interface {
	Detect(ctx context.Context, image []byte) (*models.DetectionResult, error)
}

// ImageAnalyzer bundles the pure image primitives the engine consumes:
// quality features, structural similarity and capture metadata.
type ImageAnalyzer interface {
	ExtractFeatures(data []byte) (*models.ImageFeatures, error)
	Similarity(before, after []byte) (float64, error)
	ExtractCaptureMetadata(data []byte) *models.CaptureMetadata
}

// Publisher fans a completed assessment out to downstream consumers.
type Publisher interface {
	Publish(message interface{}) error
}

// Service is the fraud-prevention and verification decision engine. It
// holds no mutable state of its own; the injected cache store is the only
// state shared across requests.
type Service struct {
	cfg       *config.Config
	detector  Detector
	analyzer  ImageAnalyzer
	dedup     *fraud.DuplicateChecker
	limiter   *fraud.RateLimiter
	agg       *fraud.Aggregator
	verifier  *verify.Verifier
	publisher Publisher
}

// NewService wires the engine's components over the injected store and
// collaborators.
func NewService(cfg *config.Config, store cache.Store, detector Detector, analyzer ImageAnalyzer) *Service {
	return &Service{
		cfg:      cfg,
		detector: detector,
		analyzer: analyzer,
		dedup:    fraud.NewDuplicateChecker(store, cfg.DedupWindow, cfg.DedupRadiusKm),
		limiter:  fraud.NewRateLimiter(store, cfg.RateWindow),
		agg:      fraud.NewAggregator(cfg),
		verifier: verify.NewVerifier(detector, analyzer, analyzer, analyzer, cfg),
	}
}

// SetPublisher attaches an optional assessment publisher.
func (s *Service) SetPublisher(p Publisher) {
	s.publisher = p
}

// SubmitRequest is one citizen submission. Coordinates stay in their raw
// string form so the precision heuristic sees what the client sent.
type SubmitRequest struct {
	Image     []byte
	Filename  string
	Latitude  string
	Longitude string
	DeviceID  string
	Timestamp time.Time
}

// SubmissionMetadata echoes behavioral context back with the verdict.
type SubmissionMetadata struct {
	DeviceID              string                  `json:"device_id"`
	Timestamp             time.Time               `json:"timestamp"`
	HourlySubmissionCount int64                   `json:"submission_count_hourly"`
	Capture               *models.CaptureMetadata `json:"exif_data"`
}

// SubmitResponse is the full trust decision for a new report.
type SubmitResponse struct {
	Detection       *models.DetectionResult `json:"detection"`
	FraudAssessment models.FraudAssessment  `json:"fraud_assessment"`
	GPSValidation   *models.GPSValidation   `json:"gps_validation"`
	Metadata        SubmissionMetadata      `json:"metadata"`
}

// SubmitIssue runs the full decision pipeline for a new report: ingestion
// validation, GPS validation, duplicate/replay check, device rate count,
// capture metadata, external detection, severity and the aggregated fraud
// verdict. The dedup record is written only after the pipeline completes.
func (s *Service) SubmitIssue(ctx context.Context, req SubmitRequest) (*SubmitResponse, error) {
	imageInfo, err := validation.ValidateImage(req.Image, req.Filename, validation.ImageLimits{
		MaxBytes:  s.cfg.MaxImageBytes,
		MinWidth:  s.cfg.MinimumWidth,
		MinHeight: s.cfg.MinimumHeight,
	})
	if err != nil {
		metrics.SubmissionsTotal.WithLabelValues("validation_rejected").Inc()
		return nil, err
	}

	gps, err := validation.ValidateCoordinates(req.Latitude, req.Longitude, s.cfg.Region, s.cfg.MaxCoordinateDigits)
	if err != nil {
		metrics.SubmissionsTotal.WithLabelValues("validation_rejected").Inc()
		return nil, err
	}
	if !gps.InServiceRegion {
		log.Warnf("Submission from outside service region: (%.4f, %.4f)", gps.Latitude, gps.Longitude)
	}

	features, err := s.analyzer.ExtractFeatures(req.Image)
	if err != nil {
		metrics.SubmissionsTotal.WithLabelValues("upstream_error").Inc()
		return nil, err
	}
	manipulation := fraud.CheckManipulation(features, s.cfg.Manipulation, s.cfg.Quality)
	if manipulation.Manipulated {
		log.Warnf("Potential image manipulation detected: %v", manipulation.Indicators)
	}

	imageHash := hashImage(req.Image)
	if err := s.dedup.Check(ctx, imageHash, gps.Latitude, gps.Longitude); err != nil {
		if _, ok := err.(*models.ConflictError); ok {
			metrics.DuplicatesRejectedTotal.Inc()
			metrics.SubmissionsTotal.WithLabelValues("duplicate").Inc()
		} else {
			metrics.SubmissionsTotal.WithLabelValues("upstream_error").Inc()
		}
		return nil, err
	}

	hourlyCount, err := s.limiter.Hit(ctx, req.DeviceID)
	if err != nil {
		metrics.SubmissionsTotal.WithLabelValues("upstream_error").Inc()
		return nil, err
	}
	if hourlyCount > s.cfg.RateThreshold {
		log.Warnf("High submission rate from device %s: %d/window", req.DeviceID, hourlyCount)
	}

	capture := s.analyzer.ExtractCaptureMetadata(req.Image)

	// Model inference can be slow; no cache state is held here.
	start := time.Now()
	detection, err := s.detector.Detect(ctx, req.Image)
	metrics.ExternalCallDuration.WithLabelValues("detect").Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.SubmissionsTotal.WithLabelValues("upstream_error").Inc()
		return nil, err
	}
	detection.Severity = severity.Classify(detection.Detections, detection.TotalAreaPercentage, s.cfg.SeverityTiers)

	assessment := s.agg.Assess(fraud.Signals{
		Features:         features,
		DetectionCount:   detection.NumDetections,
		ImageWidth:       imageInfo.Width,
		ImageHeight:      imageInfo.Height,
		Manipulated:      manipulation.Manipulated,
		GPSSpoofing:      gps.PossibleSpoofing,
		HourlyCount:      hourlyCount,
		ClientTimestamp:  req.Timestamp,
		CaptureTimestamp: capture.CaptureTimestamp,
	})

	// The verdict is already derived; a lost dedup record only weakens
	// replay detection for the next hour, so this write is best effort.
	record := models.DedupRecord{
		Latitude:       gps.Latitude,
		Longitude:      gps.Longitude,
		DeviceID:       req.DeviceID,
		Timestamp:      req.Timestamp,
		DetectionCount: detection.NumDetections,
	}
	if err := s.dedup.Record(ctx, imageHash, record); err != nil {
		log.Warnf("Failed to record submission %s for dedup: %v", imageHash, err)
	}

	metrics.SubmissionsTotal.WithLabelValues("accepted").Inc()
	metrics.RiskLevelTotal.WithLabelValues(string(assessment.RiskLevel)).Inc()
	log.Infof("Detection completed - Issues: %d, Fraud Risk: %.2f", detection.NumDetections, assessment.RiskScore)

	response := &SubmitResponse{
		Detection:       detection,
		FraudAssessment: assessment,
		GPSValidation:   gps,
		Metadata: SubmissionMetadata{
			DeviceID:              req.DeviceID,
			Timestamp:             req.Timestamp,
			HourlySubmissionCount: hourlyCount,
			Capture:               capture,
		},
	}

	go s.publishAssessment(imageHash, response)

	return response, nil
}

// VerifyRequest is a completion claim with its before/after image pair.
type VerifyRequest struct {
	TaskID         string
	BeforeImage    []byte
	BeforeFilename string
	AfterImage     []byte
	AfterFilename  string
	Latitude       string
	Longitude      string
}

// VerifyCompletion validates both images, then runs the resolution
// verifier over the pair.
func (s *Service) VerifyCompletion(ctx context.Context, req VerifyRequest) (*models.VerificationResult, error) {
	limits := validation.ImageLimits{
		MaxBytes:  s.cfg.MaxImageBytes,
		MinWidth:  s.cfg.MinimumWidth,
		MinHeight: s.cfg.MinimumHeight,
	}
	if _, err := validation.ValidateImage(req.BeforeImage, req.BeforeFilename, limits); err != nil {
		return nil, err
	}
	if _, err := validation.ValidateImage(req.AfterImage, req.AfterFilename, limits); err != nil {
		return nil, err
	}
	if _, err := validation.ValidateCoordinates(req.Latitude, req.Longitude, s.cfg.Region, s.cfg.MaxCoordinateDigits); err != nil {
		return nil, err
	}

	start := time.Now()
	result, err := s.verifier.Verify(ctx, req.BeforeImage, req.AfterImage)
	metrics.ExternalCallDuration.WithLabelValues("verify").Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, err
	}

	metrics.VerificationsTotal.WithLabelValues(string(result.Recommendation)).Inc()
	log.Infof("Task verification completed - Task: %s, Resolved: %t", req.TaskID, result.IssueResolved)
	return result, nil
}

func (s *Service) publishAssessment(imageHash string, response *SubmitResponse) {
	if s.publisher == nil {
		return
	}

	message := struct {
		ImageHash       string                  `json:"image_hash"`
		Detection       *models.DetectionResult `json:"detection"`
		FraudAssessment models.FraudAssessment  `json:"fraud_assessment"`
		GPSValidation   *models.GPSValidation   `json:"gps_validation"`
		DeviceID        string                  `json:"device_id"`
		Timestamp       time.Time               `json:"timestamp"`
	}{
		ImageHash:       imageHash,
		Detection:       response.Detection,
		FraudAssessment: response.FraudAssessment,
		GPSValidation:   response.GPSValidation,
		DeviceID:        response.Metadata.DeviceID,
		Timestamp:       response.Metadata.Timestamp,
	}

	if err := s.publisher.Publish(message); err != nil {
		log.Errorf("Failed to publish assessment for %s: %v", imageHash, err)
		return
	}
	log.Infof("Published assessment for %s", imageHash)
}

func hashImage(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
