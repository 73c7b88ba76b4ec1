package models

import "time"

// IssueType is the closed set of civic issue classes the detection model
// is trained on. Class ids outside the known range map to IssueUnknown.
type IssueType string

const (
	IssuePothole            IssueType = "POTHOLE"
	IssueStreetlightFailure IssueType = "STREETLIGHT_FAILURE"
	IssueAnimalCarcass      IssueType = "ANIMAL_CARCASS"
	IssueWasteAccumulation  IssueType = "WASTE_ACCUMULATION"
	IssueToiletUnclean      IssueType = "TOILET_UNCLEAN"
	IssueStaffAbsent        IssueType = "STAFF_ABSENT"
	IssueUnknown            IssueType = "UNKNOWN"
)

var issueClasses = map[int]IssueType{
	0: IssuePothole,
	1: IssueStreetlightFailure,
	2: IssueAnimalCarcass,
	3: IssueWasteAccumulation,
	4: IssueToiletUnclean,
	5: IssueStaffAbsent,
}

// IssueTypeFromClass maps a model class id to an issue type.
func IssueTypeFromClass(classID int) IssueType {
	if t, ok := issueClasses[classID]; ok {
		return t
	}
	return IssueUnknown
}

// Severity is the civic-impact tier of a detection result.
type Severity string

const (
	SeverityNone     Severity = "NONE"
	SeverityLow      Severity = "LOW"
	SeverityMedium   Severity = "MEDIUM"
	SeverityHigh     Severity = "HIGH"
	SeverityCritical Severity = "CRITICAL"
)

// RiskLevel buckets the aggregated fraud risk score.
type RiskLevel string

const (
	RiskLow    RiskLevel = "LOW"
	RiskMedium RiskLevel = "MEDIUM"
	RiskHigh   RiskLevel = "HIGH"
)

// Recommendation is the terminal outcome of a resolution verification.
type Recommendation string

const (
	RecommendApprove Recommendation = "APPROVE"
	RecommendReview  Recommendation = "REVIEW"
	RecommendReject  Recommendation = "REJECT"
)

// BoundingBox is a detection box in pixel coordinates.
type BoundingBox struct {
	X1 int `json:"x1"`
	Y1 int `json:"y1"`
	X2 int `json:"x2"`
	Y2 int `json:"y2"`
}

// Detection is a single detected issue. Produced fresh per detection
// call and never mutated afterwards.
type Detection struct {
	IssueType      IssueType   `json:"issue_type"`
	Confidence     float64     `json:"confidence"`
	BBox           BoundingBox `json:"bbox"`
	AreaPercentage float64     `json:"area_percentage"`
}

// DetectionResult is the full output of one detection pass over an image.
type DetectionResult struct {
	Detected            bool        `json:"detected"`
	NumDetections       int         `json:"num_detections"`
	Detections          []Detection `json:"detections"`
	Severity            Severity    `json:"severity"`
	TotalAreaPercentage float64     `json:"total_area_percentage"`
	ImageWidth          int         `json:"image_width"`
	ImageHeight         int         `json:"image_height"`
}

// FraudAssessment is the aggregated trust verdict for a submission.
// RiskFactors keeps the ordered list of named signals that fired so the
// verdict stays auditable, not just a number.
type FraudAssessment struct {
	RiskScore   float64   `json:"risk_score"`
	RiskLevel   RiskLevel `json:"risk_level"`
	RiskFactors []string  `json:"risk_factors"`
}

// GPSValidation carries the non-fatal outcome of coordinate validation.
// A spoofing flag never rejects on its own, it only raises downstream risk.
type GPSValidation struct {
	Valid            bool     `json:"valid"`
	Latitude         float64  `json:"latitude"`
	Longitude        float64  `json:"longitude"`
	InServiceRegion  bool     `json:"in_service_region"`
	PossibleSpoofing bool     `json:"possible_spoofing"`
	Warnings         []string `json:"warnings"`
}

// GeofenceResult is the outcome of a circular geofence check.
// DistanceFromEdgeKm is signed, positive means inside the fence.
type GeofenceResult struct {
	WithinGeofence     bool    `json:"within_geofence"`
	DistanceKm         float64 `json:"distance_km"`
	RadiusKm           float64 `json:"radius_km"`
	DistanceFromEdgeKm float64 `json:"distance_from_edge_km"`
}

// DedupRecord is the cached fingerprint of a recent submission, keyed by
// image content hash in the TTL store. At most one record exists per hash.
type DedupRecord struct {
	Latitude       float64   `json:"latitude"`
	Longitude      float64   `json:"longitude"`
	DeviceID       string    `json:"device_id"`
	Timestamp      time.Time `json:"timestamp"`
	DetectionCount int       `json:"detection_count"`
}

// ImageFeatures are the low-level quality metrics of a decoded image.
type ImageFeatures struct {
	BlurScore         float64 `json:"blur_score"`
	EdgeDensity       float64 `json:"edge_density"`
	SaturationMean    float64 `json:"saturation_mean"`
	HistogramVariance float64 `json:"histogram_variance"`
	MeanBrightness    float64 `json:"mean_brightness"`
}

// CaptureMetadata is what could be recovered from the image file header.
// Every field is optional; absence is never an error.
type CaptureMetadata struct {
	CaptureTimestamp *time.Time `json:"capture_timestamp,omitempty"`
	DeviceMake       string     `json:"device_make,omitempty"`
	DeviceModel      string     `json:"device_model,omitempty"`
	Latitude         *float64   `json:"gps_latitude,omitempty"`
	Longitude        *float64   `json:"gps_longitude,omitempty"`
}

// ImageInfo is returned by ingestion validation on success.
type ImageInfo struct {
	Width     int    `json:"width"`
	Height    int    `json:"height"`
	Format    string `json:"format"`
	SizeBytes int    `json:"size_bytes"`
}

// VerificationResult is the terminal output of the resolution verifier.
type VerificationResult struct {
	IssueResolved          bool           `json:"issue_resolved"`
	VerificationConfidence float64        `json:"verification_confidence"`
	SimilarityScore        float64        `json:"similarity_score"`
	BeforeDetections       int            `json:"before_detections"`
	AfterDetections        int            `json:"after_detections"`
	TimestampValid         bool           `json:"timestamp_valid"`
	Flags                  []string       `json:"verification_flags"`
	Recommendation         Recommendation `json:"recommendation"`
	Analysis               string         `json:"analysis"`
}
