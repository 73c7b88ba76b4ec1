package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"fraud-verify-service/models"
)

// SeverityTier is one (confidence floor, area floor) pair. Tiers are
// evaluated in order; the first tier whose both floors are met wins.
type SeverityTier struct {
	Level          models.Severity
	Confidence     float64
	AreaPercentage float64
}

// FraudWeights are the additive signal weights of the risk aggregator.
type FraudWeights struct {
	LowBlur            float64
	TooManyDetections  float64
	LowResolution      float64
	ExtremeBrightness  float64
	Manipulation       float64
	GPSSpoofing        float64
	HighSubmissionRate float64
	TimestampMismatch  float64
}

// ManipulationWeights are the additive weights of the four weak editing
// signals; manipulation is declared above Threshold.
type ManipulationWeights struct {
	LowNoiseVariance     float64
	LowHistogramVariance float64
	SparseEdges          float64
	LowSaturation        float64
	Threshold            float64
}

// QualityThresholds are the floors/ceilings the quality and manipulation
// signals trigger on.
type QualityThresholds struct {
	BlurFloor          float64
	NoiseVarianceFloor float64
	HistVarianceFloor  float64
	EdgeDensityFloor   float64
	SaturationFloor    float64
	BrightnessMin      float64
	BrightnessMax      float64
	MaxDetections      int
	TimestampSkew      time.Duration
}

// ServiceRegion is the rectangular bound reports are expected to come from.
type ServiceRegion struct {
	LatMin float64
	LatMax float64
	LonMin float64
	LonMax float64
}

// Config holds all configuration for the fraud verify service.
type Config struct {
	// Database configuration (TTL cache store)
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string

	// Server configuration
	Port string

	// Detection model service
	DetectorURL     string
	DetectorTimeout time.Duration

	// RabbitMQ fan-out of completed assessments (optional)
	AMQPURL          string
	AMQPExchange     string
	AMQPRoutingKey   string

	// Ingestion limits
	MaxImageBytes int
	MinimumWidth  int
	MinimumHeight int

	// Duplicate/replay detection
	DedupWindow   time.Duration
	DedupRadiusKm float64

	// Device rate limiting (risk scoring only, never a hard block)
	RateWindow    time.Duration
	RateThreshold int64

	// GPS
	Region               ServiceRegion
	MaxCoordinateDigits  int32

	// Scoring tables
	SeverityTiers []SeverityTier
	Fraud         FraudWeights
	Manipulation  ManipulationWeights
	Quality       QualityThresholds

	// Risk level cut points
	RiskHighFloor   float64
	RiskMediumFloor float64

	// Resolution verification
	SimilarityCeiling  float64
	TimestampDecay     float64
	ManipulationDecay  float64

	// Logging
	LogLevel string
}

// Load loads configuration from environment variables. The scoring tables
// carry the tuned defaults; the operational knobs are overridable.
func Load() (*Config, error) {
	cfg := &Config{
		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "3306"),
		DBUser:     getEnv("DB_USER", "server"),
		DBPassword: getEnv("DB_PASSWORD", "secret_app"),
		DBName:     getEnv("DB_NAME", "fraudverify"),

		Port: getEnv("PORT", "8080"),

		DetectorURL:     getEnv("DETECTOR_URL", "http://localhost:8090"),
		DetectorTimeout: getDurationEnv("DETECTOR_TIMEOUT", 60*time.Second),

		AMQPURL:        getEnv("AMQP_URL", ""),
		AMQPExchange:   getEnv("AMQP_EXCHANGE", "fraudverify"),
		AMQPRoutingKey: getEnv("AMQP_ROUTING_KEY", "assessment"),

		MaxImageBytes: getIntEnv("MAX_IMAGE_BYTES", 10*1024*1024),
		MinimumWidth:  getIntEnv("MIN_IMAGE_WIDTH", 640),
		MinimumHeight: getIntEnv("MIN_IMAGE_HEIGHT", 480),

		// The 1 hour window, 100 m radius and 10/hour threshold are the
		// deployment defaults, not universal truths. Keep them tunable.
		DedupWindow:   getDurationEnv("DEDUP_WINDOW", time.Hour),
		DedupRadiusKm: getFloatEnv("DEDUP_RADIUS_KM", 0.1),
		RateWindow:    getDurationEnv("RATE_WINDOW", time.Hour),
		RateThreshold: int64(getIntEnv("RATE_THRESHOLD", 10)),

		Region: ServiceRegion{
			LatMin: getFloatEnv("REGION_LAT_MIN", 23.5),
			LatMax: getFloatEnv("REGION_LAT_MAX", 30.2),
			LonMin: getFloatEnv("REGION_LON_MIN", 69.5),
			LonMax: getFloatEnv("REGION_LON_MAX", 78.3),
		},
		MaxCoordinateDigits: 8,

		SeverityTiers: []SeverityTier{
			{Level: models.SeverityCritical, Confidence: 0.85, AreaPercentage: 30},
			{Level: models.SeverityHigh, Confidence: 0.75, AreaPercentage: 20},
			{Level: models.SeverityMedium, Confidence: 0.65, AreaPercentage: 10},
			{Level: models.SeverityLow, Confidence: 0.50, AreaPercentage: 5},
		},
		Fraud: FraudWeights{
			LowBlur:            0.2,
			TooManyDetections:  0.3,
			LowResolution:      0.1,
			ExtremeBrightness:  0.15,
			Manipulation:       0.3,
			GPSSpoofing:        0.4,
			HighSubmissionRate: 0.2,
			TimestampMismatch:  0.15,
		},
		Manipulation: ManipulationWeights{
			LowNoiseVariance:     0.3,
			LowHistogramVariance: 0.2,
			SparseEdges:          0.25,
			LowSaturation:        0.15,
			Threshold:            0.5,
		},
		Quality: QualityThresholds{
			BlurFloor:          100,
			NoiseVarianceFloor: 50,
			HistVarianceFloor:  1000,
			EdgeDensityFloor:   0.01,
			SaturationFloor:    30,
			BrightnessMin:      30,
			BrightnessMax:      225,
			MaxDetections:      10,
			TimestampSkew:      time.Hour,
		},

		RiskHighFloor:   0.7,
		RiskMediumFloor: 0.4,

		SimilarityCeiling: 0.95,
		TimestampDecay:    0.7,
		ManipulationDecay: 0.6,

		LogLevel: getEnv("LOG_LEVEL", "info"),
	}

	if err := validateSeverityTiers(cfg.SeverityTiers); err != nil {
		return nil, err
	}

	return cfg, nil
}

// validateSeverityTiers rejects tier tables whose floors are not strictly
// decreasing from CRITICAL down to LOW. A non-monotonic table would let a
// lower tier shadow a higher one depending on evaluation order.
func validateSeverityTiers(tiers []SeverityTier) error {
	if len(tiers) == 0 {
		return fmt.Errorf("severity tier table is empty")
	}
	for i := 1; i < len(tiers); i++ {
		prev, cur := tiers[i-1], tiers[i]
		if cur.Confidence >= prev.Confidence {
			return fmt.Errorf("severity tiers not monotonic: %s confidence floor %.2f >= %s floor %.2f",
				cur.Level, cur.Confidence, prev.Level, prev.Confidence)
		}
		if cur.AreaPercentage >= prev.AreaPercentage {
			return fmt.Errorf("severity tiers not monotonic: %s area floor %.1f >= %s floor %.1f",
				cur.Level, cur.AreaPercentage, prev.Level, prev.AreaPercentage)
		}
	}
	return nil
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getIntEnv gets an integer environment variable with a default value
func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getFloatEnv gets a float environment variable with a default value
func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

// getDurationEnv gets a duration environment variable with a default value
func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
