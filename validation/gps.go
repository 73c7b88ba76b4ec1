package validation

import (
	"math"

	"github.com/golang/geo/s2"
	"github.com/shopspring/decimal"

	"fraud-verify-service/config"
	"fraud-verify-service/models"
)

const earthRadiusKm = 6371.0

// ValidateCoordinates validates a coordinate pair given in its original
// string representation. The raw form matters: the spoofing heuristic
// counts the decimal digits the client actually sent, not digits after
// any float round-trip.
func ValidateCoordinates(latRaw, lonRaw string, region config.ServiceRegion, maxDigits int32) (*models.GPSValidation, error) {
	latDec, err := decimal.NewFromString(latRaw)
	if err != nil {
		return nil, models.NewValidationError(models.CodeOutOfRange,
			"latitude %q is not a number", latRaw)
	}
	lonDec, err := decimal.NewFromString(lonRaw)
	if err != nil {
		return nil, models.NewValidationError(models.CodeOutOfRange,
			"longitude %q is not a number", lonRaw)
	}

	lat, _ := latDec.Float64()
	lon, _ := lonDec.Float64()

	if lat < -90 || lat > 90 {
		return nil, models.NewValidationError(models.CodeOutOfRange,
			"invalid latitude %v (must be between -90 and 90)", lat)
	}
	if lon < -180 || lon > 180 {
		return nil, models.NewValidationError(models.CodeOutOfRange,
			"invalid longitude %v (must be between -180 and 180)", lon)
	}

	// Exactly (0, 0) is the default of most spoofing tools, no real
	// submission comes from null island.
	if lat == 0 && lon == 0 {
		return nil, models.NewValidationError(models.CodeNullIsland,
			"invalid coordinates (0, 0): possible GPS spoofing")
	}

	result := &models.GPSValidation{
		Valid:           true,
		Latitude:        lat,
		Longitude:       lon,
		InServiceRegion: inServiceRegion(lat, lon, region),
	}

	// Consumer GPS hardware never yields more than 8 fractional digits.
	// The decimal exponent is the digit count of the raw representation.
	if fractionalDigits(latDec) > maxDigits || fractionalDigits(lonDec) > maxDigits {
		result.PossibleSpoofing = true
		result.Warnings = append(result.Warnings, "Unusually precise coordinates")
	}

	return result, nil
}

func fractionalDigits(d decimal.Decimal) int32 {
	if d.Exponent() < 0 {
		return -d.Exponent()
	}
	return 0
}

func inServiceRegion(lat, lon float64, region config.ServiceRegion) bool {
	rect := s2.RectFromLatLng(s2.LatLngFromDegrees(region.LatMin, region.LonMin))
	rect = rect.AddPoint(s2.LatLngFromDegrees(region.LatMax, region.LonMax))
	return rect.ContainsLatLng(s2.LatLngFromDegrees(lat, lon))
}

// HaversineDistanceKm computes the great-circle distance between two
// coordinate pairs.
func HaversineDistanceKm(lat1, lon1, lat2, lon2 float64) float64 {
	lat1Rad := lat1 * math.Pi / 180
	lon1Rad := lon1 * math.Pi / 180
	lat2Rad := lat2 * math.Pi / 180
	lon2Rad := lon2 * math.Pi / 180

	dLat := lat2Rad - lat1Rad
	dLon := lon2Rad - lon1Rad

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1Rad)*math.Cos(lat2Rad)*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadiusKm * c
}

// WithinGeofence checks a point against a circular geofence. The returned
// edge distance is signed: positive means inside the fence.
func WithinGeofence(lat, lon, centerLat, centerLon, radiusKm float64) models.GeofenceResult {
	distance := HaversineDistanceKm(lat, lon, centerLat, centerLon)
	return models.GeofenceResult{
		WithinGeofence:     distance <= radiusKm,
		DistanceKm:         round3(distance),
		RadiusKm:           radiusKm,
		DistanceFromEdgeKm: round3(radiusKm - distance),
	}
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
