package fraud

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/apex/log"

	"fraud-verify-service/cache"
	"fraud-verify-service/models"
	"fraud-verify-service/validation"
)

const dedupKeyPrefix = "submission:"

// DuplicateChecker detects replayed submissions: the same image content
// reported again from essentially the same location inside the dedup
// window. Hash equality alone is not enough (similar-looking generic
// scenes can collide) and proximity alone is not enough (distinct photos
// are often geotagged close together); only the conjunction rejects.
type DuplicateChecker struct {
	store    cache.Store
	window   time.Duration
	radiusKm float64
}

// NewDuplicateChecker creates a checker over the shared TTL store.
func NewDuplicateChecker(store cache.Store, window time.Duration, radiusKm float64) *DuplicateChecker {
	return &DuplicateChecker{store: store, window: window, radiusKm: radiusKm}
}

// Check consults the store for a live record of the same image hash.
// It returns a ConflictError when the prior submission was within the
// proximity radius.
//
// Two submissions with the same hash arriving concurrently can both pass
// this check before either records itself. That read-then-write window is
// accepted deliberately: closing it would need a cross-request lock held
// over the whole pipeline, and availability wins over exactly-once
// duplicate rejection here.
func (d *DuplicateChecker) Check(ctx context.Context, imageHash string, lat, lon float64) error {
	value, found, err := d.store.Get(ctx, dedupKeyPrefix+imageHash)
	if err != nil {
		return &models.UpstreamError{Service: "cache store", Err: err}
	}
	if !found {
		return nil
	}

	var prior models.DedupRecord
	if err := json.Unmarshal([]byte(value), &prior); err != nil {
		// A malformed record cannot be compared, let the submission pass
		// and overwrite it at the end of the pipeline.
		log.Warnf("Discarding malformed dedup record for hash %s: %v", imageHash, err)
		return nil
	}

	distance := validation.HaversineDistanceKm(lat, lon, prior.Latitude, prior.Longitude)
	if distance < d.radiusKm {
		log.Warnf("Duplicate submission: hash %s seen %.3f km away within window", imageHash, distance)
		return &models.ConflictError{
			Reason: fmt.Sprintf("duplicate submission: same image submitted recently %.3f km away", distance),
		}
	}

	// Same image content but far away: treat as a different real-world
	// occurrence of a similar-looking scene.
	return nil
}

// Record writes a fresh dedup record for the hash with a renewed TTL,
// unconditionally overwriting any prior value. Called only after the whole
// pipeline has completed.
func (d *DuplicateChecker) Record(ctx context.Context, imageHash string, record models.DedupRecord) error {
	value, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal dedup record: %w", err)
	}
	if err := d.store.SetWithTTL(ctx, dedupKeyPrefix+imageHash, string(value), d.window); err != nil {
		return &models.UpstreamError{Service: "cache store", Err: err}
	}
	return nil
}
