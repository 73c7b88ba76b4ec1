package fraud

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"fraud-verify-service/cache"
	"fraud-verify-service/models"
)

// latOffsetKm returns the latitude delta that moves a point the given
// distance along a meridian, where haversine is exact.
func latOffsetKm(km float64) float64 {
	return km / 6371.0 * 180 / math.Pi
}

func TestDuplicateCheckerConjunction(t *testing.T) {
	ctx := context.Background()
	baseLat, baseLon := 26.9, 75.8

	testCases := []struct {
		name       string
		recorded   bool
		lat        float64
		lon        float64
		wantReject bool
	}{
		{
			name:       "no prior record",
			recorded:   false,
			lat:        baseLat,
			lon:        baseLon,
			wantReject: false,
		},
		{
			name:       "same hash same spot",
			recorded:   true,
			lat:        baseLat,
			lon:        baseLon,
			wantReject: true,
		},
		{
			name:       "same hash 99 meters away",
			recorded:   true,
			lat:        baseLat + latOffsetKm(0.099),
			lon:        baseLon,
			wantReject: true,
		},
		{
			name:       "same hash 101 meters away",
			recorded:   true,
			lat:        baseLat + latOffsetKm(0.101),
			lon:        baseLon,
			wantReject: false,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			store := cache.NewMemoryStore()
			checker := NewDuplicateChecker(store, time.Hour, 0.1)

			if tc.recorded {
				err := checker.Record(ctx, "hash1", models.DedupRecord{
					Latitude:  baseLat,
					Longitude: baseLon,
					DeviceID:  "d1",
					Timestamp: time.Now(),
				})
				if err != nil {
					t.Fatalf("Record failed: %v", err)
				}
			}

			err := checker.Check(ctx, "hash1", tc.lat, tc.lon)
			var conflict *models.ConflictError
			gotReject := errors.As(err, &conflict)
			if gotReject != tc.wantReject {
				t.Errorf("reject = %t, want %t (err=%v)", gotReject, tc.wantReject, err)
			}
		})
	}
}

func TestDuplicateCheckerDifferentHashPasses(t *testing.T) {
	ctx := context.Background()
	store := cache.NewMemoryStore()
	checker := NewDuplicateChecker(store, time.Hour, 0.1)

	if err := checker.Record(ctx, "hash1", models.DedupRecord{Latitude: 26.9, Longitude: 75.8}); err != nil {
		t.Fatalf("Record failed: %v", err)
	}
	if err := checker.Check(ctx, "hash2", 26.9, 75.8); err != nil {
		t.Errorf("different hash at same spot should pass, got %v", err)
	}
}

func TestDuplicateCheckerWindowExpiry(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store := cache.NewMemoryStoreWithClock(func() time.Time { return now })
	checker := NewDuplicateChecker(store, time.Hour, 0.1)

	if err := checker.Record(ctx, "hash1", models.DedupRecord{Latitude: 26.9, Longitude: 75.8}); err != nil {
		t.Fatalf("Record failed: %v", err)
	}
	if err := checker.Check(ctx, "hash1", 26.9, 75.8); err == nil {
		t.Fatal("expected rejection inside the window")
	}

	now = now.Add(time.Hour + time.Minute)
	if err := checker.Check(ctx, "hash1", 26.9, 75.8); err != nil {
		t.Errorf("expected pass after window expiry, got %v", err)
	}
}

func TestDuplicateCheckerRecordOverwrites(t *testing.T) {
	ctx := context.Background()
	store := cache.NewMemoryStore()
	checker := NewDuplicateChecker(store, time.Hour, 0.1)

	if err := checker.Record(ctx, "hash1", models.DedupRecord{Latitude: 26.9, Longitude: 75.8, DeviceID: "d1"}); err != nil {
		t.Fatalf("Record failed: %v", err)
	}
	// Second record for the same hash replaces the first unconditionally.
	far := 26.9 + latOffsetKm(50)
	if err := checker.Record(ctx, "hash1", models.DedupRecord{Latitude: far, Longitude: 75.8, DeviceID: "d2"}); err != nil {
		t.Fatalf("Record failed: %v", err)
	}

	if err := checker.Check(ctx, "hash1", 26.9, 75.8); err != nil {
		t.Errorf("old location should no longer conflict, got %v", err)
	}
	if err := checker.Check(ctx, "hash1", far, 75.8); err == nil {
		t.Error("new location should conflict")
	}
}

func TestDuplicateCheckerMalformedRecordPasses(t *testing.T) {
	ctx := context.Background()
	store := cache.NewMemoryStore()
	checker := NewDuplicateChecker(store, time.Hour, 0.1)

	store.SetWithTTL(ctx, "submission:hash1", "not json", time.Hour)
	if err := checker.Check(ctx, "hash1", 26.9, 75.8); err != nil {
		t.Errorf("malformed record should not reject, got %v", err)
	}
}
