package imaging

import (
	"bytes"

	"github.com/apex/log"
	"github.com/rwcarlsen/goexif/exif"

	"fraud-verify-service/models"
)

// ExtractCaptureMetadata pulls the capture timestamp, device identity and
// embedded GPS position from the image header. Missing or malformed
// metadata is never fatal: checks that depend on it are skipped upstream,
// so this always returns a (possibly empty) result.
func (e *Extractor) ExtractCaptureMetadata(data []byte) *models.CaptureMetadata {
	meta := &models.CaptureMetadata{}

	x, err := exif.Decode(bytes.NewReader(data))
	if err != nil {
		log.Warnf("No EXIF data in image: %v", err)
		return meta
	}

	if ts, err := x.DateTime(); err == nil {
		meta.CaptureTimestamp = &ts
	}

	if tag, err := x.Get(exif.Make); err == nil {
		if v, err := tag.StringVal(); err == nil {
			meta.DeviceMake = v
		}
	}
	if tag, err := x.Get(exif.Model); err == nil {
		if v, err := tag.StringVal(); err == nil {
			meta.DeviceModel = v
		}
	}

	if lat, lon, err := x.LatLong(); err == nil {
		meta.Latitude = &lat
		meta.Longitude = &lon
	}

	return meta
}
