package validation

import (
	"bytes"
	"image"
	"path/filepath"
	"strings"

	// Registered decoders back the corruption check in ValidateImage.
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/webp"

	"fraud-verify-service/models"
)

var allowedExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".webp": true,
}

// ImageLimits are the admissibility bounds for submitted photos.
type ImageLimits struct {
	MaxBytes  int
	MinWidth  int
	MinHeight int
}

// ValidateImage decides admissibility of raw image bytes. It is a pure
// predicate: no side effects, a structured reason on rejection.
func ValidateImage(data []byte, filename string, limits ImageLimits) (*models.ImageInfo, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	if !allowedExtensions[ext] {
		return nil, models.NewValidationError(models.CodeInvalidFormat,
			"invalid file format %q, allowed: jpg, jpeg, png, webp", ext)
	}

	if len(data) > limits.MaxBytes {
		return nil, models.NewValidationError(models.CodePayloadTooLarge,
			"image size %d exceeds %d byte limit", len(data), limits.MaxBytes)
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, models.NewValidationError(models.CodeCorruptImage,
			"image cannot be decoded: %v", err)
	}

	if cfg.Width < limits.MinWidth || cfg.Height < limits.MinHeight {
		return nil, models.NewValidationError(models.CodeResolutionTooLow,
			"image resolution %dx%d below minimum %dx%d",
			cfg.Width, cfg.Height, limits.MinWidth, limits.MinHeight)
	}

	return &models.ImageInfo{
		Width:     cfg.Width,
		Height:    cfg.Height,
		Format:    format,
		SizeBytes: len(data),
	}, nil
}
