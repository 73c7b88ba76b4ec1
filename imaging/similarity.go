package imaging

import (
	"image"

	"golang.org/x/image/draw"
)

// SSIM stabilization constants for 8-bit dynamic range.
const (
	ssimC1 = (0.01 * 255) * (0.01 * 255)
	ssimC2 = (0.03 * 255) * (0.03 * 255)
)

// Similarity computes the structural similarity between two images on a
// [0, 1] scale. The after image is resized to the before image's pixel
// dimensions and both are compared as grayscale. A global SSIM score is
// enough here, per-pixel similarity maps are not needed.
func (e *Extractor) Similarity(beforeData, afterData []byte) (float64, error) {
	beforeImg, err := decodeImage(beforeData)
	if err != nil {
		return 0, err
	}
	afterImg, err := decodeImage(afterData)
	if err != nil {
		return 0, err
	}

	before := toGray(beforeImg)
	after := toGray(resizeTo(afterImg, before.width, before.height))

	return globalSSIM(before, after), nil
}

func resizeTo(img image.Image, width, height int) image.Image {
	bounds := img.Bounds()
	if bounds.Dx() == width && bounds.Dy() == height {
		return img
	}
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, bounds, draw.Src, nil)
	return dst
}

func globalSSIM(a, b *grayImage) float64 {
	n := float64(len(a.pix))
	if n == 0 || len(a.pix) != len(b.pix) {
		return 0
	}

	meanA, meanB := 0.0, 0.0
	for i := range a.pix {
		meanA += a.pix[i]
		meanB += b.pix[i]
	}
	meanA /= n
	meanB /= n

	varA, varB, cov := 0.0, 0.0, 0.0
	for i := range a.pix {
		da := a.pix[i] - meanA
		db := b.pix[i] - meanB
		varA += da * da
		varB += db * db
		cov += da * db
	}
	varA /= n
	varB /= n
	cov /= n

	score := ((2*meanA*meanB + ssimC1) * (2*cov + ssimC2)) /
		((meanA*meanA + meanB*meanB + ssimC1) * (varA + varB + ssimC2))

	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}
