package imaging

import (
	"bytes"
	"fmt"
	"image"

	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/webp"

	"fraud-verify-service/models"
)

// Extractor implements the feature-extraction, similarity and capture
// metadata primitives over decoded pixels. All methods are pure.
type Extractor struct{}

// NewExtractor creates the pixel-level feature extractor.
func NewExtractor() *Extractor {
	return &Extractor{}
}

// grayImage is a decoded luminance plane on a 0-255 scale.
type grayImage struct {
	pix    []float64
	width  int
	height int
}

func (g *grayImage) at(x, y int) float64 {
	return g.pix[y*g.width+x]
}

func decodeImage(data []byte) (image.Image, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, &models.UpstreamError{Service: "feature extractor", Err: fmt.Errorf("failed to decode image: %w", err)}
	}
	return img, nil
}

func toGray(img image.Image) *grayImage {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	g := &grayImage{pix: make([]float64, w*h), width: w, height: h}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			r, gr, b, _ := img.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
			// ITU-R BT.601 luma on a 0-255 scale.
			g.pix[y*w+x] = (0.299*float64(r) + 0.587*float64(gr) + 0.114*float64(b)) / 257.0
		}
	}
	return g
}

// ExtractFeatures computes the image quality metrics the fraud signals
// trigger on.
func (e *Extractor) ExtractFeatures(data []byte) (*models.ImageFeatures, error) {
	img, err := decodeImage(data)
	if err != nil {
		return nil, err
	}

	gray := toGray(img)
	return &models.ImageFeatures{
		BlurScore:         laplacianVariance(gray),
		EdgeDensity:       edgeDensity(gray),
		SaturationMean:    saturationMean(img),
		HistogramVariance: histogramVariance(gray),
		MeanBrightness:    meanBrightness(gray),
	}, nil
}

// laplacianVariance is the classic focus/noise measure: variance of the
// 4-neighbor Laplacian over interior pixels. Sharp, noisy images score
// high; blurred or synthetically flattened ones score low.
func laplacianVariance(g *grayImage) float64 {
	if g.width < 3 || g.height < 3 {
		return 0
	}

	n := 0
	mean := 0.0
	responses := make([]float64, 0, (g.width-2)*(g.height-2))
	for y := 1; y < g.height-1; y++ {
		for x := 1; x < g.width-1; x++ {
			lap := g.at(x-1, y) + g.at(x+1, y) + g.at(x, y-1) + g.at(x, y+1) - 4*g.at(x, y)
			responses = append(responses, lap)
			mean += lap
			n++
		}
	}
	mean /= float64(n)

	variance := 0.0
	for _, v := range responses {
		d := v - mean
		variance += d * d
	}
	return variance / float64(n)
}

// edgeDensity is the fraction of pixels with a strong Sobel gradient.
const strongEdgeThreshold = 200.0

func edgeDensity(g *grayImage) float64 {
	if g.width < 3 || g.height < 3 {
		return 0
	}

	edges := 0
	total := (g.width - 2) * (g.height - 2)
	for y := 1; y < g.height-1; y++ {
		for x := 1; x < g.width-1; x++ {
			gx := g.at(x+1, y-1) + 2*g.at(x+1, y) + g.at(x+1, y+1) -
				g.at(x-1, y-1) - 2*g.at(x-1, y) - g.at(x-1, y+1)
			gy := g.at(x-1, y+1) + 2*g.at(x, y+1) + g.at(x+1, y+1) -
				g.at(x-1, y-1) - 2*g.at(x, y-1) - g.at(x+1, y-1)
			if gx*gx+gy*gy > strongEdgeThreshold*strongEdgeThreshold {
				edges++
			}
		}
	}
	return float64(edges) / float64(total)
}

func histogramVariance(g *grayImage) float64 {
	var hist [256]float64
	for _, v := range g.pix {
		bin := int(v)
		if bin < 0 {
			bin = 0
		}
		if bin > 255 {
			bin = 255
		}
		hist[bin]++
	}

	mean := float64(len(g.pix)) / 256.0
	variance := 0.0
	for _, count := range hist {
		d := count - mean
		variance += d * d
	}
	return variance / 256.0
}

func saturationMean(img image.Image) float64 {
	bounds := img.Bounds()
	total := 0.0
	n := 0
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, b, _ := img.At(x, y).RGBA()
			rf, gf, bf := float64(r)/257.0, float64(g)/257.0, float64(b)/257.0
			max := rf
			if gf > max {
				max = gf
			}
			if bf > max {
				max = bf
			}
			min := rf
			if gf < min {
				min = gf
			}
			if bf < min {
				min = bf
			}
			if max > 0 {
				total += (max - min) / max * 255.0
			}
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return total / float64(n)
}

func meanBrightness(g *grayImage) float64 {
	if len(g.pix) == 0 {
		return 0
	}
	total := 0.0
	for _, v := range g.pix {
		total += v
	}
	return total / float64(len(g.pix))
}
