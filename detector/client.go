package detector

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"time"

	"github.com/apex/log"

	"fraud-verify-service/models"
)

// Client handles communication with the object detection model service.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

type detectRequest struct {
	Image string `json:"image"`
}

type wireBox struct {
	X1 int `json:"x1"`
	Y1 int `json:"y1"`
	X2 int `json:"x2"`
	Y2 int `json:"y2"`
}

type wireDetection struct {
	ClassID    int     `json:"class_id"`
	Confidence float64 `json:"confidence"`
	BBox       wireBox `json:"bbox"`
}

type detectResponse struct {
	Status      string          `json:"status"`
	Detections  []wireDetection `json:"detections"`
	ImageWidth  int             `json:"image_width"`
	ImageHeight int             `json:"image_height"`
}

// NewClient creates a new detection model client.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Detect sends an image to the model service and maps the raw model
// output into detection results with per-box and total area coverage.
// Any failure surfaces as an UpstreamError; the engine never retries.
func (c *Client) Detect(ctx context.Context, imageData []byte) (*models.DetectionResult, error) {
	requestBody, err := json.Marshal(detectRequest{
		Image: base64.StdEncoding.EncodeToString(imageData),
	})
	if err != nil {
		return nil, &models.UpstreamError{Service: "detector", Err: fmt.Errorf("failed to marshal request: %w", err)}
	}

	url := c.baseURL + "/detect"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(requestBody))
	if err != nil {
		return nil, &models.UpstreamError{Service: "detector", Err: fmt.Errorf("failed to create request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")

	log.Infof("Sending image to detection service: %s, image size: %d bytes", url, len(imageData))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &models.UpstreamError{Service: "detector", Err: fmt.Errorf("failed to call detection service: %w", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &models.UpstreamError{Service: "detector", Err: fmt.Errorf("detection service returned status %d", resp.StatusCode)}
	}

	var response detectResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, &models.UpstreamError{Service: "detector", Err: fmt.Errorf("failed to decode response: %w", err)}
	}

	if response.Status != "completed" {
		return nil, &models.UpstreamError{Service: "detector", Err: fmt.Errorf("detection service returned status: %s", response.Status)}
	}

	result := buildResult(&response)
	log.Infof("Detection completed: %d issues found", result.NumDetections)
	return result, nil
}

func buildResult(resp *detectResponse) *models.DetectionResult {
	totalPixels := float64(resp.ImageWidth * resp.ImageHeight)

	detections := make([]models.Detection, 0, len(resp.Detections))
	totalIssueArea := 0.0
	for _, d := range resp.Detections {
		boxArea := float64((d.BBox.X2 - d.BBox.X1) * (d.BBox.Y2 - d.BBox.Y1))
		totalIssueArea += boxArea

		areaPercentage := 0.0
		if totalPixels > 0 {
			areaPercentage = boxArea / totalPixels * 100
		}

		detections = append(detections, models.Detection{
			IssueType:      models.IssueTypeFromClass(d.ClassID),
			Confidence:     round(d.Confidence, 3),
			BBox:           models.BoundingBox(d.BBox),
			AreaPercentage: round(areaPercentage, 2),
		})
	}

	totalAreaPercentage := 0.0
	if totalPixels > 0 {
		totalAreaPercentage = totalIssueArea / totalPixels * 100
	}

	return &models.DetectionResult{
		Detected:            len(detections) > 0,
		NumDetections:       len(detections),
		Detections:          detections,
		TotalAreaPercentage: round(totalAreaPercentage, 2),
		ImageWidth:          resp.ImageWidth,
		ImageHeight:         resp.ImageHeight,
	}
}

func round(v float64, places int) float64 {
	factor := math.Pow(10, float64(places))
	return math.Round(v*factor) / factor
}
