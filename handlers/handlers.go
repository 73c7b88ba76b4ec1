package handlers

import (
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/apex/log"
	"github.com/gin-gonic/gin"

	"fraud-verify-service/models"
	"fraud-verify-service/service"
)

// Handlers is the thin web layer over the decision engine.
type Handlers struct {
	svc *service.Service
}

// NewHandlers creates new HTTP handlers.
func NewHandlers(svc *service.Service) *Handlers {
	return &Handlers{svc: svc}
}

// HealthCheck handles health check requests.
func (h *Handlers) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "fraud-verify-service",
	})
}

// DetectIssue handles a new issue submission with fraud prevention.
func (h *Handlers) DetectIssue(c *gin.Context) {
	imageData, filename, ok := readUpload(c, "image")
	if !ok {
		return
	}

	timestamp, err := time.Parse(time.RFC3339, c.PostForm("timestamp"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "timestamp must be RFC3339"})
		return
	}

	deviceID := c.PostForm("device_id")
	if deviceID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "device_id is required"})
		return
	}

	resp, err := h.svc.SubmitIssue(c.Request.Context(), service.SubmitRequest{
		Image:     imageData,
		Filename:  filename,
		Latitude:  c.PostForm("latitude"),
		Longitude: c.PostForm("longitude"),
		DeviceID:  deviceID,
		Timestamp: timestamp,
	})
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":          true,
		"detection":        resp.Detection,
		"fraud_assessment": resp.FraudAssessment,
		"gps_validation":   resp.GPSValidation,
		"metadata":         resp.Metadata,
	})
}

// VerifyCompletion handles a completion claim with its before/after pair.
func (h *Handlers) VerifyCompletion(c *gin.Context) {
	taskID := c.PostForm("task_id")
	if taskID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "task_id is required"})
		return
	}

	beforeData, beforeName, ok := readUpload(c, "before_image")
	if !ok {
		return
	}
	afterData, afterName, ok := readUpload(c, "after_image")
	if !ok {
		return
	}

	result, err := h.svc.VerifyCompletion(c.Request.Context(), service.VerifyRequest{
		TaskID:         taskID,
		BeforeImage:    beforeData,
		BeforeFilename: beforeName,
		AfterImage:     afterData,
		AfterFilename:  afterName,
		Latitude:       c.PostForm("latitude"),
		Longitude:      c.PostForm("longitude"),
	})
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":      true,
		"task_id":      taskID,
		"verification": result,
	})
}

func readUpload(c *gin.Context, field string) ([]byte, string, bool) {
	file, header, err := c.Request.FormFile(field)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": field + " file is required"})
		return nil, "", false
	}
	defer func(f multipart.File) { _ = f.Close() }(file)

	data, err := io.ReadAll(file)
	if err != nil {
		log.Errorf("Failed to read uploaded %s: %v", field, err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read " + field})
		return nil, "", false
	}
	return data, header.Filename, true
}

// writeError maps the engine's error taxonomy onto HTTP statuses:
// validation faults 400, duplicates 409, upstream unavailability 502.
func writeError(c *gin.Context, err error) {
	var validationErr *models.ValidationError
	if errors.As(err, &validationErr) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": validationErr.Reason,
			"code":  validationErr.Code,
		})
		return
	}

	var conflictErr *models.ConflictError
	if errors.As(err, &conflictErr) {
		c.JSON(http.StatusConflict, gin.H{"error": conflictErr.Reason})
		return
	}

	var upstreamErr *models.UpstreamError
	if errors.As(err, &upstreamErr) {
		log.Errorf("Upstream failure: %v", upstreamErr)
		c.JSON(http.StatusBadGateway, gin.H{"error": upstreamErr.Service + " unavailable"})
		return
	}

	log.Errorf("Unexpected error: %v", err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
}
