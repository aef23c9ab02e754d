package handler

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/fleveque/crm-service/internal/middleware"
	"github.com/fleveque/crm-service/internal/model"
	"github.com/fleveque/crm-service/internal/service"
)

// ReportBuilder builds the raw-material report of a device.
// service.ReportService satisfies it.
type ReportBuilder interface {
	BuildReport(ctx context.Context, deviceID string) *model.DeviceReport
}

// DeviceDetector names the device shown in a base64 image.
// service.Detector satisfies it.
type DeviceDetector interface {
	DetectDevice(ctx context.Context, encoded string) (string, error)
}

// MaterialHandler serves device reports, either for a named device or for
// the device detected in a photo.
type MaterialHandler struct {
	reports  ReportBuilder
	detector DeviceDetector
	logger   *zap.Logger
}

// NewMaterialHandler creates a new MaterialHandler.
func NewMaterialHandler(reports ReportBuilder, detector DeviceDetector, logger *zap.Logger) *MaterialHandler {
	return &MaterialHandler{
		reports:  reports,
		detector: detector,
		logger:   logger,
	}
}

type detectRequest struct {
	Image string `json:"image" form:"image"`
}

// GetMaterials returns the report for a named device.
// Route: GET /materialApi?device=Iphone%208
//
// Individual LLM failures never fail the request; they show up as invalid
// material entries or unknown fields in the report.
func (h *MaterialHandler) GetMaterials(c *gin.Context) {
	device := strings.TrimSpace(c.Query("device"))
	if device == "" {
		c.String(http.StatusNotImplemented, "No device given")
		return
	}

	c.JSON(http.StatusOK, h.reports.BuildReport(c.Request.Context(), device))
}

// DetectMaterials detects the device in a photo, then returns its report.
// Route: POST /detectorApi with {"image": "<base64>"} or a form field "image".
func (h *MaterialHandler) DetectMaterials(c *gin.Context) {
	var req detectRequest
	// An empty JSON body has no image field at all: same answer as an empty one.
	if err := c.ShouldBind(&req); err != nil && !errors.Is(err, io.EOF) {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.String(http.StatusRequestEntityTooLarge, "Image too large")
			return
		}
		c.String(http.StatusBadRequest, "Invalid request body")
		return
	}
	if strings.TrimSpace(req.Image) == "" {
		c.String(http.StatusNotImplemented, "No image given")
		return
	}

	ctx := c.Request.Context()
	device, err := h.detector.DetectDevice(ctx, req.Image)
	if err != nil {
		if errors.Is(err, service.ErrInvalidImage) {
			c.String(http.StatusBadRequest, "Invalid image")
			return
		}
		h.logger.Error("device detection failed",
			zap.String("request_id", middleware.GetRequestID(c)),
			zap.Error(err),
		)
		c.String(http.StatusBadGateway, "Device detection failed")
		return
	}

	c.JSON(http.StatusOK, h.reports.BuildReport(ctx, device))
}
