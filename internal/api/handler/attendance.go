package handler

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/saturnino-fabrica-de-software/chamada/internal/domain"
)

// AttendanceHandler marks presence for a class
type AttendanceHandler struct {
	marker AttendanceMarker
	camera FrameSource
	logger *slog.Logger
}

func NewAttendanceHandler(marker AttendanceMarker, camera FrameSource, logger *slog.Logger) *AttendanceHandler {
	return &AttendanceHandler{
		marker: marker,
		camera: camera,
		logger: logger,
	}
}

// Mark POST /v1/attendance - class_id plus an uploaded image, or the next
// camera frame when no image is sent
func (h *AttendanceHandler) Mark(c *fiber.Ctx) error {
	classID := strings.TrimSpace(c.FormValue("class_id"))
	if classID == "" {
		classID = strings.TrimSpace(c.Query("class_id"))
	}
	if classID == "" {
		return domain.ErrValidationFailed.WithError(validationErrors{"class_id": "required"})
	}

	ctx := c.UserContext()

	if hasImage(c) {
		imageBytes, err := extractAndValidateImage(c)
		if err != nil {
			return err
		}
		result, err := h.marker.Mark(ctx, classID, imageBytes)
		if err != nil {
			return err
		}
		return c.JSON(result)
	}

	frame, err := capture(ctx, h.camera)
	if err != nil {
		return fmt.Errorf("attendance %s: %w", classID, err)
	}
	result, err := h.marker.MarkFrame(ctx, classID, frame)
	if err != nil {
		return err
	}
	return c.JSON(result)
}
