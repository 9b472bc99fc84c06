package handler

import (
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/saturnino-fabrica-de-software/chamada/internal/domain"
	"github.com/saturnino-fabrica-de-software/chamada/internal/service"
)

// RecognizeResponse response for recognize endpoints
type RecognizeResponse struct {
	Matched   bool                `json:"matched"`
	StudentID string              `json:"student_id,omitempty"`
	Name      string              `json:"name,omitempty"`
	Distance  float64             `json:"distance"`
	Region    *domain.FaceRegion  `json:"region,omitempty"`
	Regions   []domain.FaceRegion `json:"regions"`
	LatencyMs int64               `json:"latency_ms"`
}

func newRecognizeResponse(r *service.Recognition, started time.Time) RecognizeResponse {
	out := RecognizeResponse{
		Matched:   r.Matched,
		StudentID: r.StudentID,
		Distance:  r.Distance,
		Region:    r.Region,
		Regions:   r.Regions,
		LatencyMs: time.Since(started).Milliseconds(),
	}
	if r.Student != nil {
		out.Name = r.Student.Name
	}
	if out.Regions == nil {
		out.Regions = []domain.FaceRegion{}
	}
	return out
}

// RecognitionHandler handles recognition requests
type RecognitionHandler struct {
	recognizer Recognizer
	camera     FrameSource
	logger     *slog.Logger
}

func NewRecognitionHandler(recognizer Recognizer, camera FrameSource, logger *slog.Logger) *RecognitionHandler {
	return &RecognitionHandler{
		recognizer: recognizer,
		camera:     camera,
		logger:     logger,
	}
}

// Recognize POST /v1/recognize - recognise an uploaded frame
func (h *RecognitionHandler) Recognize(c *fiber.Ctx) error {
	started := time.Now()

	imageBytes, err := extractAndValidateImage(c)
	if err != nil {
		return err
	}

	result, err := h.recognizer.Recognize(c.UserContext(), imageBytes)
	if err != nil {
		return err
	}
	return c.JSON(newRecognizeResponse(result, started))
}

// Capture POST /v1/recognize/capture - recognise the next camera frame
func (h *RecognitionHandler) Capture(c *fiber.Ctx) error {
	started := time.Now()

	frame, err := capture(c.UserContext(), h.camera)
	if err != nil {
		return err
	}

	result, err := h.recognizer.RecognizeFrame(c.UserContext(), frame)
	if err != nil {
		return err
	}
	return c.JSON(newRecognizeResponse(result, started))
}
