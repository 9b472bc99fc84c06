package handler

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
)

const Version = "0.1.0"

// Pinger is the persistence health probe.
type Pinger interface {
	Ping(ctx context.Context) error
}

type HealthHandler struct {
	store  Pinger
	camera FrameSource
}

func NewHealthHandler(store Pinger, camera FrameSource) *HealthHandler {
	return &HealthHandler{store: store, camera: camera}
}

type HealthResponse struct {
	Status  string            `json:"status"`
	Version string            `json:"version,omitempty"`
	Checks  map[string]string `json:"checks,omitempty"`
}

func (h *HealthHandler) Health(c *fiber.Ctx) error {
	return c.JSON(HealthResponse{
		Status:  "ok",
		Version: Version,
	})
}

// Ready fails when persistence is down. The camera is reported but does
// not fail readiness, uploads keep working without it.
func (h *HealthHandler) Ready(c *fiber.Ctx) error {
	checks := map[string]string{}
	status := fiber.StatusOK

	if h.store != nil {
		ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
		defer cancel()
		if err := h.store.Ping(ctx); err != nil {
			checks["persistence"] = "down"
			status = fiber.StatusServiceUnavailable
		} else {
			checks["persistence"] = "up"
		}
	}

	switch {
	case h.camera == nil:
		checks["camera"] = "disabled"
	case h.camera.Available():
		checks["camera"] = "up"
	default:
		checks["camera"] = "down"
	}

	resp := HealthResponse{Status: "ready", Checks: checks}
	if status != fiber.StatusOK {
		resp.Status = "not_ready"
	}
	return c.Status(status).JSON(resp)
}
