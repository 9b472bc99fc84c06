package handler

import (
	"bufio"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/saturnino-fabrica-de-software/chamada/internal/domain"
)

const (
	feedBoundary  = "frame"
	feedKeepAlive = 5 * time.Second
)

// CameraHandler exposes the shared camera
type CameraHandler struct {
	camera    FrameSource
	logger    *slog.Logger
	keepAlive time.Duration
}

func NewCameraHandler(camera FrameSource, logger *slog.Logger) *CameraHandler {
	return &CameraHandler{camera: camera, logger: logger, keepAlive: feedKeepAlive}
}

// Feed GET /v1/camera/feed - multipart/x-mixed-replace stream. Each viewer
// is one latest-wins subscription, so slow viewers skip frames instead of
// slowing the camera down.
func (h *CameraHandler) Feed(c *fiber.Ctx) error {
	if h.camera == nil {
		return domain.ErrCameraUnavailable
	}

	frames, cancel := h.camera.Subscribe()

	c.Set(fiber.HeaderContentType, "multipart/x-mixed-replace; boundary="+feedBoundary)
	c.Set(fiber.HeaderCacheControl, "no-cache, no-store")
	c.Set(fiber.HeaderConnection, "close")

	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		defer cancel()
		if err := h.stream(w, frames); err != nil {
			h.logger.Debug("camera feed viewer left", slog.String("error", err.Error()))
		}
	})
	return nil
}

// stream writes frames until the subscription closes or a write fails. When
// the camera goes quiet the last part is repeated every keepAlive, so a
// viewer that left is noticed without waiting for the next frame.
func (h *CameraHandler) stream(w *bufio.Writer, frames <-chan *domain.Frame) error {
	ticker := time.NewTicker(h.keepAlive)
	defer ticker.Stop()

	var last []byte
	for {
		select {
		case frame, ok := <-frames:
			if !ok {
				return nil
			}
			last = frame.Data
			if err := writePart(w, last); err != nil {
				return err
			}
			ticker.Reset(h.keepAlive)
		case <-ticker.C:
			if err := keepAlive(w, last); err != nil {
				return err
			}
		}
	}
}

// keepAlive repeats the last part, or writes preamble bytes before the
// first one.
func keepAlive(w *bufio.Writer, last []byte) error {
	if last != nil {
		return writePart(w, last)
	}
	if _, err := w.WriteString("\r\n"); err != nil {
		return err
	}
	return w.Flush()
}

func writePart(w *bufio.Writer, data []byte) error {
	if _, err := fmt.Fprintf(w, "--%s\r\nContent-Type: %s\r\nContent-Length: %d\r\n\r\n",
		feedBoundary, http.DetectContentType(data), len(data)); err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		return err
	}
	if _, err := w.WriteString("\r\n"); err != nil {
		return err
	}
	return w.Flush()
}

// Snapshot GET /v1/camera/snapshot - the next frame as an image
func (h *CameraHandler) Snapshot(c *fiber.Ctx) error {
	frame, err := capture(c.UserContext(), h.camera)
	if err != nil {
		return err
	}
	c.Set(fiber.HeaderContentType, http.DetectContentType(frame.Data))
	c.Set(fiber.HeaderCacheControl, "no-cache, no-store")
	return c.Send(frame.Data)
}
