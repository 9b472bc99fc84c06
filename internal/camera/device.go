package camera

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/saturnino-fabrica-de-software/chamada/internal/domain"
)

// Device is a capture device that can be opened into a frame stream.
type Device interface {
	// Open returns a stream or a CAMERA_UNAVAILABLE error.
	Open(ctx context.Context) (Stream, error)
}

// Stream is an open device handle. ReadFrame blocks until the next frame and
// returns domain.ErrEndOfStream once the stream is exhausted or closed.
// Close must unblock a pending ReadFrame.
type Stream interface {
	ReadFrame() (*domain.Frame, error)
	Close() error
}

// FileDevice replays a still image at a fixed interval. Useful on machines
// without a webcam and in tests.
type FileDevice struct {
	Path     string
	Interval time.Duration
}

func NewFileDevice(path string, fps int) *FileDevice {
	if fps <= 0 {
		fps = 1
	}
	return &FileDevice{Path: path, Interval: time.Second / time.Duration(fps)}
}

func (d *FileDevice) Open(_ context.Context) (Stream, error) {
	data, err := os.ReadFile(d.Path)
	if err != nil {
		return nil, domain.ErrCameraUnavailable.WithError(fmt.Errorf("open %s: %w", d.Path, err))
	}
	frame, err := domain.NewFrame(data, time.Time{})
	if err != nil {
		return nil, domain.ErrCameraUnavailable.WithError(fmt.Errorf("decode %s: %w", d.Path, err))
	}

	interval := d.Interval
	if interval <= 0 {
		interval = time.Second
	}

	return &fileStream{
		frame:  *frame,
		ticker: time.NewTicker(interval),
		done:   make(chan struct{}),
	}, nil
}

type fileStream struct {
	frame  domain.Frame
	ticker *time.Ticker
	done   chan struct{}
	once   sync.Once
}

func (s *fileStream) ReadFrame() (*domain.Frame, error) {
	select {
	case <-s.done:
		return nil, domain.ErrEndOfStream
	case t := <-s.ticker.C:
		f := s.frame
		f.CapturedAt = t
		return &f, nil
	}
}

func (s *fileStream) Close() error {
	s.once.Do(func() {
		s.ticker.Stop()
		close(s.done)
	})
	return nil
}
