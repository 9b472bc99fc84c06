// Package camera owns the single video capture device of the process. One
// loop goroutine reads the device and publishes the most recent frame to
// every subscriber through capacity-1 channels; nobody else touches the
// device.
package camera

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/saturnino-fabrica-de-software/chamada/internal/domain"
)

// Options configure a Source.
type Options struct {
	// CaptureTimeout bounds Capture when ctx carries no earlier deadline.
	CaptureTimeout time.Duration
	// ReopenInterval and MaxReopenInterval bound the reconnect backoff.
	ReopenInterval    time.Duration
	MaxReopenInterval time.Duration
}

func DefaultOptions() Options {
	return Options{
		CaptureTimeout:    5 * time.Second,
		ReopenInterval:    500 * time.Millisecond,
		MaxReopenInterval: 10 * time.Second,
	}
}

type state int32

const (
	stateIdle state = iota
	stateRunning
	stateClosed
)

// Source is the Frame Source: one owner of the device, many readers.
type Source struct {
	dev    Device
	opts   Options
	logger *slog.Logger

	state     atomic.Int32
	available atomic.Bool

	mu      sync.Mutex
	stream  Stream
	latest  *domain.Frame
	subs    map[uint64]chan *domain.Frame
	nextSub uint64

	cancel context.CancelFunc
	done   chan struct{}
}

func NewSource(dev Device, opts Options, logger *slog.Logger) *Source {
	def := DefaultOptions()
	if opts.CaptureTimeout <= 0 {
		opts.CaptureTimeout = def.CaptureTimeout
	}
	if opts.ReopenInterval <= 0 {
		opts.ReopenInterval = def.ReopenInterval
	}
	if opts.MaxReopenInterval <= 0 {
		opts.MaxReopenInterval = def.MaxReopenInterval
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Source{
		dev:    dev,
		opts:   opts,
		logger: logger.With("component", "camera"),
		subs:   make(map[uint64]chan *domain.Frame),
		done:   make(chan struct{}),
	}
}

// Start opens the device and launches the capture loop. It fails with
// CAMERA_UNAVAILABLE when the device cannot be opened; later read failures
// are retried in the background.
func (s *Source) Start(ctx context.Context) error {
	if !s.state.CompareAndSwap(int32(stateIdle), int32(stateRunning)) {
		return fmt.Errorf("camera source already started or closed")
	}

	stream, err := s.dev.Open(ctx)
	if err != nil {
		s.state.Store(int32(stateClosed))
		close(s.done)
		if errors.Is(err, domain.ErrCameraUnavailable) {
			return err
		}
		return domain.ErrCameraUnavailable.WithError(err)
	}

	loopCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.mu.Lock()
	if state(s.state.Load()) == stateClosed {
		// Close ran while the device was opening and is waiting on done.
		s.mu.Unlock()
		cancel()
		_ = stream.Close()
		close(s.done)
		return domain.ErrCameraUnavailable.WithError(errors.New("camera source closed during start"))
	}
	s.stream = stream
	s.cancel = cancel
	s.mu.Unlock()
	s.available.Store(true)

	go s.run(loopCtx, stream)

	s.logger.Info("camera started")
	return nil
}

func (s *Source) run(ctx context.Context, stream Stream) {
	defer close(s.done)

	for {
		err := s.pump(stream)
		s.available.Store(false)
		s.dropStream(stream)

		if ctx.Err() != nil {
			return
		}
		s.logger.Warn("camera stream interrupted, reopening", "error", err)

		stream = s.reopen(ctx)
		if stream == nil {
			return
		}
		s.available.Store(true)
		s.logger.Info("camera reopened")
	}
}

// pump publishes frames until the stream fails.
func (s *Source) pump(stream Stream) error {
	for {
		frame, err := stream.ReadFrame()
		if err != nil {
			if errors.Is(err, domain.ErrInvalidImage) {
				s.logger.Debug("skipping undecodable frame", "error", err)
				continue
			}
			return err
		}
		s.publish(frame)
	}
}

func (s *Source) reopen(ctx context.Context) Stream {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.opts.ReopenInterval
	b.MaxInterval = s.opts.MaxReopenInterval
	b.MaxElapsedTime = 0

	var stream Stream
	op := func() error {
		st, err := s.dev.Open(ctx)
		if err != nil {
			return err
		}
		stream = st
		return nil
	}
	notify := func(err error, next time.Duration) {
		s.logger.Debug("camera reopen failed", "error", err, "retry_in", next)
	}

	if err := backoff.RetryNotify(op, backoff.WithContext(b, ctx), notify); err != nil {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if ctx.Err() != nil {
		_ = stream.Close()
		return nil
	}
	s.stream = stream
	return stream
}

// dropStream closes stream unless Close already did.
func (s *Source) dropStream(stream Stream) {
	s.mu.Lock()
	owned := s.stream == stream
	if owned {
		s.stream = nil
	}
	s.mu.Unlock()

	if owned {
		_ = stream.Close()
	}
}

func (s *Source) publish(frame *domain.Frame) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.latest = frame
	for _, ch := range s.subs {
		offer(ch, frame)
	}
}

// offer replaces any unread frame in ch with frame.
func offer(ch chan *domain.Frame, frame *domain.Frame) {
	select {
	case ch <- frame:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- frame:
	default:
	}
}

// Subscribe returns a latest-wins channel of frames and a function that
// cancels the subscription. The channel is closed on cancel or Close.
func (s *Source) Subscribe() (<-chan *domain.Frame, func()) {
	ch := make(chan *domain.Frame, 1)

	s.mu.Lock()
	if state(s.state.Load()) == stateClosed {
		s.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	id := s.nextSub
	s.nextSub++
	s.subs[id] = ch
	s.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			if c, ok := s.subs[id]; ok {
				delete(s.subs, id)
				close(c)
			}
		})
	}
}

// Latest returns the most recently published frame.
func (s *Source) Latest() (*domain.Frame, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.latest, s.latest != nil
}

// Available reports whether the device is currently streaming.
func (s *Source) Available() bool {
	return s.available.Load()
}

// Capture blocks until the next published frame. It gives up with
// CAMERA_TIMEOUT after Options.CaptureTimeout (or the ctx deadline, if
// sooner) and fails immediately with CAMERA_UNAVAILABLE when the source is
// not running.
func (s *Source) Capture(ctx context.Context) (*domain.Frame, error) {
	if state(s.state.Load()) != stateRunning {
		return nil, domain.ErrCameraUnavailable.WithError(errors.New("camera source is not running"))
	}

	frames, cancel := s.Subscribe()
	defer cancel()

	timer := time.NewTimer(s.opts.CaptureTimeout)
	defer timer.Stop()

	select {
	case f, ok := <-frames:
		if !ok {
			return nil, domain.ErrCameraUnavailable.WithError(errors.New("camera source closed"))
		}
		return f, nil
	case <-timer.C:
		return nil, s.timeoutErr()
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, s.timeoutErr()
		}
		return nil, ctx.Err()
	}
}

func (s *Source) timeoutErr() error {
	if !s.available.Load() {
		return domain.ErrCameraTimeout.WithError(errors.New("device unavailable"))
	}
	return domain.ErrCameraTimeout
}

// Close stops the loop, releases the device and closes every subscription.
// It is safe to call more than once.
func (s *Source) Close() error {
	prev := state(s.state.Swap(int32(stateClosed)))
	if prev == stateClosed {
		return nil
	}
	if prev == stateIdle {
		close(s.done)
	}

	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	stream := s.stream
	s.stream = nil
	for id, ch := range s.subs {
		delete(s.subs, id)
		close(ch)
	}
	s.mu.Unlock()

	var err error
	if stream != nil {
		err = stream.Close()
	}
	<-s.done

	s.available.Store(false)
	s.logger.Info("camera stopped")
	return err
}
