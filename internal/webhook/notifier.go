package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
)

const (
	defaultQueueSize   = 256
	defaultMaxAttempts = 5
)

// Options tune delivery.
type Options struct {
	QueueSize       int
	MaxAttempts     int
	InitialInterval time.Duration
	Client          *http.Client
}

func DefaultOptions() Options {
	return Options{
		QueueSize:       defaultQueueSize,
		MaxAttempts:     defaultMaxAttempts,
		InitialInterval: time.Second,
		Client:          &http.Client{Timeout: 10 * time.Second},
	}
}

// Notifier POSTs signed domain events to the configured endpoints. Publish
// never blocks the caller: deliveries are queued and sent by Run, and a
// full queue drops the event with a warning.
type Notifier struct {
	endpoints []Endpoint
	opts      Options
	queue     chan delivery
	logger    *slog.Logger
	now       func() time.Time
}

func NewNotifier(endpoints []Endpoint, opts Options, logger *slog.Logger) *Notifier {
	def := DefaultOptions()
	if opts.QueueSize <= 0 {
		opts.QueueSize = def.QueueSize
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = def.MaxAttempts
	}
	if opts.InitialInterval <= 0 {
		opts.InitialInterval = def.InitialInterval
	}
	if opts.Client == nil {
		opts.Client = def.Client
	}

	return &Notifier{
		endpoints: endpoints,
		opts:      opts,
		queue:     make(chan delivery, opts.QueueSize),
		logger:    logger.With("component", "webhook"),
		now:       time.Now,
	}
}

// Publish implements service.Publisher.
func (n *Notifier) Publish(eventType string, data any) {
	event := EventPayload{
		ID:        uuid.New(),
		Type:      eventType,
		Data:      data,
		Timestamp: n.now().UTC(),
	}
	payload, err := json.Marshal(event)
	if err != nil {
		n.logger.Error("marshal event", slog.String("event", eventType), slog.Any("error", err))
		return
	}

	for _, ep := range n.endpoints {
		if !ep.wants(eventType) {
			continue
		}
		select {
		case n.queue <- delivery{endpoint: ep, id: event.ID, event: eventType, payload: payload}:
		default:
			n.logger.Warn("webhook queue full, event dropped",
				slog.String("event", eventType),
				slog.String("url", ep.URL),
			)
		}
	}
}

// Run delivers queued events until ctx is cancelled.
func (n *Notifier) Run(ctx context.Context) error {
	n.logger.Info("webhook worker started", slog.Int("endpoints", len(n.endpoints)))

	for {
		select {
		case <-ctx.Done():
			n.logger.Info("webhook worker stopped", slog.Int("pending", len(n.queue)))
			return nil
		case d := <-n.queue:
			if err := n.deliver(ctx, d); err != nil && ctx.Err() == nil {
				n.logger.Warn("webhook delivery failed",
					slog.String("event", d.event),
					slog.String("url", d.endpoint.URL),
					slog.String("delivery_id", d.id.String()),
					slog.Any("error", err),
				)
			}
		}
	}
}

// deliver retries transport errors, 429 and 5xx with exponential backoff.
// Any other 4xx is permanent.
func (n *Notifier) deliver(ctx context.Context, d delivery) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = n.opts.InitialInterval
	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(n.opts.MaxAttempts-1)), ctx)

	attempt := 0
	return backoff.Retry(func() error {
		attempt++
		err := n.send(ctx, d)
		if err != nil {
			n.logger.Debug("webhook attempt failed",
				slog.String("url", d.endpoint.URL),
				slog.Int("attempt", attempt),
				slog.Any("error", err),
			)
		}
		return err
	}, policy)
}

type statusError struct {
	code int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("HTTP %d", e.code)
}

func (n *Notifier) send(ctx context.Context, d delivery) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.endpoint.URL, bytes.NewReader(d.payload))
	if err != nil {
		return backoff.Permanent(fmt.Errorf("create request: %w", err))
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "Chamada-Webhook/1.0")
	req.Header.Set(HeaderEvent, d.event)
	req.Header.Set(HeaderDelivery, d.id.String())
	if d.endpoint.Secret != "" {
		req.Header.Set(HeaderSignature, Sign(d.endpoint.Secret, d.payload))
	}

	resp, err := n.opts.Client.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	switch {
	case resp.StatusCode < 400:
		return nil
	case resp.StatusCode == http.StatusTooManyRequests, resp.StatusCode >= 500:
		return &statusError{code: resp.StatusCode}
	default:
		return backoff.Permanent(&statusError{code: resp.StatusCode})
	}
}

// IsPermanent reports whether err came from a rejected delivery.
func IsPermanent(err error) bool {
	var se *statusError
	return errors.As(err, &se) && se.code < 500 && se.code != http.StatusTooManyRequests
}
