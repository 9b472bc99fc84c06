package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/saturnino-fabrica-de-software/chamada/internal/audit"
	"github.com/saturnino-fabrica-de-software/chamada/internal/domain"
)

// Live event types pushed to websocket subscribers.
const (
	EventStudentEnrolled   = "student.enrolled"
	EventStudentRecognized = "student.recognized"
	EventAttendanceMarked  = "attendance.marked"
)

// EmbeddingPipeline is the frame-to-embedding path, satisfied by *face.Pipeline.
type EmbeddingPipeline interface {
	Regions(ctx context.Context, frame *domain.Frame) ([]domain.FaceRegion, error)
	EmbedRegion(ctx context.Context, frame *domain.Frame, region domain.FaceRegion) (domain.Embedding, error)
	EmbedPrimary(ctx context.Context, frame *domain.Frame) (domain.Embedding, domain.FaceRegion, error)
}

// Publisher fans events out to live subscribers (internal/ws, internal/webhook).
// Publish must not block.
type Publisher interface {
	Publish(eventType string, data any)
}

type noopPublisher struct{}

func (noopPublisher) Publish(string, any) {}

// Publishers sends every event to each publisher in turn.
type Publishers []Publisher

func (ps Publishers) Publish(eventType string, data any) {
	for _, p := range ps {
		p.Publish(eventType, data)
	}
}

// deps are the collaborators every service shares.
type deps struct {
	audit  audit.Logger
	events Publisher
	newID  func() string
	now    func() time.Time
	logger *slog.Logger
}

// Option configura dependências opcionais dos serviços
type Option func(*deps)

// WithAuditLogger records biometric audit events.
func WithAuditLogger(l audit.Logger) Option {
	return func(d *deps) {
		if l != nil {
			d.audit = l
		}
	}
}

// WithPublisher pushes live events, usually to the websocket hub.
func WithPublisher(p Publisher) Option {
	return func(d *deps) {
		if p != nil {
			d.events = p
		}
	}
}

// WithIDGenerator overrides uuid v4 allocation.
func WithIDGenerator(fn func() string) Option {
	return func(d *deps) {
		if fn != nil {
			d.newID = fn
		}
	}
}

// WithClock overrides time.Now.
func WithClock(fn func() time.Time) Option {
	return func(d *deps) {
		if fn != nil {
			d.now = fn
		}
	}
}

func newDeps(logger *slog.Logger, component string, opts []Option) deps {
	if logger == nil {
		logger = slog.Default()
	}
	d := deps{
		audit:  &audit.NoOpLogger{},
		events: noopPublisher{},
		newID:  uuid.NewString,
		now:    time.Now,
		logger: logger.With("component", component),
	}
	for _, opt := range opts {
		opt(&d)
	}
	return d
}

// record logs an audit event; audit failures never fail the operation.
func (d deps) record(ctx context.Context, event audit.Event) {
	if err := d.audit.Log(ctx, event); err != nil {
		d.logger.WarnContext(ctx, "failed to write audit event",
			slog.String("event_type", string(event.EventType)),
			slog.String("error", err.Error()),
		)
	}
}

// errorCode returns the AppError code of err, or INTERNAL_ERROR.
func errorCode(err error) string {
	var appErr *domain.AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return domain.ErrInternal.Code
}
