package repository

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/saturnino-fabrica-de-software/chamada/internal/domain"
)

// RetryPolicy bounds how transient failures are retried.
type RetryPolicy struct {
	Attempts        int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// DefaultRetryPolicy makes three attempts, 100ms then 200ms apart.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		Attempts:        3,
		InitialInterval: 100 * time.Millisecond,
		MaxInterval:     2 * time.Second,
	}
}

// RetryingGateway retries transient failures of the wrapped Gateway and
// converts what is left into domain.ErrPersistence. Domain errors such as
// not found or duplicates pass through untouched on the first attempt.
type RetryingGateway struct {
	next   Gateway
	policy RetryPolicy
	logger *slog.Logger
}

var _ Gateway = (*RetryingGateway)(nil)

func NewRetryingGateway(next Gateway, policy RetryPolicy, logger *slog.Logger) *RetryingGateway {
	if policy.Attempts < 1 {
		policy.Attempts = 1
	}
	if policy.InitialInterval <= 0 {
		policy.InitialInterval = DefaultRetryPolicy().InitialInterval
	}
	if policy.MaxInterval < policy.InitialInterval {
		policy.MaxInterval = policy.InitialInterval
	}
	return &RetryingGateway{
		next:   next,
		policy: policy,
		logger: logger.With("component", "persistence"),
	}
}

func (g *RetryingGateway) newBackOff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = g.policy.InitialInterval
	b.MaxInterval = g.policy.MaxInterval
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxElapsedTime = 0
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(g.policy.Attempts-1)), ctx)
}

func (g *RetryingGateway) do(ctx context.Context, op string, fn func() error) error {
	attempt := 0
	err := backoff.RetryNotify(func() error {
		attempt++
		err := fn()
		if err == nil || IsTransient(err) {
			return err
		}
		return backoff.Permanent(err)
	}, g.newBackOff(ctx), func(err error, wait time.Duration) {
		g.logger.WarnContext(ctx, "persistence operation failed, retrying",
			slog.String("op", op),
			slog.Int("attempt", attempt),
			slog.Duration("wait", wait),
			slog.String("error", err.Error()),
		)
	})
	if err == nil {
		return nil
	}

	var appErr *domain.AppError
	if errors.As(err, &appErr) && !IsTransient(err) {
		return err
	}

	g.logger.ErrorContext(ctx, "persistence operation failed",
		slog.String("op", op),
		slog.Int("attempts", attempt),
		slog.String("error", err.Error()),
	)
	return domain.ErrPersistence.WithError(err)
}

func (g *RetryingGateway) PutBlob(ctx context.Context, key string, data []byte) error {
	return g.do(ctx, "put_blob", func() error {
		return g.next.PutBlob(ctx, key, data)
	})
}

func (g *RetryingGateway) GetBlob(ctx context.Context, key string) ([]byte, error) {
	var out []byte
	err := g.do(ctx, "get_blob", func() error {
		var err error
		out, err = g.next.GetBlob(ctx, key)
		return err
	})
	return out, err
}

func (g *RetryingGateway) PutRecord(ctx context.Context, record *domain.StudentRecord) error {
	return g.do(ctx, "put_record", func() error {
		return g.next.PutRecord(ctx, record)
	})
}

func (g *RetryingGateway) GetRecord(ctx context.Context, id string) (*domain.StudentRecord, error) {
	var out *domain.StudentRecord
	err := g.do(ctx, "get_record", func() error {
		var err error
		out, err = g.next.GetRecord(ctx, id)
		return err
	})
	return out, err
}

func (g *RetryingGateway) ListRecords(ctx context.Context) ([]domain.StudentRecord, error) {
	var out []domain.StudentRecord
	err := g.do(ctx, "list_records", func() error {
		var err error
		out, err = g.next.ListRecords(ctx)
		return err
	})
	return out, err
}

func (g *RetryingGateway) FindByFingerprint(ctx context.Context, fingerprint string) (*domain.StudentRecord, error) {
	var out *domain.StudentRecord
	err := g.do(ctx, "find_by_fingerprint", func() error {
		var err error
		out, err = g.next.FindByFingerprint(ctx, fingerprint)
		return err
	})
	return out, err
}

func (g *RetryingGateway) IncrementAttendance(ctx context.Context, id, classID string) (int, error) {
	var out int
	err := g.do(ctx, "increment_attendance", func() error {
		var err error
		out, err = g.next.IncrementAttendance(ctx, id, classID)
		return err
	})
	return out, err
}

// Ping is not retried; readiness wants the current state.
func (g *RetryingGateway) Ping(ctx context.Context) error {
	return g.next.Ping(ctx)
}
