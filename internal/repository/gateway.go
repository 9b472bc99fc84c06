package repository

import (
	"context"
	"errors"
	"fmt"
)

// ErrTransient marks failures worth retrying (lost connections, timeouts,
// throttling). Adapters wrap it with Transient.
var ErrTransient = errors.New("transient persistence failure")

// Transient wraps err so errors.Is(err, ErrTransient) holds.
func Transient(err error) error {
	if err == nil || errors.Is(err, ErrTransient) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrTransient, err)
}

// IsTransient reports whether err is marked as retryable.
func IsTransient(err error) bool {
	return errors.Is(err, ErrTransient)
}

type pinger interface {
	Ping(ctx context.Context) error
}

// composite joins a blob store and a record store living in different
// backends (for example S3 images with postgres records).
type composite struct {
	BlobStore
	RecordStore
}

// Compose builds a Gateway from two independent stores. The blob and record
// writes of an enrollment are not atomic across them.
func Compose(blobs BlobStore, records RecordStore) Gateway {
	return &composite{BlobStore: blobs, RecordStore: records}
}

func (c *composite) Ping(ctx context.Context) error {
	var errs []error
	if p, ok := c.BlobStore.(pinger); ok {
		if err := p.Ping(ctx); err != nil {
			errs = append(errs, fmt.Errorf("blob store: %w", err))
		}
	}
	if p, ok := c.RecordStore.(pinger); ok && !sameStore(c.BlobStore, c.RecordStore) {
		if err := p.Ping(ctx); err != nil {
			errs = append(errs, fmt.Errorf("record store: %w", err))
		}
	}
	return errors.Join(errs...)
}

func sameStore(a BlobStore, b RecordStore) bool {
	x, ok := b.(BlobStore)
	return ok && any(x) == any(a)
}
