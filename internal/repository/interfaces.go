package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/saturnino-fabrica-de-software/chamada/internal/domain"
)

// PgxPool is the subset of *pgxpool.Pool used by the postgres adapters.
// pgxmock.PgxPoolIface satisfies it in tests.
type PgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
}

// BlobStore keeps binary enrollment images.
type BlobStore interface {
	// PutBlob fails with domain.ErrBlobExists when key is taken.
	PutBlob(ctx context.Context, key string, data []byte) error
	// GetBlob fails with domain.ErrBlobNotFound.
	GetBlob(ctx context.Context, key string) ([]byte, error)
}

// RecordStore keeps student records.
type RecordStore interface {
	// PutRecord fails with domain.ErrDuplicateImage when the fingerprint is
	// already stored and domain.ErrIDAllocationConflict when the id is.
	PutRecord(ctx context.Context, record *domain.StudentRecord) error
	// GetRecord fails with domain.ErrStudentNotFound.
	GetRecord(ctx context.Context, id string) (*domain.StudentRecord, error)
	// ListRecords returns every record, oldest first.
	ListRecords(ctx context.Context) ([]domain.StudentRecord, error)
	// FindByFingerprint fails with domain.ErrStudentNotFound when no record
	// carries fingerprint.
	FindByFingerprint(ctx context.Context, fingerprint string) (*domain.StudentRecord, error)
	// IncrementAttendance adds one to the student's counter for classID and
	// returns the new value. Fails with domain.ErrClassNotEnrolled when the
	// student is not in that class.
	IncrementAttendance(ctx context.Context, id, classID string) (int, error)
}

// Gateway is the persistence boundary of the attendance core: one blob
// store and one record store, possibly backed by different systems.
type Gateway interface {
	BlobStore
	RecordStore
	Ping(ctx context.Context) error
}
