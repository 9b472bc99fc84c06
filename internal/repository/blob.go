package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/saturnino-fabrica-de-software/chamada/internal/database"
	"github.com/saturnino-fabrica-de-software/chamada/internal/domain"
)

// BlobRepository is the postgres BlobStore (bytea rows).
type BlobRepository struct {
	pool PgxPool
}

var _ BlobStore = (*BlobRepository)(nil)

func NewBlobRepository(pool PgxPool) *BlobRepository {
	return &BlobRepository{pool: pool}
}

func (r *BlobRepository) PutBlob(ctx context.Context, key string, data []byte) error {
	query := `
		INSERT INTO blobs (key, data, size_bytes)
		VALUES ($1, $2, $3)
		ON CONFLICT (key) DO NOTHING
	`

	tag, err := r.pool.Exec(ctx, query, key, data, len(data))
	if err != nil {
		return classify(fmt.Errorf("insert blob: %w", err))
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrBlobExists
	}

	return nil
}

func (r *BlobRepository) GetBlob(ctx context.Context, key string) ([]byte, error) {
	var data []byte
	err := r.pool.QueryRow(ctx, `SELECT data FROM blobs WHERE key = $1`, key).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrBlobNotFound
	}
	if err != nil {
		return nil, classify(fmt.Errorf("get blob: %w", err))
	}

	return data, nil
}

func (r *BlobRepository) Ping(ctx context.Context) error {
	if err := database.HealthCheck(ctx, r.pool); err != nil {
		return classify(err)
	}
	return nil
}

// Postgres keeps both records and blobs in one database.
type Postgres struct {
	*StudentRepository
	*BlobRepository
}

var _ Gateway = (*Postgres)(nil)

func NewPostgres(pool PgxPool) *Postgres {
	return &Postgres{
		StudentRepository: NewStudentRepository(pool),
		BlobRepository:    NewBlobRepository(pool),
	}
}

// Ping resolves the ambiguity between the two embedded repositories.
func (p *Postgres) Ping(ctx context.Context) error {
	return p.StudentRepository.Ping(ctx)
}
