package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pgvector/pgvector-go"

	"github.com/saturnino-fabrica-de-software/chamada/internal/database"
	"github.com/saturnino-fabrica-de-software/chamada/internal/domain"
)

// StudentRepository is the postgres RecordStore. Embeddings are stored as
// pgvector columns.
type StudentRepository struct {
	pool PgxPool
}

var _ RecordStore = (*StudentRepository)(nil)

func NewStudentRepository(pool PgxPool) *StudentRepository {
	return &StudentRepository{pool: pool}
}

const studentColumns = `id, name, email, role, classes, credential_hash, embedding, image_key, fingerprint, created_at`

func (r *StudentRepository) PutRecord(ctx context.Context, record *domain.StudentRecord) error {
	query := `
		INSERT INTO students (id, name, email, role, classes, credential_hash, embedding, image_key, fingerprint, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}
	classes := record.Classes
	if classes == nil {
		classes = map[string]int{}
	}

	_, err := r.pool.Exec(ctx, query,
		record.ID,
		record.Name,
		record.Email,
		record.Role,
		classes,
		record.CredentialHash,
		toVector(record.Embedding),
		record.ImageKey,
		record.Fingerprint,
		record.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			if violatesConstraint(err, constraintStudentsFingerprint) {
				return domain.ErrDuplicateImage.WithError(err)
			}
			return domain.ErrIDAllocationConflict.WithError(err)
		}
		return classify(fmt.Errorf("insert student: %w", err))
	}

	return nil
}

func (r *StudentRepository) GetRecord(ctx context.Context, id string) (*domain.StudentRecord, error) {
	query := `SELECT ` + studentColumns + ` FROM students WHERE id = $1`

	record, err := scanStudent(r.pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrStudentNotFound
	}
	if err != nil {
		return nil, classify(fmt.Errorf("get student: %w", err))
	}

	return record, nil
}

func (r *StudentRepository) FindByFingerprint(ctx context.Context, fingerprint string) (*domain.StudentRecord, error) {
	query := `SELECT ` + studentColumns + ` FROM students WHERE fingerprint = $1`

	record, err := scanStudent(r.pool.QueryRow(ctx, query, fingerprint))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrStudentNotFound
	}
	if err != nil {
		return nil, classify(fmt.Errorf("find student by fingerprint: %w", err))
	}

	return record, nil
}

func (r *StudentRepository) ListRecords(ctx context.Context) ([]domain.StudentRecord, error) {
	query := `SELECT ` + studentColumns + ` FROM students ORDER BY created_at, id`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, classify(fmt.Errorf("list students: %w", err))
	}
	defer rows.Close()

	records := make([]domain.StudentRecord, 0)
	for rows.Next() {
		record, err := scanStudent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan student: %w", err)
		}
		records = append(records, *record)
	}

	if err := rows.Err(); err != nil {
		return nil, classify(fmt.Errorf("iterate students: %w", err))
	}

	return records, nil
}

// IncrementAttendance bumps classes->classID in a single UPDATE so
// concurrent marks never lose a count.
func (r *StudentRepository) IncrementAttendance(ctx context.Context, id, classID string) (int, error) {
	query := `
		UPDATE students
		SET classes = jsonb_set(classes, ARRAY[$2::text], to_jsonb(COALESCE((classes->>$2::text)::int, 0) + 1))
		WHERE id = $1 AND classes ? $2::text
		RETURNING (classes->>$2::text)::int
	`

	var count int
	err := r.pool.QueryRow(ctx, query, id, classID).Scan(&count)
	if err == nil {
		return count, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return 0, classify(fmt.Errorf("increment attendance: %w", err))
	}

	var exists bool
	if err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM students WHERE id = $1)`, id).Scan(&exists); err != nil {
		return 0, classify(fmt.Errorf("check student: %w", err))
	}
	if !exists {
		return 0, domain.ErrStudentNotFound
	}
	return 0, domain.ErrClassNotEnrolled
}

func (r *StudentRepository) Ping(ctx context.Context) error {
	if err := database.HealthCheck(ctx, r.pool); err != nil {
		return classify(err)
	}
	return nil
}

func scanStudent(row pgx.Row) (*domain.StudentRecord, error) {
	var record domain.StudentRecord
	var embedding *pgvector.Vector

	err := row.Scan(
		&record.ID,
		&record.Name,
		&record.Email,
		&record.Role,
		&record.Classes,
		&record.CredentialHash,
		&embedding,
		&record.ImageKey,
		&record.Fingerprint,
		&record.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	record.Embedding = fromVector(embedding)
	if record.Classes == nil {
		record.Classes = map[string]int{}
	}
	return &record, nil
}

func toVector(e domain.Embedding) pgvector.Vector {
	floats := make([]float32, len(e))
	for i, v := range e {
		floats[i] = float32(v)
	}
	return pgvector.NewVector(floats)
}

func fromVector(v *pgvector.Vector) domain.Embedding {
	if v == nil {
		return nil
	}
	slice := v.Slice()
	if len(slice) == 0 {
		return nil
	}
	out := make(domain.Embedding, len(slice))
	for i, f := range slice {
		out[i] = float64(f)
	}
	return out
}
