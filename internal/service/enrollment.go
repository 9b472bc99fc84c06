package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/saturnino-fabrica-de-software/chamada/internal/audit"
	"github.com/saturnino-fabrica-de-software/chamada/internal/domain"
	"github.com/saturnino-fabrica-de-software/chamada/internal/repository"
)

// EnrollmentService registra novos alunos a partir de uma imagem do rosto
type EnrollmentService struct {
	gateway  repository.Gateway
	pipeline EmbeddingPipeline
	deps
}

func NewEnrollmentService(gateway repository.Gateway, pipeline EmbeddingPipeline, logger *slog.Logger, opts ...Option) *EnrollmentService {
	return &EnrollmentService{
		gateway:  gateway,
		pipeline: pipeline,
		deps:     newDeps(logger, "enrollment", opts),
	}
}

// Enroll stores image and a new StudentRecord for it. The same bytes can be
// enrolled only once; the record is written after its blob, so a crash in
// between leaves an orphan blob and never a record pointing at nothing.
func (s *EnrollmentService) Enroll(ctx context.Context, image []byte, req domain.EnrollmentRequest) (*domain.StudentRecord, error) {
	record, err := s.enroll(ctx, image, req)
	if err != nil {
		s.record(ctx, audit.Event{
			EventType: audit.EventEnrollmentRejected,
			Success:   false,
			Error:     errorCode(err),
		})
		return nil, err
	}

	s.record(ctx, audit.Event{
		EventType: audit.EventStudentEnrolled,
		StudentID: record.ID,
		Success:   true,
		Metadata:  map[string]string{"role": record.Role},
	})
	s.events.Publish(EventStudentEnrolled, record)

	s.logger.InfoContext(ctx, "student enrolled",
		slog.String("student_id", record.ID),
		slog.Int("classes", len(record.Classes)),
	)
	return record, nil
}

func (s *EnrollmentService) enroll(ctx context.Context, image []byte, req domain.EnrollmentRequest) (*domain.StudentRecord, error) {
	if len(image) == 0 {
		return nil, domain.ErrInvalidImage
	}

	fingerprint := domain.Fingerprint(image)
	existing, err := s.gateway.FindByFingerprint(ctx, fingerprint)
	switch {
	case err == nil:
		return nil, domain.ErrDuplicateImage.WithError(fmt.Errorf("already enrolled as %s", existing.ID))
	case !errors.Is(err, domain.ErrStudentNotFound):
		return nil, fmt.Errorf("find by fingerprint: %w", err)
	}

	frame, err := domain.NewFrame(image, s.now())
	if err != nil {
		return nil, err
	}

	embedding, region, err := s.pipeline.EmbedPrimary(ctx, frame)
	if err != nil {
		return nil, fmt.Errorf("embed face: %w", err)
	}
	s.logger.DebugContext(ctx, "enrollment face embedded",
		slog.Int("x", region.X),
		slog.Int("y", region.Y),
		slog.Int("w", region.W),
		slog.Int("h", region.H),
		slog.Float64("confidence", region.Confidence),
	)

	role := req.Role
	if role == "" {
		role = domain.RoleStudent
	}

	id := s.newID()
	record := &domain.StudentRecord{
		ID:             id,
		Name:           strings.TrimSpace(req.Name),
		Email:          strings.TrimSpace(req.Email),
		Role:           role,
		Classes:        req.ClassCounters(),
		CredentialHash: req.CredentialHash,
		Embedding:      embedding,
		ImageKey:       domain.BlobKey(id),
		Fingerprint:    fingerprint,
		CreatedAt:      s.now().UTC(),
	}

	if err := s.gateway.PutBlob(ctx, record.ImageKey, image); err != nil {
		if errors.Is(err, domain.ErrBlobExists) {
			s.logger.ErrorContext(ctx, "allocated student id already has an image",
				slog.String("student_id", id),
				slog.String("image_key", record.ImageKey),
			)
			return nil, domain.ErrIDAllocationConflict.WithError(err)
		}
		return nil, fmt.Errorf("store image: %w", err)
	}

	if err := s.gateway.PutRecord(ctx, record); err != nil {
		s.logger.WarnContext(ctx, "record write failed after image was stored",
			slog.String("student_id", id),
			slog.String("image_key", record.ImageKey),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("store record: %w", err)
	}

	return record, nil
}
