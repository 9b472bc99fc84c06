package service

import (
	"context"
	"fmt"

	"github.com/saturnino-fabrica-de-software/chamada/internal/domain"
	"github.com/saturnino-fabrica-de-software/chamada/internal/repository"
)

// StudentService serves read-only lookups over the enrolled set.
type StudentService struct {
	gateway repository.Gateway
}

func NewStudentService(gateway repository.Gateway) *StudentService {
	return &StudentService{gateway: gateway}
}

func (s *StudentService) Get(ctx context.Context, id string) (*domain.StudentRecord, error) {
	if id == "" {
		return nil, domain.ErrStudentNotFound
	}
	record, err := s.gateway.GetRecord(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("student %s: %w", id, err)
	}
	return record, nil
}

func (s *StudentService) List(ctx context.Context) ([]domain.StudentRecord, error) {
	records, err := s.gateway.ListRecords(ctx)
	if err != nil {
		return nil, fmt.Errorf("list students: %w", err)
	}
	return records, nil
}

// Image returns the enrollment image of a student.
func (s *StudentService) Image(ctx context.Context, id string) ([]byte, error) {
	record, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	data, err := s.gateway.GetBlob(ctx, record.ImageKey)
	if err != nil {
		return nil, fmt.Errorf("student %s: image: %w", id, err)
	}
	return data, nil
}
