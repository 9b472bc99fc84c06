// Package memory is an in-process Gateway for development, the CLI demo
// mode and tests. Data is lost on restart.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/saturnino-fabrica-de-software/chamada/internal/domain"
	"github.com/saturnino-fabrica-de-software/chamada/internal/repository"
)

// Store keeps blobs and records behind one RWMutex. Records are copied on
// the way in and out so callers never share maps or embeddings with it.
type Store struct {
	mu            sync.RWMutex
	blobs         map[string][]byte
	records       map[string]*domain.StudentRecord
	byFingerprint map[string]string
}

var _ repository.Gateway = (*Store)(nil)

func New() *Store {
	return &Store{
		blobs:         make(map[string][]byte),
		records:       make(map[string]*domain.StudentRecord),
		byFingerprint: make(map[string]string),
	}
}

func (s *Store) PutBlob(_ context.Context, key string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.blobs[key]; ok {
		return domain.ErrBlobExists
	}
	s.blobs[key] = append([]byte(nil), data...)
	return nil
}

func (s *Store) GetBlob(_ context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, ok := s.blobs[key]
	if !ok {
		return nil, domain.ErrBlobNotFound
	}
	return append([]byte(nil), data...), nil
}

func (s *Store) PutRecord(_ context.Context, record *domain.StudentRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[record.ID]; ok {
		return domain.ErrIDAllocationConflict
	}
	if _, ok := s.byFingerprint[record.Fingerprint]; ok {
		return domain.ErrDuplicateImage
	}

	s.records[record.ID] = clone(record)
	s.byFingerprint[record.Fingerprint] = record.ID
	return nil
}

func (s *Store) GetRecord(_ context.Context, id string) (*domain.StudentRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[id]
	if !ok {
		return nil, domain.ErrStudentNotFound
	}
	return clone(rec), nil
}

func (s *Store) ListRecords(_ context.Context) ([]domain.StudentRecord, error) {
	s.mu.RLock()
	out := make([]domain.StudentRecord, 0, len(s.records))
	for _, rec := range s.records {
		out = append(out, *clone(rec))
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (s *Store) FindByFingerprint(_ context.Context, fingerprint string) (*domain.StudentRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byFingerprint[fingerprint]
	if !ok {
		return nil, domain.ErrStudentNotFound
	}
	return clone(s.records[id]), nil
}

func (s *Store) IncrementAttendance(_ context.Context, id, classID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[id]
	if !ok {
		return 0, domain.ErrStudentNotFound
	}
	count, ok := rec.Classes[classID]
	if !ok {
		return 0, domain.ErrClassNotEnrolled
	}
	rec.Classes[classID] = count + 1
	return count + 1, nil
}

func (s *Store) Ping(context.Context) error {
	return nil
}

func clone(rec *domain.StudentRecord) *domain.StudentRecord {
	out := *rec
	out.Embedding = rec.Embedding.Clone()
	out.Classes = make(map[string]int, len(rec.Classes))
	for k, v := range rec.Classes {
		out.Classes[k] = v
	}
	return &out
}
