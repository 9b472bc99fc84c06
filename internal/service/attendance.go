package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/saturnino-fabrica-de-software/chamada/internal/audit"
	"github.com/saturnino-fabrica-de-software/chamada/internal/domain"
	"github.com/saturnino-fabrica-de-software/chamada/internal/repository"
)

// AttendanceResult é a presença registrada para um aluno em uma turma
type AttendanceResult struct {
	StudentID string  `json:"student_id"`
	Name      string  `json:"name"`
	ClassID   string  `json:"class_id"`
	Count     int     `json:"count"`
	Distance  float64 `json:"distance"`
}

// AttendanceService recognises a frame and counts the student present.
type AttendanceService struct {
	recognizer *RecognitionService
	gateway    repository.Gateway
	deps
}

func NewAttendanceService(recognizer *RecognitionService, gateway repository.Gateway, logger *slog.Logger, opts ...Option) *AttendanceService {
	return &AttendanceService{
		recognizer: recognizer,
		gateway:    gateway,
		deps:       newDeps(logger, "attendance", opts),
	}
}

// Mark decodes frameBytes and marks the recognised student present in classID.
func (s *AttendanceService) Mark(ctx context.Context, classID string, frameBytes []byte) (*AttendanceResult, error) {
	classID = strings.TrimSpace(classID)
	if classID == "" {
		return nil, domain.ErrValidationFailed.WithError(fmt.Errorf("class_id is required"))
	}
	recognition, err := s.recognizer.Recognize(ctx, frameBytes)
	if err != nil {
		return nil, err
	}
	return s.mark(ctx, classID, recognition)
}

// MarkFrame is Mark for an already decoded frame, e.g. from the camera.
func (s *AttendanceService) MarkFrame(ctx context.Context, classID string, frame *domain.Frame) (*AttendanceResult, error) {
	classID = strings.TrimSpace(classID)
	if classID == "" {
		return nil, domain.ErrValidationFailed.WithError(fmt.Errorf("class_id is required"))
	}
	recognition, err := s.recognizer.RecognizeFrame(ctx, frame)
	if err != nil {
		return nil, err
	}
	return s.mark(ctx, classID, recognition)
}

func (s *AttendanceService) mark(ctx context.Context, classID string, recognition *Recognition) (*AttendanceResult, error) {
	if !recognition.Matched {
		s.record(ctx, audit.Event{
			EventType: audit.EventAttendanceMarked,
			ClassID:   classID,
			Success:   false,
			Error:     domain.ErrNoMatch.Code,
		})
		return nil, domain.ErrNoMatch
	}

	count, err := s.gateway.IncrementAttendance(ctx, recognition.StudentID, classID)
	if err != nil {
		s.record(ctx, audit.Event{
			EventType: audit.EventAttendanceMarked,
			StudentID: recognition.StudentID,
			ClassID:   classID,
			Success:   false,
			Error:     errorCode(err),
		})
		return nil, fmt.Errorf("student %s: class %s: %w", recognition.StudentID, classID, err)
	}

	result := &AttendanceResult{
		StudentID: recognition.StudentID,
		ClassID:   classID,
		Count:     count,
		Distance:  recognition.Distance,
	}
	if recognition.Student != nil {
		result.Name = recognition.Student.Name
	}

	s.record(ctx, audit.Event{
		EventType: audit.EventAttendanceMarked,
		StudentID: result.StudentID,
		ClassID:   classID,
		Success:   true,
		Metadata:  map[string]string{"count": fmt.Sprint(count)},
	})
	s.events.Publish(EventAttendanceMarked, result)
	s.logger.InfoContext(ctx, "attendance marked",
		slog.String("student_id", result.StudentID),
		slog.String("class_id", classID),
		slog.Int("count", count),
	)
	return result, nil
}
