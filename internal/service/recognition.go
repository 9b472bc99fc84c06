package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/saturnino-fabrica-de-software/chamada/internal/audit"
	"github.com/saturnino-fabrica-de-software/chamada/internal/domain"
	"github.com/saturnino-fabrica-de-software/chamada/internal/matcher"
	"github.com/saturnino-fabrica-de-software/chamada/internal/repository"
)

// Recognition is the outcome of recognising one frame. Regions lists every
// detected face so callers can annotate the frame; Region is the one that
// matched.
type Recognition struct {
	domain.MatchResult
	Region  *domain.FaceRegion    `json:"region,omitempty"`
	Regions []domain.FaceRegion   `json:"regions"`
	Student *domain.StudentRecord `json:"student,omitempty"`
}

func noMatch(regions []domain.FaceRegion) *Recognition {
	if regions == nil {
		regions = []domain.FaceRegion{}
	}
	return &Recognition{MatchResult: domain.NoMatch(), Regions: regions}
}

// RecognitionService identifica alunos cadastrados em um quadro
type RecognitionService struct {
	gateway  repository.Gateway
	pipeline EmbeddingPipeline
	cfg      matcher.Config
	deps
}

func NewRecognitionService(gateway repository.Gateway, pipeline EmbeddingPipeline, logger *slog.Logger, opts ...Option) *RecognitionService {
	return &RecognitionService{
		gateway:  gateway,
		pipeline: pipeline,
		cfg:      matcher.DefaultConfig(),
		deps:     newDeps(logger, "recognition", opts),
	}
}

func (s *RecognitionService) WithMatcherConfig(cfg matcher.Config) *RecognitionService {
	s.cfg = cfg
	return s
}

// Recognize decodes frameBytes and recognises it. Bytes that are not an
// image are a NoMatch like any other frame without a usable face.
func (s *RecognitionService) Recognize(ctx context.Context, frameBytes []byte) (*Recognition, error) {
	frame, err := domain.NewFrame(frameBytes, s.now())
	if err != nil {
		s.logger.DebugContext(ctx, "frame could not be decoded", slog.String("error", err.Error()))
		return noMatch(nil), nil
	}
	return s.RecognizeFrame(ctx, frame)
}

// RecognizeFrame tries every detected face in order and returns the first
// one that matches an enrolled student. Detection, alignment and
// extraction failures degrade to NoMatch; persistence failures and a
// cancelled ctx are returned as errors.
func (s *RecognitionService) RecognizeFrame(ctx context.Context, frame *domain.Frame) (*Recognition, error) {
	regions, err := s.pipeline.Regions(ctx, frame)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		s.logger.WarnContext(ctx, "face detection failed", slog.String("error", err.Error()))
		return noMatch(nil), nil
	}
	if len(regions) == 0 {
		return noMatch(regions), nil
	}

	s.record(ctx, audit.Event{
		EventType: audit.EventFaceDetected,
		Success:   true,
		Metadata:  map[string]string{"faces": fmt.Sprint(len(regions))},
	})

	records, err := s.gateway.ListRecords(ctx)
	if err != nil {
		return nil, fmt.Errorf("load enrolled students: %w", err)
	}
	if len(records) == 0 {
		return noMatch(regions), nil
	}
	candidates := make([]domain.Candidate, len(records))
	byID := make(map[string]int, len(records))
	for i := range records {
		candidates[i] = domain.Candidate{ID: records[i].ID, Embedding: records[i].Embedding}
		byID[records[i].ID] = i
	}

	for i, region := range regions {
		embedding, err := s.pipeline.EmbedRegion(ctx, frame, region)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			s.logger.DebugContext(ctx, "face skipped",
				slog.Int("region", i),
				slog.String("error", err.Error()),
			)
			continue
		}

		result, err := matcher.Match(embedding, candidates, s.cfg)
		if err != nil {
			if errors.Is(err, domain.ErrInvalidEmbedding) {
				continue
			}
			return nil, fmt.Errorf("match: %w", err)
		}
		if !result.Matched {
			continue
		}

		student := records[byID[result.StudentID]]
		matched := region
		out := &Recognition{
			MatchResult: result,
			Region:      &matched,
			Regions:     regions,
			Student:     &student,
		}

		s.record(ctx, audit.Event{
			EventType: audit.EventStudentRecognized,
			StudentID: result.StudentID,
			Success:   true,
			Metadata:  map[string]string{"distance": fmt.Sprintf("%.6f", result.Distance)},
		})
		s.events.Publish(EventStudentRecognized, out)
		s.logger.InfoContext(ctx, "student recognized",
			slog.String("student_id", result.StudentID),
			slog.Float64("distance", result.Distance),
		)
		return out, nil
	}

	return noMatch(regions), nil
}
