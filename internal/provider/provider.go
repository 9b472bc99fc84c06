package provider

import (
	"context"

	"github.com/saturnino-fabrica-de-software/chamada/internal/domain"
)

// Detector localiza faces num frame.
//
// An empty result means no face and is not an error. Errors are reserved for
// an unusable frame or an unreachable backend. When several faces are found
// the first one is the primary region.
type Detector interface {
	Detect(ctx context.Context, frame *domain.Frame) ([]domain.FaceRegion, error)
}

// Aligner crops and normalizes a detected region into a canonical face image.
// Degenerate regions fail with domain.ErrAlignmentFailed.
type Aligner interface {
	Align(ctx context.Context, frame *domain.Frame, region domain.FaceRegion) ([]byte, error)
}

// Extractor computes a fixed-length embedding from a canonical face image.
// Identical input bytes must yield identical output. Malformed input fails
// with domain.ErrExtractionFailed.
type Extractor interface {
	Extract(ctx context.Context, face []byte) (domain.Embedding, error)
}

// DetectorFunc adapts a function to Detector.
type DetectorFunc func(ctx context.Context, frame *domain.Frame) ([]domain.FaceRegion, error)

func (f DetectorFunc) Detect(ctx context.Context, frame *domain.Frame) ([]domain.FaceRegion, error) {
	return f(ctx, frame)
}

// ExtractorFunc adapts a function to Extractor.
type ExtractorFunc func(ctx context.Context, face []byte) (domain.Embedding, error)

func (f ExtractorFunc) Extract(ctx context.Context, face []byte) (domain.Embedding, error) {
	return f(ctx, face)
}
