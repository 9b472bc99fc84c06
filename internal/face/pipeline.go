// Package face glues detection, alignment and extraction into the single
// frame-to-embedding pipeline shared by enrollment and recognition.
package face

import (
	"context"
	"errors"
	"fmt"

	"github.com/saturnino-fabrica-de-software/chamada/internal/domain"
	"github.com/saturnino-fabrica-de-software/chamada/internal/provider"
)

// Pipeline runs Detector -> Aligner -> Extractor.
type Pipeline struct {
	detector  provider.Detector
	aligner   provider.Aligner
	extractor provider.Extractor
	dim       int
}

// NewPipeline builds a pipeline producing embeddings of length dim.
func NewPipeline(detector provider.Detector, aligner provider.Aligner, extractor provider.Extractor, dim int) *Pipeline {
	return &Pipeline{
		detector:  detector,
		aligner:   aligner,
		extractor: extractor,
		dim:       dim,
	}
}

// Dimension is the embedding length L.
func (p *Pipeline) Dimension() int {
	return p.dim
}

// Regions returns the detected faces, primary first. No face is an empty
// slice, not an error.
func (p *Pipeline) Regions(ctx context.Context, frame *domain.Frame) ([]domain.FaceRegion, error) {
	regions, err := p.detector.Detect(ctx, frame)
	if err != nil {
		return nil, fmt.Errorf("detect faces: %w", err)
	}
	if regions == nil {
		regions = []domain.FaceRegion{}
	}
	return regions, nil
}

// EmbedRegion aligns one region and extracts its embedding, quantized to
// the stored precision.
func (p *Pipeline) EmbedRegion(ctx context.Context, frame *domain.Frame, region domain.FaceRegion) (domain.Embedding, error) {
	aligned, err := p.aligner.Align(ctx, frame, region)
	if err != nil {
		if errors.Is(err, domain.ErrAlignmentFailed) {
			return nil, err
		}
		return nil, domain.ErrAlignmentFailed.WithError(err)
	}

	embedding, err := p.extractor.Extract(ctx, aligned)
	if err != nil {
		if errors.Is(err, domain.ErrExtractionFailed) {
			return nil, err
		}
		return nil, domain.ErrExtractionFailed.WithError(err)
	}

	if err := embedding.Validate(p.dim); err != nil {
		return nil, err
	}
	return embedding.Quantize(), nil
}

// EmbedPrimary embeds the primary (index 0) face. A frame without faces
// fails with domain.ErrNoFaceDetected.
func (p *Pipeline) EmbedPrimary(ctx context.Context, frame *domain.Frame) (domain.Embedding, domain.FaceRegion, error) {
	regions, err := p.Regions(ctx, frame)
	if err != nil {
		return nil, domain.FaceRegion{}, err
	}
	if len(regions) == 0 {
		return nil, domain.FaceRegion{}, domain.ErrNoFaceDetected
	}

	embedding, err := p.EmbedRegion(ctx, frame, regions[0])
	if err != nil {
		return nil, regions[0], err
	}
	return embedding, regions[0], nil
}
