package deepface

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/saturnino-fabrica-de-software/chamada/internal/domain"
	"github.com/saturnino-fabrica-de-software/chamada/internal/provider"
)

const (
	// minFaceArea is the minimum face area (in pixels²) for reliable detection
	minFaceArea = 2500 // 50x50 pixels
	// maxFaceArea is used for confidence scaling
	maxFaceArea = 250000 // 500x500 pixels

	// skipDetector makes /represent embed the whole (already aligned) image
	skipDetector = "skip"
)

// Provider implements provider.Detector and provider.Extractor using DeepFace API
type Provider struct {
	client    *Client
	detector  string
	normalize bool
}

var (
	_ provider.Detector  = (*Provider)(nil)
	_ provider.Extractor = (*Provider)(nil)
)

// NewProvider creates a new DeepFace provider
func NewProvider(config Config) *Provider {
	detector := config.Detector
	if detector == "" {
		detector = DefaultConfig().Detector
	}
	return &Provider{
		client:    NewClient(config),
		detector:  detector,
		normalize: config.Normalize,
	}
}

// Detect finds faces in the frame. A frame without faces is not an error.
func (p *Provider) Detect(ctx context.Context, frame *domain.Frame) ([]domain.FaceRegion, error) {
	if frame == nil || len(frame.Data) == 0 {
		return nil, domain.ErrInvalidImage
	}

	resp, err := p.client.Represent(ctx, frame.Data, p.detector, true)
	if err != nil {
		var statusErr *StatusError
		if errors.As(err, &statusErr) {
			if statusErr.noFaceDetected() {
				return []domain.FaceRegion{}, nil
			}
			if statusErr.IsClientError() {
				return nil, domain.ErrInvalidImage.WithError(err)
			}
		}
		return nil, fmt.Errorf("detect faces: %w", err)
	}

	regions := make([]domain.FaceRegion, 0, len(resp.Results))
	for _, result := range resp.Results {
		area := result.FacialArea
		region := domain.FaceRegion{X: area.X, Y: area.Y, W: area.W, H: area.H}
		if region.Empty() {
			continue
		}

		region.Confidence = result.FaceConfidence
		if region.Confidence <= 0 {
			region.Confidence = calculateConfidence(float64(area.W * area.H))
		}
		regions = append(regions, region)
	}

	sort.SliceStable(regions, func(i, j int) bool {
		return regions[i].Confidence > regions[j].Confidence
	})

	return regions, nil
}

// calculateConfidence estimates confidence based on face area when DeepFace
// does not report one. Larger faces are more likely to be accurately detected
func calculateConfidence(faceArea float64) float64 {
	if faceArea < minFaceArea {
		return 0.5 // Low confidence for very small faces
	}
	// Scale from 0.7 to 0.99 based on face area
	normalized := math.Min(1.0, (faceArea-minFaceArea)/(maxFaceArea-minFaceArea))
	return 0.7 + (normalized * 0.29)
}

// Extract embeds an aligned face image.
func (p *Provider) Extract(ctx context.Context, face []byte) (domain.Embedding, error) {
	if len(face) == 0 {
		return nil, domain.ErrExtractionFailed
	}

	resp, err := p.client.Represent(ctx, face, skipDetector, false)
	if err != nil {
		return nil, domain.ErrExtractionFailed.WithError(fmt.Errorf("represent: %w", err))
	}

	if len(resp.Results) == 0 || len(resp.Results[0].Embedding) == 0 {
		return nil, domain.ErrExtractionFailed.WithError(ErrNoFaceInResponse)
	}

	embedding := domain.Embedding(resp.Results[0].Embedding)
	if p.normalize {
		embedding = NormalizeEmbedding(embedding)
	}
	return embedding, nil
}

// NormalizeEmbedding returns a unit-length copy of embedding. A zero vector
// is returned unchanged.
func NormalizeEmbedding(embedding domain.Embedding) domain.Embedding {
	var norm float64
	for _, v := range embedding {
		norm += v * v
	}
	norm = math.Sqrt(norm)

	out := embedding.Clone()
	if norm == 0 {
		return out
	}
	for i := range out {
		out[i] /= norm
	}
	return out
}
