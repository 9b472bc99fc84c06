package mock

import (
	"context"
	"crypto/sha256"
	"math"

	"github.com/saturnino-fabrica-de-software/chamada/internal/domain"
	"github.com/saturnino-fabrica-de-software/chamada/internal/provider"
)

const (
	// DefaultDimension matches Facenet512
	DefaultDimension = 512
	// MinFaceSide is the smallest frame side in which the mock "sees" a face
	MinFaceSide = 32
)

// Provider implementa Detector e Extractor para testes e desenvolvimento
type Provider struct {
	dim int
}

// New cria uma nova instância do mock com a dimensão informada
func New(dim int) *Provider {
	if dim <= 0 {
		dim = DefaultDimension
	}
	return &Provider{dim: dim}
}

var (
	_ provider.Detector  = (*Provider)(nil)
	_ provider.Extractor = (*Provider)(nil)
)

// Detect reports one face covering the central 80% of any frame at least
// MinFaceSide pixels on each side, and none for smaller frames.
func (p *Provider) Detect(_ context.Context, frame *domain.Frame) ([]domain.FaceRegion, error) {
	if frame == nil || len(frame.Data) == 0 {
		return nil, domain.ErrInvalidImage
	}
	if frame.Width < MinFaceSide || frame.Height < MinFaceSide {
		return []domain.FaceRegion{}, nil
	}

	return []domain.FaceRegion{
		{
			X:          frame.Width / 10,
			Y:          frame.Height / 10,
			W:          frame.Width * 8 / 10,
			H:          frame.Height * 8 / 10,
			Confidence: 0.99,
		},
	}, nil
}

// Extract gera embedding determinístico baseado no hash da imagem
func (p *Provider) Extract(_ context.Context, face []byte) (domain.Embedding, error) {
	if len(face) == 0 {
		return nil, domain.ErrExtractionFailed
	}
	return generateEmbedding(face, p.dim), nil
}

// generateEmbedding spreads the sha256 of the input over dim unit-norm
// components.
func generateEmbedding(data []byte, dim int) domain.Embedding {
	hash := sha256.Sum256(data)
	embedding := make(domain.Embedding, dim)
	hashLen := len(hash)

	for i := 0; i < dim; i++ {
		// vary the byte per lap so dims above 32 do not simply repeat
		b := hash[i%hashLen] ^ byte(i/hashLen*31)
		embedding[i] = (float64(b)/255.0)*2 - 1
	}

	norm := 0.0
	for _, v := range embedding {
		norm += v * v
	}
	norm = math.Sqrt(norm)
	if norm == 0 {
		return embedding
	}

	for i := range embedding {
		embedding[i] /= norm
	}

	return embedding
}
