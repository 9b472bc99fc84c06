package face

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saturnino-fabrica-de-software/chamada/internal/domain"
	"github.com/saturnino-fabrica-de-software/chamada/internal/provider"
	"github.com/saturnino-fabrica-de-software/chamada/internal/provider/align"
	"github.com/saturnino-fabrica-de-software/chamada/internal/provider/mock"
)

func pngFrame(t *testing.T, w, h int, seed uint8) *domain.Frame {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x) + seed, G: uint8(y), B: seed, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))

	frame, err := domain.NewFrame(buf.Bytes(), time.Now())
	require.NoError(t, err)
	return frame
}

func mockPipeline(dim int) *Pipeline {
	m := mock.New(dim)
	return NewPipeline(m, align.New(align.Config{Size: 32}), m, dim)
}

func TestPipeline_EmbedPrimary(t *testing.T) {
	p := mockPipeline(64)
	frame := pngFrame(t, 80, 80, 1)

	embedding, region, err := p.EmbedPrimary(context.Background(), frame)
	require.NoError(t, err)
	assert.Len(t, embedding, 64)
	assert.Equal(t, domain.FaceRegion{X: 8, Y: 8, W: 64, H: 64, Confidence: 0.99}, region)

	again, _, err := p.EmbedPrimary(context.Background(), frame)
	require.NoError(t, err)
	assert.Equal(t, embedding, again, "same frame must embed identically")

	other, _, err := p.EmbedPrimary(context.Background(), pngFrame(t, 80, 80, 99))
	require.NoError(t, err)
	assert.NotEqual(t, embedding, other)
}

func TestPipeline_EmbedRegion_SinglePrecision(t *testing.T) {
	extractor := provider.ExtractorFunc(func(context.Context, []byte) (domain.Embedding, error) {
		return domain.Embedding{0.1, -1.0 / 3, 0.7}, nil
	})
	p := NewPipeline(mock.New(3), align.New(align.Config{Size: 32}), extractor, 3)
	frame := pngFrame(t, 80, 80, 1)

	embedding, err := p.EmbedRegion(context.Background(), frame, domain.FaceRegion{X: 8, Y: 8, W: 64, H: 64})
	require.NoError(t, err)

	for i, v := range embedding {
		assert.Equal(t, float64(float32(v)), v, "component %d", i)
	}
	assert.NotEqual(t, 0.1, embedding[0])
}

func TestPipeline_EmbedPrimary_NoFace(t *testing.T) {
	p := mockPipeline(64)

	_, _, err := p.EmbedPrimary(context.Background(), pngFrame(t, 16, 16, 0))
	assert.ErrorIs(t, err, domain.ErrNoFaceDetected)
}

func TestPipeline_UsesFirstRegion(t *testing.T) {
	var aligned []domain.FaceRegion
	detector := provider.DetectorFunc(func(context.Context, *domain.Frame) ([]domain.FaceRegion, error) {
		return []domain.FaceRegion{{X: 1, Y: 1, W: 10, H: 10}, {X: 20, Y: 20, W: 10, H: 10}}, nil
	})
	aligner := alignerFunc(func(_ context.Context, _ *domain.Frame, r domain.FaceRegion) ([]byte, error) {
		aligned = append(aligned, r)
		return []byte("face"), nil
	})

	p := NewPipeline(detector, aligner, mock.New(8), 8)
	_, region, err := p.EmbedPrimary(context.Background(), &domain.Frame{Data: []byte{1}})
	require.NoError(t, err)

	assert.Equal(t, 1, region.X)
	require.Len(t, aligned, 1)
	assert.Equal(t, 1, aligned[0].X)
}

func TestPipeline_Regions(t *testing.T) {
	t.Run("nil result becomes empty", func(t *testing.T) {
		detector := provider.DetectorFunc(func(context.Context, *domain.Frame) ([]domain.FaceRegion, error) {
			return nil, nil
		})
		p := NewPipeline(detector, align.New(align.DefaultConfig()), mock.New(8), 8)

		regions, err := p.Regions(context.Background(), &domain.Frame{})
		require.NoError(t, err)
		assert.NotNil(t, regions)
		assert.Empty(t, regions)
	})

	t.Run("detector failure is wrapped", func(t *testing.T) {
		boom := errors.New("boom")
		detector := provider.DetectorFunc(func(context.Context, *domain.Frame) ([]domain.FaceRegion, error) {
			return nil, boom
		})
		p := NewPipeline(detector, align.New(align.DefaultConfig()), mock.New(8), 8)

		_, err := p.Regions(context.Background(), &domain.Frame{})
		assert.ErrorIs(t, err, boom)
	})
}

func TestPipeline_EmbedRegion_Errors(t *testing.T) {
	frame := &domain.Frame{Data: []byte{1}}
	region := domain.FaceRegion{W: 10, H: 10}
	ok := alignerFunc(func(context.Context, *domain.Frame, domain.FaceRegion) ([]byte, error) {
		return []byte("face"), nil
	})

	tests := []struct {
		name      string
		aligner   provider.Aligner
		extractor provider.Extractor
		dim       int
		wantErr   error
	}{
		{
			name: "alignment failure keeps its code",
			aligner: alignerFunc(func(context.Context, *domain.Frame, domain.FaceRegion) ([]byte, error) {
				return nil, errors.New("landmarks unresolvable")
			}),
			extractor: mock.New(8),
			dim:       8,
			wantErr:   domain.ErrAlignmentFailed,
		},
		{
			name:    "extraction failure keeps its code",
			aligner: ok,
			extractor: provider.ExtractorFunc(func(context.Context, []byte) (domain.Embedding, error) {
				return nil, errors.New("model crashed")
			}),
			dim:     8,
			wantErr: domain.ErrExtractionFailed,
		},
		{
			name:      "wrong dimension",
			aligner:   ok,
			extractor: mock.New(16),
			dim:       8,
			wantErr:   domain.ErrInvalidEmbedding,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewPipeline(mock.New(8), tt.aligner, tt.extractor, tt.dim)
			_, err := p.EmbedRegion(context.Background(), frame, region)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

type alignerFunc func(context.Context, *domain.Frame, domain.FaceRegion) ([]byte, error)

func (f alignerFunc) Align(ctx context.Context, frame *domain.Frame, region domain.FaceRegion) ([]byte, error) {
	return f(ctx, frame, region)
}
