package align

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saturnino-fabrica-de-software/chamada/internal/domain"
)

func testFrame(t *testing.T, w, h int) *domain.Frame {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: uint8(x ^ y), A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return &domain.Frame{Data: buf.Bytes(), Width: w, Height: h}
}

func TestAligner_Align(t *testing.T) {
	a := New(Config{Size: 32, Margin: 0.1, MinVisible: 0.5})
	frame := testFrame(t, 120, 100)

	out, err := a.Align(context.Background(), frame, domain.FaceRegion{X: 30, Y: 20, W: 50, H: 60})
	require.NoError(t, err)

	img, err := png.Decode(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 32, 32), img.Bounds())
}

func TestAligner_Deterministic(t *testing.T) {
	a := New(DefaultConfig())
	frame := testFrame(t, 200, 200)
	region := domain.FaceRegion{X: 40, Y: 40, W: 100, H: 100}

	first, err := a.Align(context.Background(), frame, region)
	require.NoError(t, err)
	second, err := a.Align(context.Background(), frame, region)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestAligner_PartiallyOutsideIsClipped(t *testing.T) {
	a := New(Config{Size: 16, MinVisible: 0.5})
	frame := testFrame(t, 100, 100)

	_, err := a.Align(context.Background(), frame, domain.FaceRegion{X: 80, Y: 10, W: 30, H: 30})
	assert.NoError(t, err)
}

func TestAligner_Failures(t *testing.T) {
	a := New(Config{Size: 16, MinVisible: 0.5})
	frame := testFrame(t, 100, 100)

	tests := []struct {
		name   string
		frame  *domain.Frame
		region domain.FaceRegion
	}{
		{"zero width", frame, domain.FaceRegion{X: 10, Y: 10, W: 0, H: 10}},
		{"negative height", frame, domain.FaceRegion{X: 10, Y: 10, W: 10, H: -5}},
		{"outside frame", frame, domain.FaceRegion{X: 200, Y: 200, W: 20, H: 20}},
		{"mostly outside", frame, domain.FaceRegion{X: 90, Y: 90, W: 40, H: 40}},
		{"undecodable frame", &domain.Frame{Data: []byte("nope")}, domain.FaceRegion{X: 0, Y: 0, W: 5, H: 5}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := a.Align(context.Background(), tt.frame, tt.region)
			assert.ErrorIs(t, err, domain.ErrAlignmentFailed)
		})
	}
}

func TestSquareAround(t *testing.T) {
	assert.Equal(t, image.Rect(15, 0, 35, 20), squareAround(image.Rect(0, 0, 50, 20)))
	assert.Equal(t, image.Rect(0, 5, 10, 15), squareAround(image.Rect(0, 0, 10, 20)))
}
