package pigo

import (
	"image"
	"image/color"
	"path/filepath"
	"testing"

	pigo "github.com/esimov/pigo/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saturnino-fabrica-de-software/chamada/internal/domain"
)

func TestToRegions(t *testing.T) {
	dets := []pigo.Detection{
		{Row: 50, Col: 50, Scale: 40, Q: 7},
		{Row: 100, Col: 150, Scale: 60, Q: 12},
		{Row: 10, Col: 10, Scale: 20, Q: 2},
		{Row: 5, Col: 195, Scale: 20, Q: 9},
	}

	regions := toRegions(dets, 5.0, 200, 120)

	require.Len(t, regions, 3)
	assert.Equal(t, domain.FaceRegion{X: 120, Y: 70, W: 60, H: 50, Confidence: 12}, regions[0], "clipped to frame height")
	assert.Equal(t, domain.FaceRegion{X: 185, Y: 0, W: 15, H: 15, Confidence: 9}, regions[1], "clipped at the corner")
	assert.Equal(t, domain.FaceRegion{X: 30, Y: 30, W: 40, H: 40, Confidence: 7}, regions[2])
}

func TestToRegions_DropsOutsideFrame(t *testing.T) {
	dets := []pigo.Detection{{Row: -100, Col: -100, Scale: 20, Q: 50}}
	assert.Empty(t, toRegions(dets, 1, 100, 100))
}

func TestGrayscale(t *testing.T) {
	img := image.NewRGBA(image.Rect(10, 10, 13, 12))
	img.Set(10, 10, color.RGBA{R: 255, G: 255, B: 255, A: 255})
	img.Set(12, 11, color.RGBA{A: 255})

	pixels, cols, rows := grayscale(img)

	assert.Equal(t, 3, cols)
	assert.Equal(t, 2, rows)
	require.Len(t, pixels, 6)
	assert.Equal(t, uint8(255), pixels[0])
	assert.Equal(t, uint8(0), pixels[5])
}

func TestNewDetector_MissingCascade(t *testing.T) {
	cfg := DefaultConfig()
	cfg.CascadePath = filepath.Join(t.TempDir(), "facefinder")

	_, err := NewDetector(cfg)
	assert.Error(t, err)
}
