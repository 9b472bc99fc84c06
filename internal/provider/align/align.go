// Package align crops a detected face out of a frame and rescales it to the
// square canonical image fed to the extractor.
package align

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"

	"golang.org/x/image/draw"

	"github.com/saturnino-fabrica-de-software/chamada/internal/domain"
	"github.com/saturnino-fabrica-de-software/chamada/internal/provider"
)

// Config controls the canonical output.
type Config struct {
	// Size is the side of the square output in pixels.
	Size int
	// Margin grows the region by this fraction of its size on every side
	// before cropping.
	Margin float64
	// MinVisible is the fraction of the (grown) region that must lie inside
	// the frame.
	MinVisible float64
}

func DefaultConfig() Config {
	return Config{Size: 160, Margin: 0.1, MinVisible: 0.5}
}

// Aligner implements provider.Aligner
type Aligner struct {
	config Config
}

var _ provider.Aligner = (*Aligner)(nil)

func New(cfg Config) *Aligner {
	if cfg.Size <= 0 {
		cfg.Size = DefaultConfig().Size
	}
	return &Aligner{config: cfg}
}

// Align returns the PNG-encoded canonical face. Output is a pure function of
// the frame bytes and the region.
func (a *Aligner) Align(_ context.Context, frame *domain.Frame, region domain.FaceRegion) ([]byte, error) {
	if region.Empty() {
		return nil, domain.ErrAlignmentFailed.WithError(fmt.Errorf("zero-area region %+v", region))
	}

	img, err := frame.Decode()
	if err != nil {
		return nil, domain.ErrAlignmentFailed.WithError(err)
	}

	want := a.grow(region.Rect())
	crop := want.Intersect(img.Bounds())
	if crop.Empty() {
		return nil, domain.ErrAlignmentFailed.WithError(fmt.Errorf("region %v outside frame %v", want, img.Bounds()))
	}
	if visible := area(crop) / area(want); visible < a.config.MinVisible {
		return nil, domain.ErrAlignmentFailed.WithError(
			fmt.Errorf("only %.0f%% of region %v inside frame", visible*100, want))
	}

	dst := image.NewRGBA(image.Rect(0, 0, a.config.Size, a.config.Size))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, squareAround(crop), draw.Src, nil)

	var buf bytes.Buffer
	if err := png.Encode(&buf, dst); err != nil {
		return nil, domain.ErrAlignmentFailed.WithError(err)
	}
	return buf.Bytes(), nil
}

func (a *Aligner) grow(r image.Rectangle) image.Rectangle {
	if a.config.Margin <= 0 {
		return r
	}
	dx := int(float64(r.Dx()) * a.config.Margin)
	dy := int(float64(r.Dy()) * a.config.Margin)
	return image.Rect(r.Min.X-dx, r.Min.Y-dy, r.Max.X+dx, r.Max.Y+dy)
}

// squareAround shrinks r to a centred square so scaling keeps the aspect.
func squareAround(r image.Rectangle) image.Rectangle {
	side := min(r.Dx(), r.Dy())
	x := r.Min.X + (r.Dx()-side)/2
	y := r.Min.Y + (r.Dy()-side)/2
	return image.Rect(x, y, x+side, y+side)
}

func area(r image.Rectangle) float64 {
	return float64(r.Dx()) * float64(r.Dy())
}
