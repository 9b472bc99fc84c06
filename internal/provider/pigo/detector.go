// Package pigo is a local, pure Go face detector built on the pigo cascade
// classifier. It needs no network service, only the facefinder cascade file.
package pigo

import (
	"context"
	"fmt"
	"image"
	"os"
	"sort"

	pigo "github.com/esimov/pigo/core"

	"github.com/saturnino-fabrica-de-software/chamada/internal/domain"
	"github.com/saturnino-fabrica-de-software/chamada/internal/provider"
)

// Config holds the cascade parameters
type Config struct {
	CascadePath      string
	MinSize          int
	MaxSize          int
	ShiftFactor      float64
	ScaleFactor      float64
	QualityThreshold float32
	IoUThreshold     float64
}

// DefaultConfig returns parameters tuned for webcam frames of a single
// classroom seat.
func DefaultConfig() Config {
	return Config{
		CascadePath:      "cascade/facefinder",
		MinSize:          60,
		MaxSize:          1000,
		ShiftFactor:      0.1,
		ScaleFactor:      1.1,
		QualityThreshold: 5.0,
		IoUThreshold:     0.2,
	}
}

// Detector implements provider.Detector
type Detector struct {
	classifier *pigo.Pigo
	config     Config
}

var _ provider.Detector = (*Detector)(nil)

// NewDetector loads the cascade file from cfg.CascadePath.
func NewDetector(cfg Config) (*Detector, error) {
	cascade, err := os.ReadFile(cfg.CascadePath)
	if err != nil {
		return nil, fmt.Errorf("read pigo cascade: %w", err)
	}
	return NewDetectorFromCascade(cascade, cfg)
}

// NewDetectorFromCascade unpacks an in-memory cascade.
func NewDetectorFromCascade(cascade []byte, cfg Config) (*Detector, error) {
	classifier, err := pigo.NewPigo().Unpack(cascade)
	if err != nil {
		return nil, fmt.Errorf("unpack pigo cascade: %w", err)
	}
	return &Detector{classifier: classifier, config: cfg}, nil
}

// Detect runs the cascade over a grayscale copy of the frame. Regions are
// ordered by detection quality, best first.
func (d *Detector) Detect(ctx context.Context, frame *domain.Frame) ([]domain.FaceRegion, error) {
	img, err := frame.Decode()
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	pixels, cols, rows := grayscale(img)

	params := pigo.CascadeParams{
		MinSize:     d.config.MinSize,
		MaxSize:     d.config.MaxSize,
		ShiftFactor: d.config.ShiftFactor,
		ScaleFactor: d.config.ScaleFactor,
		ImageParams: pigo.ImageParams{
			Pixels: pixels,
			Rows:   rows,
			Cols:   cols,
			Dim:    cols,
		},
	}

	dets := d.classifier.RunCascade(params, 0.0)
	dets = d.classifier.ClusterDetections(dets, d.config.IoUThreshold)

	return toRegions(dets, d.config.QualityThreshold, cols, rows), nil
}

// grayscale converts img to the row-major luminance buffer pigo expects.
func grayscale(img image.Image) ([]uint8, int, int) {
	b := img.Bounds()
	cols, rows := b.Dx(), b.Dy()

	pixels := make([]uint8, cols*rows)
	for y := 0; y < rows; y++ {
		for x := 0; x < cols; x++ {
			r, g, bl, _ := img.At(b.Min.X+x, b.Min.Y+y).RGBA()
			pixels[y*cols+x] = uint8((r*299 + g*587 + bl*114) / 1000 / 256)
		}
	}
	return pixels, cols, rows
}

// toRegions keeps detections above threshold, converts pigo's centre/scale
// form into boxes clipped to the frame, and sorts them by quality.
func toRegions(dets []pigo.Detection, threshold float32, cols, rows int) []domain.FaceRegion {
	sort.SliceStable(dets, func(i, j int) bool { return dets[i].Q > dets[j].Q })

	bounds := image.Rect(0, 0, cols, rows)
	regions := make([]domain.FaceRegion, 0, len(dets))
	for _, det := range dets {
		if det.Q <= threshold {
			continue
		}
		half := det.Scale / 2
		r := image.Rect(det.Col-half, det.Row-half, det.Col-half+det.Scale, det.Row-half+det.Scale).Intersect(bounds)
		if r.Empty() {
			continue
		}
		regions = append(regions, domain.FaceRegion{
			X:          r.Min.X,
			Y:          r.Min.Y,
			W:          r.Dx(),
			H:          r.Dy(),
			Confidence: float64(det.Q),
		})
	}
	return regions
}
