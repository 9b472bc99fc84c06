package domain

import (
	"bytes"
	"image"
	"time"

	// decoders registered for image.Decode
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
)

// Frame é uma imagem capturada (JPEG/PNG codificado)
type Frame struct {
	Data       []byte    `json:"-"`
	Width      int       `json:"width"`
	Height     int       `json:"height"`
	CapturedAt time.Time `json:"captured_at"`
}

// FaceRegion is a detected face bounding box in frame pixel coordinates.
type FaceRegion struct {
	X          int     `json:"x"`
	Y          int     `json:"y"`
	W          int     `json:"w"`
	H          int     `json:"h"`
	Confidence float64 `json:"confidence"`
}

// Rect converts the region to an image.Rectangle.
func (r FaceRegion) Rect() image.Rectangle {
	return image.Rect(r.X, r.Y, r.X+r.W, r.Y+r.H)
}

// Empty reports a zero-area region.
func (r FaceRegion) Empty() bool {
	return r.W <= 0 || r.H <= 0
}

// NewFrame builds a Frame from encoded image bytes, reading only the header
// for dimensions.
func NewFrame(data []byte, capturedAt time.Time) (*Frame, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, ErrInvalidImage.WithError(err)
	}
	return &Frame{
		Data:       data,
		Width:      cfg.Width,
		Height:     cfg.Height,
		CapturedAt: capturedAt,
	}, nil
}

// Decode decodes the frame pixels.
func (f *Frame) Decode() (image.Image, error) {
	img, _, err := image.Decode(bytes.NewReader(f.Data))
	if err != nil {
		return nil, ErrInvalidImage.WithError(err)
	}
	return img, nil
}
