package rekognition

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/rekognition"
	"github.com/aws/aws-sdk-go-v2/service/rekognition/types"

	"github.com/saturnino-fabrica-de-software/chamada/internal/audit"
	"github.com/saturnino-fabrica-de-software/chamada/internal/domain"
	"github.com/saturnino-fabrica-de-software/chamada/internal/provider"
)

const (
	// maxImageSize is the maximum image size supported by AWS Rekognition (5MB)
	maxImageSize = 5 * 1024 * 1024
	// minImageSize is the minimum image size for valid processing
	minImageSize = 100
)

// Detector implements provider.Detector using the DetectFaces API.
type Detector struct {
	api         DetectFacesAPI
	config      Config
	auditLogger audit.Logger
}

// Option defines optional configuration for Detector
type Option func(*Detector)

// WithAuditLogger sets the audit logger for the detector
func WithAuditLogger(logger audit.Logger) Option {
	return func(d *Detector) {
		d.auditLogger = logger
	}
}

var _ provider.Detector = (*Detector)(nil)

// NewDetector builds a detector around an AWS client.
func NewDetector(api DetectFacesAPI, cfg Config, opts ...Option) *Detector {
	d := &Detector{api: api, config: cfg}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// logAudit logs an audit event if an audit logger is configured
// Audit failure does not affect the operation (fire-and-forget)
func (d *Detector) logAudit(ctx context.Context, success bool, err error, metadata map[string]string) {
	if d.auditLogger == nil {
		return
	}

	event := audit.Event{
		EventType: audit.EventFaceDetected,
		Provider:  "rekognition",
		Success:   success,
		Metadata:  metadata,
	}
	if err != nil {
		event.Error = err.Error()
	}

	_ = d.auditLogger.Log(ctx, event)
}

// validateImage checks if image data is valid for Rekognition processing
func validateImage(image []byte) error {
	if len(image) < minImageSize {
		return domain.ErrInvalidImage.WithError(
			fmt.Errorf("image too small (%d bytes, minimum %d)", len(image), minImageSize))
	}
	if len(image) > maxImageSize {
		return domain.ErrInvalidImage.WithError(
			fmt.Errorf("%w (%d bytes, maximum %d)", ErrImageTooLarge, len(image), maxImageSize))
	}
	return nil
}

// Detect returns faces ordered by confidence, highest first. Bounding boxes
// come back from AWS as frame ratios and are converted to pixels.
func (d *Detector) Detect(ctx context.Context, frame *domain.Frame) ([]domain.FaceRegion, error) {
	meta := map[string]string{"image_size": strconv.Itoa(len(frame.Data))}

	if err := validateImage(frame.Data); err != nil {
		d.logAudit(ctx, false, err, meta)
		return nil, err
	}

	output, err := d.api.DetectFaces(ctx, &rekognition.DetectFacesInput{
		Image:      &types.Image{Bytes: frame.Data},
		Attributes: []types.Attribute{types.AttributeDefault},
	})
	if err != nil {
		err = translateError(err)
		d.logAudit(ctx, false, err, meta)
		return nil, err
	}

	regions := toRegions(output.FaceDetails, frame.Width, frame.Height, d.config.MinConfidence)

	meta["faces_count"] = strconv.Itoa(len(regions))
	d.logAudit(ctx, true, nil, meta)

	return regions, nil
}

func toRegions(details []types.FaceDetail, width, height int, minConfidence float32) []domain.FaceRegion {
	regions := make([]domain.FaceRegion, 0, len(details))
	for _, detail := range details {
		if detail.BoundingBox == nil {
			continue
		}
		conf := aws.ToFloat32(detail.Confidence)
		if conf < minConfidence {
			continue
		}

		box := detail.BoundingBox
		x := int(math.Round(float64(aws.ToFloat32(box.Left)) * float64(width)))
		y := int(math.Round(float64(aws.ToFloat32(box.Top)) * float64(height)))
		w := int(math.Round(float64(aws.ToFloat32(box.Width)) * float64(width)))
		h := int(math.Round(float64(aws.ToFloat32(box.Height)) * float64(height)))

		regions = append(regions, domain.FaceRegion{
			X:          x,
			Y:          y,
			W:          w,
			H:          h,
			Confidence: float64(conf) / 100.0,
		})
	}

	sort.SliceStable(regions, func(i, j int) bool {
		return regions[i].Confidence > regions[j].Confidence
	})
	return regions
}
