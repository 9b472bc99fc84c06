package handler

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"reflect"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/matthewhartstonge/argon2"

	"github.com/saturnino-fabrica-de-software/chamada/internal/domain"
	"github.com/saturnino-fabrica-de-software/chamada/internal/service"
)

const (
	maxImageSize = 10 * 1024 * 1024 // 10MB
)

var validImageTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
}

// Enroller registers students from an image.
type Enroller interface {
	Enroll(ctx context.Context, image []byte, req domain.EnrollmentRequest) (*domain.StudentRecord, error)
}

// StudentReader serves the enrolled set.
type StudentReader interface {
	Get(ctx context.Context, id string) (*domain.StudentRecord, error)
	List(ctx context.Context) ([]domain.StudentRecord, error)
	Image(ctx context.Context, id string) ([]byte, error)
}

// Recognizer identifies students in a frame.
type Recognizer interface {
	Recognize(ctx context.Context, frameBytes []byte) (*service.Recognition, error)
	RecognizeFrame(ctx context.Context, frame *domain.Frame) (*service.Recognition, error)
}

// AttendanceMarker counts recognised students present.
type AttendanceMarker interface {
	Mark(ctx context.Context, classID string, frameBytes []byte) (*service.AttendanceResult, error)
	MarkFrame(ctx context.Context, classID string, frame *domain.Frame) (*service.AttendanceResult, error)
}

// FrameSource is the shared camera, satisfied by *camera.Source. A nil
// FrameSource means the camera is disabled.
type FrameSource interface {
	Capture(ctx context.Context) (*domain.Frame, error)
	Subscribe() (<-chan *domain.Frame, func())
	Available() bool
}

// capture grabs one frame or fails with CAMERA_UNAVAILABLE when there is
// no camera.
func capture(ctx context.Context, src FrameSource) (*domain.Frame, error) {
	if src == nil {
		return nil, domain.ErrCameraUnavailable.WithError(fmt.Errorf("camera is disabled"))
	}
	frame, err := src.Capture(ctx)
	if err != nil {
		return nil, fmt.Errorf("capture frame: %w", err)
	}
	return frame, nil
}

// hasImage reports whether the multipart request carries an image part.
func hasImage(c *fiber.Ctx) bool {
	file, err := c.FormFile("image")
	return err == nil && file != nil
}

func extractAndValidateImage(c *fiber.Ctx) ([]byte, error) {
	// 1. Extract file
	file, err := c.FormFile("image")
	if err != nil {
		return nil, domain.ErrValidationFailed.WithError(fmt.Errorf("image is required: %w", err))
	}

	// 2. Validate size
	if file.Size > maxImageSize {
		return nil, domain.ErrInvalidImage.WithError(fmt.Errorf("image is larger than %d bytes", maxImageSize))
	}

	if file.Size == 0 {
		return nil, domain.ErrInvalidImage.WithError(fmt.Errorf("image is empty"))
	}

	// 3. Read image bytes
	imageBytes, err := readFile(file)
	if err != nil {
		return nil, domain.ErrInvalidImage.WithError(err)
	}

	// 4. Validate the sniffed type; the declared Content-Type is not trusted
	if contentType := http.DetectContentType(imageBytes); !validImageTypes[contentType] {
		return nil, domain.ErrInvalidImage.WithError(fmt.Errorf("unsupported image type %s", contentType))
	}

	return imageBytes, nil
}

func readFile(file *multipart.FileHeader) ([]byte, error) {
	f, err := file.Open()
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = f.Close()
	}()

	return io.ReadAll(io.LimitReader(f, maxImageSize+1))
}

// validationErrors maps a json field to the rule it broke.
type validationErrors map[string]string

func (v validationErrors) Error() string {
	fields := make([]string, 0, len(v))
	for f, rule := range v {
		fields = append(fields, f+": "+rule)
	}
	sort.Strings(fields)
	return strings.Join(fields, ", ")
}

func (v validationErrors) Details() map[string]string {
	return v
}

// RequestValidator validates request payloads with go-playground/validator,
// reporting fields by their json name.
type RequestValidator struct {
	validate *validator.Validate
}

func NewRequestValidator() *RequestValidator {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &RequestValidator{validate: v}
}

func (rv *RequestValidator) Struct(payload any) error {
	err := rv.validate.Struct(payload)
	if err == nil {
		return nil
	}
	fieldErrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return domain.ErrValidationFailed.WithError(err)
	}
	out := make(validationErrors, len(fieldErrs))
	for _, fe := range fieldErrs {
		out[fieldName(fe)] = fe.Tag()
	}
	return domain.ErrValidationFailed.WithError(out)
}

// fieldName drops the root struct name from the namespace.
func fieldName(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.Index(ns, "."); i >= 0 {
		return ns[i+1:]
	}
	return fe.Field()
}

// CredentialHasher produces the opaque credential stored with a student.
type CredentialHasher interface {
	Hash(password string) (string, error)
}

// Argon2Hasher hashes passwords into the encoded argon2id format.
type Argon2Hasher struct {
	config argon2.Config
}

func NewArgon2Hasher() *Argon2Hasher {
	return &Argon2Hasher{config: argon2.DefaultConfig()}
}

func (h *Argon2Hasher) Hash(password string) (string, error) {
	encoded, err := h.config.HashEncoded([]byte(password))
	if err != nil {
		return "", fmt.Errorf("hash credential: %w", err)
	}
	return string(encoded), nil
}
