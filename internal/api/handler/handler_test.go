package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"

	"github.com/saturnino-fabrica-de-software/chamada/internal/api/middleware"
	"github.com/saturnino-fabrica-de-software/chamada/internal/domain"
	"github.com/saturnino-fabrica-de-software/chamada/internal/service"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestApp() *fiber.App {
	return fiber.New(fiber.Config{
		ErrorHandler: middleware.ErrorHandler(testLogger()),
		BodyLimit:    12 * 1024 * 1024,
	})
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	img.Set(1, 1, color.RGBA{R: 255, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

// multipartRequest builds a POST with the given fields and, when image is
// not nil, an "image" file part.
func multipartRequest(t *testing.T, target string, fields map[string][]string, image []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	for k, values := range fields {
		for _, v := range values {
			require.NoError(t, w.WriteField(k, v))
		}
	}
	if image != nil {
		part, err := w.CreateFormFile("image", "face.png")
		require.NoError(t, err)
		_, err = part.Write(image)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest("POST", target, &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func jsonRequest(t *testing.T, method, target string, payload any) *http.Request {
	t.Helper()
	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	req := httptest.NewRequest(method, target, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	return req
}

type errorResponse struct {
	Error struct {
		Code    string            `json:"code"`
		Message string            `json:"message"`
		Details map[string]string `json:"details"`
	} `json:"error"`
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var out T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

type fakeEnroller struct {
	got   domain.EnrollmentRequest
	image []byte
	err   error
}

func (f *fakeEnroller) Enroll(_ context.Context, image []byte, req domain.EnrollmentRequest) (*domain.StudentRecord, error) {
	f.got = req
	f.image = image
	if f.err != nil {
		return nil, f.err
	}
	return &domain.StudentRecord{
		ID:      "s1",
		Name:    req.Name,
		Email:   req.Email,
		Role:    "student",
		Classes: req.ClassCounters(),
	}, nil
}

type fakeStudents struct {
	records []domain.StudentRecord
	image   []byte
}

func (f *fakeStudents) Get(_ context.Context, id string) (*domain.StudentRecord, error) {
	for i := range f.records {
		if f.records[i].ID == id {
			return &f.records[i], nil
		}
	}
	return nil, domain.ErrStudentNotFound
}

func (f *fakeStudents) List(context.Context) ([]domain.StudentRecord, error) {
	return f.records, nil
}

func (f *fakeStudents) Image(ctx context.Context, id string) ([]byte, error) {
	if _, err := f.Get(ctx, id); err != nil {
		return nil, err
	}
	return f.image, nil
}

type fakeRecognizer struct {
	result *service.Recognition
	err    error
	frames int
}

func (f *fakeRecognizer) Recognize(context.Context, []byte) (*service.Recognition, error) {
	return f.result, f.err
}

func (f *fakeRecognizer) RecognizeFrame(context.Context, *domain.Frame) (*service.Recognition, error) {
	f.frames++
	return f.result, f.err
}

type fakeMarker struct {
	classID string
	result  *service.AttendanceResult
	err     error
	frames  int
}

func (f *fakeMarker) Mark(_ context.Context, classID string, _ []byte) (*service.AttendanceResult, error) {
	f.classID = classID
	return f.result, f.err
}

func (f *fakeMarker) MarkFrame(_ context.Context, classID string, _ *domain.Frame) (*service.AttendanceResult, error) {
	f.classID = classID
	f.frames++
	return f.result, f.err
}

type fakeCamera struct {
	frame     *domain.Frame
	err       error
	feed      [][]byte
	available bool
}

func (f *fakeCamera) Capture(context.Context) (*domain.Frame, error) {
	return f.frame, f.err
}

func (f *fakeCamera) Subscribe() (<-chan *domain.Frame, func()) {
	ch := make(chan *domain.Frame, len(f.feed))
	for _, data := range f.feed {
		ch <- &domain.Frame{Data: data}
	}
	close(ch)
	return ch, func() {}
}

func (f *fakeCamera) Available() bool {
	return f.available
}

type stubHasher struct{}

func (stubHasher) Hash(password string) (string, error) {
	return "hashed:" + strings.ToUpper(password), nil
}
