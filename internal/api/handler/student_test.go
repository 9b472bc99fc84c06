package handler

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/matthewhartstonge/argon2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saturnino-fabrica-de-software/chamada/internal/domain"
)

func TestStudentHandler_Create(t *testing.T) {
	img := pngBytes(t)
	validFields := map[string][]string{
		"name":     {"Ana Souza"},
		"email":    {"ana@example.com"},
		"classes":  {"math, history", "art"},
		"password": {"s3cret-pass"},
	}

	tests := []struct {
		name        string
		fields      map[string][]string
		image       []byte
		enrollErr   error
		wantStatus  int
		wantCode    string
		wantDetails map[string]string
	}{
		{
			name:       "enrolls an uploaded image",
			fields:     validFields,
			image:      img,
			wantStatus: 201,
		},
		{
			name:       "missing image",
			fields:     validFields,
			wantStatus: 422,
			wantCode:   "VALIDATION_FAILED",
		},
		{
			name:       "unsupported image type",
			fields:     validFields,
			image:      []byte("%PDF-1.4 not an image"),
			wantStatus: 422,
			wantCode:   "INVALID_IMAGE",
		},
		{
			name: "invalid metadata",
			fields: map[string][]string{
				"name":     {""},
				"email":    {"not-an-email"},
				"role":     {"admin"},
				"password": {"short"},
			},
			image:      img,
			wantStatus: 422,
			wantCode:   "VALIDATION_FAILED",
			wantDetails: map[string]string{
				"name":     "required",
				"email":    "email",
				"role":     "oneof",
				"password": "min",
			},
		},
		{
			name:       "duplicate image",
			fields:     validFields,
			image:      img,
			enrollErr:  domain.ErrDuplicateImage,
			wantStatus: 409,
			wantCode:   "DUPLICATE_IMAGE",
		},
		{
			name:       "no face",
			fields:     validFields,
			image:      img,
			enrollErr:  domain.ErrNoFaceDetected,
			wantStatus: 422,
			wantCode:   "NO_FACE_DETECTED",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			enroller := &fakeEnroller{err: tt.enrollErr}
			h := NewStudentHandler(enroller, &fakeStudents{}, nil, stubHasher{}, testLogger())
			app := newTestApp()
			app.Post("/v1/students", h.Create)

			resp, err := app.Test(multipartRequest(t, "/v1/students", tt.fields, tt.image))
			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, resp.StatusCode)

			if tt.wantStatus == 201 {
				body := decode[StudentResponse](t, resp)
				assert.Equal(t, "s1", body.ID)
				assert.Equal(t, "/v1/students/s1/image", body.ImageURL)
				assert.Equal(t, []string{"math", "history", "art"}, enroller.got.Classes)
				assert.Equal(t, "hashed:S3CRET-PASS", enroller.got.CredentialHash)
				assert.Equal(t, img, enroller.image)
				return
			}

			body := decode[errorResponse](t, resp)
			assert.Equal(t, tt.wantCode, body.Error.Code)
			if tt.wantDetails != nil {
				assert.Equal(t, tt.wantDetails, body.Error.Details)
			}
		})
	}
}

func TestStudentHandler_Capture(t *testing.T) {
	payload := map[string]any{"name": "Ana", "email": "ana@example.com", "classes": []string{"math"}}

	t.Run("camera disabled", func(t *testing.T) {
		h := NewStudentHandler(&fakeEnroller{}, &fakeStudents{}, nil, stubHasher{}, testLogger())
		app := newTestApp()
		app.Post("/v1/students/capture", h.Capture)

		resp, err := app.Test(jsonRequest(t, "POST", "/v1/students/capture", payload))
		require.NoError(t, err)
		assert.Equal(t, 503, resp.StatusCode)
		assert.Equal(t, "CAMERA_UNAVAILABLE", decode[errorResponse](t, resp).Error.Code)
	})

	t.Run("camera timeout", func(t *testing.T) {
		cam := &fakeCamera{err: domain.ErrCameraTimeout}
		h := NewStudentHandler(&fakeEnroller{}, &fakeStudents{}, cam, stubHasher{}, testLogger())
		app := newTestApp()
		app.Post("/v1/students/capture", h.Capture)

		resp, err := app.Test(jsonRequest(t, "POST", "/v1/students/capture", payload))
		require.NoError(t, err)
		assert.Equal(t, 504, resp.StatusCode)
	})

	t.Run("enrolls the captured frame", func(t *testing.T) {
		frame := &domain.Frame{Data: []byte("jpeg"), Width: 640, Height: 480, CapturedAt: time.Now()}
		enroller := &fakeEnroller{}
		h := NewStudentHandler(enroller, &fakeStudents{}, &fakeCamera{frame: frame}, stubHasher{}, testLogger())
		app := newTestApp()
		app.Post("/v1/students/capture", h.Capture)

		resp, err := app.Test(jsonRequest(t, "POST", "/v1/students/capture", payload))
		require.NoError(t, err)
		assert.Equal(t, 201, resp.StatusCode)
		assert.Equal(t, frame.Data, enroller.image)
		assert.Empty(t, enroller.got.CredentialHash)
	})
}

func TestStudentHandler_Lookups(t *testing.T) {
	students := &fakeStudents{
		records: []domain.StudentRecord{
			{ID: "a", Name: "Ana", Classes: map[string]int{"math": 3}, CreatedAt: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)},
			{ID: "b", Name: "Bia"},
		},
		image: pngBytes(t),
	}
	h := NewStudentHandler(&fakeEnroller{}, students, nil, stubHasher{}, testLogger())
	app := newTestApp()
	app.Get("/v1/students", h.List)
	app.Get("/v1/students/:id", h.Get)
	app.Get("/v1/students/:id/image", h.Image)

	resp, err := app.Test(httptest.NewRequest("GET", "/v1/students", nil))
	require.NoError(t, err)
	list := decode[StudentListResponse](t, resp)
	assert.Equal(t, 2, list.Total)
	assert.Equal(t, 3, list.Students[0].Classes["math"])
	assert.Equal(t, "2026-03-01T00:00:00Z", list.Students[0].CreatedAt)
	assert.NotNil(t, list.Students[1].Classes)

	resp, err = app.Test(httptest.NewRequest("GET", "/v1/students/b", nil))
	require.NoError(t, err)
	assert.Equal(t, "Bia", decode[StudentResponse](t, resp).Name)

	resp, err = app.Test(httptest.NewRequest("GET", "/v1/students/zzz", nil))
	require.NoError(t, err)
	assert.Equal(t, 404, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest("GET", "/v1/students/a/image", nil))
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, "image/png", resp.Header.Get("Content-Type"))
}

func TestArgon2Hasher(t *testing.T) {
	hash, err := NewArgon2Hasher().Hash("s3cret-pass")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(hash, "$argon2id$"))

	ok, err := argon2.VerifyEncoded([]byte("s3cret-pass"), []byte(hash))
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestSplitClasses(t *testing.T) {
	assert.Equal(t, []string{"math", "art"}, splitClasses([]string{" math ,art", "math", ""}))
	assert.Equal(t, []string{}, splitClasses(nil))
}
