package handler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saturnino-fabrica-de-software/chamada/internal/domain"
	"github.com/saturnino-fabrica-de-software/chamada/internal/service"
)

func TestRecognitionHandler_Recognize(t *testing.T) {
	region := domain.FaceRegion{X: 10, Y: 10, W: 50, H: 50, Confidence: 0.97}
	matched := &service.Recognition{
		MatchResult: domain.MatchResult{Matched: true, StudentID: "s1", Distance: 0.12},
		Region:      &region,
		Regions:     []domain.FaceRegion{region},
		Student:     &domain.StudentRecord{ID: "s1", Name: "Ana"},
	}

	tests := []struct {
		name        string
		result      *service.Recognition
		err         error
		wantStatus  int
		wantMatched bool
	}{
		{"match", matched, nil, 200, true},
		{"no match is not an error", &service.Recognition{MatchResult: domain.NoMatch()}, nil, 200, false},
		{"persistence failure", nil, domain.ErrPersistence, 503, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewRecognitionHandler(&fakeRecognizer{result: tt.result, err: tt.err}, nil, testLogger())
			app := newTestApp()
			app.Post("/v1/recognize", h.Recognize)

			resp, err := app.Test(multipartRequest(t, "/v1/recognize", nil, pngBytes(t)))
			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, resp.StatusCode)
			if tt.wantStatus != 200 {
				return
			}

			body := decode[RecognizeResponse](t, resp)
			assert.Equal(t, tt.wantMatched, body.Matched)
			assert.NotNil(t, body.Regions)
			if tt.wantMatched {
				assert.Equal(t, "s1", body.StudentID)
				assert.Equal(t, "Ana", body.Name)
				assert.Equal(t, &region, body.Region)
			}
		})
	}
}

func TestRecognitionHandler_Capture(t *testing.T) {
	recognizer := &fakeRecognizer{result: &service.Recognition{MatchResult: domain.NoMatch()}}
	cam := &fakeCamera{frame: &domain.Frame{Data: []byte("jpeg")}}
	h := NewRecognitionHandler(recognizer, cam, testLogger())
	app := newTestApp()
	app.Post("/v1/recognize/capture", h.Capture)

	resp, err := app.Test(jsonRequest(t, "POST", "/v1/recognize/capture", nil))
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, 1, recognizer.frames)
}
