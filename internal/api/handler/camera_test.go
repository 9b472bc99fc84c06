package handler

import (
	"bufio"
	"bytes"
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saturnino-fabrica-de-software/chamada/internal/domain"
)

func TestCameraHandler_Feed(t *testing.T) {
	cam := &fakeCamera{feed: [][]byte{pngBytes(t), pngBytes(t)}}
	h := NewCameraHandler(cam, testLogger())
	app := newTestApp()
	app.Get("/v1/camera/feed", h.Feed)

	resp, err := app.Test(httptest.NewRequest("GET", "/v1/camera/feed", nil))
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, "multipart/x-mixed-replace; boundary=frame", resp.Header.Get("Content-Type"))

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(string(body), "--frame\r\n"))
	assert.Contains(t, string(body), "Content-Type: image/png")
}

func TestCameraHandler_Disabled(t *testing.T) {
	h := NewCameraHandler(nil, testLogger())
	app := newTestApp()
	app.Get("/v1/camera/feed", h.Feed)
	app.Get("/v1/camera/snapshot", h.Snapshot)

	for _, path := range []string{"/v1/camera/feed", "/v1/camera/snapshot"} {
		resp, err := app.Test(httptest.NewRequest("GET", path, nil))
		require.NoError(t, err)
		assert.Equal(t, 503, resp.StatusCode, path)
	}
}

func TestCameraHandler_Snapshot(t *testing.T) {
	img := pngBytes(t)
	h := NewCameraHandler(&fakeCamera{frame: &domain.Frame{Data: img}}, testLogger())
	app := newTestApp()
	app.Get("/v1/camera/snapshot", h.Snapshot)

	resp, err := app.Test(httptest.NewRequest("GET", "/v1/camera/snapshot", nil))
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, "image/png", resp.Header.Get("Content-Type"))

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, img, body)
}

// closedConn fails every write, like a viewer that went away.
type closedConn struct{}

func (closedConn) Write([]byte) (int, error) {
	return 0, errors.New("broken pipe")
}

func TestCameraHandler_StreamDetectsLeftViewerWhileQuiet(t *testing.T) {
	h := NewCameraHandler(&fakeCamera{}, testLogger())
	h.keepAlive = 5 * time.Millisecond

	frames := make(chan *domain.Frame) // camera publishes nothing
	done := make(chan error, 1)
	go func() { done <- h.stream(bufio.NewWriter(closedConn{}), frames) }()

	select {
	case err := <-done:
		assert.Error(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("stream kept waiting for frames after the viewer left")
	}
}

func TestCameraHandler_StreamRepeatsLastFrame(t *testing.T) {
	h := NewCameraHandler(&fakeCamera{}, testLogger())
	h.keepAlive = 5 * time.Millisecond

	frames := make(chan *domain.Frame, 1)
	frames <- &domain.Frame{Data: pngBytes(t)}

	var buf bytes.Buffer
	done := make(chan error, 1)
	go func() { done <- h.stream(bufio.NewWriter(&buf), frames) }()

	time.Sleep(50 * time.Millisecond)
	close(frames)
	require.NoError(t, <-done)

	assert.GreaterOrEqual(t, strings.Count(buf.String(), "--frame\r\n"), 2)
}
