package main

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saturnino-fabrica-de-software/chamada/internal/app"
	"github.com/saturnino-fabrica-de-software/chamada/internal/config"
	"github.com/saturnino-fabrica-de-software/chamada/internal/domain"
)

func writeImage(t *testing.T, dir string, seed int) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 80, 80))
	for y := 0; y < 80; y++ {
		for x := 0; x < 80; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x + seed), G: uint8(y * seed), B: uint8(seed), A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))

	path := filepath.Join(dir, "face.png")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o600))
	return path
}

// memoryOpener shares one in-memory core across invocations.
func memoryOpener(t *testing.T) opener {
	t.Helper()
	cfg := &config.Config{
		RecordStore:        config.StoreMemory,
		BlobStore:          config.StoreMemory,
		Detector:           config.DetectorMock,
		Extractor:          config.ExtractorMock,
		EmbeddingDim:       64,
		MatchMetric:        "cosine",
		MatchThreshold:     0.30,
		PersistenceRetries: 1,
	}
	core, err := app.Open(context.Background(), cfg, slog.New(slog.NewTextHandler(io.Discard, nil)), app.Options{})
	require.NoError(t, err)
	return func(context.Context) (*app.App, error) { return core, nil }
}

func execute(t *testing.T, open opener, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := newRootCmd(open)
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestCLI_EnrollRecognizeAttend(t *testing.T) {
	open := memoryOpener(t)
	path := writeImage(t, t.TempDir(), 2)

	out, err := execute(t, open, "students")
	require.NoError(t, err)
	assert.Contains(t, out, "No students enrolled.")

	out, err = execute(t, open, "enroll", "--image", path, "--name", "Ana", "--classes", "math, history")
	require.NoError(t, err)
	assert.Contains(t, out, "enrolled Ana")

	out, err = execute(t, open, "recognize", "--image", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Ana (")

	out, err = execute(t, open, "attend", "--image", path, "--class", "math")
	require.NoError(t, err)
	assert.Contains(t, out, "Ana present in math (1)")

	out, err = execute(t, open, "students")
	require.NoError(t, err)
	assert.Contains(t, out, "history=0 math=1")
}

func TestCLI_Errors(t *testing.T) {
	open := memoryOpener(t)
	path := writeImage(t, t.TempDir(), 5)

	_, err := execute(t, open, "enroll", "--image", path)
	assert.EqualError(t, err, "--name is required")

	_, err = execute(t, open, "recognize")
	assert.ErrorIs(t, err, domain.ErrCameraUnavailable)

	_, err = execute(t, open, "attend", "--image", path)
	assert.Error(t, err, "--class is required")

	_, err = execute(t, open, "attend", "--image", path, "--class", "math")
	assert.ErrorIs(t, err, domain.ErrNoMatch)

	out, err := execute(t, open, "recognize", "--image", path)
	require.NoError(t, err)
	assert.Contains(t, out, "no match (1 faces)")
}

func TestFormatClasses(t *testing.T) {
	assert.Equal(t, "", formatClasses(nil))
	assert.Equal(t, "art=2 math=0", formatClasses(map[string]int{"math": 0, "art": 2}))
}
