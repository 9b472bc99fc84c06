package service

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/saturnino-fabrica-de-software/chamada/internal/audit"
	"github.com/saturnino-fabrica-de-software/chamada/internal/domain"
	"github.com/saturnino-fabrica-de-software/chamada/internal/face"
	"github.com/saturnino-fabrica-de-software/chamada/internal/provider/align"
	providermock "github.com/saturnino-fabrica-de-software/chamada/internal/provider/mock"
)

const testDim = 64

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// pngImage draws a w x h gradient; different seeds give different bytes.
func pngImage(t testing.TB, w, h, seed int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x + seed), G: uint8(y + seed/256), B: uint8(seed), A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func testPipeline() *face.Pipeline {
	m := providermock.New(testDim)
	return face.NewPipeline(m, align.New(align.Config{Size: 32}), m, testDim)
}

type MockPipeline struct {
	mock.Mock
}

func (m *MockPipeline) Regions(ctx context.Context, frame *domain.Frame) ([]domain.FaceRegion, error) {
	args := m.Called(ctx, frame)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.FaceRegion), args.Error(1)
}

func (m *MockPipeline) EmbedRegion(ctx context.Context, frame *domain.Frame, region domain.FaceRegion) (domain.Embedding, error) {
	args := m.Called(ctx, frame, region)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(domain.Embedding), args.Error(1)
}

func (m *MockPipeline) EmbedPrimary(ctx context.Context, frame *domain.Frame) (domain.Embedding, domain.FaceRegion, error) {
	args := m.Called(ctx, frame)
	if args.Get(0) == nil {
		return nil, args.Get(1).(domain.FaceRegion), args.Error(2)
	}
	return args.Get(0).(domain.Embedding), args.Get(1).(domain.FaceRegion), args.Error(2)
}

type MockGateway struct {
	mock.Mock
}

func (m *MockGateway) PutBlob(ctx context.Context, key string, data []byte) error {
	return m.Called(ctx, key, data).Error(0)
}

func (m *MockGateway) GetBlob(ctx context.Context, key string) ([]byte, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

func (m *MockGateway) PutRecord(ctx context.Context, record *domain.StudentRecord) error {
	return m.Called(ctx, record).Error(0)
}

func (m *MockGateway) GetRecord(ctx context.Context, id string) (*domain.StudentRecord, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.StudentRecord), args.Error(1)
}

func (m *MockGateway) ListRecords(ctx context.Context) ([]domain.StudentRecord, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.StudentRecord), args.Error(1)
}

func (m *MockGateway) FindByFingerprint(ctx context.Context, fingerprint string) (*domain.StudentRecord, error) {
	args := m.Called(ctx, fingerprint)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.StudentRecord), args.Error(1)
}

func (m *MockGateway) IncrementAttendance(ctx context.Context, id, classID string) (int, error) {
	args := m.Called(ctx, id, classID)
	return args.Int(0), args.Error(1)
}

func (m *MockGateway) Ping(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

type publishedEvent struct {
	Type string
	Data any
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []publishedEvent
}

func (p *recordingPublisher) Publish(eventType string, data any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, publishedEvent{Type: eventType, Data: data})
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, e := range p.events {
		out[i] = e.Type
	}
	return out
}

type recordingAudit struct {
	mu     sync.Mutex
	events []audit.Event
}

func (a *recordingAudit) Log(_ context.Context, event audit.Event) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.events = append(a.events, event)
	return nil
}

func (a *recordingAudit) last() audit.Event {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.events[len(a.events)-1]
}
