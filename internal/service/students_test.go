package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saturnino-fabrica-de-software/chamada/internal/domain"
	"github.com/saturnino-fabrica-de-software/chamada/internal/repository/memory"
)

func TestStudentService(t *testing.T) {
	store := memory.New()
	ctx := context.Background()
	img := pngImage(t, 80, 80, 4)
	enrolled, err := NewEnrollmentService(store, testPipeline(), testLogger()).
		Enroll(ctx, img, enrollRequest("ana", "math"))
	require.NoError(t, err)

	svc := NewStudentService(store)

	got, err := svc.Get(ctx, enrolled.ID)
	require.NoError(t, err)
	assert.Equal(t, enrolled.Name, got.Name)

	list, err := svc.List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	data, err := svc.Image(ctx, enrolled.ID)
	require.NoError(t, err)
	assert.Equal(t, img, data)

	_, err = svc.Get(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrStudentNotFound)

	_, err = svc.Image(ctx, "")
	assert.ErrorIs(t, err, domain.ErrStudentNotFound)
}

func TestPublishers(t *testing.T) {
	a, b := &recordingPublisher{}, &recordingPublisher{}

	Publishers{a, b}.Publish(EventAttendanceMarked, nil)

	assert.Equal(t, []string{EventAttendanceMarked}, a.types())
	assert.Equal(t, []string{EventAttendanceMarked}, b.types())
}
