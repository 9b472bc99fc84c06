package ws

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startHub(t *testing.T) *Hub {
	t.Helper()
	hub := NewHub(slog.New(slog.NewTextHandler(io.Discard, nil)))
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)
	return hub
}

func testClient(hub *Hub, topics string, buffer int) *Client {
	return &Client{
		hub:    hub,
		topics: parseTopics(topics),
		send:   make(chan []byte, buffer),
	}
}

func TestNewHub(t *testing.T) {
	hub := NewHub(nil)

	assert.NotNil(t, hub)
	assert.NotNil(t, hub.clients)
	assert.NotNil(t, hub.broadcast)
	assert.NotNil(t, hub.register)
	assert.NotNil(t, hub.unregister)
}

func TestHub_AddAndRemoveClient(t *testing.T) {
	hub := startHub(t)
	client := testClient(hub, "", 1)

	hub.register <- client
	time.Sleep(50 * time.Millisecond)

	assert.Equal(t, 1, hub.ConnectedClients())

	hub.unregister <- client
	time.Sleep(50 * time.Millisecond)

	assert.Equal(t, 0, hub.ConnectedClients())
}

func TestHub_Publish(t *testing.T) {
	hub := startHub(t)
	client := testClient(hub, "", 10)

	hub.register <- client
	time.Sleep(50 * time.Millisecond)

	hub.Publish("student.recognized", map[string]string{"student_id": "s1"})

	select {
	case msg := <-client.send:
		var event struct {
			ID   string            `json:"id"`
			Type EventType         `json:"type"`
			Data map[string]string `json:"data"`
		}
		require.NoError(t, json.Unmarshal(msg, &event))
		assert.Equal(t, EventStudentRecognized, event.Type)
		assert.Equal(t, "s1", event.Data["student_id"])
		assert.NotEmpty(t, event.ID)
	case <-time.After(1 * time.Second):
		t.Fatal("timeout waiting for message")
	}
}

func TestHub_TopicFilter(t *testing.T) {
	hub := startHub(t)

	attendance := testClient(hub, "attendance.marked", 10)
	everything := testClient(hub, "", 10)

	hub.register <- attendance
	hub.register <- everything
	time.Sleep(50 * time.Millisecond)

	hub.Broadcast(EventStudentEnrolled, map[string]string{"id": "s1"})

	select {
	case <-everything.send:
	case <-time.After(100 * time.Millisecond):
		t.Fatal("unfiltered client should receive message")
	}

	select {
	case <-attendance.send:
		t.Fatal("attendance-only client should not receive enrollment events")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestHub_DropsSlowClient(t *testing.T) {
	hub := startHub(t)
	slow := testClient(hub, "", 0)

	hub.register <- slow
	time.Sleep(50 * time.Millisecond)

	hub.Broadcast(EventAttendanceMarked, nil)
	time.Sleep(50 * time.Millisecond)

	assert.Equal(t, 0, hub.ConnectedClients())
	_, open := <-slow.send
	assert.False(t, open)
}

func TestHub_RunStopsWithContext(t *testing.T) {
	hub := NewHub(nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(done)
	}()

	client := testClient(hub, "", 1)
	hub.register <- client
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("hub did not stop")
	}
	_, open := <-client.send
	assert.False(t, open)
}

func TestParseTopics(t *testing.T) {
	assert.Empty(t, parseTopics(""))
	assert.Equal(t, map[EventType]bool{
		EventStudentEnrolled:  true,
		EventAttendanceMarked: true,
	}, parseTopics(" student.enrolled, ,attendance.marked"))
}
