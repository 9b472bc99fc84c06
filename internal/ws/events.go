package ws

import (
	"time"

	"github.com/google/uuid"
)

type EventType string

// Mirrors the service event names.
const (
	EventStudentEnrolled   EventType = "student.enrolled"
	EventStudentRecognized EventType = "student.recognized"
	EventAttendanceMarked  EventType = "attendance.marked"
)

type Event struct {
	ID        uuid.UUID   `json:"id"`
	Type      EventType   `json:"type"`
	Data      interface{} `json:"data"`
	Timestamp time.Time   `json:"timestamp"`
}
