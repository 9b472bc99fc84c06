package webhook

import (
	"time"

	"github.com/google/uuid"
)

// Endpoint is one subscriber of attendance events.
type Endpoint struct {
	URL    string
	Secret string
	// Events filters deliveries; empty means every event.
	Events []string
}

func (e Endpoint) wants(eventType string) bool {
	if len(e.Events) == 0 {
		return true
	}
	for _, t := range e.Events {
		if t == eventType {
			return true
		}
	}
	return false
}

// EventPayload is the JSON body POSTed to an endpoint.
type EventPayload struct {
	ID        uuid.UUID `json:"id"`
	Type      string    `json:"type"`
	Data      any       `json:"data"`
	Timestamp time.Time `json:"timestamp"`
}

// delivery is one payload queued for one endpoint.
type delivery struct {
	endpoint Endpoint
	id       uuid.UUID
	event    string
	payload  []byte
}
