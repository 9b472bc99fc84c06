package deepface

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrDeepFaceUnavailable = errors.New("deepface service unavailable")
	ErrInvalidResponse     = errors.New("invalid response from deepface")
	ErrNoFaceInResponse    = errors.New("no face data in deepface response")
)

// StatusError is a non-2xx answer from the DeepFace API.
type StatusError struct {
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("deepface returned status %d: %s", e.Status, e.Body)
}

// IsClientError reports a 4xx answer, which is never retried.
func (e *StatusError) IsClientError() bool {
	return e.Status >= 400 && e.Status < 500
}

// noFaceDetected matches DeepFace's enforce_detection failure message.
func (e *StatusError) noFaceDetected() bool {
	return e.IsClientError() && strings.Contains(strings.ToLower(e.Body), "could not be detected")
}
