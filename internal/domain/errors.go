package domain

import (
	"fmt"
)

type AppError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	StatusCode int    `json:"-"`
	Err        error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Is matches any AppError carrying the same code, so copies made by
// WithError still satisfy errors.Is against the predefined values.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

func (e *AppError) WithError(err error) *AppError {
	return &AppError{
		Code:       e.Code,
		Message:    e.Message,
		StatusCode: e.StatusCode,
		Err:        err,
	}
}

// Pre-defined errors
var (
	ErrInternal = &AppError{
		Code:       "INTERNAL_ERROR",
		Message:    "An unexpected error occurred",
		StatusCode: 500,
	}

	ErrBadRequest = &AppError{
		Code:       "BAD_REQUEST",
		Message:    "Invalid request",
		StatusCode: 400,
	}

	ErrNotFound = &AppError{
		Code:       "NOT_FOUND",
		Message:    "Resource not found",
		StatusCode: 404,
	}

	ErrValidationFailed = &AppError{
		Code:       "VALIDATION_FAILED",
		Message:    "Request validation failed",
		StatusCode: 422,
	}

	ErrRateLimitExceeded = &AppError{
		Code:       "RATE_LIMIT_EXCEEDED",
		Message:    "Rate limit exceeded, please try again later",
		StatusCode: 429,
	}

	// Camera errors
	ErrCameraUnavailable = &AppError{
		Code:       "CAMERA_UNAVAILABLE",
		Message:    "Video capture device is unavailable",
		StatusCode: 503,
	}

	ErrCameraTimeout = &AppError{
		Code:       "CAMERA_TIMEOUT",
		Message:    "Timed out waiting for a camera frame",
		StatusCode: 504,
	}

	ErrEndOfStream = &AppError{
		Code:       "END_OF_STREAM",
		Message:    "Video stream ended",
		StatusCode: 503,
	}

	// Face pipeline errors
	ErrInvalidImage = &AppError{
		Code:       "INVALID_IMAGE",
		Message:    "Invalid image format or corrupted file",
		StatusCode: 422,
	}

	ErrNoFaceDetected = &AppError{
		Code:       "NO_FACE_DETECTED",
		Message:    "No face detected in the image",
		StatusCode: 422,
	}

	ErrAlignmentFailed = &AppError{
		Code:       "ALIGNMENT_FAILED",
		Message:    "Detected face region could not be aligned",
		StatusCode: 422,
	}

	ErrExtractionFailed = &AppError{
		Code:       "EXTRACTION_FAILED",
		Message:    "Face features could not be extracted",
		StatusCode: 422,
	}

	ErrInvalidEmbedding = &AppError{
		Code:       "INVALID_EMBEDDING",
		Message:    "Embedding has an unexpected length or invalid values",
		StatusCode: 422,
	}

	// Enrollment errors
	ErrDuplicateImage = &AppError{
		Code:       "DUPLICATE_IMAGE",
		Message:    "This image is already enrolled",
		StatusCode: 409,
	}

	ErrIDAllocationConflict = &AppError{
		Code:       "ID_ALLOCATION_CONFLICT",
		Message:    "Allocated identity key already exists",
		StatusCode: 500,
	}

	ErrPersistence = &AppError{
		Code:       "PERSISTENCE_ERROR",
		Message:    "Failed to persist enrollment data",
		StatusCode: 503,
	}

	// Lookup errors
	ErrStudentNotFound = &AppError{
		Code:       "STUDENT_NOT_FOUND",
		Message:    "Student not found",
		StatusCode: 404,
	}

	ErrBlobNotFound = &AppError{
		Code:       "BLOB_NOT_FOUND",
		Message:    "Image not found",
		StatusCode: 404,
	}

	ErrBlobExists = &AppError{
		Code:       "BLOB_ALREADY_EXISTS",
		Message:    "Image key already exists",
		StatusCode: 409,
	}

	// Attendance errors
	ErrClassNotEnrolled = &AppError{
		Code:       "CLASS_NOT_ENROLLED",
		Message:    "Student is not enrolled in this class",
		StatusCode: 422,
	}

	ErrNoMatch = &AppError{
		Code:       "NO_MATCH",
		Message:    "No match found",
		StatusCode: 404,
	}
)
