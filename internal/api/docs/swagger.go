package docs

import (
	"github.com/go-swagno/swagno"
	"github.com/go-swagno/swagno/components/endpoint"
	"github.com/go-swagno/swagno/components/http/response"
	"github.com/go-swagno/swagno/components/mime"
	"github.com/go-swagno/swagno/components/parameter"
)

// StudentResponse represents an enrolled student
type StudentResponse struct {
	ID        string         `json:"id" example:"550e8400-e29b-41d4-a716-446655440000"`
	Name      string         `json:"name" example:"Ana Souza"`
	Email     string         `json:"email" example:"ana@example.com"`
	Role      string         `json:"role" example:"student"`
	Classes   map[string]int `json:"classes"`
	ImageURL  string         `json:"image_url" example:"/v1/students/550e8400-e29b-41d4-a716-446655440000/image"`
	CreatedAt string         `json:"created_at" example:"2026-03-02T08:00:00Z"`
}

// StudentListResponse represents the enrolled set
type StudentListResponse struct {
	Students []StudentResponse `json:"students"`
	Total    int               `json:"total" example:"32"`
}

// CaptureEnrollRequest is the body of a camera enrollment
type CaptureEnrollRequest struct {
	Name     string   `json:"name" example:"Ana Souza"`
	Email    string   `json:"email" example:"ana@example.com"`
	Role     string   `json:"role" example:"student"`
	Classes  []string `json:"classes" example:"math"`
	Password string   `json:"password,omitempty" example:"s3cret-pass"`
}

// FaceRegion represents a detected face box in pixels
type FaceRegion struct {
	X          int     `json:"x" example:"120"`
	Y          int     `json:"y" example:"80"`
	W          int     `json:"w" example:"160"`
	H          int     `json:"h" example:"160"`
	Confidence float64 `json:"confidence" example:"0.97"`
}

// RecognizeResponse represents a recognition outcome
type RecognizeResponse struct {
	Matched   bool         `json:"matched" example:"true"`
	StudentID string       `json:"student_id,omitempty" example:"550e8400-e29b-41d4-a716-446655440000"`
	Name      string       `json:"name,omitempty" example:"Ana Souza"`
	Distance  float64      `json:"distance" example:"0.12"`
	Region    *FaceRegion  `json:"region,omitempty"`
	Regions   []FaceRegion `json:"regions"`
	LatencyMs int64        `json:"latency_ms" example:"45"`
}

// AttendanceResponse represents a marked presence
type AttendanceResponse struct {
	StudentID string  `json:"student_id" example:"550e8400-e29b-41d4-a716-446655440000"`
	Name      string  `json:"name" example:"Ana Souza"`
	ClassID   string  `json:"class_id" example:"math"`
	Count     int     `json:"count" example:"12"`
	Distance  float64 `json:"distance" example:"0.12"`
}

// ErrorResponse represents a standard error response
type ErrorResponse struct {
	Code    string `json:"code" example:"VALIDATION_FAILED"`
	Message string `json:"message" example:"Request validation failed"`
}

// HealthResponse represents the health and readiness probes
type HealthResponse struct {
	Status  string            `json:"status" example:"ready"`
	Version string            `json:"version,omitempty" example:"0.1.0"`
	Checks  map[string]string `json:"checks,omitempty"`
}

func errorResponse(code, message, status, description string) response.Response {
	return response.New(ErrorResponse{Code: code, Message: message}, status, description)
}

var (
	errValidation  = errorResponse("VALIDATION_FAILED", "Request validation failed", "422", "Unprocessable Entity")
	errInvalidImg  = errorResponse("INVALID_IMAGE", "Invalid image format or corrupted file", "422", "Unprocessable Entity")
	errRateLimit   = errorResponse("RATE_LIMIT_EXCEEDED", "Rate limit exceeded, please try again later", "429", "Too Many Requests")
	errPersistence = errorResponse("PERSISTENCE_ERROR", "Failed to persist enrollment data", "503", "Service Unavailable")
	errCamera      = errorResponse("CAMERA_UNAVAILABLE", "Video capture device is unavailable", "503", "Service Unavailable")
	errCameraTime  = errorResponse("CAMERA_TIMEOUT", "Timed out waiting for a camera frame", "504", "Gateway Timeout")
	errInternal    = errorResponse("INTERNAL_ERROR", "An unexpected error occurred", "500", "Internal Server Error")
)

func NewSwagger() *swagno.Swagger {
	sw := swagno.New(swagno.Config{
		Title:       "Chamada Attendance API",
		Version:     "v1.0.0",
		Description: "Face recognition classroom attendance: enrollment, recognition and attendance counters",
		Host:        "localhost:3000",
		Path:        "/v1",
	})

	enrollErrors := []response.Response{
		errValidation,
		errInvalidImg,
		errorResponse("NO_FACE_DETECTED", "No face detected in the image", "422", "Unprocessable Entity"),
		errorResponse("DUPLICATE_IMAGE", "This image is already enrolled", "409", "Conflict"),
		errRateLimit,
		errorResponse("ID_ALLOCATION_CONFLICT", "Allocated identity key already exists", "500", "Internal Server Error"),
		errPersistence,
	}

	endpoints := []*endpoint.EndPoint{
		// POST /v1/students - Enroll from upload
		endpoint.New(
			endpoint.POST,
			"/students",
			endpoint.WithTags("Students"),
			endpoint.WithSummary("Enroll a student from an uploaded image"),
			endpoint.WithDescription("Multipart form with image (png, jpeg or gif, up to 10MB), name, email, role, classes (repeated or comma separated) and an optional password."),
			endpoint.WithConsume([]mime.MIME{mime.MIME("multipart/form-data")}),
			endpoint.WithProduce([]mime.MIME{mime.JSON}),
			endpoint.WithSuccessfulReturns([]response.Response{
				response.New(StudentResponse{}, "201", "Student enrolled"),
			}),
			endpoint.WithErrors(enrollErrors),
		),

		// POST /v1/students/capture - Enroll from camera
		endpoint.New(
			endpoint.POST,
			"/students/capture",
			endpoint.WithTags("Students"),
			endpoint.WithSummary("Enroll a student from the next camera frame"),
			endpoint.WithBody(CaptureEnrollRequest{}),
			endpoint.WithConsume([]mime.MIME{mime.JSON}),
			endpoint.WithProduce([]mime.MIME{mime.JSON}),
			endpoint.WithSuccessfulReturns([]response.Response{
				response.New(StudentResponse{}, "201", "Student enrolled"),
			}),
			endpoint.WithErrors(append(enrollErrors, errCamera, errCameraTime)),
		),

		// GET /v1/students - List students
		endpoint.New(
			endpoint.GET,
			"/students",
			endpoint.WithTags("Students"),
			endpoint.WithSummary("List enrolled students with their attendance counters"),
			endpoint.WithProduce([]mime.MIME{mime.JSON}),
			endpoint.WithSuccessfulReturns([]response.Response{
				response.New(StudentListResponse{}, "200", "Enrolled students"),
			}),
			endpoint.WithErrors([]response.Response{errPersistence, errInternal}),
		),

		// GET /v1/students/{id}
		endpoint.New(
			endpoint.GET,
			"/students/{id}",
			endpoint.WithTags("Students"),
			endpoint.WithSummary("Get a student"),
			endpoint.WithProduce([]mime.MIME{mime.JSON}),
			endpoint.WithParams(
				parameter.StrParam("id", parameter.Path, parameter.WithDescription("Student id")),
			),
			endpoint.WithSuccessfulReturns([]response.Response{
				response.New(StudentResponse{}, "200", "Student"),
			}),
			endpoint.WithErrors([]response.Response{
				errorResponse("STUDENT_NOT_FOUND", "Student not found", "404", "Not Found"),
				errPersistence,
			}),
		),

		// GET /v1/students/{id}/image
		endpoint.New(
			endpoint.GET,
			"/students/{id}/image",
			endpoint.WithTags("Students"),
			endpoint.WithSummary("Download the enrollment image"),
			endpoint.WithProduce([]mime.MIME{mime.MIME("image/png"), mime.MIME("image/jpeg"), mime.MIME("image/gif")}),
			endpoint.WithParams(
				parameter.StrParam("id", parameter.Path, parameter.WithDescription("Student id")),
			),
			endpoint.WithErrors([]response.Response{
				errorResponse("STUDENT_NOT_FOUND", "Student not found", "404", "Not Found"),
				errorResponse("BLOB_NOT_FOUND", "Image not found", "404", "Not Found"),
			}),
		),

		// POST /v1/recognize
		endpoint.New(
			endpoint.POST,
			"/recognize",
			endpoint.WithTags("Recognition"),
			endpoint.WithSummary("Recognise a student in an uploaded frame"),
			endpoint.WithDescription("Frames without a usable face, or whose face matches nobody within the threshold, return matched=false."),
			endpoint.WithConsume([]mime.MIME{mime.MIME("multipart/form-data")}),
			endpoint.WithProduce([]mime.MIME{mime.JSON}),
			endpoint.WithSuccessfulReturns([]response.Response{
				response.New(RecognizeResponse{}, "200", "Recognition outcome"),
			}),
			endpoint.WithErrors([]response.Response{errValidation, errInvalidImg, errRateLimit, errPersistence}),
		),

		// POST /v1/recognize/capture
		endpoint.New(
			endpoint.POST,
			"/recognize/capture",
			endpoint.WithTags("Recognition"),
			endpoint.WithSummary("Recognise a student in the next camera frame"),
			endpoint.WithProduce([]mime.MIME{mime.JSON}),
			endpoint.WithSuccessfulReturns([]response.Response{
				response.New(RecognizeResponse{}, "200", "Recognition outcome"),
			}),
			endpoint.WithErrors([]response.Response{errCamera, errCameraTime, errPersistence}),
		),

		// POST /v1/attendance
		endpoint.New(
			endpoint.POST,
			"/attendance",
			endpoint.WithTags("Attendance"),
			endpoint.WithSummary("Mark the recognised student present in a class"),
			endpoint.WithDescription("Send class_id with an image part, or class_id alone to use the next camera frame."),
			endpoint.WithConsume([]mime.MIME{mime.MIME("multipart/form-data")}),
			endpoint.WithProduce([]mime.MIME{mime.JSON}),
			endpoint.WithParams(
				parameter.StrParam("class_id", parameter.Query, parameter.WithDescription("Class identifier (may also be sent as a form field)")),
			),
			endpoint.WithSuccessfulReturns([]response.Response{
				response.New(AttendanceResponse{}, "200", "Attendance marked"),
			}),
			endpoint.WithErrors([]response.Response{
				errValidation,
				errorResponse("NO_MATCH", "No match found", "404", "Not Found"),
				errorResponse("CLASS_NOT_ENROLLED", "Student is not enrolled in this class", "422", "Unprocessable Entity"),
				errCamera,
				errCameraTime,
				errPersistence,
			}),
		),

		// GET /v1/camera/feed
		endpoint.New(
			endpoint.GET,
			"/camera/feed",
			endpoint.WithTags("Camera"),
			endpoint.WithSummary("Live camera feed"),
			endpoint.WithDescription("multipart/x-mixed-replace stream of frames; slow viewers skip frames."),
			endpoint.WithProduce([]mime.MIME{mime.MIME("multipart/x-mixed-replace")}),
			endpoint.WithErrors([]response.Response{errCamera}),
		),

		// GET /v1/camera/snapshot
		endpoint.New(
			endpoint.GET,
			"/camera/snapshot",
			endpoint.WithTags("Camera"),
			endpoint.WithSummary("Next camera frame as an image"),
			endpoint.WithProduce([]mime.MIME{mime.MIME("image/jpeg")}),
			endpoint.WithErrors([]response.Response{errCamera, errCameraTime}),
		),

		// GET /v1/ws
		endpoint.New(
			endpoint.GET,
			"/ws",
			endpoint.WithTags("Events"),
			endpoint.WithSummary("Live events websocket"),
			endpoint.WithDescription("Streams student.enrolled, student.recognized and attendance.marked events."),
			endpoint.WithParams(
				parameter.StrParam("events", parameter.Query, parameter.WithDescription("Comma separated event types; all when empty")),
			),
		),
	}

	sw.AddEndpoints(endpoints)

	return sw
}
