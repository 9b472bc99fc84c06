package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/saturnino-fabrica-de-software/chamada/internal/domain"
)

// EnrollRequest is the metadata of an enrollment. Multipart uploads send it
// as form fields; camera captures as a JSON body.
type EnrollRequest struct {
	Name     string   `json:"name" form:"name"`
	Email    string   `json:"email" form:"email"`
	Role     string   `json:"role" form:"role"`
	Classes  []string `json:"classes" form:"classes"`
	Password string   `json:"password" form:"password"`
}

// credentials is validated next to the domain request.
type credentials struct {
	Password string `json:"password" validate:"omitempty,min=8,max=72"`
}

// StudentResponse is a StudentRecord without biometric data.
type StudentResponse struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Email     string         `json:"email"`
	Role      string         `json:"role"`
	Classes   map[string]int `json:"classes"`
	ImageURL  string         `json:"image_url"`
	CreatedAt string         `json:"created_at"`
}

type StudentListResponse struct {
	Students []StudentResponse `json:"students"`
	Total    int               `json:"total"`
}

func newStudentResponse(r *domain.StudentRecord) StudentResponse {
	classes := r.Classes
	if classes == nil {
		classes = map[string]int{}
	}
	return StudentResponse{
		ID:        r.ID,
		Name:      r.Name,
		Email:     r.Email,
		Role:      r.Role,
		Classes:   classes,
		ImageURL:  "/v1/students/" + r.ID + "/image",
		CreatedAt: r.CreatedAt.UTC().Format(time.RFC3339),
	}
}

// StudentHandler handles enrollment and student lookups
type StudentHandler struct {
	enroller  Enroller
	students  StudentReader
	camera    FrameSource
	hasher    CredentialHasher
	validator *RequestValidator
	logger    *slog.Logger
}

func NewStudentHandler(enroller Enroller, students StudentReader, camera FrameSource, hasher CredentialHasher, logger *slog.Logger) *StudentHandler {
	return &StudentHandler{
		enroller:  enroller,
		students:  students,
		camera:    camera,
		hasher:    hasher,
		validator: NewRequestValidator(),
		logger:    logger,
	}
}

// Create POST /v1/students - enroll from an uploaded image
func (h *StudentHandler) Create(c *fiber.Ctx) error {
	var body EnrollRequest
	if err := c.BodyParser(&body); err != nil {
		return domain.ErrBadRequest.WithError(err)
	}

	req, err := h.buildRequest(body)
	if err != nil {
		return err
	}

	imageBytes, err := extractAndValidateImage(c)
	if err != nil {
		return err
	}

	return h.enroll(c, imageBytes, req)
}

// Capture POST /v1/students/capture - enroll from the next camera frame
func (h *StudentHandler) Capture(c *fiber.Ctx) error {
	var body EnrollRequest
	if err := c.BodyParser(&body); err != nil {
		return domain.ErrBadRequest.WithError(err)
	}

	req, err := h.buildRequest(body)
	if err != nil {
		return err
	}

	frame, err := capture(c.UserContext(), h.camera)
	if err != nil {
		return err
	}

	return h.enroll(c, frame.Data, req)
}

func (h *StudentHandler) enroll(c *fiber.Ctx, image []byte, req domain.EnrollmentRequest) error {
	record, err := h.enroller.Enroll(c.UserContext(), image, req)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(newStudentResponse(record))
}

func (h *StudentHandler) buildRequest(body EnrollRequest) (domain.EnrollmentRequest, error) {
	req := domain.EnrollmentRequest{
		Name:    strings.TrimSpace(body.Name),
		Email:   strings.TrimSpace(body.Email),
		Role:    strings.TrimSpace(body.Role),
		Classes: splitClasses(body.Classes),
	}

	errs := validationErrors{}
	collect(errs, h.validator.Struct(req))
	collect(errs, h.validator.Struct(credentials{Password: body.Password}))
	if len(errs) > 0 {
		return req, domain.ErrValidationFailed.WithError(errs)
	}

	if body.Password != "" {
		hash, err := h.hasher.Hash(body.Password)
		if err != nil {
			return req, err
		}
		req.CredentialHash = hash
	}
	return req, nil
}

func collect(into validationErrors, err error) {
	if err == nil {
		return
	}
	var appErr *domain.AppError
	if errors.As(err, &appErr) {
		if fields, ok := appErr.Err.(validationErrors); ok {
			for k, v := range fields {
				into[k] = v
			}
			return
		}
	}
	into["_"] = err.Error()
}

// splitClasses accepts repeated fields as well as comma separated lists.
func splitClasses(values []string) []string {
	seen := make(map[string]bool)
	out := []string{}
	for _, v := range values {
		for _, c := range strings.Split(v, ",") {
			c = strings.TrimSpace(c)
			if c == "" || seen[c] {
				continue
			}
			seen[c] = true
			out = append(out, c)
		}
	}
	return out
}

// List GET /v1/students
func (h *StudentHandler) List(c *fiber.Ctx) error {
	records, err := h.students.List(c.UserContext())
	if err != nil {
		return err
	}

	out := StudentListResponse{
		Students: make([]StudentResponse, len(records)),
		Total:    len(records),
	}
	for i := range records {
		out.Students[i] = newStudentResponse(&records[i])
	}
	return c.JSON(out)
}

// Get GET /v1/students/:id
func (h *StudentHandler) Get(c *fiber.Ctx) error {
	record, err := h.students.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(newStudentResponse(record))
}

// Image GET /v1/students/:id/image
func (h *StudentHandler) Image(c *fiber.Ctx) error {
	data, err := h.students.Image(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	c.Set(fiber.HeaderContentType, http.DetectContentType(data))
	c.Set(fiber.HeaderCacheControl, "private, max-age=3600")
	return c.Send(data)
}
