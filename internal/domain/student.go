package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"time"
)

// Student roles
const (
	RoleStudent = "student"
	RoleTeacher = "teacher"
)

// Embedding é o vetor de características de uma face
type Embedding []float64

// Validate checks the vector length against the system-wide dimension and
// rejects components that are not finite in single precision.
func (e Embedding) Validate(dim int) error {
	if len(e) != dim {
		return ErrInvalidEmbedding.WithError(fmt.Errorf("length %d, expected %d", len(e), dim))
	}
	for i, v := range e {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return ErrInvalidEmbedding.WithError(fmt.Errorf("component %d is not finite", i))
		}
		if math.Abs(v) > math.MaxFloat32 {
			return ErrInvalidEmbedding.WithError(fmt.Errorf("component %d overflows float32", i))
		}
	}
	return nil
}

// Quantize rounds every component to float32, the precision the vector
// column keeps. Embeddings are quantized before they are stored or matched,
// so a stored vector compares equal to a fresh one from the same image.
func (e Embedding) Quantize() Embedding {
	if e == nil {
		return nil
	}
	out := make(Embedding, len(e))
	for i, v := range e {
		out[i] = float64(float32(v))
	}
	return out
}

// Clone returns a copy that shares no backing array with e.
func (e Embedding) Clone() Embedding {
	if e == nil {
		return nil
	}
	out := make(Embedding, len(e))
	copy(out, e)
	return out
}

// StudentRecord representa um aluno (ou professor) cadastrado
type StudentRecord struct {
	ID             string         `json:"id"`
	Name           string         `json:"name"`
	Email          string         `json:"email"`
	Role           string         `json:"role"`
	Classes        map[string]int `json:"classes"`
	CredentialHash string         `json:"-"`
	Embedding      Embedding      `json:"-"`
	ImageKey       string         `json:"image_key"`
	Fingerprint    string         `json:"fingerprint"`
	CreatedAt      time.Time      `json:"created_at"`
}

// InClass reports whether the student is enrolled in classID.
func (s *StudentRecord) InClass(classID string) bool {
	_, ok := s.Classes[classID]
	return ok
}

// EnrollmentRequest carries the metadata submitted alongside an enrollment image.
type EnrollmentRequest struct {
	Name           string   `json:"name" validate:"required,max=255"`
	Email          string   `json:"email" validate:"required,email"`
	Role           string   `json:"role" validate:"omitempty,oneof=student teacher"`
	Classes        []string `json:"classes" validate:"dive,required,max=64,excludesall=.$"`
	CredentialHash string   `json:"-"`
}

// ClassCounters builds the initial attendance map, every class starting at zero.
func (r EnrollmentRequest) ClassCounters() map[string]int {
	out := make(map[string]int, len(r.Classes))
	for _, c := range r.Classes {
		out[c] = 0
	}
	return out
}

// Fingerprint returns the hex sha256 of the image bytes.
func Fingerprint(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// BlobKey is the storage key of a student's enrollment image.
func BlobKey(studentID string) string {
	return "students/" + studentID
}
