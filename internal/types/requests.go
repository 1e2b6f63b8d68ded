package types

import (
	"fmt"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

// CreateApplicationRequest is the body of POST /applications.
type CreateApplicationRequest struct {
	JobID       int64  `json:"job_id" validate:"required,gt=0"`
	CandidateID int64  `json:"candidate_id" validate:"required,gt=0"`
	Notes       string `json:"notes,omitempty"`
	Source      string `json:"source,omitempty" validate:"max=100"`
}

// StatusUpdateRequest is the body of a status update call.
type StatusUpdateRequest struct {
	Status Status `json:"status" validate:"required,pipeline_status"`
	Reason string `json:"reason,omitempty"`
	Notes  string `json:"notes,omitempty"`
}

// LoginRequest carries credentials for POST /auth/login.
type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

// Validator returns the shared validator with the pipeline_status rule registered.
func Validator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New()
		_ = validate.RegisterValidation("pipeline_status", func(fl validator.FieldLevel) bool {
			return Status(fl.Field().String()).Valid()
		})
	})
	return validate
}

// Validate validates the CreateApplicationRequest.
func (r *CreateApplicationRequest) Validate() error {
	return Validator().Struct(r)
}

// Validate validates the StatusUpdateRequest.
func (r *StatusUpdateRequest) Validate() error {
	return Validator().Struct(r)
}

// Validate validates the LoginRequest.
func (r *LoginRequest) Validate() error {
	return Validator().Struct(r)
}

// ValidationMessages flattens validator errors into "field: rule" strings.
// Non-validator errors are returned as a single message.
func ValidationMessages(err error) []string {
	if err == nil {
		return nil
	}
	validationErrors, ok := err.(validator.ValidationErrors)
	if !ok {
		return []string{err.Error()}
	}
	out := make([]string, 0, len(validationErrors))
	for _, fe := range validationErrors {
		field := strings.ToLower(fe.Field())
		switch fe.Tag() {
		case "required":
			out = append(out, fmt.Sprintf("%s is required", field))
		case "pipeline_status":
			out = append(out, fmt.Sprintf("%s must be one of %s", field, joinStatuses(AllStatuses)))
		default:
			out = append(out, fmt.Sprintf("%s failed %s validation", field, fe.Tag()))
		}
	}
	return out
}
