package models

import (
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"
)

// APIResponse is the uniform response envelope for every endpoint.
type APIResponse struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Error codes carried by AppError.
const (
	ErrCodeNotFound     = "NOT_FOUND"
	ErrCodeValidation   = "VALIDATION_ERROR"
	ErrCodeConflict     = "CONFLICT"
	ErrCodeUnauthorized = "UNAUTHORIZED"
	ErrCodeInternal     = "INTERNAL_ERROR"
)

// AppError represents a custom application error
type AppError struct {
	Code    string
	Message string
	Err     error
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

// Predefined error constructors
func NewNotFoundError(resource string, id interface{}) *AppError {
	return &AppError{
		Code:    ErrCodeNotFound,
		Message: fmt.Sprintf("%s with ID %v not found", resource, id),
	}
}

func NewValidationError(message string) *AppError {
	return &AppError{
		Code:    ErrCodeValidation,
		Message: message,
	}
}

func NewConflictError(message string) *AppError {
	return &AppError{
		Code:    ErrCodeConflict,
		Message: message,
	}
}

func NewUnauthorizedError(message string) *AppError {
	return &AppError{
		Code:    ErrCodeUnauthorized,
		Message: message,
	}
}

func NewInternalError(err error) *AppError {
	return &AppError{
		Code:    ErrCodeInternal,
		Message: "Internal server error",
		Err:     err,
	}
}

// StatusForError maps an AppError code to the conventional HTTP status.
func StatusForError(err error) int {
	var appErr *AppError
	if !errors.As(err, &appErr) {
		return fiber.StatusInternalServerError
	}
	switch appErr.Code {
	case ErrCodeNotFound:
		return fiber.StatusNotFound
	case ErrCodeValidation:
		return fiber.StatusBadRequest
	case ErrCodeConflict:
		return fiber.StatusConflict
	case ErrCodeUnauthorized:
		return fiber.StatusForbidden
	default:
		return fiber.StatusInternalServerError
	}
}

// RespondWithData writes the success envelope with the given status and payload.
func RespondWithData(c *fiber.Ctx, status int, data any) error {
	return c.Status(status).JSON(APIResponse{Success: true, Data: data})
}

// RespondWithError writes the failure envelope with a standardized message.
func RespondWithError(c *fiber.Ctx, status int, err error) error {
	msg := "Internal server error"
	var appErr *AppError
	if errors.As(err, &appErr) {
		msg = appErr.Message
	} else if err != nil {
		msg = err.Error()
	}
	return c.Status(status).JSON(APIResponse{Success: false, Error: msg})
}
