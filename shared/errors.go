package shared

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/lib/pq"
	"github.com/sirupsen/logrus"
)

// ErrorCode classifies every failure the API can return.
type ErrorCode string

const (
	CodeValidation      ErrorCode = "VALIDATION"
	CodeNotFound        ErrorCode = "NOT_FOUND"
	CodeInvalidState    ErrorCode = "INVALID_STATE"
	CodeDuplicate       ErrorCode = "DUPLICATE"
	CodeUnauthenticated ErrorCode = "UNAUTHENTICATED"
	CodeForbidden       ErrorCode = "FORBIDDEN"
	CodeInternal        ErrorCode = "INTERNAL"
)

// statusByCode maps each error code to its HTTP status.
var statusByCode = map[ErrorCode]int{
	CodeValidation:      fiber.StatusBadRequest,
	CodeNotFound:        fiber.StatusNotFound,
	CodeInvalidState:    fiber.StatusBadRequest,
	CodeDuplicate:       fiber.StatusBadRequest,
	CodeUnauthenticated: fiber.StatusUnauthorized,
	CodeForbidden:       fiber.StatusForbidden,
	CodeInternal:        fiber.StatusInternalServerError,
}

// APIError is the standardized error carried from services to the
// centralized handler.
type APIError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Cause   error     `json:"-"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *APIError) Unwrap() error {
	return e.Cause
}

// Status returns the HTTP status for the error code.
func (e *APIError) Status() int {
	if status, ok := statusByCode[e.Code]; ok {
		return status
	}
	return fiber.StatusInternalServerError
}

func Validation(message string) *APIError {
	return &APIError{Code: CodeValidation, Message: message}
}

func NotFound(message string) *APIError {
	return &APIError{Code: CodeNotFound, Message: message}
}

func InvalidState(message string) *APIError {
	return &APIError{Code: CodeInvalidState, Message: message}
}

func Duplicate(message string) *APIError {
	return &APIError{Code: CodeDuplicate, Message: message}
}

func Unauthenticated(message string) *APIError {
	return &APIError{Code: CodeUnauthenticated, Message: message}
}

func Forbidden(message string) *APIError {
	return &APIError{Code: CodeForbidden, Message: message}
}

func Internal(message string, cause error) *APIError {
	return &APIError{Code: CodeInternal, Message: message, Cause: cause}
}

// Postgres error classes the handler recognizes.
const (
	pgUniqueViolation     = "23505"
	pgInvalidTextRep      = "22P02"
	pgCheckViolation      = "23514"
	pgForeignKeyViolation = "23503"
)

// Classify turns an arbitrary error into an APIError. Known store error
// shapes (duplicate key, cast failure, missing row) get their taxonomy
// code; everything else falls back to INTERNAL.
func Classify(err error) *APIError {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}

	if errors.Is(err, sql.ErrNoRows) {
		return NotFound("record not found")
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch string(pqErr.Code) {
		case pgUniqueViolation:
			return Duplicate("record already exists")
		case pgInvalidTextRep, pgCheckViolation:
			return Validation("invalid value for field")
		case pgForeignKeyViolation:
			return Validation("referenced record does not exist")
		}
	}

	return Internal("unexpected error", err)
}

// StatusOf resolves the HTTP status an error will be rendered with,
// whether it is a Fiber error or anything Classify understands.
func StatusOf(err error) int {
	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		return fiberErr.Code
	}
	return Classify(err).Status()
}

// NewErrorHandler builds the centralized Fiber error handler. Unexpected
// causes are included in the response only outside production.
func NewErrorHandler(production bool) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		var fiberErr *fiber.Error
		if errors.As(err, &fiberErr) {
			return c.Status(fiberErr.Code).JSON(fiber.Map{
				"success": false,
				"error":   fiberErr.Message,
			})
		}

		apiErr := Classify(err)

		fields := logrus.Fields{
			"code":   apiErr.Code,
			"status": apiErr.Status(),
			"path":   c.Path(),
			"method": c.Method(),
		}
		if apiErr.Code == CodeInternal {
			fields["cause"] = apiErr.Cause
			logrus.WithFields(fields).Error("Request failed")
		} else {
			logrus.WithFields(fields).Warn(apiErr.Message)
		}

		body := fiber.Map{
			"success": false,
			"code":    apiErr.Code,
			"error":   apiErr.Message,
		}
		if apiErr.Code == CodeInternal && !production && apiErr.Cause != nil {
			body["detail"] = apiErr.Cause.Error()
		}

		return c.Status(apiErr.Status()).JSON(body)
	}
}
