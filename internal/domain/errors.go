package domain

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors.
var (
	// ErrNotFound is returned when a requested entity does not exist.
	ErrNotFound = errors.New("not found")
	// ErrCatalogUnavailable is returned when no catalog snapshot has been
	// loaded yet or a reload is refused by the breaker.
	ErrCatalogUnavailable = errors.New("catalog unavailable")
)

// CatalogError is a configuration error in the rule or test catalog:
// malformed thresholds, dangling references, rules that can never match.
// Catalog errors are fatal at load time; an engine running with a corrupt
// catalog must refuse to serve rather than silently under- or over-trigger.
type CatalogError struct {
	Entity  string `json:"entity"` // test, rule, threshold, finding, condition, action, edge
	ID      string `json:"id,omitempty"`
	Message string `json:"message"`
}

// Error implements the error interface.
func (e *CatalogError) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("catalog %s: %s", e.Entity, e.Message)
	}
	return fmt.Sprintf("catalog %s %q: %s", e.Entity, e.ID, e.Message)
}

// NewCatalogError creates a new CatalogError.
func NewCatalogError(entity, id, message string) *CatalogError {
	return &CatalogError{Entity: entity, ID: id, Message: message}
}

// ValidationError represents an input validation failure at the request
// boundary.
type ValidationError struct {
	Field   string      `json:"field"`
	Message string      `json:"message"`
	Value   interface{} `json:"value,omitempty"`
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

// NewValidationError creates a new ValidationError.
func NewValidationError(field, message string, value interface{}) *ValidationError {
	return &ValidationError{Field: field, Message: message, Value: value}
}

// APIError is a standardized error response body.
type APIError struct {
	Code      string    `json:"code"`
	Message   string    `json:"message"`
	Details   string    `json:"details,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	RequestID string    `json:"request_id,omitempty"`
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Error codes for different failure scenarios.
const (
	ErrCodeInvalidInput   = "INVALID_INPUT"
	ErrCodeCatalog        = "CATALOG_ERROR"
	ErrCodeDatabase       = "DATABASE_ERROR"
	ErrCodeEvaluation     = "EVALUATION_ERROR"
	ErrCodeRateLimit      = "RATE_LIMIT_EXCEEDED"
	ErrCodeInternalServer = "INTERNAL_SERVER_ERROR"
)

// NewAPIError creates a new APIError with a UTC timestamp.
func NewAPIError(code, message, details, requestID string) *APIError {
	return &APIError{
		Code:      code,
		Message:   message,
		Details:   details,
		Timestamp: time.Now().UTC(),
		RequestID: requestID,
	}
}
