package errors

import (
	"errors"
	"fmt"
)

// ErrorType classifies failures along the supervisor's taxonomy:
// fatal configuration/render/launch errors, degraded health-check
// results, and transient network conditions.
type ErrorType string

const (
	ErrorTypeValidation  ErrorType = "validation"
	ErrorTypeConfig      ErrorType = "config"
	ErrorTypeRender      ErrorType = "render"
	ErrorTypeLaunch      ErrorType = "launch"
	ErrorTypeProcess     ErrorType = "process"
	ErrorTypeHealthCheck ErrorType = "health_check"
	ErrorTypeTimeout     ErrorType = "timeout"
	ErrorTypeNetwork     ErrorType = "network"
	ErrorTypeIO          ErrorType = "io"
	ErrorTypeInternal    ErrorType = "internal"
	ErrorTypeCancelled   ErrorType = "cancelled"
)

// DomainError is a structured error carrying a type and free-form context.
type DomainError struct {
	Type    ErrorType
	Message string
	Cause   error
	Context map[string]interface{}
}

func (e *DomainError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

func (e *DomainError) Unwrap() error {
	return e.Cause
}

// Is matches on error type, so callers can compare against a bare
// NewXxxError sentinel.
func (e *DomainError) Is(target error) bool {
	if other, ok := target.(*DomainError); ok {
		return e.Type == other.Type
	}
	return false
}

// WithContext attaches a key/value pair to the error for diagnostics.
func (e *DomainError) WithContext(key string, value interface{}) *DomainError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

func newDomainError(errorType ErrorType, message string, cause error) *DomainError {
	return &DomainError{
		Type:    errorType,
		Message: message,
		Cause:   cause,
	}
}

func NewValidationError(message string, cause error) *DomainError {
	return newDomainError(ErrorTypeValidation, message, cause)
}

func NewConfigError(message string, cause error) *DomainError {
	return newDomainError(ErrorTypeConfig, message, cause)
}

func NewRenderError(message string, cause error) *DomainError {
	return newDomainError(ErrorTypeRender, message, cause)
}

func NewLaunchError(message string, cause error) *DomainError {
	return newDomainError(ErrorTypeLaunch, message, cause)
}

func NewProcessError(message string, cause error) *DomainError {
	return newDomainError(ErrorTypeProcess, message, cause)
}

func NewHealthCheckError(message string, cause error) *DomainError {
	return newDomainError(ErrorTypeHealthCheck, message, cause)
}

func NewTimeoutError(message string, cause error) *DomainError {
	return newDomainError(ErrorTypeTimeout, message, cause)
}

func NewNetworkError(message string, cause error) *DomainError {
	return newDomainError(ErrorTypeNetwork, message, cause)
}

func NewIOError(message string, cause error) *DomainError {
	return newDomainError(ErrorTypeIO, message, cause)
}

func NewInternalError(message string, cause error) *DomainError {
	return newDomainError(ErrorTypeInternal, message, cause)
}

func NewCancelledError(message string, cause error) *DomainError {
	return newDomainError(ErrorTypeCancelled, message, cause)
}

// TypeOf extracts the domain error type, or ErrorTypeInternal for
// errors that did not originate here.
func TypeOf(err error) ErrorType {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type
	}
	return ErrorTypeInternal
}

func IsType(err error, errorType ErrorType) bool {
	var domainErr *DomainError
	return errors.As(err, &domainErr) && domainErr.Type == errorType
}

func IsConfigError(err error) bool {
	return IsType(err, ErrorTypeConfig)
}

func IsRenderError(err error) bool {
	return IsType(err, ErrorTypeRender)
}

func IsLaunchError(err error) bool {
	return IsType(err, ErrorTypeLaunch)
}

func IsTimeoutError(err error) bool {
	return IsType(err, ErrorTypeTimeout)
}

func IsValidationError(err error) bool {
	return IsType(err, ErrorTypeValidation)
}

// ErrorCollection aggregates failures from bulk operations where one
// failure must not stop the remaining work (shutdown in particular).
type ErrorCollection struct {
	Errors []error
}

func NewErrorCollection() *ErrorCollection {
	return &ErrorCollection{}
}

func (e *ErrorCollection) Error() string {
	switch len(e.Errors) {
	case 0:
		return "no errors"
	case 1:
		return e.Errors[0].Error()
	default:
		return fmt.Sprintf("%d errors occurred, first: %v", len(e.Errors), e.Errors[0])
	}
}

func (e *ErrorCollection) Add(err error) {
	if err != nil {
		e.Errors = append(e.Errors, err)
	}
}

func (e *ErrorCollection) HasErrors() bool {
	return len(e.Errors) > 0
}

// ToError returns nil when the collection is empty, so callers can
// return it directly.
func (e *ErrorCollection) ToError() error {
	if !e.HasErrors() {
		return nil
	}
	return e
}
