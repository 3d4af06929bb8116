package services

import (
	"errors"
	"fmt"
)

// ErrorType represents the type/category of error
type ErrorType string

const (
	ErrorTypeValidation     ErrorType = "validation"
	ErrorTypeAuthentication ErrorType = "authentication"
	ErrorTypeInvalidToken   ErrorType = "invalid_token"
	ErrorTypeForbidden      ErrorType = "forbidden"
	ErrorTypeConfiguration  ErrorType = "configuration"
	ErrorTypeInternal       ErrorType = "internal"
)

// DomainError represents a structured error with additional context
type DomainError struct {
	Type    ErrorType
	Message string
	Err     error
	Details map[string]interface{}

	sentinel bool
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap implements errors.Unwrap
func (e *DomainError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is. A domain error matches any target of the same
// kind, except that two distinct sentinels never match each other:
// ErrAccountLocked is not ErrAccountDisabled.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	if e.sentinel && t.sentinel {
		return e == t
	}
	return e.Type == t.Type
}

// NewDomainError creates a new domain error
func NewDomainError(errType ErrorType, message string, err error) *DomainError {
	return &DomainError{
		Type:    errType,
		Message: message,
		Err:     err,
		Details: make(map[string]interface{}),
	}
}

func newSentinel(errType ErrorType, message string) *DomainError {
	err := NewDomainError(errType, message, nil)
	err.sentinel = true
	return err
}

// Domain error variables. Sentinels are shared; never mutate them.

var (
	// ErrInvalidInput is returned for empty credentials before any store lookup
	ErrInvalidInput = newSentinel(ErrorTypeValidation, "Username or password must not be empty")

	// ErrAuthenticationFailed covers both unknown usernames and wrong passwords
	ErrAuthenticationFailed = newSentinel(ErrorTypeAuthentication, "Invalid username or password")

	// ErrInvalidToken covers malformed, unsigned, tampered and expired tokens alike
	ErrInvalidToken = newSentinel(ErrorTypeInvalidToken, "invalid authentication token")

	ErrAccountDisabled = newSentinel(ErrorTypeForbidden, "Account is disabled")
	ErrAccountLocked   = newSentinel(ErrorTypeForbidden, "Account is locked")

	ErrInvalidConfiguration = newSentinel(ErrorTypeConfiguration, "invalid configuration")

	ErrInternal = newSentinel(ErrorTypeInternal, "internal server error")
)

// Error type checking helper functions

// IsValidationError checks if an error is a validation error
func IsValidationError(err error) bool {
	return hasType(err, ErrorTypeValidation)
}

// IsAuthenticationError checks if an error is a credential verification failure
func IsAuthenticationError(err error) bool {
	return hasType(err, ErrorTypeAuthentication)
}

// IsInvalidTokenError checks if an error is an invalid token error
func IsInvalidTokenError(err error) bool {
	return hasType(err, ErrorTypeInvalidToken)
}

// IsForbiddenError checks if an error is a forbidden error
func IsForbiddenError(err error) bool {
	return hasType(err, ErrorTypeForbidden)
}

// IsConfigurationError checks if an error is a configuration error
func IsConfigurationError(err error) bool {
	return hasType(err, ErrorTypeConfiguration)
}

// IsInternalError checks if an error is an internal error
func IsInternalError(err error) bool {
	return hasType(err, ErrorTypeInternal)
}

func hasType(err error, errType ErrorType) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type == errType
	}
	return false
}

// GetErrorType returns the ErrorType of a domain error, or empty string if not a domain error
func GetErrorType(err error) ErrorType {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type
	}
	return ""
}

// PublicMessage returns the client-safe message of a domain error. The wrapped
// cause is never part of it.
func PublicMessage(err error) string {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Message
	}
	return ErrInternal.Message
}

// GetErrorDetails returns the details map of a domain error, or nil if not a domain error
func GetErrorDetails(err error) map[string]interface{} {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Details
	}
	return nil
}

// WrapError wraps an error with additional context
func WrapError(errType ErrorType, message string, err error) error {
	return NewDomainError(errType, message, err)
}

// WrapInternal wraps an error as an internal error
func WrapInternal(message string, err error) error {
	return NewDomainError(ErrorTypeInternal, message, err)
}

// WrapInvalidToken wraps the cause of a token rejection. The message stays
// identical to ErrInvalidToken so callers cannot tell causes apart.
func WrapInvalidToken(err error) error {
	return NewDomainError(ErrorTypeInvalidToken, ErrInvalidToken.Message, err)
}

// WrapConfiguration wraps a configuration problem detected at startup
func WrapConfiguration(message string, err error) error {
	return NewDomainError(ErrorTypeConfiguration, message, err)
}
