// Package errors provides the standardized error taxonomy for the blueprint pipeline.
package errors

import (
	"errors"
	"fmt"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	// Provider errors, handled entirely inside the router.
	ErrCodeProviderQuotaExceeded ErrorCode = "PROVIDER_QUOTA_EXCEEDED"
	ErrCodeProviderAuthFailed    ErrorCode = "PROVIDER_AUTH_FAILED"
	ErrCodeProviderTransient     ErrorCode = "PROVIDER_TRANSIENT"
	ErrCodeProviderMalformed     ErrorCode = "PROVIDER_MALFORMED_RESPONSE"

	// Capability-wide exhaustion, surfaced to analyzers.
	ErrCodeNoProviderAvailable ErrorCode = "NO_PROVIDER_AVAILABLE"

	// Build-level errors.
	ErrCodeBuildTimeout ErrorCode = "BUILD_TIMEOUT"
	ErrCodeBuildFailed  ErrorCode = "BUILD_FAILED"

	// Storage errors.
	ErrCodeBlueprintNotFound    ErrorCode = "BLUEPRINT_NOT_FOUND"
	ErrCodeBlueprintStoreFailed ErrorCode = "BLUEPRINT_STORE_FAILED"

	// Request errors.
	ErrCodeInvalidRequest ErrorCode = "INVALID_REQUEST"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// ==========================
// 2. Provider Error Classes
// ==========================

// ProviderErrorClass categorizes a provider failure and determines router policy.
type ProviderErrorClass string

const (
	// ClassQuotaExceeded: temporary, provider skipped for the remainder of the run.
	ClassQuotaExceeded ProviderErrorClass = "quota_exceeded"
	// ClassAuthError: provider disabled until operator intervention.
	ClassAuthError ProviderErrorClass = "auth_error"
	// ClassTransient: a single retry with backoff is permitted.
	ClassTransient ProviderErrorClass = "transient"
	// ClassMalformed: treated as an empty result, logged, not retried.
	ClassMalformed ProviderErrorClass = "malformed"
)

// ProviderError is the only error type adapters are allowed to return.
// "No results found" is a valid empty response, never a ProviderError.
type ProviderError struct {
	Provider string
	Class    ProviderErrorClass
	Message  string
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider %s: %s: %s", e.Provider, e.Class, e.Message)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

func NewQuotaExceededError(provider string, err error) *ProviderError {
	return &ProviderError{Provider: provider, Class: ClassQuotaExceeded, Message: "quota exceeded", Err: err}
}

func NewAuthError(provider string, err error) *ProviderError {
	return &ProviderError{Provider: provider, Class: ClassAuthError, Message: "authentication failed", Err: err}
}

func NewTransientError(provider string, err error) *ProviderError {
	msg := "transient failure"
	if err != nil {
		msg = err.Error()
	}
	return &ProviderError{Provider: provider, Class: ClassTransient, Message: msg, Err: err}
}

func NewMalformedError(provider string, err error) *ProviderError {
	return &ProviderError{Provider: provider, Class: ClassMalformed, Message: "malformed response", Err: err}
}

// ProviderErrorClassOf extracts the class from an error chain, or "" if the
// error is not a provider error.
func ProviderErrorClassOf(err error) ProviderErrorClass {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Class
	}
	return ""
}

// ==========================
// 3. Pipeline Errors
// ==========================

// NoProviderAvailableError signals that every provider for a capability was
// exhausted within the current run. Callers must degrade, never mislabel this
// as an empty success.
type NoProviderAvailableError struct {
	Capability string
}

func (e *NoProviderAvailableError) Error() string {
	return fmt.Sprintf("no provider available for capability %s", e.Capability)
}

// IsNoProviderAvailable reports whether err is a capability exhaustion error.
func IsNoProviderAvailable(err error) bool {
	var npe *NoProviderAvailableError
	return errors.As(err, &npe)
}

// ErrBuildTimeout marks a build that hit its deadline; it converts a would-be
// COMPLETE into DEGRADED_COMPLETE and is never returned to the caller directly.
var ErrBuildTimeout = errors.New("build timeout")

// ErrBlueprintNotFound is returned by the store for unknown blueprint ids.
var ErrBlueprintNotFound = errors.New("blueprint not found")

// ==========================
// 4. Error Constructors
// ==========================

// NewBuildFailedError creates the retryable error surfaced when the primary
// SEARCH capability is entirely unavailable.
func NewBuildFailedError(capability string) *StandardError {
	return &StandardError{
		Code:      ErrCodeBuildFailed,
		Message:   "blueprint build failed: required capability unavailable",
		Details:   fmt.Sprintf("capability: %s", capability),
		Retryable: true,
		Metadata:  map[string]interface{}{"capability": capability},
		Timestamp: time.Now().UTC(),
	}
}

// NewInvalidRequestError creates a non-retryable request validation error.
func NewInvalidRequestError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeInvalidRequest,
		Message:   "request validation failed",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewBlueprintStoreFailedError creates a retryable storage error.
func NewBlueprintStoreFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeBlueprintStoreFailed,
		Message:   "failed to persist blueprint",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}
