package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrConfiguration       = errors.New("configuration error")
	ErrExtraction          = errors.New("extraction failed")
	ErrInvalidTemplate     = errors.New("invalid template")
	ErrMissingFile         = errors.New("file is required")
	ErrFileTooLarge        = errors.New("file exceeds maximum allowed size")
	ErrUnsupportedFile     = errors.New("unsupported file type")
	ErrResultNotFound      = errors.New("result not found")
	ErrSessionNotFound     = errors.New("session not found")
	ErrSessionTooLarge     = errors.New("session exceeds storage limit")
	ErrInvalidSessionToken = errors.New("invalid session token")
)

// ConfigurationError reports missing or invalid service credentials.
type ConfigurationError struct {
	Missing []string
	Reason  string
}

func (e *ConfigurationError) Error() string {
	if len(e.Missing) > 0 {
		return fmt.Sprintf("missing configuration: %s", strings.Join(e.Missing, ", "))
	}
	return fmt.Sprintf("invalid configuration: %s", e.Reason)
}

func (e *ConfigurationError) Unwrap() error {
	return ErrConfiguration
}

// ExtractionError reports a failed call to the document-analysis service.
type ExtractionError struct {
	Kind       ExtractionErrorKind
	Provider   string
	StatusCode int
	RetryAfter time.Duration
	Err        error
}

func (e *ExtractionError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s extraction failed (%s, status %d): %v", e.Provider, e.Kind, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s extraction failed (%s): %v", e.Provider, e.Kind, e.Err)
}

// Unwrap exposes both the ErrExtraction sentinel and the underlying cause.
func (e *ExtractionError) Unwrap() []error {
	return []error{ErrExtraction, e.Err}
}

// NewExtractionError creates an ExtractionError of the given kind.
func NewExtractionError(provider string, kind ExtractionErrorKind, err error) *ExtractionError {
	return &ExtractionError{Kind: kind, Provider: provider, Err: err}
}
