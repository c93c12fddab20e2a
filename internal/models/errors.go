package models

import "fmt"

// ConfigurationError aborts a publish before any network call.
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string {
	return "configuration error: " + e.Reason
}

// NewConfigurationError formats a ConfigurationError.
func NewConfigurationError(format string, args ...any) error {
	return &ConfigurationError{Reason: fmt.Sprintf(format, args...)}
}

// TransportError is a network failure or a rejected Bot API request.
type TransportError struct {
	Code        int
	Description string
	Err         error
}

func (e *TransportError) Error() string {
	if e.Description != "" {
		return e.Description
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return fmt.Sprintf("request failed with status %d", e.Code)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// AttachmentReadError is a failure to read the bytes of a selected file.
type AttachmentReadError struct {
	Path string
	Err  error
}

func (e *AttachmentReadError) Error() string {
	return fmt.Sprintf("failed to read attachment %s: %v", e.Path, e.Err)
}

func (e *AttachmentReadError) Unwrap() error {
	return e.Err
}
