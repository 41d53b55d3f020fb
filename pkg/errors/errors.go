package errors

import (
	"errors"
	"fmt"
)

// ErrorType classifies failures by the pipeline stage that produced them
type ErrorType string

const (
	ErrorTypeConfigLoad      ErrorType = "config_load"
	ErrorTypeAuth            ErrorType = "auth"
	ErrorTypePageLoad        ErrorType = "page_load"
	ErrorTypeExtractionEmpty ErrorType = "extraction_empty"
	ErrorTypeDownload        ErrorType = "download"
	ErrorTypeUnknown         ErrorType = "unknown"
)

// Reason narrows an ErrorType down to a specific cause
type Reason string

const (
	ReasonNone                Reason = ""
	ReasonMaxAttemptsExceeded Reason = "max_attempts_exceeded"
	ReasonNetwork             Reason = "network"
	ReasonNonImageContent     Reason = "non_image_content"
	ReasonLowQuality          Reason = "low_quality"
)

// Error is a classified pipeline error
type Error struct {
	Type    ErrorType
	Reason  Reason
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := string(e.Type)
	if e.Reason != ReasonNone {
		msg += "(" + string(e.Reason) + ")"
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a classified error
func New(t ErrorType, reason Reason, msg string, err error) *Error {
	return &Error{Type: t, Reason: reason, Message: msg, Err: err}
}

// ConfigLoad wraps a configuration parse failure
func ConfigLoad(path string, err error) *Error {
	return New(ErrorTypeConfigLoad, ReasonNone, fmt.Sprintf("cannot load %s", path), err)
}

// MaxAttemptsExceeded is returned when every authentication attempt failed
func MaxAttemptsExceeded(attempts int, err error) *Error {
	return New(ErrorTypeAuth, ReasonMaxAttemptsExceeded, fmt.Sprintf("authentication failed after %d attempts", attempts), err)
}

// PageLoad wraps a navigation failure
func PageLoad(url string, err error) *Error {
	return New(ErrorTypePageLoad, ReasonNone, url, err)
}

// ExtractionEmpty reports that no valid asset was found
func ExtractionEmpty() *Error {
	return New(ErrorTypeExtractionEmpty, ReasonNone, "no valid image assets found", nil)
}

// Download wraps a per-asset download failure
func Download(reason Reason, url string, err error) *Error {
	return New(ErrorTypeDownload, reason, url, err)
}

// TypeOf returns the ErrorType of err, or ErrorTypeUnknown
func TypeOf(err error) ErrorType {
	var e *Error
	if errors.As(err, &e) {
		return e.Type
	}
	return ErrorTypeUnknown
}

// ReasonOf returns the Reason carried by err, if any
func ReasonOf(err error) Reason {
	var e *Error
	if errors.As(err, &e) {
		return e.Reason
	}
	return ReasonNone
}

// IsType reports whether err, or anything it wraps, has the given type
func IsType(err error, t ErrorType) bool {
	return TypeOf(err) == t
}

// IsFatal reports whether err must abort the run
func IsFatal(err error) bool {
	switch TypeOf(err) {
	case ErrorTypeAuth, ErrorTypePageLoad:
		return true
	default:
		return false
	}
}
