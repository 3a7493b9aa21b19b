// Package types defines the shared error taxonomy and job status types used
// across the translation pipeline.
package types

import (
	"errors"
	"fmt"
)

// ErrorCode 错误代码枚举
type ErrorCode string

const (
	// ErrExtractionUnavailable means the native parser could not read the file.
	// Callers may retry with an OCR or plain-text parser.
	ErrExtractionUnavailable ErrorCode = "EXTRACTION_UNAVAILABLE"
	// ErrUnsupportedOutputMode means the requested layout mode cannot be
	// produced for the destination format.
	ErrUnsupportedOutputMode ErrorCode = "UNSUPPORTED_OUTPUT_MODE"
	// ErrFontUnavailable means the requested font family could not be loaded.
	ErrFontUnavailable ErrorCode = "FONT_UNAVAILABLE"
	// ErrTextOverflow means translated text does not fit even at the minimum size.
	ErrTextOverflow ErrorCode = "TEXT_OVERFLOW"
	// ErrMissingCapability means an optional module (OCR, table detection)
	// was requested but is not compiled in or installed.
	ErrMissingCapability ErrorCode = "MISSING_OPTIONAL_CAPABILITY"

	ErrFileNotFound ErrorCode = "FILE_NOT_FOUND"
	ErrInvalidInput ErrorCode = "INVALID_INPUT"
	ErrConfig       ErrorCode = "CONFIG_ERROR"
	ErrTranslation  ErrorCode = "TRANSLATION_ERROR"
	ErrRender       ErrorCode = "RENDER_ERROR"
	ErrCancelled    ErrorCode = "CANCELLED"
	ErrInternal     ErrorCode = "INTERNAL_ERROR"
)

// AppError 应用错误
type AppError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Details string    `json:"details,omitempty"`
	Page    int       `json:"page,omitempty"`
	Cause   error     `json:"-"`
}

// Error implements the error interface for AppError
func (e *AppError) Error() string {
	msg := e.Message
	if e.Details != "" {
		msg += ": " + e.Details
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap returns the underlying cause of the error
func (e *AppError) Unwrap() error {
	return e.Cause
}

// Is reports whether target is an *AppError carrying the same code, so
// errors.Is(err, &AppError{Code: ErrTextOverflow}) works through wrapping.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// NewAppError creates a new AppError with the given code, message, and optional cause
func NewAppError(code ErrorCode, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// NewAppErrorWithDetails creates a new AppError with details
func NewAppErrorWithDetails(code ErrorCode, message, details string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Details: details,
		Cause:   cause,
	}
}

// NewAppErrorWithPage creates a new AppError bound to a 0-based page number.
func NewAppErrorWithPage(code ErrorCode, message string, page int, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: fmt.Sprintf("%s (page %d)", message, page),
		Page:    page,
		Cause:   cause,
	}
}

// IsCode reports whether any error in err's chain is an AppError with code.
func IsCode(err error, code ErrorCode) bool {
	var appErr *AppError
	for err != nil {
		if errors.As(err, &appErr) {
			if appErr.Code == code {
				return true
			}
			err = appErr.Cause
			continue
		}
		return false
	}
	return false
}

// CodeOf returns the code of the first AppError in err's chain, or "".
func CodeOf(err error) ErrorCode {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}

// Phase 处理阶段
type Phase string

const (
	PhaseIdle        Phase = "idle"
	PhaseParsing     Phase = "parsing"
	PhaseTranslating Phase = "translating"
	PhaseRendering   Phase = "rendering"
	PhaseComplete    Phase = "complete"
	PhaseStopped     Phase = "stopped"
	PhaseError       Phase = "error"
)

// IsValidPhase checks if the given phase is a known Phase
func IsValidPhase(phase Phase) bool {
	switch phase {
	case PhaseIdle, PhaseParsing, PhaseTranslating, PhaseRendering,
		PhaseComplete, PhaseStopped, PhaseError:
		return true
	default:
		return false
	}
}

// Status 任务处理状态
type Status struct {
	Phase    Phase  `json:"phase"`
	Progress int    `json:"progress"` // 0-100
	Message  string `json:"message"`
	Current  int    `json:"current"`
	Total    int    `json:"total"`
	Error    string `json:"error,omitempty"`
}

// IsValid checks if the Status has consistent values
func (s *Status) IsValid() bool {
	return IsValidPhase(s.Phase) &&
		s.Progress >= 0 && s.Progress <= 100 &&
		s.Current <= s.Total
}

// ProgressFunc receives status updates from long running operations.
type ProgressFunc func(status Status)
