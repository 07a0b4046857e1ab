// Package errors provides severity-aware error types for the cost sync.
package errors

import (
	stderrors "errors"
	"fmt"
)

// Severity indicates error impact level.
type Severity int

const (
	SeverityInfo Severity = iota
	SeverityWarning
	SeverityError
	SeverityFatal
)

func (s Severity) String() string {
	switch s {
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	case SeverityFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// CostError is a structured error with context.
type CostError struct {
	Code     string   `json:"code"`
	Message  string   `json:"message"`
	Severity Severity `json:"severity"`
	Op       string   `json:"op,omitempty"`
	Err      error    `json:"-"`
}

func (e *CostError) Error() string {
	msg := fmt.Sprintf("[%s] %s: %s", e.Severity, e.Code, e.Message)
	if e.Op != "" {
		msg = fmt.Sprintf("[%s] %s: %s (op: %s)", e.Severity, e.Code, e.Message, e.Op)
	}
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *CostError) Unwrap() error {
	return e.Err
}

// Error codes
const (
	ErrCodeUpstreamQuery = "UPSTREAM_QUERY_FAILED"
	ErrCodeStorage       = "STORAGE_FAILED"
	ErrCodeFormat        = "FORMAT_INVALID"
)

// NewUpstreamQueryError reports a failed or malformed billing API call.
func NewUpstreamQueryError(op string, err error) *CostError {
	return &CostError{
		Code:     ErrCodeUpstreamQuery,
		Message:  "billing query failed",
		Severity: SeverityError,
		Op:       op,
		Err:      err,
	}
}

// NewStorageError reports a connection, read or write failure against the store.
func NewStorageError(op string, err error) *CostError {
	return &CostError{
		Code:     ErrCodeStorage,
		Message:  "storage operation failed",
		Severity: SeverityError,
		Op:       op,
		Err:      err,
	}
}

// NewFormatError reports an amount that is not a decimal number.
func NewFormatError(metric, amount string, err error) *CostError {
	return &CostError{
		Code:     ErrCodeFormat,
		Message:  fmt.Sprintf("metric %s has unparseable amount %q", metric, amount),
		Severity: SeverityError,
		Op:       "normalize",
		Err:      err,
	}
}

// HasCode reports whether any error in err's chain is a CostError with the given code.
func HasCode(err error, code string) bool {
	var ce *CostError
	if stderrors.As(err, &ce) {
		return ce.Code == code
	}
	return false
}

func IsUpstreamQuery(err error) bool { return HasCode(err, ErrCodeUpstreamQuery) }

func IsStorage(err error) bool { return HasCode(err, ErrCodeStorage) }

func IsFormat(err error) bool { return HasCode(err, ErrCodeFormat) }
