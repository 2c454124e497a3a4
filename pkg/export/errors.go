package export

import "fmt"

// ErrorCode classifies export failures
type ErrorCode string

const (
	ErrorUnsupportedFormat ErrorCode = "UNSUPPORTED_FORMAT"
	ErrorRenderFailed      ErrorCode = "RENDER_FAILED"
)

// Error is returned by Export and Handle. Cause carries the underlying renderer or
// serialization error.
type Error struct {
	Code   ErrorCode
	Format Format
	Cause  error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: export %q (caused by: %v)", e.Code, e.Format, e.Cause)
	}
	return fmt.Sprintf("%s: export %q", e.Code, e.Format)
}

func (e *Error) Unwrap() error {
	return e.Cause
}
