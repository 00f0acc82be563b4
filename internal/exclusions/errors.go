package exclusions

import "fmt"

// Error kinds surfaced to API callers. Validation and not-found kinds
// are normal negative results; db_error marks a persistence failure.
const (
	KindInvalidDateFormat = "invalid_date_format"
	KindPastDate          = "past_date"
	KindInvalidRange      = "invalid_range"
	KindOverlapDetected   = "overlap_detected"
	KindMissingReason     = "missing_reason"
	KindInvalidKind       = "invalid_kind"
	KindNotFound          = "not_found"
	KindDBError           = "db_error"
)

// Error is a structured, user-displayable failure with a
// machine-readable kind.
type Error struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func newError(kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// AsError extracts a structured Error, mapping anything else to db_error.
func AsError(err error) *Error {
	if err == nil {
		return nil
	}
	if e, ok := err.(*Error); ok {
		return e
	}
	return &Error{Kind: KindDBError, Message: "database error"}
}
