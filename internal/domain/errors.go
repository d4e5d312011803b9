package domain

import "fmt"

// Kind discriminates the error taxonomy from spec §7.
type Kind int

const (
	// KindInternal marks a routing bug or invariant violation. Always logged.
	KindInternal Kind = iota
	// KindInvalidInput marks a client-fixable problem: missing field, bad id,
	// scope violation, not-found, confirm-required, unsafe argument.
	KindInvalidInput
	// KindDb marks any storage error. Surfaced to the caller with a generic
	// message; the source is kept for logging.
	KindDb
	// KindExternal marks a provider HTTP failure, JSON parse failure, or timeout.
	KindExternal
)

func (k Kind) String() string {
	switch k {
	case KindInvalidInput:
		return "invalid_input"
	case KindDb:
		return "db"
	case KindExternal:
		return "external"
	default:
		return "internal"
	}
}

// Error is the typed error the stores and tools return, so callers can branch
// on Kind without string matching. Some packages (storage, config, prompt,
// project) still return plain errors.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Invalid builds a KindInvalidInput error. Messages should be actionable and,
// where useful, suggest the next tool call.
func Invalid(format string, args ...any) *Error {
	return &Error{Kind: KindInvalidInput, Message: fmt.Sprintf(format, args...)}
}

// DbErr wraps a storage error, keeping the source for logging while the
// caller-facing message stays generic.
func DbErr(err error) *Error {
	return &Error{Kind: KindDb, Message: "storage error", Err: err}
}

// External wraps a provider/timeout/parse failure.
func External(msg string, err error) *Error {
	return &Error{Kind: KindExternal, Message: msg, Err: err}
}

// Internal marks a routing bug or invariant violation.
func Internal(msg string, err error) *Error {
	return &Error{Kind: KindInternal, Message: msg, Err: err}
}

// IsKind reports whether the first *Error found in err's wrap chain (err
// itself included) has kind k; *Error values nested deeper are not examined.
func IsKind(err error, k Kind) bool {
	var e *Error
	for err != nil {
		if ae, ok := err.(*Error); ok {
			e = ae
			break
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			break
		}
		err = u.Unwrap()
	}
	return e != nil && e.Kind == k
}
