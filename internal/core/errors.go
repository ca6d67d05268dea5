package core

import "errors"

// Error taxonomy shared by every I/O-backed operation. Callers match with
// errors.Is; the wrapped message carries the detail.
var (
	// ErrNetwork covers transport failures, timeouts and unexpected
	// responses. Retrying is safe; local state is never mutated.
	ErrNetwork = errors.New("network error")

	// ErrAuthExpired means the collaborator rejected the bearer credential.
	ErrAuthExpired = errors.New("authentication expired")

	// ErrValidation marks malformed input, e.g. an unparseable due date.
	ErrValidation = errors.New("validation error")

	// ErrNotFound marks an operation on an unknown obligation id.
	ErrNotFound = errors.New("not found")
)

// Kind returns the taxonomy sentinel err belongs to, or nil.
func Kind(err error) error {
	for _, kind := range []error{ErrAuthExpired, ErrNotFound, ErrValidation, ErrNetwork} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}
