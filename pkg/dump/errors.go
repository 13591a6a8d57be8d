package dump

import "errors"

var (
	// ErrInvalidBatchID is returned when a caller retires a batch id that was
	// never issued or was already retired. It signals a lifecycle bug in the
	// consumer; the context itself stays usable.
	ErrInvalidBatchID = errors.New("invalid batch id")

	ErrContextNotFound = errors.New("dump context not found")
	ErrForbidden       = errors.New("dump context access forbidden")
	ErrContextInUse    = errors.New("dump context in use")
	ErrTooManyContexts = errors.New("too many dump contexts")
)
