package backend

import (
	"errors"
	"fmt"
)

var (
	// ErrNotConfigured means the backend handle was built without
	// credentials. Write operations fail fast with it; list queries
	// degrade to empty results instead.
	ErrNotConfigured = errors.New("backend is not configured")

	// ErrAuthRequired means the operation needs a resolved identity and
	// none is available.
	ErrAuthRequired = errors.New("authentication required")
)

// RemoteError is a rejection from the remote backend: a constraint
// violation, permission denial or transient failure. No automatic retry
// happens anywhere in this layer; callers log and continue or surface
// the error.
type RemoteError struct {
	Status  int
	Message string
}

func (e *RemoteError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("backend error %d", e.Status)
	}
	return fmt.Sprintf("backend error %d: %s", e.Status, e.Message)
}

// IsRemote reports whether err is a backend rejection.
func IsRemote(err error) bool {
	var re *RemoteError
	return errors.As(err, &re)
}
