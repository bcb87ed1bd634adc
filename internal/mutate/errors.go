package mutate

import "fmt"

// ValidationError marks a mutation that failed fast - before any cache or
// network action. Typical causes: missing scoping identifier (no signed-in
// user), empty entity id, malformed mutation.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %s", e.Reason)
}

// RemoteWriteError wraps a remote store failure that settled a mutation.
// By the time a caller sees it, the cache has already been rolled back or
// invalidated; the error exists for user-visible notification, never as an
// unhandled rejection.
type RemoteWriteError struct {
	Err error
}

func (e *RemoteWriteError) Error() string {
	return fmt.Sprintf("remote write failed: %v", e.Err)
}

func (e *RemoteWriteError) Unwrap() error {
	return e.Err
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	_, ok := err.(*ValidationError)
	return ok
}

// IsRemoteWrite reports whether err is a RemoteWriteError.
func IsRemoteWrite(err error) bool {
	_, ok := err.(*RemoteWriteError)
	return ok
}
