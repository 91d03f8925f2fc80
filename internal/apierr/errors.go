// Package apierr defines the error taxonomy shared by the transport client,
// the booking facade and the flow controller. Every failure a caller can see
// falls into one of four families: validation failures caught before a
// request is issued, stale-state failures reported by the backend,
// transport failures, and authentication failures.
package apierr

import "fmt"

// ValidationError reports input rejected client-side before any network
// call was made (empty seat selection, missing identifiers, malformed
// fields). It is never produced from a backend response.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return "validation: " + e.Msg }

// Validation builds a ValidationError from a format string.
func Validation(format string, args ...any) error {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// StaleStateError reports that the backend rejected an operation because
// the targeted state moved on: a seat is no longer available, or an order
// is no longer in the status the operation requires. Callers must re-fetch
// state and let the user retry; automatic retries are never correct here.
type StaleStateError struct {
	Op  string // operation that failed, e.g. "createOrder"
	Msg string // backend message, verbatim
}

func (e *StaleStateError) Error() string {
	return e.Op + ": stale state: " + e.Msg
}

// TransportError wraps a network-level failure (connection refused,
// timeout, malformed response body). The outcome of the attempted
// operation is unknown; callers must re-check server state and may offer
// a user-initiated retry.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return e.Op + ": transport: " + e.Err.Error()
}

func (e *TransportError) Unwrap() error { return e.Err }

// AuthError reports a missing, invalid or expired credential. The
// transport client attempts a single token refresh before surfacing one;
// receiving it therefore means the session is no longer usable and the
// user must log in again.
type AuthError struct {
	Msg string
}

func (e *AuthError) Error() string { return "auth: " + e.Msg }

// RemoteError is the generic backend rejection: the envelope arrived with
// success=false and the failure fits no more specific family. The facade
// narrows RemoteError into StaleStateError or AuthError per operation.
type RemoteError struct {
	Code    int
	Message string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("backend rejected request (code %d): %s", e.Code, e.Message)
}
