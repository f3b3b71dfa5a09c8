package core

import "errors"

var (
	ErrInvalidInput           = errors.New("invalid input")
	ErrMalformedToken         = errors.New("malformed token")
	ErrTamperedOrInvalidToken = errors.New("tampered or invalid token")
	ErrSessionNotFound        = errors.New("session not found")
	ErrSessionClosed          = errors.New("session has been closed")
	ErrTokenExpired           = errors.New("token has expired")
	ErrAlreadyScanned         = errors.New("already scanned")
	ErrLocationMismatch       = errors.New("location mismatch")
	ErrNotAuthorized          = errors.New("not authorized")

	ErrIdentityRejected     = errors.New("identity verification failed")
	ErrAttendanceExists     = errors.New("attendance already recorded")
	ErrStoreOperationFailed = errors.New("store operation failed")
)

// Kind returns a stable machine-readable name for an error produced by this
// module, or "internal" when the error is not one of the known kinds.
func Kind(err error) string {
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.name
		}
	}
	return "internal"
}

var kinds = []struct {
	err  error
	name string
}{
	{ErrInvalidInput, "invalid_input"},
	{ErrMalformedToken, "malformed_token"},
	{ErrTamperedOrInvalidToken, "tampered_or_invalid_token"},
	{ErrSessionNotFound, "session_not_found"},
	{ErrSessionClosed, "session_closed"},
	{ErrTokenExpired, "token_expired"},
	{ErrAlreadyScanned, "already_scanned"},
	{ErrLocationMismatch, "location_mismatch"},
	{ErrNotAuthorized, "not_authorized"},
	{ErrIdentityRejected, "identity_rejected"},
	{ErrAttendanceExists, "attendance_exists"},
	{ErrStoreOperationFailed, "store_operation_failed"},
}
