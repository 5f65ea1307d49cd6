package cloud

import (
	"errors"
	"fmt"
)

// ErrNoSession indicates that an operation requiring a signed-in user was
// attempted without stored credentials.
var ErrNoSession = errors.New("not signed in")

// ErrRefreshUnavailable indicates that a token refresh was needed but no
// refresh token is stored.
var ErrRefreshUnavailable = errors.New("no refresh token stored")

// ErrRefreshRejected indicates that the server rejected the refresh token
// (expired or revoked). The session cannot be recovered; stored credentials
// have been cleared.
var ErrRefreshRejected = errors.New("refresh token rejected")

// ErrUnauthorized indicates that a request still failed with 401 after a
// refresh attempt and a replay. No further refresh is attempted.
var ErrUnauthorized = errors.New("unauthorized after token refresh")

// APIError is any non-2xx response from the server, surfaced with its
// status and body unchanged.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("server returned status %d: %s", e.Status, e.Body)
}
