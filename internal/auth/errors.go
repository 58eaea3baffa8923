package auth

import (
	"errors"
	"fmt"
)

var (
	// ErrRefreshFailed indicates the token endpoint rejected or failed a refresh.
	ErrRefreshFailed = errors.New("auth: token refresh failed")

	// ErrNoRefreshToken indicates the store has no refresh token to use.
	ErrNoRefreshToken = errors.New("auth: no refresh token available")

	// ErrTokenNotFound indicates no persisted token exists for the client.
	ErrTokenNotFound = errors.New("auth: persisted token not found")

	// ErrTokenInvalid indicates a local API bearer token failed verification.
	ErrTokenInvalid = errors.New("auth: invalid token")
)

// AuthError reports a failed token refresh. The caller must stop issuing
// requests with the old credentials and surface the failure for
// re-authorization.
type AuthError struct {
	// StatusCode is the HTTP status from the token endpoint, 0 if the
	// request never completed.
	StatusCode int

	// Code is the OAuth2 error code (e.g. "invalid_grant"), if any.
	Code string

	// Description is the OAuth2 error_description, if any.
	Description string

	Err error
}

func (e *AuthError) Error() string {
	switch {
	case e.Code != "" && e.Description != "":
		return fmt.Sprintf("%v: %s (%s)", e.Err, e.Code, e.Description)
	case e.Code != "":
		return fmt.Sprintf("%v: %s", e.Err, e.Code)
	default:
		return e.Err.Error()
	}
}

func (e *AuthError) Unwrap() error { return e.Err }
