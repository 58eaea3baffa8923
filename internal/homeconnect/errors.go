package homeconnect

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrAPI is wrapped by every *APIError.
	ErrAPI = errors.New("homeconnect: api error")

	// ErrParse is wrapped by every *ParseError.
	ErrParse = errors.New("homeconnect: malformed response")

	// ErrUnexpectedResponse indicates an envelope with neither data nor error.
	ErrUnexpectedResponse = errors.New("homeconnect: unexpected response")

	// ErrRequest indicates the request never produced a response.
	ErrRequest = errors.New("homeconnect: request failed")

	// ErrUnauthorized indicates a request was still rejected after a token refresh.
	ErrUnauthorized = errors.New("homeconnect: unauthorized")

	// ErrTokenExpired indicates the event stream was refused with 401.
	// The caller refreshes the token and reopens the stream.
	ErrTokenExpired = errors.New("homeconnect: access token expired")

	// ErrStreamRejected indicates the event stream was refused for a reason
	// other than authentication.
	ErrStreamRejected = errors.New("homeconnect: event stream rejected")
)

// APIError reports an application-level rejection by the remote API.
// State is never modified on its account; callers surface it.
type APIError struct {
	// Status is the HTTP status code of the response.
	Status int

	// Key is the remote error key, e.g.
	// "SDK.Error.HomeAppliance.Connection.Initialization.Failed".
	Key         string
	Description string

	// Err optionally narrows the cause (ErrUnexpectedResponse, ErrUnauthorized).
	Err error
}

func (e *APIError) Error() string {
	msg := "homeconnect: api error"
	switch {
	case e.Key != "" && e.Description != "":
		msg += fmt.Sprintf(": %s (%s)", e.Key, e.Description)
	case e.Key != "":
		msg += ": " + e.Key
	case e.Err != nil:
		msg += ": " + e.Err.Error()
	case e.Status != 0:
		msg += ": " + http.StatusText(e.Status)
	}
	if e.Status != 0 {
		msg += fmt.Sprintf(" [status %d]", e.Status)
	}
	return msg
}

func (e *APIError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrAPI}
	}
	return []error{ErrAPI, e.Err}
}

// ParseError reports a non-empty response body that is not valid JSON of
// the expected shape. It indicates protocol drift, not a rejection.
type ParseError struct {
	Status int
	Body   []byte
	Err    error
}

// maxErrorBody bounds how much of an unparseable body is echoed in errors.
const maxErrorBody = 256

func (e *ParseError) Error() string {
	body := e.Body
	if len(body) > maxErrorBody {
		body = body[:maxErrorBody]
	}
	return fmt.Sprintf("homeconnect: malformed response [status %d]: %v: %q", e.Status, e.Err, body)
}

func (e *ParseError) Unwrap() []error { return []error{ErrParse, e.Err} }

// TokenExpiredError is returned by OpenEvents when the stream is refused
// with 401. AccessToken is the token that was refused, for
// auth.Store.RefreshIfStale.
type TokenExpiredError struct {
	AccessToken string
}

func (e *TokenExpiredError) Error() string { return ErrTokenExpired.Error() }

func (e *TokenExpiredError) Is(target error) bool { return target == ErrTokenExpired }
