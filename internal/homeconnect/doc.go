// Package homeconnect is the REST client for the Home Connect appliance API.
//
// Every call goes through Client.Do, which attaches the current bearer
// token, unwraps the {"data": ...} envelope and applies a single
// refresh-and-retry when the remote answers 401. Failures are classified
// as *APIError (the remote rejected the request) or *ParseError (the
// response was not the JSON the protocol promises). A failed token refresh
// surfaces unchanged as *auth.AuthError.
//
// The typed helpers in endpoints.go cover the appliance, status, settings,
// program and command resources. OpenEvents opens the server-sent event
// stream; reading it is the stream package's job.
package homeconnect
