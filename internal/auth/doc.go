// Package auth owns the credentials homeconnect-core uses and issues.
//
// Outbound, Store holds the Home Connect OAuth2 token. It refreshes the
// token lazily when a caller reports an authentication failure, never on a
// timer, and serializes refreshes so two requests that fail with the same
// stale token cause a single call to the token endpoint. A token-updated
// callback lets the SQLite repository persist each new token.
//
// Inbound, GenerateAccessToken and ParseToken issue and verify the HS256
// bearer tokens that protect the local HTTP API.
package auth
