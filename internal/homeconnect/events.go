package homeconnect

import (
	"context"
	"fmt"
	"io"
	"net/http"
)

// EventStreamContentType is the Accept type of the event stream.
const EventStreamContentType = "text/event-stream"

// OpenEvents opens the server-sent event stream of one appliance.
//
// The caller owns the returned body and must close it. A 401 is returned
// as *TokenExpiredError without refreshing; the caller refreshes and
// reopens so that the reauthentication stays visible to the stream state
// machine.
func (c *Client) OpenEvents(ctx context.Context, haID string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+appliancePath(haID, "events"), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRequest, err)
	}
	req.Header.Set("Accept", EventStreamContentType)
	req.Header.Set("Cache-Control", "no-cache")

	token := c.tokens.AccessToken()
	c.authorize(req, token)

	resp, err := c.streamClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: opening event stream: %w", ErrRequest, err)
	}

	if resp.StatusCode == http.StatusOK {
		return resp.Body, nil
	}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody)) //nolint:errcheck // best-effort detail
	resp.Body.Close()                                              //nolint:errcheck // nothing to recover

	if resp.StatusCode == http.StatusUnauthorized {
		return nil, &TokenExpiredError{AccessToken: token}
	}
	if remote := parseRemoteError(body); remote != nil {
		return nil, fmt.Errorf("%w: status %d: %s", ErrStreamRejected, resp.StatusCode, remote.key())
	}
	return nil, fmt.Errorf("%w: status %d", ErrStreamRejected, resp.StatusCode)
}
