package cloud

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"golang.org/x/sync/singleflight"

	"github.com/wizzcloud/wizzcloud-cli/tui"
)

// HTTPDoer executes HTTP requests. *retry.Client from go-httpretry
// satisfies it; tests substitute plain clients against httptest servers.
type HTTPDoer interface {
	DoWithContext(ctx context.Context, req *http.Request) (*http.Response, error)
}

// Client talks to the WizzCloud API. It injects the bearer access token,
// performs an exactly-once refresh-and-replay when the server answers 401,
// and ends the session when the refresh itself fails.
type Client struct {
	baseURL string
	http    HTTPDoer
	session *Session
	blobs   *BlobCache
	display tui.Displayer

	refreshGroup singleflight.Group

	// OnSessionEnd is invoked after credentials have been cleared because
	// a refresh failed. Callers use it to send the user back to sign-in.
	OnSessionEnd func()
}

// NewClient creates a client for the API rooted at baseURL.
func NewClient(
	baseURL string,
	doer HTTPDoer,
	session *Session,
	blobs *BlobCache,
	d tui.Displayer,
) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    doer,
		session: session,
		blobs:   blobs,
		display: d,
	}
}

// Session returns the session state owned by this client.
func (c *Client) Session() *Session {
	return c.session
}

func (c *Client) endpoint(path string) string {
	return c.baseURL + path
}

// request describes one logical API call. The body is retained as bytes so
// the call can be replayed after a token refresh.
type request struct {
	method      string
	url         string
	body        []byte
	contentType string
	auth        bool
}

// do sends req. When an authenticated request comes back 401 the credential
// is refreshed and the request replayed with the new access token, exactly
// once: the linear shape of this function is what guarantees that a second
// 401 is terminal rather than another refresh trigger. The caller owns the
// response body.
func (c *Client) do(ctx context.Context, req request) (*http.Response, error) {
	resp, err := c.send(ctx, req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusUnauthorized || !req.auth {
		return resp, nil
	}

	// First 401: refresh once, then replay with the new token.
	resp.Body.Close()
	c.display.AccessTokenRejected()
	if _, err := c.refreshCredential(ctx); err != nil {
		c.endSession()
		return nil, err
	}
	c.display.TokenRefreshedRetrying()

	resp, err = c.send(ctx, req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusUnauthorized {
		resp.Body.Close()
		return nil, ErrUnauthorized
	}
	return resp, nil
}

// send issues req once, attaching the bearer token when one is stored.
// Absence of a token is not an error here; the server decides.
func (c *Client) send(ctx context.Context, req request) (*http.Response, error) {
	var body io.Reader
	if req.body != nil {
		body = bytes.NewReader(req.body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.method, req.url, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if req.contentType != "" {
		httpReq.Header.Set("Content-Type", req.contentType)
	}
	if req.auth {
		if token, ok := c.session.AccessToken(); ok {
			httpReq.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := c.http.DoWithContext(ctx, httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	return resp, nil
}

// doJSON sends req and decodes a 2xx JSON response into out (when out is
// non-nil). Any other status becomes *APIError carrying the remote status
// and body verbatim.
func (c *Client) doJSON(ctx context.Context, req request, out any) error {
	resp, err := c.do(ctx, req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := readBody(resp)
	if err != nil {
		return err
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return &APIError{Status: resp.StatusCode, Body: string(body)}
	}
	if out == nil || len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

// readBody drains a response body.
func readBody(resp *http.Response) ([]byte, error) {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	return body, nil
}

// endSession clears stored credentials and notifies the caller that the
// session is over. Reached only when a refresh has failed; normal sign-out
// goes through Logout.
func (c *Client) endSession() {
	_ = c.session.Clear()
	c.display.SessionEnded()
	if c.OnSessionEnd != nil {
		c.OnSessionEnd()
	}
}
