// Package httpfetch provides the default Fetcher used to download
// remote schema documents during acquisition (component F). It is a
// thin, context-aware wrapper over net/http in the same spirit as the
// teacher repository's loadSchema helper, which called http.Get
// directly; this version threads a context.Context through the
// request so a caller can cancel or time out a schema-closure walk,
// and wraps failures with github.com/pkg/errors for a stack trace at
// the point of failure rather than only at the point the error is
// finally printed.
package httpfetch

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/pkg/errors"
)

// defaultMaxBodyBytes bounds how much of a remote schema response this
// client will read, so a misbehaving or hostile schemaLocation URL
// cannot exhaust memory during an acquisition closure.
const defaultMaxBodyBytes = 16 << 20

// Client fetches schema documents over HTTP(S).
type Client struct {
	HTTPClient *http.Client
	// MaxBodyBytes caps the response body size read per fetch; zero
	// uses defaultMaxBodyBytes.
	MaxBodyBytes int64
}

// New returns a Client with a sane default timeout. Callers that need
// a different timeout or transport should set HTTPClient directly.
func New() *Client {
	return &Client{HTTPClient: &http.Client{Timeout: 30 * time.Second}}
}

// Fetch performs a GET against url and returns the response body.
// A non-2xx response is reported via the returned status so the
// caller can build an HttpError with both status and URL.
func (c *Client) Fetch(ctx context.Context, url string) (body []byte, status int, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, 0, errors.Wrapf(err, "httpfetch: building request for %s", url)
	}
	client := c.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, 0, errors.Wrapf(err, "httpfetch: fetching %s", url)
	}
	defer resp.Body.Close()

	limit := c.MaxBodyBytes
	if limit <= 0 {
		limit = defaultMaxBodyBytes
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, limit))
	if err != nil {
		return nil, resp.StatusCode, errors.Wrapf(err, "httpfetch: reading body of %s", url)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return data, resp.StatusCode, nil
	}
	return data, resp.StatusCode, nil
}
