// Package refine implements the session client for a wrapped OpenRefine
// instance. It owns the CSRF token lifecycle and the HTTP transport, and
// translates OpenRefine's loosely-typed protocol (multipart uploads,
// JSON-in-form-field operation batches, redirect-encoded project ids,
// streamed tabular exports) into typed results and typed failures.
package refine

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/refinekit/refine-mcp/internal/common/apperrors"
	"github.com/refinekit/refine-mcp/internal/refine/config"
)

// OpenRefine command endpoints consumed by the client.
const (
	csrfTokenPath     = "/command/core/get-csrf-token"
	createProjectPath = "/command/core/create-project-from-upload"
	applyOpsPath      = "/command/core/apply-operations"
	exportRowsPath    = "/command/core/export-rows"
	deleteProjectPath = "/command/core/delete-project"
	getModelsPath     = "/command/core/get-models"
)

// ProjectInfo describes a created OpenRefine project.
type ProjectInfo struct {
	ProjectID int64  `json:"project_id"`
	Name      string `json:"name"`
}

// ApplySummary describes the outcome of applying an operations batch.
type ApplySummary struct {
	Applied        bool  `json:"applied"`
	LastModifiedMS int64 `json:"last_modified_ms"`
}

// ExportPayload holds exported tabular data and its MIME type.
type ExportPayload struct {
	Data     []byte `json:"data"`
	MIMEType string `json:"mime_type"`
}

// Client is a stateful facade over one OpenRefine instance. The only shared
// mutable state is the CSRF token; operations against different projects can
// run concurrently with no coordination.
type Client struct {
	baseURL  string
	timeout  time.Duration
	maxBytes int64 // cap on dataset downloads and export streams; 0 means unbounded
	// httpClient talks to OpenRefine and must not follow redirects;
	// downloadClient fetches source datasets and does.
	httpClient     *http.Client
	downloadClient *http.Client
	csrf           csrfState
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout sets the per-request timeout. Zero disables the client-side
// deadline and leaves timeouts to the caller's context.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// WithMaxDownloadBytes caps dataset downloads and export streams. Zero means
// unbounded.
func WithMaxDownloadBytes(n int64) Option {
	return func(c *Client) { c.maxBytes = n }
}

// WithHTTPClient replaces the underlying HTTP client. The replacement must
// not follow redirects, or project creation cannot observe the redirect that
// carries the project id.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// New creates a client for the OpenRefine instance at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		timeout: config.DefaultRequestTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{
			// the create-project redirect carries the project id, so it
			// must surface instead of being followed
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		}
	}
	if c.downloadClient == nil {
		c.downloadClient = &http.Client{Transport: c.httpClient.Transport}
	}
	return c
}

// NewFromConfig creates a client from the loaded configuration.
func NewFromConfig(cfg *config.ConfigParam) *Client {
	return New(cfg.RefineURL,
		WithTimeout(cfg.GetRequestTimeoutOrDefault()),
		WithMaxDownloadBytes(cfg.MaxDownloadBytes),
	)
}

// Close releases idle transport connections.
func (c *Client) Close() {
	c.httpClient.CloseIdleConnections()
	c.downloadClient.CloseIdleConnections()
}

// opContext applies the configured request timeout to ctx.
func (c *Client) opContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, c.timeout)
}

// endpoint builds a full URL for the given command path and query parameters.
func (c *Client) endpoint(p string, q url.Values) string {
	u := c.baseURL + p
	if len(q) > 0 {
		u = u + "?" + q.Encode()
	}
	return u
}

// classifyTransport maps a transport-level failure onto the error taxonomy:
// caller cancellation, deadline expiry, or plain connection failure.
func classifyTransport(err error) apperrors.Error {
	switch {
	case errors.Is(err, context.Canceled):
		return ErrCancelled.Err(err)
	case errors.Is(err, context.DeadlineExceeded):
		return ErrTimeout.Err(err)
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return ErrTimeout.Err(err)
	}
	return ErrTransport.Err(err)
}

// postForm sends an urlencoded form POST and returns the buffered response
// body and status. Control responses are small; bodies beyond the control
// cap are rejected as upstream errors.
func (c *Client) postForm(ctx context.Context, p string, q url.Values, form url.Values) ([]byte, int, apperrors.Error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(p, q), strings.NewReader(form.Encode()))
	if err != nil {
		return nil, 0, ErrTransport.Err(err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, classifyTransport(err)
	}
	defer resp.Body.Close()

	body, _, rerr := readAllBounded(resp.Body, maxControlResponseBytes)
	if rerr != nil {
		if errors.Is(rerr, errLimitExceeded) {
			return nil, resp.StatusCode, ErrUpstream.Msg("control response exceeds size cap")
		}
		return nil, resp.StatusCode, classifyTransport(rerr)
	}
	return body, resp.StatusCode, nil
}
