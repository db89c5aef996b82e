package refine

import (
	"fmt"
	"net/http"

	"github.com/refinekit/refine-mcp/internal/common/apperrors"
)

var (
	// ErrRefine is the base error for all adapter errors.
	ErrRefine apperrors.Error = apperrors.New("openrefine adapter error").SetStatusCode(http.StatusBadGateway)

	// ErrInvalidOperations is returned when the caller-supplied operations
	// payload is not syntactically valid JSON. Detected locally; no request
	// is made.
	ErrInvalidOperations apperrors.Error = ErrRefine.New("invalid operations payload").SetStatusCode(http.StatusBadRequest)

	// ErrDatasetFetch is returned when the source dataset URL could not be
	// retrieved.
	ErrDatasetFetch apperrors.Error = ErrRefine.New("unable to fetch dataset").SetStatusCode(http.StatusBadGateway)

	// ErrPayloadTooLarge is returned when a download or export stream
	// exceeds the configured maximum size.
	ErrPayloadTooLarge apperrors.Error = ErrRefine.New("payload exceeds configured maximum").SetStatusCode(http.StatusRequestEntityTooLarge)

	// ErrUpstream is returned when OpenRefine responded but signaled
	// failure: a non-success code, an unexpected non-JSON body, or a
	// 4xx/5xx status.
	ErrUpstream apperrors.Error = ErrRefine.New("openrefine returned an error").SetStatusCode(http.StatusBadGateway)

	// ErrTransport is returned on network failure reaching OpenRefine,
	// including mid-stream interruption.
	ErrTransport apperrors.Error = ErrRefine.New("transport failure").SetStatusCode(http.StatusServiceUnavailable)

	// ErrTimeout is the timeout variant of ErrTransport; errors.Is against
	// ErrTransport also matches.
	ErrTimeout apperrors.Error = ErrTransport.New("request timed out").SetStatusCode(http.StatusGatewayTimeout)

	// ErrCancelled is returned when the calling context aborted the
	// operation before completion.
	ErrCancelled apperrors.Error = ErrRefine.New("operation cancelled").SetStatusCode(499)

	// errCSRFRejected marks a POST rejected for CSRF reasons. It triggers
	// the single token re-fetch and retry; if the retry is rejected again
	// it surfaces through ErrUpstream.
	errCSRFRejected apperrors.Error = ErrUpstream.New("csrf token rejected")
)

// maxBodySnippet bounds the amount of upstream body preserved in error
// messages for diagnostics.
const maxBodySnippet = 512

func bodySnippet(body []byte) string {
	if len(body) > maxBodySnippet {
		body = body[:maxBodySnippet]
	}
	return string(body)
}

func upstreamError(status int, body []byte) apperrors.Error {
	return ErrUpstream.Msg(fmt.Sprintf("openrefine returned status %d: %s", status, bodySnippet(body)))
}
