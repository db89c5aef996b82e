// Package-level error variables for mcpservice, representing service setup
// and request decoding errors for the MCP registration layer.
package mcpservice

import (
	"net/http"

	"github.com/refinekit/refine-mcp/internal/common/apperrors"
)

var (
	// ErrMCPService is the base error for MCP service errors.
	ErrMCPService apperrors.Error = apperrors.New("mcp service error").SetStatusCode(http.StatusInternalServerError)

	// ErrNilClient is returned when the service is created without a
	// session client.
	ErrNilClient apperrors.Error = ErrMCPService.New("refine client is nil")

	// ErrInvalidArguments is returned when tool arguments cannot be decoded
	// into the expected shape.
	ErrInvalidArguments apperrors.Error = ErrMCPService.New("invalid tool arguments").SetStatusCode(http.StatusBadRequest)
)
