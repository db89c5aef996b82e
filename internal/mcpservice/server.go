// Package mcpservice exposes the session client as MCP tools. It is a thin
// registration layer: tool arguments are decoded, handed to the client, and
// the typed result or typed failure is serialized back. The tool surface is
// served either over HTTP on a single route or over stdio.
package mcpservice

import (
	"context"
	stdjson "encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog/log"

	"github.com/refinekit/refine-mcp/internal/common/apperrors"
	"github.com/refinekit/refine-mcp/internal/common/middleware"
	"github.com/refinekit/refine-mcp/internal/refine"
	"github.com/refinekit/refine-mcp/internal/refine/config"
)

const (
	serverName    = "refine-mcp"
	serverVersion = "0.1.0"
)

// MCPService provides the MCP tool surface over the session client.
type MCPService struct {
	Router *chi.Mux // HTTP router for request handling
	server *server.MCPServer
	client *refine.Client
}

// CreateMCPService creates the MCP service around the given session client.
func CreateMCPService(client *refine.Client) (*MCPService, apperrors.Error) {
	if client == nil {
		return nil, ErrNilClient
	}
	s := &MCPService{
		client: client,
		server: server.NewMCPServer(
			serverName,
			serverVersion,
			server.WithToolCapabilities(true),
		),
	}
	s.registerTools()
	s.Router = chi.NewRouter()
	s.mountHandlers()
	return s, nil
}

// mountHandlers sets up the single MCP route.
func (s *MCPService) mountHandlers() {
	s.Router.Use(middleware.RequestLogger)
	s.Router.Use(middleware.PanicHandler)
	s.Router.Use(middleware.SetTimeout(config.Config().GetRequestTimeoutOrDefault() + 30*time.Second))
	if config.Config().Server.HandleCORS {
		s.Router.Use(cors.Handler(cors.Options{
			AllowedOrigins: []string{"*"},
			AllowedMethods: []string{http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"*"},
		}))
	}
	s.Router.Post("/mcp", s.handleMCP)
}

// handleMCP handles one JSON-RPC message on the MCP route.
func (s *MCPService) handleMCP(w http.ResponseWriter, r *http.Request) {
	var raw stdjson.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprintf(w, `{"error": "Invalid JSON"}`)
		return
	}
	resp := s.server.HandleMessage(r.Context(), raw)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// ServeStdio serves the tool surface over stdin/stdout for orchestrators
// that spawn the adapter as a subprocess. Blocks until the stream closes.
func (s *MCPService) ServeStdio(ctx context.Context) error {
	log.Ctx(ctx).Info().Msg("mcp server started on stdio")
	return server.ServeStdio(s.server)
}
