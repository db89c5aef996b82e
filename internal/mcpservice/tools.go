package mcpservice

import (
	"context"
	"encoding/base64"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mitchellh/mapstructure"
	"github.com/rs/zerolog/log"

	"github.com/refinekit/refine-mcp/internal/common/apperrors"
	"github.com/refinekit/refine-mcp/internal/refine"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type createProjectArgs struct {
	DatasetURL string `mapstructure:"dataset_url"`
	Name       string `mapstructure:"name"`
}

type applyOperationsArgs struct {
	ProjectID  int64 `mapstructure:"project_id"`
	Operations any   `mapstructure:"operations"`
}

type exportRowsArgs struct {
	ProjectID int64  `mapstructure:"project_id"`
	Format    string `mapstructure:"format"`
}

type projectIDArgs struct {
	ProjectID int64 `mapstructure:"project_id"`
}

// registerTools declares the tool surface and wires each tool to the
// session client.
func (s *MCPService) registerTools() {
	s.server.AddTool(mcp.NewTool("create_project",
		mcp.WithDescription("Create a new OpenRefine project from a dataset URL"),
		mcp.WithString("dataset_url", mcp.Required(), mcp.Description("URL of the dataset to import")),
		mcp.WithString("name", mcp.Description("Optional display name for the project")),
	), s.handleCreateProject)

	s.server.AddTool(mcp.NewTool("apply_operations",
		mcp.WithDescription("Apply a JSON batch of transformation operations to a project"),
		mcp.WithNumber("project_id", mcp.Required(), mcp.Description("Project identifier")),
		mcp.WithString("operations", mcp.Required(), mcp.Description("Operations batch as a JSON array")),
	), s.handleApplyOperations)

	s.server.AddTool(mcp.NewTool("export_rows",
		mcp.WithDescription("Export all rows of a project in a tabular format"),
		mcp.WithNumber("project_id", mcp.Required(), mcp.Description("Project identifier")),
		mcp.WithString("format", mcp.Description("Export format, default csv")),
	), s.handleExportRows)

	s.server.AddTool(mcp.NewTool("delete_project",
		mcp.WithDescription("Delete an OpenRefine project"),
		mcp.WithNumber("project_id", mcp.Required(), mcp.Description("Project identifier")),
	), s.handleDeleteProject)

	s.server.AddTool(mcp.NewTool("get_project_models",
		mcp.WithDescription("Get the column, record, overlay, and scripting models of a project"),
		mcp.WithNumber("project_id", mcp.Required(), mcp.Description("Project identifier")),
	), s.handleGetProjectModels)
}

func (s *MCPService) handleCreateProject(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args createProjectArgs
	if err := decodeArgs(req.GetArguments(), &args); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if args.DatasetURL == "" {
		return mcp.NewToolResultError("dataset_url is required"), nil
	}
	log.Ctx(ctx).Info().Str("dataset_url", args.DatasetURL).Msg("create_project")
	info, aerr := s.client.CreateProject(ctx, args.DatasetURL, args.Name)
	if aerr != nil {
		return toolError(aerr), nil
	}
	return toolResult(info)
}

func (s *MCPService) handleApplyOperations(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args applyOperationsArgs
	if err := decodeArgs(req.GetArguments(), &args); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	summary, aerr := s.client.ApplyOperations(ctx, args.ProjectID, args.Operations)
	if aerr != nil {
		return toolError(aerr), nil
	}
	return toolResult(summary)
}

func (s *MCPService) handleExportRows(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args exportRowsArgs
	if err := decodeArgs(req.GetArguments(), &args); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	payload, aerr := s.client.ExportRows(ctx, args.ProjectID, args.Format)
	if aerr != nil {
		return toolError(aerr), nil
	}
	return toolResult(exportResult(payload))
}

func (s *MCPService) handleDeleteProject(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args projectIDArgs
	if err := decodeArgs(req.GetArguments(), &args); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	deleted, aerr := s.client.DeleteProject(ctx, args.ProjectID)
	if aerr != nil {
		return toolError(aerr), nil
	}
	return toolResult(map[string]bool{"deleted": deleted})
}

func (s *MCPService) handleGetProjectModels(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args projectIDArgs
	if err := decodeArgs(req.GetArguments(), &args); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	models, aerr := s.client.GetProjectModels(ctx, args.ProjectID)
	if aerr != nil {
		return toolError(aerr), nil
	}
	return toolResult(models)
}

// decodeArgs decodes the loosely-typed argument map into a typed args
// struct. Weak typing tolerates JSON numbers arriving as float64.
func decodeArgs(in map[string]any, out any) apperrors.Error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return ErrMCPService.Err(err)
	}
	if err := dec.Decode(in); err != nil {
		return ErrInvalidArguments.Err(err)
	}
	return nil
}

// toolResult serializes a typed result as JSON text content.
func toolResult(v any) (*mcp.CallToolResult, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError("unable to serialize result: " + err.Error()), nil
	}
	return mcp.NewToolResultText(string(b)), nil
}

// toolError maps a typed client failure onto an MCP tool error, preserving
// the full cause chain for the orchestrator.
func toolError(aerr apperrors.Error) *mcp.CallToolResult {
	return mcp.NewToolResultError(aerr.ErrorAll())
}

// exportResult shapes an export payload for transport: textual data travels
// as-is, binary data is base64-encoded.
func exportResult(p refine.ExportPayload) map[string]any {
	res := map[string]any{
		"mime_type": p.MIMEType,
		"bytes":     len(p.Data),
	}
	if strings.HasPrefix(p.MIMEType, "text/") {
		res["data"] = string(p.Data)
	} else {
		res["data"] = base64.StdEncoding.EncodeToString(p.Data)
		res["encoding"] = "base64"
	}
	return res
}
