package refine

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	jsoniter "github.com/json-iterator/go"
	"github.com/tidwall/gjson"

	"github.com/refinekit/refine-mcp/internal/common/apperrors"
)

// ProjectModels holds a project's model documents. The sections are
// loosely-typed server-side; they are preserved as raw JSON.
type ProjectModels struct {
	ColumnModel   jsoniter.RawMessage `json:"columnModel,omitempty"`
	RecordModel   jsoniter.RawMessage `json:"recordModel,omitempty"`
	OverlayModels jsoniter.RawMessage `json:"overlayModels,omitempty"`
	Scripting     jsoniter.RawMessage `json:"scripting,omitempty"`
}

// GetProjectModels retrieves the column, record, overlay, and scripting
// models of a project. Read-only; no CSRF token required.
func (c *Client) GetProjectModels(ctx context.Context, projectID int64) (ProjectModels, apperrors.Error) {
	ctx, cancel := c.opContext(ctx)
	defer cancel()

	q := url.Values{"project": {strconv.FormatInt(projectID, 10)}}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint(getModelsPath, q), nil)
	if err != nil {
		return ProjectModels{}, ErrTransport.Err(err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return ProjectModels{}, classifyTransport(err)
	}
	defer resp.Body.Close()

	body, _, rerr := readAllBounded(resp.Body, maxControlResponseBytes)
	if rerr != nil {
		return ProjectModels{}, classifyTransport(rerr)
	}
	if resp.StatusCode >= 400 {
		return ProjectModels{}, upstreamError(resp.StatusCode, body)
	}
	if !gjson.ValidBytes(body) {
		return ProjectModels{}, ErrUpstream.Msg("non-JSON response: " + bodySnippet(body))
	}
	if gjson.GetBytes(body, "code").String() == "error" {
		return ProjectModels{}, upstreamError(resp.StatusCode, body)
	}

	var models ProjectModels
	if err := json.Unmarshal(body, &models); err != nil {
		return ProjectModels{}, ErrUpstream.MsgErr("unexpected models document", err)
	}
	return models, nil
}
