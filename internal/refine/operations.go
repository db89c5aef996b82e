package refine

import (
	"bytes"
	"context"
	stdjson "encoding/json"
	"net/url"
	"strconv"

	jsoniter "github.com/json-iterator/go"
	"github.com/rs/zerolog/log"
	"github.com/tidwall/gjson"

	"github.com/refinekit/refine-mcp/internal/common/apperrors"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ApplyOperations applies a batch of transformation operations to a project.
// The batch is opaque to the adapter: it is validated for JSON
// well-formedness and normalized to an array literal, then forwarded as-is.
// Malformed input fails fast without a network call. Not idempotent; no
// automatic retries beyond the CSRF case.
func (c *Client) ApplyOperations(ctx context.Context, projectID int64, operations any) (ApplySummary, apperrors.Error) {
	ops, aerr := normalizeOperations(operations)
	if aerr != nil {
		return ApplySummary{}, aerr
	}

	ctx, cancel := c.opContext(ctx)
	defer cancel()

	var summary ApplySummary
	aerr = c.withCSRFRetry(ctx, func(ctx context.Context, tok string) apperrors.Error {
		form := url.Values{"operations": {ops}}
		q := url.Values{
			"project":    {strconv.FormatInt(projectID, 10)},
			"csrf_token": {tok},
		}
		body, status, perr := c.postForm(ctx, applyOpsPath, q, form)
		if perr != nil {
			return perr
		}
		if isCSRFRejection(body) {
			return errCSRFRejected
		}
		if status >= 400 {
			return upstreamError(status, body)
		}
		// server-side exceptions sometimes come back as an HTML error page
		if !gjson.ValidBytes(body) {
			return ErrUpstream.Msg("non-JSON response: " + bodySnippet(body))
		}
		if code := gjson.GetBytes(body, "code").String(); code != "ok" {
			return ErrUpstream.Msg("apply failed with code " + strconv.Quote(code) + ": " + bodySnippet(body))
		}
		summary = ApplySummary{
			Applied:        true,
			LastModifiedMS: gjson.GetBytes(body, "lastModified").Int(),
		}
		return nil
	})
	if aerr != nil {
		return ApplySummary{}, aerr
	}

	log.Ctx(ctx).Info().Int64("project_id", projectID).Msg("operations applied")
	return summary, nil
}

// normalizeOperations turns the caller-supplied batch into a JSON array
// literal. Strings and byte slices must already be valid JSON; structured
// values are marshaled. A single operation object is wrapped in an array.
func normalizeOperations(operations any) (string, apperrors.Error) {
	var raw []byte
	switch v := operations.(type) {
	case nil:
		return "", ErrInvalidOperations.Msg("operations payload is empty")
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	case jsoniter.RawMessage:
		raw = v
	case stdjson.RawMessage:
		raw = v
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return "", ErrInvalidOperations.Err(err)
		}
		raw = b
	}

	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || !json.Valid(raw) {
		return "", ErrInvalidOperations.Msg("operations payload is not valid JSON")
	}
	switch raw[0] {
	case '[':
		return string(raw), nil
	case '{':
		return "[" + string(raw) + "]", nil
	}
	return "", ErrInvalidOperations.Msg("operations payload must be a JSON array or object")
}
