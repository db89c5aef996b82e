package refine

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"

	"github.com/rs/zerolog/log"
	"github.com/tidwall/gjson"

	"github.com/refinekit/refine-mcp/internal/common/apperrors"
)

// defaultProjectName is used when the caller supplies no display name,
// matching OpenRefine's own fallback.
const defaultProjectName = "Untitled"

// CreateProject downloads the dataset at datasetURL and re-uploads it to
// OpenRefine as a new project. The download is streamed in bounded chunks
// and never holds more than the configured maximum in memory. Not
// idempotent: each call creates a new server-side project.
func (c *Client) CreateProject(ctx context.Context, datasetURL, name string) (ProjectInfo, apperrors.Error) {
	ctx, cancel := c.opContext(ctx)
	defer cancel()

	dataset, aerr := c.downloadDataset(ctx, datasetURL)
	if aerr != nil {
		return ProjectInfo{}, aerr
	}

	displayName := name
	if displayName == "" {
		displayName = defaultProjectName
	}

	var info ProjectInfo
	aerr = c.withCSRFRetry(ctx, func(ctx context.Context, tok string) apperrors.Error {
		body, contentType, merr := buildUploadForm(dataset)
		if merr != nil {
			return merr
		}

		q := url.Values{"csrf_token": {tok}}
		if name != "" {
			q.Set("project-name", name)
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(createProjectPath, q), body)
		if err != nil {
			return ErrTransport.Err(err)
		}
		req.Header.Set("Content-Type", contentType)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return classifyTransport(err)
		}
		defer resp.Body.Close()

		// success is a redirect whose target encodes the project id
		if resp.StatusCode >= 300 && resp.StatusCode < 400 {
			id, perr := projectIDFromRedirect(resp.Header.Get("Location"))
			if perr != nil {
				return perr
			}
			info = ProjectInfo{ProjectID: id, Name: displayName}
			return nil
		}

		respBody, _, rerr := readAllBounded(resp.Body, maxControlResponseBytes)
		if rerr != nil {
			return classifyTransport(rerr)
		}
		if isCSRFRejection(respBody) {
			return errCSRFRejected
		}
		if resp.StatusCode >= 400 {
			return upstreamError(resp.StatusCode, respBody)
		}

		// some OpenRefine builds answer 200 with a JSON body instead of
		// redirecting
		id := gjson.GetBytes(respBody, "projectID")
		if !id.Exists() || id.Int() < 0 {
			return ErrUpstream.Msg("no project id in response: " + bodySnippet(respBody))
		}
		if n := gjson.GetBytes(respBody, "projectName").String(); n != "" {
			displayName = n
		}
		info = ProjectInfo{ProjectID: id.Int(), Name: displayName}
		return nil
	})
	if aerr != nil {
		return ProjectInfo{}, aerr
	}

	log.Ctx(ctx).Info().Int64("project_id", info.ProjectID).Str("name", info.Name).Msg("project created")
	return info, nil
}

// downloadDataset retrieves the source dataset, bounded by the configured
// maximum size. Redirects on the dataset host are followed; a terminal
// non-2xx status is a fetch failure.
func (c *Client) downloadDataset(ctx context.Context, datasetURL string) ([]byte, apperrors.Error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, datasetURL, nil)
	if err != nil {
		return nil, ErrDatasetFetch.Err(err)
	}
	resp, err := c.downloadClient.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, classifyTransport(err)
		}
		return nil, ErrDatasetFetch.Err(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return nil, ErrDatasetFetch.Msg(fmt.Sprintf("dataset fetch returned status %d", resp.StatusCode))
	}

	data, n, rerr := readAllBounded(resp.Body, c.maxBytes)
	if rerr != nil {
		if errors.Is(rerr, errLimitExceeded) {
			return nil, payloadTooLarge(c.maxBytes, n)
		}
		if errors.Is(rerr, context.Canceled) || errors.Is(rerr, context.DeadlineExceeded) {
			return nil, classifyTransport(rerr)
		}
		return nil, ErrDatasetFetch.Err(rerr)
	}
	return data, nil
}

// buildUploadForm wraps the dataset bytes in a multipart form with the
// project-file field OpenRefine expects. Rebuilt per attempt so the CSRF
// retry resends a complete body.
func buildUploadForm(dataset []byte) (*bytes.Buffer, string, apperrors.Error) {
	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	part, err := w.CreateFormFile("project-file", "dataset.csv")
	if err != nil {
		return nil, "", ErrRefine.Err(err)
	}
	if _, err := part.Write(dataset); err != nil {
		return nil, "", ErrRefine.Err(err)
	}
	if err := w.Close(); err != nil {
		return nil, "", ErrRefine.Err(err)
	}
	return body, w.FormDataContentType(), nil
}

// projectIDFromRedirect extracts the integer project id from the redirect
// target, e.g. /project?project=1234567890. A redirect without a
// non-negative integer id is a protocol mismatch.
func projectIDFromRedirect(location string) (int64, apperrors.Error) {
	u, err := url.Parse(location)
	if err != nil {
		return 0, ErrUpstream.Msg("unparseable redirect location: " + location)
	}
	raw := u.Query().Get("project")
	if raw == "" {
		return 0, ErrUpstream.Msg("no project id in redirect: " + location)
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id < 0 {
		return 0, ErrUpstream.Msg("invalid project id in redirect: " + raw)
	}
	return id, nil
}

// DeleteProject removes a project. Deletion is idempotent by intent: a
// response for an unknown or already-deleted project is mapped to a
// successful no-op, since OpenRefine does not distinguish "already gone"
// from other request-level failures. Transport failures still surface.
func (c *Client) DeleteProject(ctx context.Context, projectID int64) (bool, apperrors.Error) {
	ctx, cancel := c.opContext(ctx)
	defer cancel()

	aerr := c.withCSRFRetry(ctx, func(ctx context.Context, tok string) apperrors.Error {
		form := url.Values{"project": {strconv.FormatInt(projectID, 10)}}
		q := url.Values{"csrf_token": {tok}}
		body, status, perr := c.postForm(ctx, deleteProjectPath, q, form)
		if perr != nil {
			return perr
		}
		if isCSRFRejection(body) {
			return errCSRFRejected
		}
		if status >= 500 {
			return upstreamError(status, body)
		}
		if status >= 400 || gjson.GetBytes(body, "code").String() != "ok" {
			log.Ctx(ctx).Warn().
				Int64("project_id", projectID).
				Int("status", status).
				Str("body", bodySnippet(body)).
				Msg("delete treated as no-op")
		}
		return nil
	})
	if aerr != nil {
		return false, aerr
	}
	return true, nil
}
