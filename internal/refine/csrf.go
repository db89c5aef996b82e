package refine

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/rs/zerolog/log"
	"github.com/tidwall/gjson"
	"golang.org/x/sync/singleflight"

	"github.com/refinekit/refine-mcp/internal/common/apperrors"
)

// csrfState holds the CSRF token lifecycle: absent until the first
// state-changing call, fetched once and shared, discarded when OpenRefine
// rejects it. The singleflight group guarantees at most one fetch in flight;
// concurrent acquirers await the shared result instead of racing duplicate
// fetches.
type csrfState struct {
	mu        sync.Mutex
	token     string
	fetchedAt time.Time
	group     singleflight.Group
}

// csrfToken returns the held token, fetching it if absent. Waiting is bounded
// by ctx, but the fetch itself runs on its own deadline so one caller's
// cancellation does not fail the waiters sharing the flight.
func (c *Client) csrfToken(ctx context.Context) (string, apperrors.Error) {
	c.csrf.mu.Lock()
	tok := c.csrf.token
	c.csrf.mu.Unlock()
	if tok != "" {
		return tok, nil
	}

	ch := c.csrf.group.DoChan("csrf", func() (any, error) {
		return c.fetchCSRFToken()
	})

	select {
	case <-ctx.Done():
		return "", classifyTransport(ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			var aerr apperrors.Error
			if errors.As(res.Err, &aerr) {
				return "", aerr
			}
			return "", ErrUpstream.Err(res.Err)
		}
		return res.Val.(string), nil
	}
}

// fetchCSRFToken issues the token GET and caches the result. Only called
// through the singleflight group.
func (c *Client) fetchCSRFToken() (string, error) {
	c.csrf.mu.Lock()
	if tok := c.csrf.token; tok != "" {
		c.csrf.mu.Unlock()
		return tok, nil
	}
	c.csrf.mu.Unlock()

	fetchCtx := context.Background()
	if c.timeout > 0 {
		var cancel context.CancelFunc
		fetchCtx, cancel = context.WithTimeout(fetchCtx, c.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(fetchCtx, http.MethodGet, c.endpoint(csrfTokenPath, nil), nil)
	if err != nil {
		return "", ErrTransport.Err(err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", classifyTransport(err)
	}
	defer resp.Body.Close()

	body, _, rerr := readAllBounded(resp.Body, maxControlResponseBytes)
	if rerr != nil {
		return "", classifyTransport(rerr)
	}
	if resp.StatusCode >= 400 {
		return "", upstreamError(resp.StatusCode, body)
	}
	tok := gjson.GetBytes(body, "token").String()
	if tok == "" {
		return "", ErrUpstream.Msg("token endpoint returned no token: " + bodySnippet(body))
	}

	c.csrf.mu.Lock()
	c.csrf.token = tok
	c.csrf.fetchedAt = time.Now()
	c.csrf.mu.Unlock()
	return tok, nil
}

// invalidateCSRF discards a rejected token. Compare-and-clear: a token
// already replaced by a newer fetch is left alone.
func (c *Client) invalidateCSRF(tok string) {
	c.csrf.mu.Lock()
	if c.csrf.token == tok {
		age := time.Since(c.csrf.fetchedAt)
		c.csrf.token = ""
		log.Debug().Dur("token_age", age).Msg("csrf token invalidated")
	}
	c.csrf.mu.Unlock()
}

// withCSRFRetry runs fn with a held CSRF token, retrying exactly once when fn
// reports a CSRF rejection. This is the only automatic retry in the adapter;
// a second rejection surfaces as an upstream error.
func (c *Client) withCSRFRetry(ctx context.Context, fn func(ctx context.Context, tok string) apperrors.Error) apperrors.Error {
	err := retry.Do(func() error {
		tok, aerr := c.csrfToken(ctx)
		if aerr != nil {
			return aerr
		}
		if aerr := fn(ctx, tok); aerr != nil {
			if errors.Is(aerr, errCSRFRejected) {
				c.invalidateCSRF(tok)
			}
			return aerr
		}
		return nil
	},
		retry.Attempts(2),
		retry.Delay(10*time.Millisecond),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			return errors.Is(err, errCSRFRejected)
		}),
		retry.Context(ctx),
	)
	if err == nil {
		return nil
	}
	if errors.Is(err, errCSRFRejected) {
		return ErrUpstream.Msg("csrf token rejected after re-fetch")
	}
	var aerr apperrors.Error
	if errors.As(err, &aerr) {
		return aerr
	}
	return classifyTransport(err)
}

// isCSRFRejection reports whether an OpenRefine response body signals a
// missing or invalid CSRF token. OpenRefine does not use a dedicated status
// code for this; the marker lives in the error message.
func isCSRFRejection(body []byte) bool {
	if !gjson.ValidBytes(body) {
		return false
	}
	if gjson.GetBytes(body, "code").String() != "error" {
		return false
	}
	msg := strings.ToLower(gjson.GetBytes(body, "message").String())
	return strings.Contains(msg, "csrf")
}
