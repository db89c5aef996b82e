package middleware

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// trackingWriter records whether the wrapped ResponseWriter has been written
// to, so the timeout path can tell if it is still safe to send an error body.
type trackingWriter struct {
	http.ResponseWriter
	mu      sync.Mutex
	written bool
}

func (tw *trackingWriter) WriteHeader(statusCode int) {
	tw.mu.Lock()
	tw.written = true
	tw.mu.Unlock()
	tw.ResponseWriter.WriteHeader(statusCode)
}

func (tw *trackingWriter) Write(b []byte) (int, error) {
	tw.mu.Lock()
	tw.written = true
	tw.mu.Unlock()
	return tw.ResponseWriter.Write(b)
}

// writeTimeout sends the timeout error response unless the handler already
// started writing one of its own.
func (tw *trackingWriter) writeTimeout() {
	tw.mu.Lock()
	defer tw.mu.Unlock()
	if tw.written {
		return
	}
	tw.written = true
	tw.ResponseWriter.Header().Set("Content-Type", "application/json")
	tw.ResponseWriter.WriteHeader(http.StatusGatewayTimeout)
	fmt.Fprint(tw.ResponseWriter, `{"error": "request timed out"}`)
}

// SetTimeout creates middleware that enforces a timeout for request handling.
// The deadline is installed on the request context so downstream network
// calls observe it; if the handler has not completed when the deadline
// passes, a timeout error response is returned.
func SetTimeout(timeout time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), timeout)
			defer cancel()

			tw := &trackingWriter{ResponseWriter: w}
			r = r.WithContext(ctx)
			tw.Header().Set("X-Refine-MCP-Timeout", timeout.String())

			done := make(chan struct{})
			go func() {
				defer func() {
					if rec := recover(); rec != nil {
						log.Ctx(ctx).Error().Msgf("panic in handler: %v", rec)
					}
					close(done)
				}()
				next.ServeHTTP(tw, r)
			}()

			select {
			case <-done:
				return
			case <-ctx.Done():
				tw.writeTimeout()
				log.Ctx(ctx).Error().Msg("request timed out")
				return
			}
		})
	}
}
