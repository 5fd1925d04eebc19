package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/opencontextprotocol/ocp-go/internal/agentctx"
	"github.com/opencontextprotocol/ocp-go/internal/httpclient"
)

var ocpHeaders = []string{
	agentctx.HeaderContextID,
	agentctx.HeaderSession,
	agentctx.HeaderAgentGoal,
	agentctx.HeaderAgentType,
	agentctx.HeaderUser,
	agentctx.HeaderWorkspace,
	agentctx.HeaderVersion,
}

// requestLogger logs one line per request through zap.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

// recordMetrics counts requests by their route pattern rather than the raw
// path so tool names do not explode label cardinality.
func (s *Server) recordMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)

		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		s.metrics.RecordHTTPRequest(r.Method, route, status, time.Since(start))
	})
}

// lockAgent takes the agent lock and merges any context the caller sent in
// its OCP headers. The returned func releases the lock.
func (s *Server) lockAgent(r *http.Request) func() {
	s.mu.Lock()
	h := httpclient.HeadersFromHTTP(r.Header)
	if s.agent.Context().UpdateFromHeaders(h) {
		s.logger.Debug("merged inbound context", zap.String("summary", agentctx.ContextSummary(h)))
	}
	return s.mu.Unlock
}

// writeContextHeaders attaches the agent's current context. Callers must
// hold the agent lock.
func (s *Server) writeContextHeaders(w http.ResponseWriter) {
	if err := httpclient.WriteContextHeaders(w, s.agent.Context(), true); err != nil {
		s.logger.Warn("encoding context headers", zap.Error(err))
	}
}
