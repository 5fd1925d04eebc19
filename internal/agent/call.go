package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/opencontextprotocol/ocp-go/internal/metrics"
)

// ToolResponse is the HTTP response to a tool call. Non-2xx statuses are
// returned here rather than as errors.
type ToolResponse struct {
	StatusCode int
	Status     string
	Headers    http.Header
	Body       []byte
}

// OK reports whether the call returned a 2xx status.
func (r *ToolResponse) OK() bool { return r.StatusCode >= 200 && r.StatusCode < 300 }

// DecodeJSON decodes the response body into v.
func (r *ToolResponse) DecodeJSON(v any) error {
	return json.Unmarshal(r.Body, v)
}

// CallTool invokes a registered tool. The tool is looked up in apiName, or
// across all APIs in registration order when apiName is empty. Parameters
// are validated first; a *ValidationError lists every problem and nothing
// is sent. Otherwise a tool_call interaction is recorded, the request is
// sent with the agent's OCP headers, and a tool_response or tool_error
// interaction is recorded.
func (a *Agent) CallTool(ctx context.Context, toolName string, params map[string]any, apiName string) (*ToolResponse, error) {
	if params == nil {
		params = map[string]any{}
	}
	tool, spec, api, ok := a.findTool(toolName, apiName)
	if !ok {
		return nil, a.toolNotFound(toolName, apiName)
	}

	if violations := validateParameters(tool, params); len(violations) > 0 {
		a.metrics.RecordToolCall(api, toolName, metrics.OutcomeInvalid, 0)
		return nil, &ValidationError{Tool: toolName, Violations: violations}
	}

	req := buildRequest(spec.BaseURL, tool, params)
	a.ctx.AddInteraction("tool_call:"+toolName, req.URL, "executing", map[string]any{
		"tool_name":  toolName,
		"parameters": params,
		"method":     tool.Method,
	})

	callCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	start := time.Now()
	resp, err := a.client.Do(callCtx, req)
	elapsed := time.Since(start)
	if err != nil {
		a.ctx.AddInteraction("tool_error:"+toolName, req.URL, "Error: "+err.Error(), map[string]any{
			"error_type":    fmt.Sprintf("%T", err),
			"error_message": err.Error(),
		})
		a.metrics.RecordToolCall(api, toolName, metrics.OutcomeError, elapsed)
		a.logger.Warn("tool call failed", zap.String("tool", toolName), zap.String("api", api), zap.Error(err))
		return nil, fmt.Errorf("calling tool %s: %w", toolName, err)
	}

	a.ctx.AddInteraction("tool_response:"+toolName, req.URL, fmt.Sprintf("%d %s", resp.StatusCode, http.StatusText(resp.StatusCode)), map[string]any{
		"status_code":   resp.StatusCode,
		"success":       resp.OK(),
		"response_size": len(resp.Body),
	})
	outcome := metrics.OutcomeSuccess
	if !resp.OK() {
		outcome = metrics.OutcomeHTTPError
	}
	a.metrics.RecordToolCall(api, toolName, outcome, elapsed)
	a.logger.Debug("tool call completed",
		zap.String("tool", toolName),
		zap.String("api", api),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", elapsed),
	)

	return &ToolResponse{
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
		Headers:    resp.Header,
		Body:       resp.Body,
	}, nil
}
