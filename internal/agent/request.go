package agent

import (
	"encoding/json"
	"fmt"
	"math"
	"net/url"
	"reflect"
	"sort"
	"strings"

	"github.com/opencontextprotocol/ocp-go/internal/agentctx"
	"github.com/opencontextprotocol/ocp-go/internal/discovery"
	"github.com/opencontextprotocol/ocp-go/internal/httpclient"
)

// validateParameters checks params against tool and returns every violation.
// Only integer, boolean and array parameters are type-checked.
func validateParameters(tool discovery.Tool, params map[string]any) []string {
	var violations []string
	for _, name := range tool.RequiredParameters() {
		if _, ok := params[name]; !ok {
			violations = append(violations, "missing required parameter: "+name)
		}
	}

	names := make([]string, 0, len(params))
	for name := range params {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		p, ok := tool.Parameters[name]
		if !ok {
			continue
		}
		value := params[name]
		var valid bool
		switch p.Type {
		case "integer":
			valid = isInteger(value)
		case "boolean":
			_, valid = value.(bool)
		case "array":
			valid = isArray(value)
		default:
			continue
		}
		if !valid {
			violations = append(violations, fmt.Sprintf("parameter %q should be %s, got %s", name, p.Type, typeName(value)))
		}
	}
	return violations
}

func isInteger(v any) bool {
	switch n := v.(type) {
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return true
	case float64:
		return n == math.Trunc(n) && !math.IsInf(n, 0)
	case float32:
		return float64(n) == math.Trunc(float64(n)) && !math.IsInf(float64(n), 0)
	case json.Number:
		_, err := n.Int64()
		return err == nil
	}
	return false
}

func isArray(v any) bool {
	if v == nil {
		return false
	}
	k := reflect.TypeOf(v).Kind()
	return k == reflect.Slice || k == reflect.Array
}

// typeName names the JSON type of v for error messages.
func typeName(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case string:
		return "string"
	case bool:
		return "boolean"
	case float32, float64, json.Number:
		return "number"
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return "integer"
	case map[string]any:
		return "object"
	}
	if isArray(v) {
		return "array"
	}
	return reflect.TypeOf(v).String()
}

// buildRequest distributes params over the path, query, header and body of
// a request for tool. Parameters the tool does not declare are dropped.
func buildRequest(baseURL string, tool discovery.Tool, params map[string]any) httpclient.Request {
	path := tool.Path
	query := url.Values{}
	headers := agentctx.Headers{}
	body := map[string]any{}

	for name, value := range params {
		p, ok := tool.Parameters[name]
		if !ok {
			continue
		}
		switch p.Location {
		case discovery.LocationPath:
			path = strings.ReplaceAll(path, "{"+name+"}", url.PathEscape(formatValue(value)))
		case discovery.LocationHeader:
			headers[name] = formatValue(value)
		case discovery.LocationBody:
			body[name] = value
		default:
			if isArray(value) {
				rv := reflect.ValueOf(value)
				for i := 0; i < rv.Len(); i++ {
					query.Add(name, formatValue(rv.Index(i).Interface()))
				}
				continue
			}
			query.Add(name, formatValue(value))
		}
	}

	req := httpclient.Request{
		Method:  tool.Method,
		URL:     strings.TrimRight(baseURL, "/") + path,
		Query:   query,
		Headers: headers,
	}
	if len(body) > 0 {
		req.JSON = body
	}
	return req
}

// formatValue renders a parameter for a URL or header. Integral floats,
// which is how JSON numbers decode, lose their fractional zero.
func formatValue(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		if t == math.Trunc(t) && math.Abs(t) < 1e15 {
			return fmt.Sprintf("%d", int64(t))
		}
	case nil:
		return ""
	}
	return fmt.Sprint(v)
}
