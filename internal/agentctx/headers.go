package agentctx

import (
	"bytes"
	"compress/gzip"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"
)

// OCP header names.
const (
	HeaderContextID = "OCP-Context-ID"
	HeaderSession   = "OCP-Session"
	HeaderAgentGoal = "OCP-Agent-Goal"
	HeaderAgentType = "OCP-Agent-Type"
	HeaderUser      = "OCP-User"
	HeaderWorkspace = "OCP-Workspace"
	HeaderVersion   = "OCP-Version"
)

// ProtocolVersion is sent in every OCP-Version header.
const ProtocolVersion = "1.0"

// CompressionThreshold is the serialized size above which session payloads
// are gzipped when compression is requested.
const CompressionThreshold = 1000

const gzipTag = "gzip:"

var ocpHeaderNames = map[string]bool{
	strings.ToLower(HeaderContextID): true,
	strings.ToLower(HeaderSession):   true,
	strings.ToLower(HeaderAgentGoal): true,
	strings.ToLower(HeaderAgentType): true,
	strings.ToLower(HeaderUser):      true,
	strings.ToLower(HeaderWorkspace): true,
	strings.ToLower(HeaderVersion):   true,
}

// Headers is a flat header map. Lookups through Get are case-insensitive;
// adapting a client library's native header type into Headers is left to
// the caller.
type Headers map[string]string

// Get returns the value of name, matching keys case-insensitively.
func (h Headers) Get(name string) (string, bool) {
	if v, ok := h[name]; ok {
		return v, true
	}
	for k, v := range h {
		if strings.EqualFold(k, name) {
			return v, true
		}
	}
	return "", false
}

// EncodeContext renders c as OCP headers. The full context travels in
// OCP-Session as base64 JSON, gzipped and tagged "gzip:" when compress is
// set and the JSON is larger than CompressionThreshold bytes.
func EncodeContext(c *Context, compress bool) (Headers, error) {
	h := Headers{
		HeaderContextID: c.ID(),
		HeaderAgentType: c.AgentType(),
		HeaderVersion:   ProtocolVersion,
	}
	if goal := c.CurrentGoal(); goal != "" {
		h[HeaderAgentGoal] = goal
	}
	if user := c.User(); user != "" {
		h[HeaderUser] = user
	}
	if ws := c.Workspace(); ws != "" {
		h[HeaderWorkspace] = ws
	}

	payload, err := json.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("encoding context: %w", err)
	}
	if compress && len(payload) > CompressionThreshold {
		var buf bytes.Buffer
		zw := gzip.NewWriter(&buf)
		if _, err := zw.Write(payload); err != nil {
			return nil, fmt.Errorf("compressing context: %w", err)
		}
		if err := zw.Close(); err != nil {
			return nil, fmt.Errorf("compressing context: %w", err)
		}
		h[HeaderSession] = gzipTag + base64.StdEncoding.EncodeToString(buf.Bytes())
	} else {
		h[HeaderSession] = base64.StdEncoding.EncodeToString(payload)
	}
	return h, nil
}

// DecodeContext reconstructs the context carried by h. It reports false
// when the context id or session header is missing, or when the session
// payload cannot be decoded for any reason.
func DecodeContext(h Headers) (*Context, bool) {
	id, ok := h.Get(HeaderContextID)
	if !ok || id == "" {
		return nil, false
	}
	session, ok := h.Get(HeaderSession)
	if !ok || session == "" {
		return nil, false
	}

	payload, err := decodeSession(session)
	if err != nil {
		return nil, false
	}
	c, err := FromJSON(payload)
	if err != nil {
		return nil, false
	}
	return c, true
}

func decodeSession(value string) ([]byte, error) {
	compressed := strings.HasPrefix(value, gzipTag)
	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(value, gzipTag))
	if err != nil {
		return nil, err
	}
	if compressed {
		zr, err := gzip.NewReader(bytes.NewReader(raw))
		if err != nil {
			return nil, err
		}
		defer zr.Close()
		if raw, err = io.ReadAll(zr); err != nil {
			return nil, err
		}
	}
	if !utf8.Valid(raw) {
		return nil, fmt.Errorf("session payload is not valid UTF-8")
	}
	return raw, nil
}

// ValidateHeaders reports whether h carries a decodable OCP context.
func ValidateHeaders(h Headers) bool {
	_, ok := DecodeContext(h)
	return ok
}

// ContextSummary describes the OCP headers in h for logging. Only the raw
// header values are read; the session payload is not decoded.
func ContextSummary(h Headers) string {
	get := func(name, fallback string) string {
		if v, ok := h.Get(name); ok && v != "" {
			return v
		}
		return fallback
	}
	return fmt.Sprintf("OCP Context: %s | Agent: %s | Goal: %s | User: %s | Workspace: %s",
		get(HeaderContextID, "unknown"),
		get(HeaderAgentType, "unknown"),
		get(HeaderAgentGoal, "none"),
		get(HeaderUser, "none"),
		get(HeaderWorkspace, "none"),
	)
}

// IsOCPHeader reports whether name is one of the OCP headers.
func IsOCPHeader(name string) bool {
	return ocpHeaderNames[strings.ToLower(name)]
}

// StripOCPHeaders returns a copy of h without any OCP header.
func StripOCPHeaders(h Headers) Headers {
	out := make(Headers, len(h))
	for k, v := range h {
		if !IsOCPHeader(k) {
			out[k] = v
		}
	}
	return out
}

// MergeHeaders returns base overlaid with overlay. A key in overlay replaces
// any key in base that differs from it only in case.
func MergeHeaders(base, overlay Headers) Headers {
	out := make(Headers, len(base)+len(overlay))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range overlay {
		for existing := range out {
			if existing != k && strings.EqualFold(existing, k) {
				delete(out, existing)
			}
		}
		out[k] = v
	}
	return out
}

// CreateHeaders encodes c and merges the result over base.
func CreateHeaders(c *Context, base Headers, compress bool) (Headers, error) {
	h, err := EncodeContext(c, compress)
	if err != nil {
		return nil, err
	}
	if len(base) == 0 {
		return h, nil
	}
	return MergeHeaders(base, h), nil
}
