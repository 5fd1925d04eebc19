package discovery

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// methods lists the verbs that produce tools, in emission order.
var methods = []string{"get", "post", "put", "patch", "delete", "options", "head"}

// ErrNoBaseURL is returned when neither an override nor a server URL is available.
var ErrNoBaseURL = errors.New("no base URL: document declares no servers and none was given")

// Parse converts an OpenAPI 3.x document (JSON or YAML) into an APISpec.
// baseURL, when non-empty, takes precedence over the document's first server.
func Parse(data []byte, baseURL string) (*APISpec, error) {
	doc, err := decodeDocument(data)
	if err != nil {
		return nil, err
	}
	return fromDocument(doc, baseURL)
}

func decodeDocument(data []byte) (map[string]any, error) {
	var doc map[string]any

	// Try JSON first, then YAML.
	if err := json.Unmarshal(data, &doc); err != nil {
		var raw any
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("parsing OpenAPI document: not valid JSON or YAML")
		}
		m, ok := normalize(raw).(map[string]any)
		if !ok {
			return nil, fmt.Errorf("parsing OpenAPI document: top level is not an object")
		}
		doc = m
	}
	if doc == nil {
		return nil, fmt.Errorf("parsing OpenAPI document: empty document")
	}
	return doc, nil
}

// normalize converts YAML mappings with non-string keys (such as unquoted
// response codes) into JSON-compatible maps.
func normalize(v any) any {
	switch t := v.(type) {
	case map[string]any:
		for k, e := range t {
			t[k] = normalize(e)
		}
		return t
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[fmt.Sprint(k)] = normalize(e)
		}
		return out
	case []any:
		for i, e := range t {
			t[i] = normalize(e)
		}
		return t
	default:
		return v
	}
}

func fromDocument(doc map[string]any, baseURL string) (*APISpec, error) {
	info := asMap(doc["info"])
	spec := &APISpec{
		Title:       stringOr(info["title"], "Unknown API"),
		Version:     stringOr(info["version"], "1.0.0"),
		Description: stringOr(info["description"], ""),
		BaseURL:     baseURL,
		Tools:       []Tool{},
		Raw:         doc,
	}
	if spec.BaseURL == "" {
		if servers, ok := doc["servers"].([]any); ok && len(servers) > 0 {
			spec.BaseURL = stringOr(asMap(servers[0])["url"], "")
		}
	}
	if spec.BaseURL == "" {
		return nil, ErrNoBaseURL
	}

	r := resolver{doc: doc}
	paths := asMap(doc["paths"])
	for _, path := range sortedKeys(paths) {
		item := r.deref(asMap(paths[path]))
		shared := asSlice(item["parameters"])
		for _, method := range methods {
			op, ok := item[method].(map[string]any)
			if !ok {
				continue
			}
			spec.Tools = append(spec.Tools, r.tool(path, method, op, shared))
		}
	}
	return spec, nil
}

// ToolName returns the deterministic name of an operation: its operationId
// when present, otherwise the lowercased method joined to the sanitized path.
func ToolName(method, path, operationID string) string {
	if operationID != "" {
		return operationID
	}
	clean := sanitizePath(path)
	if clean == "" {
		clean = "root"
	}
	return strings.ToLower(method) + "_" + clean
}

func sanitizePath(path string) string {
	path = strings.ReplaceAll(path, "/", "_")
	path = strings.ReplaceAll(path, "{", "")
	path = strings.ReplaceAll(path, "}", "")
	return strings.Trim(path, "_")
}

type resolver struct {
	doc map[string]any
}

// deref follows a local "#/..." reference, up to a fixed depth.
func (r resolver) deref(m map[string]any) map[string]any {
	for range 8 {
		ref, ok := m["$ref"].(string)
		if !ok || !strings.HasPrefix(ref, "#/") {
			return m
		}
		var cur any = r.doc
		for _, part := range strings.Split(strings.TrimPrefix(ref, "#/"), "/") {
			part = strings.ReplaceAll(strings.ReplaceAll(part, "~1", "/"), "~0", "~")
			cur = asMap(cur)[part]
		}
		next, ok := cur.(map[string]any)
		if !ok {
			return m
		}
		m = next
	}
	return m
}

func (r resolver) tool(path, method string, op map[string]any, shared []any) Tool {
	opID := stringOr(op["operationId"], "")
	description := stringOr(op["summary"], "")
	if description == "" {
		description = stringOr(op["description"], "")
	}
	if description == "" {
		description = strings.ToUpper(method) + " " + path
	}

	t := Tool{
		Name:           ToolName(method, path, opID),
		Description:    description,
		Method:         strings.ToUpper(method),
		Path:           path,
		Parameters:     map[string]Parameter{},
		ResponseSchema: r.responseSchema(asMap(op["responses"])),
		OperationID:    opID,
		Tags:           []string{},
	}
	for _, tag := range asSlice(op["tags"]) {
		if s, ok := tag.(string); ok {
			t.Tags = append(t.Tags, s)
		}
	}

	// Operation-level parameters override path-level ones of the same name.
	r.addParameters(t.Parameters, shared)
	r.addParameters(t.Parameters, asSlice(op["parameters"]))
	if body, ok := op["requestBody"].(map[string]any); ok {
		r.addBody(t.Parameters, r.deref(body))
	}
	return t
}

func (r resolver) addParameters(dst map[string]Parameter, params []any) {
	for _, raw := range params {
		p := r.deref(asMap(raw))
		name := stringOr(p["name"], "")
		if name == "" {
			continue
		}
		loc := Location(stringOr(p["in"], string(LocationQuery)))
		switch loc {
		case LocationPath, LocationQuery, LocationHeader:
		default:
			// cookie parameters are not sent by the client
			continue
		}
		schema := r.deref(asMap(p["schema"]))
		param := Parameter{
			Type:        stringOr(schema["type"], "string"),
			Description: stringOr(p["description"], ""),
			Required:    p["required"] == true || loc == LocationPath,
			Location:    loc,
			Format:      stringOr(schema["format"], ""),
			Enum:        asSlice(schema["enum"]),
		}
		if len(schema) > 0 {
			param.Schema = schema
		}
		dst[name] = param
	}
}

func (r resolver) addBody(dst map[string]Parameter, body map[string]any) {
	media := asMap(asMap(body["content"])["application/json"])
	schema := r.deref(asMap(media["schema"]))
	props := asMap(schema["properties"])
	if len(props) == 0 {
		return
	}
	required := map[string]bool{}
	for _, name := range asSlice(schema["required"]) {
		if s, ok := name.(string); ok {
			required[s] = true
		}
	}
	for _, name := range sortedKeys(props) {
		prop := r.deref(asMap(props[name]))
		dst[name] = Parameter{
			Type:        stringOr(prop["type"], "string"),
			Description: stringOr(prop["description"], ""),
			Required:    required[name],
			Location:    LocationBody,
			Format:      stringOr(prop["format"], ""),
			Enum:        asSlice(prop["enum"]),
			Schema:      prop,
		}
	}
}

// responseSchema returns the JSON schema of the lowest 2xx response that
// declares one.
func (r resolver) responseSchema(responses map[string]any) map[string]any {
	for _, code := range sortedKeys(responses) {
		if !strings.HasPrefix(code, "2") {
			continue
		}
		resp := r.deref(asMap(responses[code]))
		media := asMap(asMap(resp["content"])["application/json"])
		if schema, ok := media["schema"].(map[string]any); ok {
			return r.deref(schema)
		}
	}
	return map[string]any{}
}

func asMap(v any) map[string]any {
	m, _ := v.(map[string]any)
	return m
}

func asSlice(v any) []any {
	s, _ := v.([]any)
	return s
}

func stringOr(v any, fallback string) string {
	if s, ok := v.(string); ok && s != "" {
		return s
	}
	return fallback
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
