package agentctx

import (
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"
)

var contextIDPattern = regexp.MustCompile(`^ocp-[a-f0-9]{8,}$`)

// maxSchemaRecentChanges is the schema bound; contexts built by this package
// never hold more than MaxRecentChanges.
const maxSchemaRecentChanges = 20

var requiredFields = []string{
	"context_id", "agent_type", "session", "history", "api_specs", "created_at", "last_updated",
}

var knownFields = map[string]bool{
	"context_id": true, "agent_type": true, "user": true, "workspace": true,
	"current_file": true, "session": true, "history": true, "current_goal": true,
	"context_summary": true, "error_context": true, "recent_changes": true,
	"api_specs": true, "created_at": true, "last_updated": true,
}

var nullableStringFields = []string{
	"user", "workspace", "current_file", "current_goal", "context_summary", "error_context",
}

// SchemaError lists every way a document deviates from the context schema.
type SchemaError struct {
	Violations []string
}

func (e *SchemaError) Error() string {
	return "invalid context: " + strings.Join(e.Violations, "; ")
}

// ValidateJSON checks a context document against the context schema and
// returns a *SchemaError naming every violation.
func ValidateJSON(data []byte) error {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(data, &doc); err != nil {
		return &SchemaError{Violations: []string{"not a JSON object: " + err.Error()}}
	}

	var v []string
	keys := make([]string, 0, len(doc))
	for k := range doc {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if !knownFields[k] {
			v = append(v, fmt.Sprintf("unknown field %q", k))
		}
	}
	for _, k := range requiredFields {
		if _, ok := doc[k]; !ok {
			v = append(v, fmt.Sprintf("missing required field %q", k))
		}
	}

	if raw, ok := doc["context_id"]; ok {
		var id string
		if json.Unmarshal(raw, &id) != nil {
			v = append(v, "context_id must be a string")
		} else if !contextIDPattern.MatchString(id) {
			v = append(v, fmt.Sprintf("context_id %q does not match %s", id, contextIDPattern))
		}
	}
	if raw, ok := doc["agent_type"]; ok {
		var s string
		if json.Unmarshal(raw, &s) != nil {
			v = append(v, "agent_type must be a string")
		}
	}
	for _, k := range nullableStringFields {
		raw, ok := doc[k]
		if !ok {
			continue
		}
		var s *string
		if json.Unmarshal(raw, &s) != nil {
			v = append(v, k+" must be a string or null")
		}
	}
	if raw, ok := doc["session"]; ok {
		var m map[string]any
		if json.Unmarshal(raw, &m) != nil || m == nil {
			v = append(v, "session must be an object")
		}
	}
	if raw, ok := doc["history"]; ok {
		v = append(v, validateHistory(raw)...)
	}
	if raw, ok := doc["recent_changes"]; ok {
		var changes []string
		if json.Unmarshal(raw, &changes) != nil {
			v = append(v, "recent_changes must be an array of strings")
		} else if len(changes) > maxSchemaRecentChanges {
			v = append(v, fmt.Sprintf("recent_changes has %d items, at most %d allowed", len(changes), maxSchemaRecentChanges))
		}
	}
	if raw, ok := doc["api_specs"]; ok {
		var specs map[string]string
		// Keys are caller-chosen registration names; only values are checked.
		if json.Unmarshal(raw, &specs) != nil || specs == nil {
			v = append(v, "api_specs must be an object of strings")
		}
	}
	for _, k := range []string{"created_at", "last_updated"} {
		if raw, ok := doc[k]; ok && !isDateTime(raw) {
			v = append(v, k+" must be an ISO-8601 date-time")
		}
	}

	if len(v) > 0 {
		return &SchemaError{Violations: v}
	}
	return nil
}

func validateHistory(raw json.RawMessage) []string {
	var items []map[string]json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return []string{"history must be an array of objects"}
	}
	var v []string
	for i, item := range items {
		ts, ok := item["timestamp"]
		if !ok {
			v = append(v, fmt.Sprintf("history[%d] missing timestamp", i))
		} else if !isDateTime(ts) {
			v = append(v, fmt.Sprintf("history[%d].timestamp must be an ISO-8601 date-time", i))
		}
		action, ok := item["action"]
		var s string
		if !ok {
			v = append(v, fmt.Sprintf("history[%d] missing action", i))
		} else if json.Unmarshal(action, &s) != nil {
			v = append(v, fmt.Sprintf("history[%d].action must be a string", i))
		}
		if md, ok := item["metadata"]; ok {
			var m map[string]any
			if json.Unmarshal(md, &m) != nil {
				v = append(v, fmt.Sprintf("history[%d].metadata must be an object", i))
			}
		}
	}
	return v
}

func isDateTime(raw json.RawMessage) bool {
	var s string
	if json.Unmarshal(raw, &s) != nil {
		return false
	}
	_, err := time.Parse(time.RFC3339Nano, s)
	return err == nil
}
