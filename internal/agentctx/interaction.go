package agentctx

import (
	"time"

	"github.com/google/uuid"
)

// Interaction is one recorded event in a context's history: a call, a
// response, an error or a registration.
type Interaction struct {
	ID        string         `json:"interaction_id,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
	Action    string         `json:"action"`
	Endpoint  *string        `json:"api_endpoint"`
	Result    *string        `json:"result"`
	Metadata  map[string]any `json:"metadata"`
}

func newInteraction(action, endpoint, result string, metadata map[string]any) Interaction {
	in := Interaction{
		ID:        uuid.NewString(),
		Timestamp: timestamp(),
		Action:    action,
		Endpoint:  optional(endpoint),
		Result:    optional(result),
		Metadata:  deepCopyMap(metadata),
	}
	if in.Metadata == nil {
		in.Metadata = map[string]any{}
	}
	return in
}

// EndpointString returns the endpoint or "" when none was recorded.
func (in Interaction) EndpointString() string { return deref(in.Endpoint) }

// ResultString returns the result or "" when none was recorded.
func (in Interaction) ResultString() string { return deref(in.Result) }

// key identifies an interaction for merge de-duplication. Entries written
// without an id fall back to their timestamp, action and endpoint.
func (in Interaction) key() string {
	if in.ID != "" {
		return in.ID
	}
	return in.Timestamp.Format(time.RFC3339Nano) + "\x00" + in.Action + "\x00" + deref(in.Endpoint)
}

func (in Interaction) clone() Interaction {
	out := in
	if in.Endpoint != nil {
		s := *in.Endpoint
		out.Endpoint = &s
	}
	if in.Result != nil {
		s := *in.Result
		out.Result = &s
	}
	out.Metadata = deepCopyMap(in.Metadata)
	return out
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
