package httpclient

import (
	"net/http"

	"github.com/opencontextprotocol/ocp-go/internal/agentctx"
)

// HeadersFromHTTP flattens h into the codec's header map, keeping the first
// value of each key.
func HeadersFromHTTP(h http.Header) agentctx.Headers {
	out := make(agentctx.Headers, len(h))
	for k, vs := range h {
		if len(vs) > 0 {
			out[k] = vs[0]
		}
	}
	return out
}

// ContextFromResponse decodes the context a server echoed back in resp.
func ContextFromResponse(resp *http.Response) (*agentctx.Context, bool) {
	if resp == nil {
		return nil, false
	}
	return agentctx.DecodeContext(HeadersFromHTTP(resp.Header))
}

// ContextFromRequest decodes the context an agent sent with r.
func ContextFromRequest(r *http.Request) (*agentctx.Context, bool) {
	if r == nil {
		return nil, false
	}
	return agentctx.DecodeContext(HeadersFromHTTP(r.Header))
}

// WriteContextHeaders sets the OCP headers for c on w.
func WriteContextHeaders(w http.ResponseWriter, c *agentctx.Context, compress bool) error {
	h, err := agentctx.EncodeContext(c, compress)
	if err != nil {
		return err
	}
	for k, v := range h {
		w.Header().Set(k, v)
	}
	return nil
}
