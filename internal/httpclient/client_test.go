package httpclient

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opencontextprotocol/ocp-go/internal/agentctx"
)

type captured struct {
	method string
	path   string
	query  url.Values
	header http.Header
	body   []byte
}

func echoServer(t *testing.T, status int) (*httptest.Server, *captured) {
	t.Helper()
	got := &captured{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got.method = r.Method
		got.path = r.URL.Path
		got.query = r.URL.Query()
		got.header = r.Header.Clone()
		got.body, _ = io.ReadAll(r.Body)

		if c, ok := ContextFromRequest(r); ok {
			c.UpdateGoal("server goal", "")
			assert.NoError(t, WriteContextHeaders(w, c, true))
		}
		w.WriteHeader(status)
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	t.Cleanup(srv.Close)
	return srv, got
}

func TestDoAttachesContextHeaders(t *testing.T) {
	srv, got := echoServer(t, http.StatusOK)
	c := agentctx.New(agentctx.WithAgentType("tester"), agentctx.WithUser("alice"))
	c.UpdateGoal("check headers", "")

	client := New(c, WithBaseHeaders(agentctx.Headers{"Authorization": "token t", "OCP-Context-ID": "ocp-00000000"}))
	resp, err := client.Get(context.Background(), srv.URL+"/repos", url.Values{"page": {"2"}})
	require.NoError(t, err)

	assert.True(t, resp.OK())
	assert.JSONEq(t, `{"ok":true}`, string(resp.Body))
	assert.Equal(t, "/repos", got.path)
	assert.Equal(t, "2", got.query.Get("page"))
	assert.Equal(t, "token t", got.header.Get("Authorization"))
	assert.Equal(t, c.ID(), got.header.Get(agentctx.HeaderContextID), "OCP headers override base headers")
	assert.Equal(t, "tester", got.header.Get(agentctx.HeaderAgentType))
	assert.Equal(t, "check headers", got.header.Get(agentctx.HeaderAgentGoal))
	assert.Equal(t, agentctx.ProtocolVersion, got.header.Get(agentctx.HeaderVersion))

	echoed, ok := ContextFromResponse(&http.Response{Header: resp.Header})
	require.True(t, ok)
	assert.Equal(t, c.ID(), echoed.ID())
	assert.Equal(t, "server goal", echoed.CurrentGoal())
}

func TestDoRecordsInteraction(t *testing.T) {
	srv, _ := echoServer(t, http.StatusNotFound)
	c := agentctx.New()

	resp, err := New(c).Delete(context.Background(), srv.URL+"/items/7")
	require.NoError(t, err, "non-2xx is not an error")
	assert.False(t, resp.OK())

	history := c.History()
	require.Len(t, history, 1)
	assert.Equal(t, "api_call_delete", history[0].Action)
	assert.Equal(t, "DELETE /items/7", history[0].EndpointString())
	assert.Equal(t, "HTTP 404", history[0].ResultString())
	assert.Equal(t, srv.URL+"/items/7", history[0].Metadata["url"])
	assert.NotEmpty(t, history[0].Metadata["domain"])
}

func TestAutoUpdateDisabled(t *testing.T) {
	srv, _ := echoServer(t, http.StatusOK)
	c := agentctx.New()

	_, err := New(c, WithAutoUpdate(false)).Get(context.Background(), srv.URL, nil)
	require.NoError(t, err)
	assert.Empty(t, c.History())
}

func TestBaseURLAndJSONBody(t *testing.T) {
	srv, got := echoServer(t, http.StatusCreated)
	client := New(agentctx.New(), WithBaseURL(srv.URL+"/v1/"))

	resp, err := client.Post(context.Background(), "issues", map[string]any{"title": "bug"})
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, http.MethodPost, got.method)
	assert.Equal(t, "/v1/issues", got.path)
	assert.Equal(t, "application/json", got.header.Get("Content-Type"))

	var body map[string]any
	require.NoError(t, json.Unmarshal(got.body, &body))
	assert.Equal(t, "bug", body["title"])

	_, err = client.Get(context.Background(), "/status", nil)
	require.NoError(t, err)
	assert.Equal(t, "/v1/status", got.path)
}

func TestDoErrors(t *testing.T) {
	c := agentctx.New()
	client := New(c, WithHTTPClient(&http.Client{Timeout: time.Second}))

	_, err := client.Get(context.Background(), "/relative/without/base", nil)
	assert.Error(t, err)

	_, err = client.Get(context.Background(), "http://127.0.0.1:1/down", nil)
	assert.Error(t, err)
	assert.Empty(t, c.History(), "failed requests are not recorded by the client")
}

func TestSetContext(t *testing.T) {
	srv, got := echoServer(t, http.StatusOK)
	first := agentctx.New()
	client := New(first)

	second := agentctx.New()
	client.SetContext(second)
	assert.Same(t, second, client.Context())

	_, err := client.Get(context.Background(), srv.URL, nil)
	require.NoError(t, err)
	assert.Equal(t, second.ID(), got.header.Get(agentctx.HeaderContextID))
	assert.Len(t, second.History(), 1)
	assert.Empty(t, first.History())
}

func TestHeadersFromHTTP(t *testing.T) {
	h := http.Header{}
	h.Add("Ocp-Context-Id", "ocp-12345678")
	h.Add("X-Multi", "a")
	h.Add("X-Multi", "b")

	flat := HeadersFromHTTP(h)
	v, ok := flat.Get(agentctx.HeaderContextID)
	assert.True(t, ok)
	assert.Equal(t, "ocp-12345678", v)
	assert.Equal(t, "a", flat["X-Multi"])

	_, ok = ContextFromResponse(nil)
	assert.False(t, ok)
	_, ok = ContextFromResponse(&http.Response{Header: h})
	assert.False(t, ok, "no session header")
}
