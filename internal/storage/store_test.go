package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opencontextprotocol/ocp-go/internal/agentctx"
	"github.com/opencontextprotocol/ocp-go/internal/discovery"
)

func testSpec() *discovery.APISpec {
	return &discovery.APISpec{
		Title:       "GitHub API",
		Version:     "3.0",
		Description: "Code hosting",
		BaseURL:     "https://api.github.com",
		Tools: []discovery.Tool{
			{
				Name:        "listRepos",
				Description: "List repositories for a user",
				Method:      "GET",
				Path:        "/users/{username}/repos",
				Parameters: map[string]discovery.Parameter{
					"username": {Type: "string", Required: true, Location: discovery.LocationPath},
				},
				ResponseSchema: map[string]any{"type": "array"},
				Tags:           []string{"repos"},
			},
		},
		Raw: map[string]any{"openapi": "3.0.0"},
	}
}

func TestNewCreatesLayout(t *testing.T) {
	dir := t.TempDir()
	s := New(dir, nil)

	assert.Equal(t, dir, s.Dir())
	assert.DirExists(t, filepath.Join(dir, "cache", "apis"))
	assert.DirExists(t, filepath.Join(dir, "sessions"))
}

func TestCacheRoundTrip(t *testing.T) {
	s := New(t.TempDir(), nil)
	spec := testSpec()

	require.True(t, s.CacheAPI("github", spec, map[string]any{"source": "registry"}))
	assert.FileExists(t, filepath.Join(s.Dir(), "cache", "apis", "github.json"))

	got, ok := s.GetCachedAPI("github", 0)
	require.True(t, ok)
	assert.Equal(t, spec.Title, got.Title)
	assert.Equal(t, spec.BaseURL, got.BaseURL)
	assert.Equal(t, spec.Raw, got.Raw)
	require.Len(t, got.Tools, 1)
	assert.Equal(t, spec.Tools[0].Parameters, got.Tools[0].Parameters)

	entry, ok := s.readEntry("github")
	require.True(t, ok)
	assert.Equal(t, "registry", entry.Source)
}

func TestCacheExpiration(t *testing.T) {
	s := New(t.TempDir(), nil)
	s.now = func() time.Time { return time.Now().UTC().Add(-8 * 24 * time.Hour) }
	require.True(t, s.CacheAPI("github", testSpec(), nil))
	s.now = func() time.Time { return time.Now().UTC() }

	_, ok := s.GetCachedAPI("github", 7*24*time.Hour)
	assert.False(t, ok, "an 8 day old entry is a miss with a 7 day limit")

	_, ok = s.GetCachedAPI("github", 0)
	assert.True(t, ok, "an entry never expires without a limit")

	assert.FileExists(t, filepath.Join(s.Dir(), "cache", "apis", "github.json"), "expired entries are not deleted")
}

func TestCacheMissesAreNotErrors(t *testing.T) {
	s := New(t.TempDir(), nil)

	_, ok := s.GetCachedAPI("absent", 0)
	assert.False(t, ok)

	require.NoError(t, os.WriteFile(filepath.Join(s.Dir(), "cache", "apis", "broken.json"), []byte("{nope"), 0o644))
	_, ok = s.GetCachedAPI("broken", 0)
	assert.False(t, ok)

	_, ok = s.GetCachedAPI("../escape", 0)
	assert.False(t, ok)
	assert.False(t, s.CacheAPI("a/b", testSpec(), nil))
}

func TestStoreUnavailable(t *testing.T) {
	// A regular file where the base directory should be makes every
	// operation fail; none of them may panic or return an error.
	base := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(base, []byte("x"), 0o644))
	s := New(base, nil)

	assert.False(t, s.CacheAPI("github", testSpec(), nil))
	_, ok := s.GetCachedAPI("github", 0)
	assert.False(t, ok)
	assert.Empty(t, s.SearchCache("git"))
	assert.Empty(t, s.ListCachedAPIs())
	assert.False(t, s.SaveSession("s1", agentctx.New()))
	_, ok = s.LoadSession("s1")
	assert.False(t, ok)
	assert.Empty(t, s.ListSessions(0))
	assert.Equal(t, 0, s.CleanupSessions(0))
}

func TestSearchCache(t *testing.T) {
	s := New(t.TempDir(), nil)
	require.True(t, s.CacheAPI("github", testSpec(), nil))
	stripe := &discovery.APISpec{Title: "Stripe", Version: "1", BaseURL: "https://api.stripe.com", Tools: []discovery.Tool{
		{Name: "createCharge", Description: "Create a payment charge"},
	}}
	require.True(t, s.CacheAPI("stripe", stripe, nil))

	hits := s.SearchCache("GITHUB")
	require.Len(t, hits, 1)
	assert.Equal(t, "github", hits[0].Name)
	assert.Equal(t, 1, hits[0].ToolCount)

	hits = s.SearchCache("payment")
	require.Len(t, hits, 1)
	assert.Equal(t, "stripe", hits[0].Name)

	assert.Len(t, s.SearchCache("api"), 1, "matches title of github only")
	assert.Empty(t, s.SearchCache("weather"))
	assert.Equal(t, []string{"github", "stripe"}, s.ListCachedAPIs())
}

func TestClearCache(t *testing.T) {
	s := New(t.TempDir(), nil)
	for _, name := range []string{"a", "b", "c"} {
		require.True(t, s.CacheAPI(name, testSpec(), nil))
	}

	assert.True(t, s.ClearCache("a"))
	assert.True(t, s.ClearCache("a"), "clearing a missing entry succeeds")
	assert.Equal(t, []string{"b", "c"}, s.ListCachedAPIs())

	assert.True(t, s.ClearCache(""))
	assert.Empty(t, s.ListCachedAPIs())
}

func TestSessionRoundTrip(t *testing.T) {
	s := New(t.TempDir(), nil)
	c := agentctx.New(agentctx.WithAgentType("cli"), agentctx.WithUser("alice"))
	c.UpdateGoal("triage", "")
	c.AddInteraction("api_call_get", "GET /x", "HTTP 200", nil)

	require.True(t, s.SaveSession("cli-1", c))

	loaded, ok := s.LoadSession("cli-1")
	require.True(t, ok)
	assert.Equal(t, c.ID(), loaded.ID())
	assert.Equal(t, "alice", loaded.User())
	assert.Equal(t, "triage", loaded.CurrentGoal())
	assert.Len(t, loaded.History(), 1)

	// Saving again replaces the snapshot entirely.
	c.AddInteraction("second", "", "", nil)
	require.True(t, s.SaveSession("cli-1", c))
	loaded, ok = s.LoadSession("cli-1")
	require.True(t, ok)
	assert.Len(t, loaded.History(), 2)

	_, ok = s.LoadSession("missing")
	assert.False(t, ok)
}

func TestListSessionsOrderedByModification(t *testing.T) {
	s := New(t.TempDir(), nil)
	base := time.Now().Add(-time.Hour)
	for i := 0; i < 4; i++ {
		id := fmt.Sprintf("s%d", i)
		require.True(t, s.SaveSession(id, agentctx.New(agentctx.WithWorkspace(id))))
		mtime := base.Add(time.Duration(i) * time.Minute)
		require.NoError(t, os.Chtimes(s.sessionPath(id), mtime, mtime))
	}

	sessions := s.ListSessions(0)
	require.Len(t, sessions, 4)
	ids := make([]string, len(sessions))
	for i, info := range sessions {
		ids[i] = info.ID
	}
	assert.Equal(t, []string{"s3", "s2", "s1", "s0"}, ids)
	assert.Equal(t, "s3", sessions[0].Workspace)

	assert.Len(t, s.ListSessions(2), 2)

	// Touching an older file moves it to the front.
	now := time.Now()
	require.NoError(t, os.Chtimes(s.sessionPath("s0"), now, now))
	assert.Equal(t, "s0", s.ListSessions(1)[0].ID)
}

func TestCleanupSessions(t *testing.T) {
	s := New(t.TempDir(), nil)
	base := time.Now().Add(-time.Hour)
	for i := 0; i < 5; i++ {
		id := fmt.Sprintf("s%d", i)
		require.True(t, s.SaveSession(id, agentctx.New()))
		mtime := base.Add(time.Duration(i) * time.Minute)
		require.NoError(t, os.Chtimes(s.sessionPath(id), mtime, mtime))
	}

	assert.Equal(t, 3, s.CleanupSessions(2))
	sessions := s.ListSessions(0)
	require.Len(t, sessions, 2)
	assert.Equal(t, "s4", sessions[0].ID)
	assert.Equal(t, "s3", sessions[1].ID)

	assert.Equal(t, 0, s.CleanupSessions(10))
}

func TestListSessionsSkipsCorruptFiles(t *testing.T) {
	s := New(t.TempDir(), nil)
	require.True(t, s.SaveSession("good", agentctx.New()))
	require.NoError(t, os.WriteFile(s.sessionPath("bad"), []byte("not json"), 0o644))

	sessions := s.ListSessions(0)
	require.Len(t, sessions, 1)
	assert.Equal(t, "good", sessions[0].ID)

	_, ok := s.LoadSession("bad")
	assert.False(t, ok)
}
