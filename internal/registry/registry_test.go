package registry

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"unicode/utf8"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRegistry serves the registry HTTP contract from an in-memory catalog.
func fakeRegistry(t *testing.T, entries map[string]map[string]any) *httptest.Server {
	t.Helper()
	r := chi.NewRouter()
	r.Get("/api/v1/registry", func(w http.ResponseWriter, r *http.Request) {
		list := []map[string]any{}
		for name := range entries {
			list = append(list, map[string]any{"name": name})
		}
		_ = json.NewEncoder(w).Encode(list)
	})
	r.Get("/api/v1/registry/{name}", func(w http.ResponseWriter, r *http.Request) {
		entry, ok := entries[chi.URLParam(r, "name")]
		if !ok {
			http.Error(w, `{"detail":"not found"}`, http.StatusNotFound)
			return
		}
		_ = json.NewEncoder(w).Encode(entry)
	})
	r.Get("/api/v1/search", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query().Get("q")
		assert.Equal(t, "10", r.URL.Query().Get("per_page"))
		results := []map[string]any{}
		for _, name := range []string{"github", "github-enterprise", "gitlab", "gitea"} {
			if len(q) <= len(name) && name[:len(q)] == q {
				results = append(results, map[string]any{"name": name})
			}
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"results": results})
	})
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

var githubEntry = map[string]any{
	"name":         "github",
	"display_name": "GitHub",
	"description":  "GitHub REST API",
	"base_url":     "https://api.github.com",
	"tools": []any{
		map[string]any{
			"name":        "listRepos",
			"description": "List repositories",
			"method":      "GET",
			"path":        "/user/repos",
			"parameters": map[string]any{
				"per_page": map[string]any{"type": "integer", "required": false, "location": "query", "description": "Page size"},
			},
			"response_schema": map[string]any{"type": "array"},
			"operation_id":    "listRepos",
			"tags":            []any{"repos"},
		},
		map[string]any{"name": "getUser", "description": "Get the user", "method": "GET", "path": "/user"},
	},
}

func TestNewValidatesURL(t *testing.T) {
	_, err := New("ftp://registry.example.com")
	assert.Error(t, err)

	c, err := New("https://registry.example.com/")
	require.NoError(t, err)
	assert.Equal(t, "https://registry.example.com", c.URL())

	c, err = New("")
	require.NoError(t, err)
	assert.Equal(t, DefaultURL, c.URL())
}

func TestGetAPISpec(t *testing.T) {
	srv := fakeRegistry(t, map[string]map[string]any{"github": githubEntry})
	c, err := New(srv.URL)
	require.NoError(t, err)

	spec, err := c.GetAPISpec(context.Background(), "github", "")
	require.NoError(t, err)
	assert.Equal(t, "GitHub", spec.Title)
	assert.Equal(t, "1.0.0", spec.Version)
	assert.Equal(t, "GitHub REST API", spec.Description)
	assert.Equal(t, "https://api.github.com", spec.BaseURL)
	assert.Equal(t, "github", spec.Raw["name"])
	require.Len(t, spec.Tools, 2)

	repos := spec.Tools[0]
	assert.Equal(t, "listRepos", repos.Name)
	assert.Equal(t, "integer", repos.Parameters["per_page"].Type)
	assert.Equal(t, "query", string(repos.Parameters["per_page"].Location))
	assert.Equal(t, []string{"repos"}, repos.Tags)

	user := spec.Tools[1]
	assert.NotNil(t, user.Parameters)
	assert.NotNil(t, user.ResponseSchema)
	assert.NotNil(t, user.Tags)

	spec, err = c.GetAPISpec(context.Background(), "github", "https://ghe.example.com/api/v3")
	require.NoError(t, err)
	assert.Equal(t, "https://ghe.example.com/api/v3", spec.BaseURL)
}

func TestGetAPISpecTitleFallsBackToName(t *testing.T) {
	srv := fakeRegistry(t, map[string]map[string]any{"bare": {"name": "bare", "base_url": "https://bare.example.com"}})
	c, err := New(srv.URL)
	require.NoError(t, err)

	spec, err := c.GetAPISpec(context.Background(), "bare", "")
	require.NoError(t, err)
	assert.Equal(t, "bare", spec.Title)
	assert.Empty(t, spec.Tools)
}

func TestGetAPISpecNotFoundCarriesSuggestions(t *testing.T) {
	srv := fakeRegistry(t, map[string]map[string]any{})
	c, err := New(srv.URL)
	require.NoError(t, err)

	tests := []struct {
		name string
		want []string
	}{
		// Full-name search finds matches; capped at three.
		{"git", []string{"github", "github-enterprise", "gitlab"}},
		// Full-name search is empty, so the three character prefix is used.
		{"gitx", []string{"github", "github-enterprise", "gitlab"}},
		{"githubx", []string{"github", "github-enterprise", "gitlab"}},
		{"zz", []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := c.GetAPISpec(context.Background(), tt.name, "")
			var nf *NotFoundError
			require.True(t, errors.As(err, &nf))
			assert.Equal(t, tt.name, nf.Name)
			assert.Equal(t, tt.want, nf.Suggestions)
			assert.LessOrEqual(t, len(nf.Suggestions), 3)

			var ce *ConnectivityError
			assert.False(t, errors.As(err, &ce))
		})
	}
}

func TestSuggestionPrefixCountsCharacters(t *testing.T) {
	var (
		mu      sync.Mutex
		queries []string
	)
	r := chi.NewRouter()
	r.Get("/api/v1/registry/{name}", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})
	r.Get("/api/v1/search", func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		queries = append(queries, r.URL.Query().Get("q"))
		mu.Unlock()
		_ = json.NewEncoder(w).Encode(map[string]any{"results": []any{}})
	})
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	c, err := New(srv.URL)
	require.NoError(t, err)

	tests := []struct {
		name string
		want []string
	}{
		{"日本語api", []string{"日本語api", "日本語"}},
		// Two characters, six bytes: no prefix search.
		{"日本", []string{"日本"}},
		{"ünïcode", []string{"ünïcode", "ünï"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mu.Lock()
			queries = nil
			mu.Unlock()

			_, err := c.GetAPISpec(context.Background(), tt.name, "")
			var nf *NotFoundError
			require.ErrorAs(t, err, &nf)

			mu.Lock()
			defer mu.Unlock()
			assert.Equal(t, tt.want, queries)
			for _, q := range queries {
				assert.True(t, utf8.ValidString(q), "query %q", q)
			}
		})
	}
}

func TestGetAPISpecConnectivityFailures(t *testing.T) {
	broken := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer broken.Close()
	garbage := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("not json"))
	}))
	defer garbage.Close()

	for _, u := range []string{broken.URL, garbage.URL, "http://127.0.0.1:1"} {
		c, err := New(u)
		require.NoError(t, err)

		_, err = c.GetAPISpec(context.Background(), "github", "")
		var ce *ConnectivityError
		require.True(t, errors.As(err, &ce), "registry %s: %v", u, err)
		assert.Equal(t, u, ce.RegistryURL)

		var nf *NotFoundError
		assert.False(t, errors.As(err, &nf))
	}
}

func TestSearchAndListDegradeToEmpty(t *testing.T) {
	srv := fakeRegistry(t, map[string]map[string]any{"github": githubEntry})
	c, err := New(srv.URL)
	require.NoError(t, err)

	assert.Equal(t, []string{"gitlab"}, c.SearchAPIs(context.Background(), "gitl"))
	assert.Equal(t, []string{"github"}, c.ListAPIs(context.Background()))

	down, err := New("http://127.0.0.1:1")
	require.NoError(t, err)
	assert.Equal(t, []string{}, down.SearchAPIs(context.Background(), "git"))
	assert.Equal(t, []string{}, down.ListAPIs(context.Background()))
}

func TestNotFoundErrorMessage(t *testing.T) {
	err := &NotFoundError{Name: "gihtub", Suggestions: []string{"github"}}
	assert.Equal(t, `API "gihtub" not found in registry; did you mean: github`, err.Error())
	assert.Equal(t, `API "x" not found in registry`, (&NotFoundError{Name: "x"}).Error())
}
