package storage

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/opencontextprotocol/ocp-go/internal/discovery"
)

// CacheEntry is the on-disk form of a cached API.
type CacheEntry struct {
	APIName     string           `json:"api_name"`
	Title       string           `json:"title"`
	Version     string           `json:"version"`
	Description string           `json:"description"`
	BaseURL     string           `json:"base_url"`
	CachedAt    time.Time        `json:"cached_at"`
	Source      string           `json:"source"`
	Metadata    map[string]any   `json:"metadata,omitempty"`
	RawSpec     map[string]any   `json:"raw_spec"`
	Tools       []discovery.Tool `json:"tools"`
}

// Spec rebuilds the APISpec stored in e.
func (e *CacheEntry) Spec() *discovery.APISpec {
	tools := e.Tools
	if tools == nil {
		tools = []discovery.Tool{}
	}
	return &discovery.APISpec{
		Title:       e.Title,
		Version:     e.Version,
		Description: e.Description,
		BaseURL:     e.BaseURL,
		Tools:       tools,
		Raw:         e.RawSpec,
	}
}

// CacheHit summarizes a cached API matched by SearchCache.
type CacheHit struct {
	Name      string    `json:"name"`
	Title     string    `json:"title"`
	Version   string    `json:"version"`
	BaseURL   string    `json:"base_url"`
	CachedAt  time.Time `json:"cached_at"`
	ToolCount int       `json:"tool_count"`
}

func (s *Store) cachePath(name string) string {
	return filepath.Join(s.cacheDir, name+".json")
}

// CacheAPI writes spec to the cache under name. metadata["source"], when a
// string, becomes the entry's source tag. It reports whether the write succeeded.
func (s *Store) CacheAPI(name string, spec *discovery.APISpec, metadata map[string]any) bool {
	if !ValidName(name) || spec == nil {
		s.logger.Warn("refusing to cache API", zap.String("api", name))
		return false
	}
	source := "unknown"
	if src, ok := metadata["source"].(string); ok && src != "" {
		source = src
	}
	entry := CacheEntry{
		APIName:     name,
		Title:       spec.Title,
		Version:     spec.Version,
		Description: spec.Description,
		BaseURL:     spec.BaseURL,
		CachedAt:    s.now(),
		Source:      source,
		Metadata:    metadata,
		RawSpec:     spec.Raw,
		Tools:       spec.Tools,
	}
	if err := writeJSON(s.cachePath(name), entry); err != nil {
		s.logger.Warn("failed to cache API", zap.String("api", name), zap.Error(err))
		return false
	}
	return true
}

// GetCachedAPI returns the cached spec for name. A missing or unreadable file
// is a miss, as is an entry older than maxAge when maxAge is positive.
// Expired files are left in place.
func (s *Store) GetCachedAPI(name string, maxAge time.Duration) (*discovery.APISpec, bool) {
	entry, ok := s.readEntry(name)
	if !ok {
		return nil, false
	}
	if maxAge > 0 && s.now().Sub(entry.CachedAt) > maxAge {
		s.logger.Debug("cached API expired",
			zap.String("api", name),
			zap.Time("cached_at", entry.CachedAt),
			zap.Duration("max_age", maxAge),
		)
		return nil, false
	}
	return entry.Spec(), true
}

func (s *Store) readEntry(name string) (*CacheEntry, bool) {
	if !ValidName(name) {
		return nil, false
	}
	data, err := os.ReadFile(s.cachePath(name))
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Warn("failed to read cached API", zap.String("api", name), zap.Error(err))
		}
		return nil, false
	}
	var entry CacheEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		s.logger.Warn("failed to decode cached API", zap.String("api", name), zap.Error(err))
		return nil, false
	}
	return &entry, true
}

// SearchCache returns the cached APIs whose name, title, description or any
// tool description contains query, ignoring case. Results are sorted by name.
func (s *Store) SearchCache(query string) []CacheHit {
	q := strings.ToLower(query)
	var hits []CacheHit
	for _, name := range s.ListCachedAPIs() {
		entry, ok := s.readEntry(name)
		if !ok || !entry.matches(q) {
			continue
		}
		hits = append(hits, CacheHit{
			Name:      entry.APIName,
			Title:     entry.Title,
			Version:   entry.Version,
			BaseURL:   entry.BaseURL,
			CachedAt:  entry.CachedAt,
			ToolCount: len(entry.Tools),
		})
	}
	return hits
}

func (e *CacheEntry) matches(q string) bool {
	for _, field := range []string{e.APIName, e.Title, e.Description} {
		if strings.Contains(strings.ToLower(field), q) {
			return true
		}
	}
	for _, t := range e.Tools {
		if strings.Contains(strings.ToLower(t.Description), q) {
			return true
		}
	}
	return false
}

// ListCachedAPIs returns the names of all cached APIs, sorted.
func (s *Store) ListCachedAPIs() []string {
	files, err := jsonFiles(s.cacheDir)
	if err != nil {
		s.logger.Warn("failed to list cache", zap.Error(err))
		return nil
	}
	names := make([]string, 0, len(files))
	for _, f := range files {
		names = append(names, stem(f.Name()))
	}
	sort.Strings(names)
	return names
}

// ClearCache removes the cached entry for name, or every entry when name is
// empty. Removing an entry that does not exist succeeds.
func (s *Store) ClearCache(name string) bool {
	if name != "" {
		if !ValidName(name) {
			return false
		}
		if err := os.Remove(s.cachePath(name)); err != nil && !os.IsNotExist(err) {
			s.logger.Warn("failed to clear cached API", zap.String("api", name), zap.Error(err))
			return false
		}
		return true
	}

	files, err := jsonFiles(s.cacheDir)
	if err != nil {
		s.logger.Warn("failed to clear cache", zap.Error(err))
		return false
	}
	ok := true
	for _, f := range files {
		if err := os.Remove(filepath.Join(s.cacheDir, f.Name())); err != nil && !os.IsNotExist(err) {
			s.logger.Warn("failed to clear cached API", zap.String("file", f.Name()), zap.Error(err))
			ok = false
		}
	}
	return ok
}
