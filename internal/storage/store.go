// Package storage is the local file store for cached API specs and saved
// sessions. It is an optional accelerator: every operation absorbs I/O
// errors, logs them, and reports a boolean or empty result instead.
//
// Layout under the base directory:
//
//	cache/apis/{name}.json
//	sessions/{id}.json
package storage

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"go.uber.org/zap"
)

// Store reads and writes the on-disk cache and session files.
type Store struct {
	baseDir     string
	cacheDir    string
	sessionsDir string
	logger      *zap.Logger
	now         func() time.Time
}

// DefaultDir returns ~/.ocp, or .ocp in the working directory when the home
// directory cannot be determined.
func DefaultDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".ocp"
	}
	return filepath.Join(home, ".ocp")
}

// New creates a Store rooted at baseDir (DefaultDir when empty) and makes
// sure its directories exist. A failure to create them is logged, not returned.
func New(baseDir string, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	if baseDir == "" {
		baseDir = DefaultDir()
	}
	s := &Store{
		baseDir:     baseDir,
		cacheDir:    filepath.Join(baseDir, "cache", "apis"),
		sessionsDir: filepath.Join(baseDir, "sessions"),
		logger:      logger.With(zap.String("component", "storage")),
		now:         func() time.Time { return time.Now().UTC() },
	}
	for _, dir := range []string{s.cacheDir, s.sessionsDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			s.logger.Warn("failed to create storage directory", zap.String("dir", dir), zap.Error(err))
		}
	}
	return s
}

// Dir returns the base directory.
func (s *Store) Dir() string { return s.baseDir }

// ValidName reports whether name is usable as a cache or session file
// name: non-empty, with no path separators and no "..".
func ValidName(name string) bool {
	return name != "" && !strings.ContainsAny(name, `/\`) && !strings.Contains(name, "..")
}

// jsonFiles lists the *.json files directly under dir, newest modification first.
func jsonFiles(dir string) ([]os.FileInfo, error) {
	matches, err := doublestar.Glob(os.DirFS(dir), "*.json")
	if err != nil {
		return nil, err
	}
	infos := make([]os.FileInfo, 0, len(matches))
	for _, m := range matches {
		info, err := os.Stat(filepath.Join(dir, m))
		if err != nil || info.IsDir() {
			continue
		}
		infos = append(infos, info)
	}
	sort.SliceStable(infos, func(i, j int) bool {
		return infos[i].ModTime().After(infos[j].ModTime())
	})
	return infos, nil
}

// writeJSON replaces path with the indented encoding of v. The content is
// written to a temporary file first so readers never see a partial file.
func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}

func stem(filename string) string {
	return strings.TrimSuffix(filename, filepath.Ext(filename))
}
