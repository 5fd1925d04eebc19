package storage

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/opencontextprotocol/ocp-go/internal/agentctx"
)

// sessionIDField is added to session files next to the context fields and
// removed again on load.
const sessionIDField = "session_id"

// SessionInfo summarizes a saved session.
type SessionInfo struct {
	ID               string    `json:"id"`
	ContextID        string    `json:"context_id"`
	AgentType        string    `json:"agent_type"`
	User             string    `json:"user,omitempty"`
	Workspace        string    `json:"workspace,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
	LastUpdated      time.Time `json:"last_updated"`
	InteractionCount int       `json:"interaction_count"`
	ModifiedAt       time.Time `json:"modified_at"`
}

func (s *Store) sessionPath(id string) string {
	return filepath.Join(s.sessionsDir, id+".json")
}

// SaveSession writes a full snapshot of c under id, replacing any previous one.
func (s *Store) SaveSession(id string, c *agentctx.Context) bool {
	if !ValidName(id) || c == nil {
		s.logger.Warn("refusing to save session", zap.String("session", id))
		return false
	}
	data, err := json.Marshal(c)
	if err != nil {
		s.logger.Warn("failed to encode session", zap.String("session", id), zap.Error(err))
		return false
	}
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		s.logger.Warn("failed to encode session", zap.String("session", id), zap.Error(err))
		return false
	}
	doc[sessionIDField] = id

	if err := writeJSON(s.sessionPath(id), doc); err != nil {
		s.logger.Warn("failed to save session", zap.String("session", id), zap.Error(err))
		return false
	}
	return true
}

// LoadSession reads the session saved under id.
func (s *Store) LoadSession(id string) (*agentctx.Context, bool) {
	if !ValidName(id) {
		return nil, false
	}
	doc, ok := s.readSession(s.sessionPath(id))
	if !ok {
		return nil, false
	}
	delete(doc, sessionIDField)

	data, err := json.Marshal(doc)
	if err != nil {
		return nil, false
	}
	c, err := agentctx.FromJSON(data)
	if err != nil {
		s.logger.Warn("failed to decode session", zap.String("session", id), zap.Error(err))
		return nil, false
	}
	return c, true
}

func (s *Store) readSession(path string) (map[string]any, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Warn("failed to read session", zap.String("path", path), zap.Error(err))
		}
		return nil, false
	}
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil || doc == nil {
		s.logger.Warn("failed to decode session", zap.String("path", path), zap.Error(err))
		return nil, false
	}
	return doc, true
}

// ListSessions returns saved sessions, most recently modified first. A
// positive limit caps the result. Unreadable files are skipped.
func (s *Store) ListSessions(limit int) []SessionInfo {
	files, err := jsonFiles(s.sessionsDir)
	if err != nil {
		s.logger.Warn("failed to list sessions", zap.Error(err))
		return nil
	}
	if limit > 0 && len(files) > limit {
		files = files[:limit]
	}

	sessions := make([]SessionInfo, 0, len(files))
	for _, f := range files {
		doc, ok := s.readSession(filepath.Join(s.sessionsDir, f.Name()))
		if !ok {
			continue
		}
		info := SessionInfo{
			ID:          stem(f.Name()),
			ContextID:   str(doc["context_id"]),
			AgentType:   str(doc["agent_type"]),
			User:        str(doc["user"]),
			Workspace:   str(doc["workspace"]),
			CreatedAt:   parseTime(doc["created_at"]),
			LastUpdated: parseTime(doc["last_updated"]),
			ModifiedAt:  f.ModTime(),
		}
		if id := str(doc[sessionIDField]); id != "" {
			info.ID = id
		}
		if session, ok := doc["session"].(map[string]any); ok {
			if n, ok := session["interaction_count"].(float64); ok {
				info.InteractionCount = int(n)
			}
		}
		sessions = append(sessions, info)
	}
	return sessions
}

// CleanupSessions deletes every session file except the keepRecent most
// recently modified ones, and returns how many were removed.
func (s *Store) CleanupSessions(keepRecent int) int {
	files, err := jsonFiles(s.sessionsDir)
	if err != nil {
		s.logger.Warn("failed to list sessions", zap.Error(err))
		return 0
	}
	if keepRecent < 0 {
		keepRecent = 0
	}
	if len(files) <= keepRecent {
		return 0
	}

	removed := 0
	for _, f := range files[keepRecent:] {
		if err := os.Remove(filepath.Join(s.sessionsDir, f.Name())); err != nil {
			s.logger.Warn("failed to remove session", zap.String("file", f.Name()), zap.Error(err))
			continue
		}
		removed++
	}
	s.logger.Info("cleaned up sessions", zap.Int("removed", removed), zap.Int("kept", keepRecent))
	return removed
}

func str(v any) string {
	s, _ := v.(string)
	return s
}

func parseTime(v any) time.Time {
	t, err := time.Parse(time.RFC3339Nano, str(v))
	if err != nil {
		return time.Time{}
	}
	return t
}
