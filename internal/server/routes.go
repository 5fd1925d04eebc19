package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/opencontextprotocol/ocp-go/internal/agent"
	"github.com/opencontextprotocol/ocp-go/internal/discovery"
	"github.com/opencontextprotocol/ocp-go/internal/registry"
)

// registerRoutes mounts the agent endpoints on r.
func (s *Server) registerRoutes(r chi.Router) {
	r.Get("/api/apis", s.listAPIsHandler)
	r.Post("/api/apis", s.registerAPIHandler)
	r.Get("/api/tools", s.listToolsHandler)
	r.Get("/api/tools/search", s.searchToolsHandler)
	r.Post("/api/tools/{name}/call", s.callToolHandler)
	r.Get("/api/context", s.getContextHandler)
	r.Put("/api/context/goal", s.updateGoalHandler)
}

type apiSummary struct {
	Name      string `json:"name"`
	Title     string `json:"title"`
	Version   string `json:"version"`
	BaseURL   string `json:"base_url"`
	ToolCount int    `json:"tool_count"`
}

type registerRequest struct {
	Name    string `json:"name"`
	SpecURL string `json:"spec_url"`
	BaseURL string `json:"base_url"`
}

type callRequest struct {
	Parameters map[string]any `json:"parameters"`
	APIName    string         `json:"api_name"`
}

type callResponse struct {
	StatusCode int             `json:"status_code"`
	Status     string          `json:"status"`
	OK         bool            `json:"ok"`
	Body       json.RawMessage `json:"body,omitempty"`
	Text       string          `json:"text,omitempty"`
}

type goalRequest struct {
	Goal    string `json:"goal"`
	Summary string `json:"summary"`
}

type errorResponse struct {
	Error       string   `json:"error"`
	Violations  []string `json:"violations,omitempty"`
	Suggestions []string `json:"suggestions,omitempty"`
	Available   []string `json:"available,omitempty"`
}

func summarize(name string, spec *discovery.APISpec) apiSummary {
	return apiSummary{
		Name:      name,
		Title:     spec.Title,
		Version:   spec.Version,
		BaseURL:   spec.BaseURL,
		ToolCount: len(spec.Tools),
	}
}

func (s *Server) listAPIsHandler(w http.ResponseWriter, r *http.Request) {
	defer s.lockAgent(r)()

	result := []apiSummary{}
	for _, name := range s.agent.APIs() {
		spec, _ := s.agent.API(name)
		result = append(result, summarize(name, spec))
	}
	s.writeJSON(w, http.StatusOK, result)
}

func (s *Server) registerAPIHandler(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.badRequest(w, r, "invalid request body")
		return
	}
	if req.Name == "" {
		s.badRequest(w, r, "name is required")
		return
	}

	defer s.lockAgent(r)()

	spec, err := s.agent.RegisterAPI(r.Context(), req.Name, req.SpecURL, req.BaseURL)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, summarize(req.Name, spec))
}

func (s *Server) listToolsHandler(w http.ResponseWriter, r *http.Request) {
	defer s.lockAgent(r)()

	tools, err := s.agent.ListTools(r.URL.Query().Get("api"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	if tools == nil {
		tools = []discovery.Tool{}
	}
	s.writeJSON(w, http.StatusOK, tools)
}

func (s *Server) searchToolsHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		s.badRequest(w, r, "q is required")
		return
	}

	defer s.lockAgent(r)()

	tools := s.agent.SearchTools(q, r.URL.Query().Get("api"))
	if tools == nil {
		tools = []discovery.Tool{}
	}
	s.writeJSON(w, http.StatusOK, tools)
}

func (s *Server) callToolHandler(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	var req callRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.badRequest(w, r, "invalid request body")
			return
		}
	}

	defer s.lockAgent(r)()

	resp, err := s.agent.CallTool(r.Context(), name, req.Parameters, req.APIName)
	if err != nil {
		s.writeError(w, err)
		return
	}

	out := callResponse{StatusCode: resp.StatusCode, Status: resp.Status, OK: resp.OK()}
	if json.Valid(resp.Body) {
		out.Body = resp.Body
	} else {
		out.Text = string(resp.Body)
	}
	s.writeJSON(w, http.StatusOK, out)
}

func (s *Server) getContextHandler(w http.ResponseWriter, r *http.Request) {
	defer s.lockAgent(r)()
	s.writeJSON(w, http.StatusOK, s.agent.Context())
}

func (s *Server) updateGoalHandler(w http.ResponseWriter, r *http.Request) {
	var req goalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.badRequest(w, r, "invalid request body")
		return
	}
	if req.Goal == "" {
		s.badRequest(w, r, "goal is required")
		return
	}

	defer s.lockAgent(r)()

	s.agent.UpdateGoal(req.Goal, req.Summary)
	s.writeJSON(w, http.StatusOK, s.agent.Context())
}

// writeJSON writes v with the agent's context headers. Callers must hold
// the agent lock.
func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	s.writeContextHeaders(w)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// badRequest rejects a malformed request. It still carries the context
// headers, so it takes the agent lock itself.
func (s *Server) badRequest(w http.ResponseWriter, r *http.Request, msg string) {
	defer s.lockAgent(r)()
	s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: msg})
}

// writeError maps agent errors onto HTTP statuses.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	var (
		validation   *agent.ValidationError
		unknownAPI   *agent.UnknownAPIError
		toolNotFound *agent.ToolNotFoundError
		invalidName  *agent.InvalidNameError
		notFound     *registry.NotFoundError
	)
	resp := errorResponse{Error: err.Error()}
	// Registry, discovery and network failures all mean an upstream is
	// unreachable or broken.
	status := http.StatusBadGateway

	switch {
	case errors.As(err, &validation):
		status = http.StatusUnprocessableEntity
		resp.Violations = validation.Violations
	case errors.As(err, &unknownAPI):
		status = http.StatusNotFound
	case errors.As(err, &toolNotFound):
		status = http.StatusNotFound
		resp.Available = toolNotFound.Available
	case errors.As(err, &invalidName):
		status = http.StatusBadRequest
	case errors.As(err, &notFound):
		status = http.StatusNotFound
		resp.Suggestions = notFound.Suggestions
	}
	s.writeJSON(w, status, resp)
}
