// Package planetest serves an in-memory fake of the Plane REST endpoints the client uses.
package planetest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"

	"plane-digest/internal/plane"
)

// Server is a fake Plane API. Populate the exported maps before issuing requests.
// List endpoints answer with a {results, next_cursor, next_page_results} envelope,
// PageSize items at a time.
type Server struct {
	*httptest.Server

	Workspace string
	APIKey    string
	PageSize  int

	Projects       []plane.ProjectDTO
	WorkItems      map[string][]plane.WorkItemDTO // by project id
	Activities     map[string][]plane.ActivityDTO // by work item id
	Comments       map[string][]plane.CommentDTO  // by work item id
	Cycles         map[string][]plane.CycleDTO    // by project id
	ProjectMembers map[string][]plane.UserDTO     // by project id
	Members        []plane.UserDTO

	// Denied project ids answer 403 on every project-scoped endpoint.
	Denied map[string]bool

	mu       sync.Mutex
	hits     map[string]int
	failures map[string][]int
}

// NewServer starts a fake Plane API for the given workspace and key.
func NewServer(workspace, apiKey string) *Server {
	s := &Server{
		Workspace:      workspace,
		APIKey:         apiKey,
		PageSize:       50,
		WorkItems:      map[string][]plane.WorkItemDTO{},
		Activities:     map[string][]plane.ActivityDTO{},
		Comments:       map[string][]plane.CommentDTO{},
		Cycles:         map[string][]plane.CycleDTO{},
		ProjectMembers: map[string][]plane.UserDTO{},
		Denied:         map[string]bool{},
		hits:           map[string]int{},
		failures:       map[string][]int{},
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.handle))
	return s
}

// Config returns a client configuration pointing at the fake.
func (s *Server) Config() plane.Config {
	return plane.Config{BaseURL: s.URL, APIKey: s.APIKey, Workspace: s.Workspace}
}

// Hits reports how many requests reached route key (e.g. "projects", "activities:<item>").
func (s *Server) Hits(key string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits[key]
}

// FailNext queues status codes to return for route key before serving normally.
// 429 responses carry "Retry-After: 0".
func (s *Server) FailNext(key string, statuses ...int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[key] = append(s.failures[key], statuses...)
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("X-API-Key") != s.APIKey {
		http.Error(w, `{"error":"invalid api key"}`, http.StatusUnauthorized)
		return
	}

	prefix := "/api/v1/workspaces/" + s.Workspace + "/"
	if !strings.HasPrefix(r.URL.Path, prefix) {
		http.NotFound(w, r)
		return
	}
	parts := strings.Split(strings.Trim(strings.TrimPrefix(r.URL.Path, prefix), "/"), "/")

	key, items, projectID := s.route(parts, r)
	if key == "" {
		http.NotFound(w, r)
		return
	}

	s.mu.Lock()
	s.hits[key]++
	var status int
	if q := s.failures[key]; len(q) > 0 {
		status, s.failures[key] = q[0], q[1:]
	}
	s.mu.Unlock()

	if projectID != "" && s.Denied[projectID] {
		status = http.StatusForbidden
	}
	if status != 0 {
		if status == http.StatusTooManyRequests {
			w.Header().Set("Retry-After", "0")
		}
		http.Error(w, `{"error":"injected"}`, status)
		return
	}

	s.writePage(w, r, items)
}

func (s *Server) route(parts []string, r *http.Request) (string, []any, string) {
	switch {
	case len(parts) == 1 && parts[0] == "projects":
		return "projects", toAny(s.Projects), ""
	case len(parts) == 1 && parts[0] == "members":
		return "members", toAny(s.Members), ""
	case len(parts) == 3 && parts[0] == "projects":
		pid := parts[1]
		switch parts[2] {
		case "issues":
			if parent := r.URL.Query().Get("parent"); parent != "" {
				var subs []plane.WorkItemDTO
				for _, wi := range s.WorkItems[pid] {
					if wi.Parent == parent {
						subs = append(subs, wi)
					}
				}
				return "subitems:" + parent, toAny(subs), pid
			}
			return "issues:" + pid, toAny(s.WorkItems[pid]), pid
		case "cycles":
			return "cycles:" + pid, toAny(s.Cycles[pid]), pid
		case "members":
			return "project-members:" + pid, toAny(s.ProjectMembers[pid]), pid
		}
	case len(parts) == 5 && parts[0] == "projects" && parts[2] == "issues":
		pid, iid := parts[1], parts[3]
		switch parts[4] {
		case "activities":
			return "activities:" + iid, toAny(s.Activities[iid]), pid
		case "comments":
			return "comments:" + iid, toAny(s.Comments[iid]), pid
		}
	}
	return "", nil, ""
}

func (s *Server) writePage(w http.ResponseWriter, r *http.Request, items []any) {
	offset, _ := strconv.Atoi(r.URL.Query().Get("cursor"))
	size := s.PageSize
	if size <= 0 {
		size = len(items) + 1
	}

	end := offset + size
	if end > len(items) {
		end = len(items)
	}
	if offset > end {
		offset = end
	}

	more := end < len(items)
	body := map[string]any{
		"results":           items[offset:end],
		"next_page_results": more,
		"next_cursor":       "",
	}
	if more {
		body["next_cursor"] = strconv.Itoa(end)
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(body)
}

func toAny[T any](in []T) []any {
	out := make([]any, 0, len(in))
	for _, v := range in {
		out = append(out, v)
	}
	return out
}
