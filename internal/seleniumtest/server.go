package seleniumtest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
)

// SessionID is the id of every session created by a Server.
const SessionID = "fake-session"

// Server is a W3C WebDriver endpoint that supports creating a session,
// reading its title and deleting it. It stands in for a Selenium server or a
// browser driver binary.
type Server struct {
	*httptest.Server

	Title string

	mu       sync.Mutex
	requests []map[string]interface{}
	deleted  int
}

// NewServer starts a Server whose sessions report title.
func NewServer(title string) *Server {
	s := &Server{Title: title}
	s.Server = httptest.NewServer(http.HandlerFunc(s.serve))
	return s
}

// Capabilities returns the capabilities requested by each new session.
func (s *Server) Capabilities() []map[string]interface{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []map[string]interface{}
	for _, req := range s.requests {
		caps, ok := req["desiredCapabilities"].(map[string]interface{})
		if !ok {
			w3c, _ := req["capabilities"].(map[string]interface{})
			caps, _ = w3c["alwaysMatch"].(map[string]interface{})
		}
		out = append(out, caps)
	}
	return out
}

// Deleted reports how many times the session was deleted.
func (s *Server) Deleted() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deleted
}

func (s *Server) serve(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimSuffix(r.URL.Path, "/")
	switch {
	case r.Method == http.MethodPost && strings.HasSuffix(path, "/session"):
		var req map[string]interface{}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			reply(w, http.StatusBadRequest, map[string]interface{}{
				"error":   "invalid argument",
				"message": err.Error(),
			})
			return
		}
		s.mu.Lock()
		s.requests = append(s.requests, req)
		s.mu.Unlock()
		// Both the legacy and the W3C session reply shapes.
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"sessionId": SessionID,
			"status":    0,
			"value": map[string]interface{}{
				"sessionId":    SessionID,
				"capabilities": map[string]interface{}{},
			},
		})
	case r.Method == http.MethodGet && strings.HasSuffix(path, "/session/"+SessionID+"/title"):
		reply(w, http.StatusOK, s.Title)
	case r.Method == http.MethodDelete && strings.HasSuffix(path, "/session/"+SessionID):
		s.mu.Lock()
		s.deleted++
		s.mu.Unlock()
		reply(w, http.StatusOK, nil)
	default:
		reply(w, http.StatusNotFound, map[string]interface{}{
			"error":   "unknown command",
			"message": r.Method + " " + r.URL.Path,
		})
	}
}

func reply(w http.ResponseWriter, code int, value interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]interface{}{"value": value})
}
