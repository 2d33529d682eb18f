package reputation_mock

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"regexp"
)

// Server provides a mock implementation of the reputation API for testing.
type Server struct {
	server *httptest.Server
	scores map[string]int // key = peer address
}

// NewServer creates and starts a new mock reputation service. Addresses
// without a configured score report zero (clean).
func NewServer() *Server {
	s := &Server{
		scores: make(map[string]int),
	}

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		re := regexp.MustCompile(`^/api/reputation/([^/]+)$`)
		matches := re.FindStringSubmatch(r.URL.Path)
		if matches == nil {
			http.Error(w, "Not found", http.StatusNotFound)
			return
		}

		score := s.scores[matches[1]]
		if err := json.NewEncoder(w).Encode(map[string]int{"score": score}); err != nil {
			http.Error(w, "JSON encoding error", http.StatusInternalServerError)
			return
		}
	})

	s.server = httptest.NewServer(handler)
	return s
}

// URL returns the URL of the mock server.
func (s *Server) URL() string {
	return s.server.URL
}

// Close shuts down the mock server.
func (s *Server) Close() {
	s.server.Close()
}

// SetScore sets the reputation score returned for an address.
func (s *Server) SetScore(addr string, score int) {
	s.scores[addr] = score
}
