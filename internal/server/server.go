// Package server exposes a Fairing over HTTP.
package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/skosovsky/tmplkit/fairing"
)

// Server routes template requests to a Fairing.
type Server struct {
	fairing *fairing.Fairing
	logger  *slog.Logger
	mux     *http.ServeMux
}

// New returns a Server for f.
func New(f *fairing.Fairing, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{fairing: f, logger: logger, mux: http.NewServeMux()}
	s.mux.HandleFunc("GET /healthz", s.handleHealth)
	s.mux.HandleFunc("GET /templates", s.handleList)
	s.mux.HandleFunc("POST /reload", s.handleReload)
	s.mux.HandleFunc("POST /render", s.handleRender)
	s.mux.HandleFunc("GET /{engine}/{name}", s.handleCheck)
	return s
}

// Handler returns the full middleware chain: request logging, then the
// fairing's metadata, then the routes.
func (s *Server) Handler() http.Handler {
	return requestLogger(s.logger, s.fairing.Attach(s.mux))
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
}

// handleCheck answers 200 when <engine>/<name> is a loaded template and 404
// otherwise. The engine segment is only a directory prefix; a template under
// another engine's directory is not found.
func (s *Server) handleCheck(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("engine") + "/" + r.PathValue("name")
	md, ok := fairing.MetadataFrom(r)
	if !ok || !md.ContainsTemplate(name) {
		http.NotFound(w, r)
		return
	}
	w.WriteHeader(http.StatusOK)
}

type templateInfo struct {
	Name     string    `json:"name"`
	Engine   string    `json:"engine"`
	Path     string    `json:"path"`
	Format   string    `json:"format,omitempty"`
	Modified time.Time `json:"modified"`
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	md, ok := fairing.MetadataFrom(r)
	if !ok {
		http.Error(w, "templates unavailable", http.StatusServiceUnavailable)
		return
	}
	entries := md.Store().Entries()
	out := make([]templateInfo, 0, len(entries))
	for _, e := range entries {
		out = append(out, templateInfo{Name: e.Name, Engine: e.Engine, Path: e.Path, Format: e.Format, Modified: e.ModTime})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	if err := s.fairing.Reload(r.Context()); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type renderRequest struct {
	Name string         `json:"name"`
	Data map[string]any `json:"data"`
}

const maxRenderBody = 1 << 20

func (s *Server) handleRender(w http.ResponseWriter, r *http.Request) {
	var req renderRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRenderBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		status := http.StatusBadRequest
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			status = http.StatusRequestEntityTooLarge
		}
		http.Error(w, "invalid render request: "+err.Error(), status)
		return
	}
	if req.Name == "" {
		http.Error(w, "invalid render request: name is required", http.StatusBadRequest)
		return
	}
	s.fairing.Respond(w, r, req.Name, req.Data)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
