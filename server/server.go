// Package server publishes the last extracted collection over HTTP
package server

import (
	"encoding/json"
	"errors"
	"io/fs"
	"net/http"
	"strings"

	"suapemap/feature"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"
	"golang.org/x/exp/slices"
)

// Server serves the collection file written by the extractor
type Server struct {
	path string
}

// New creates a server for the collection at path
func New(path string) *Server {
	return &Server{path: path}
}

// Handler returns the router wrapped with compression and access logging
func (s *Server) Handler() http.Handler {
	router := mux.NewRouter()
	router.HandleFunc("/healthz", s.health).Methods(http.MethodGet)
	router.HandleFunc("/companies.geojson", s.collection).Methods(http.MethodGet)
	router.HandleFunc("/companies", s.companies).Methods(http.MethodGet)

	return handlers.CombinedLoggingHandler(log.Logger, handlers.CompressHandler(router))
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) collection(w http.ResponseWriter, r *http.Request) {
	c, ok := s.load(w)
	if !ok {
		return
	}
	s.write(w, c)
}

// companies filters the collection by the polo query parameter, case-insensitively
func (s *Server) companies(w http.ResponseWriter, r *http.Request) {
	c, ok := s.load(w)
	if !ok {
		return
	}
	if polo := strings.TrimSpace(r.URL.Query().Get("polo")); polo != "" {
		c.Features = slices.DeleteFunc(slices.Clone(c.Features), func(f feature.Feature) bool {
			return !strings.EqualFold(f.Properties.Cluster, polo)
		})
	}
	s.write(w, c)
}

func (s *Server) load(w http.ResponseWriter) (feature.Collection, bool) {
	c, err := feature.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		http.Error(w, "No collection has been extracted yet", http.StatusNotFound)
		return feature.Collection{}, false
	}
	if err != nil {
		log.Error().Err(err).Str("path", s.path).Msg("failed to load collection")
		http.Error(w, "Error reading collection", http.StatusInternalServerError)
		return feature.Collection{}, false
	}
	return c, true
}

func (s *Server) write(w http.ResponseWriter, c feature.Collection) {
	w.Header().Set("Content-Type", "application/geo+json")
	if err := feature.Encode(w, c); err != nil {
		log.Error().Err(err).Msg("failed to write collection")
	}
}
