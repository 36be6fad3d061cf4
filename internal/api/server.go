// Package api exposes the screenshot library over a local HTTP server so
// viewers and scripts can browse, search, and manage captures without
// going through the CLI.
package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"github.com/hotshot-tools/hotshot/internal/codec"
	"github.com/hotshot-tools/hotshot/internal/config"
	"github.com/hotshot-tools/hotshot/internal/logger"
	"github.com/hotshot-tools/hotshot/internal/store"
)

// thumbnailMaxDim bounds the longest edge of generated thumbnails.
const thumbnailMaxDim = 256

// Server is the HTTP API over the store and config.
type Server struct {
	router    *mux.Router
	store     *store.Store
	configMgr *config.Manager
}

// NewServer creates the API server and wires its routes.
func NewServer(st *store.Store, configMgr *config.Manager) *Server {
	s := &Server{
		router:    mux.NewRouter(),
		store:     st,
		configMgr: configMgr,
	}
	s.setupRoutes()
	return s
}

// setupRoutes configures the API routes
func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api").Subrouter()

	api.HandleFunc("/screenshots", s.handleListScreenshots).Methods("GET")
	api.HandleFunc("/screenshots/{id}", s.handleGetScreenshot).Methods("GET")
	api.HandleFunc("/screenshots/{id}", s.handleDeleteScreenshot).Methods("DELETE")
	api.HandleFunc("/screenshots/{id}/tags", s.handleAddTags).Methods("POST")
	api.HandleFunc("/screenshots/{id}/restore", s.handleRestoreScreenshot).Methods("POST")
	api.HandleFunc("/search", s.handleSearch).Methods("GET")
	api.HandleFunc("/config", s.handleGetConfig).Methods("GET")
	api.HandleFunc("/health", s.handleHealth).Methods("GET")

	s.router.PathPrefix("/images/").HandlerFunc(s.handleImage).Methods("GET")
	s.router.HandleFunc("/thumbnails/{id}", s.handleThumbnail).Methods("GET")
}

// Start runs the server on localhost only; the library is private to the
// machine.
func (s *Server) Start(port int) error {
	addr := fmt.Sprintf("127.0.0.1:%d", port)
	logger.WithComponent("api").Info().
		Str("addr", addr).
		Msg("Starting API server")
	return http.ListenAndServe(addr, s.enableCORS(s.router))
}

// Handler exposes the routed handler for tests.
func (s *Server) Handler() http.Handler {
	return s.enableCORS(s.router)
}

// enableCORS adds CORS headers for local viewer frontends
func (s *Server) enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// HTTP Handlers

func (s *Server) handleListScreenshots(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			http.Error(w, "limit must be a non-negative integer", http.StatusBadRequest)
			return
		}
		limit = n
	}

	records, err := s.store.List(limit)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if records == nil {
		records = []store.Metadata{}
	}

	writeJSON(w, records)
}

func (s *Server) handleGetScreenshot(w http.ResponseWriter, r *http.Request) {
	meta, ok := s.resolveID(w, r)
	if !ok {
		return
	}
	writeJSON(w, meta)
}

func (s *Server) handleDeleteScreenshot(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	meta, err := s.store.Delete(id)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, meta)
}

func (s *Server) handleRestoreScreenshot(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	meta, err := s.store.Restore(id)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, meta)
}

func (s *Server) handleAddTags(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var req struct {
		Tags []string `json:"tags"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if len(req.Tags) == 0 {
		http.Error(w, "tags must not be empty", http.StatusBadRequest)
		return
	}

	meta, err := s.store.Tag(id, req.Tags...)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, meta)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		http.Error(w, "missing query parameter q", http.StatusBadRequest)
		return
	}

	records, err := s.store.Search(query)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if records == nil {
		records = []store.Metadata{}
	}
	writeJSON(w, records)
}

func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	out := make(map[string]string, len(config.Keys()))
	for _, key := range config.Keys() {
		value, err := s.configMgr.GetKey(key)
		if err != nil {
			continue
		}
		out[key] = value
	}
	writeJSON(w, out)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{"status": "ok"})
}

// handleImage serves original image bytes by their store-relative path.
func (s *Server) handleImage(w http.ResponseWriter, r *http.Request) {
	rel := strings.TrimPrefix(r.URL.Path, "/images/")
	for _, seg := range strings.Split(rel, "/") {
		if seg == ".." {
			http.Error(w, "invalid path", http.StatusBadRequest)
			return
		}
	}

	meta := store.Metadata{Path: rel}
	abs, err := s.store.ImagePath(&meta)
	if err != nil {
		http.Error(w, "invalid path", http.StatusBadRequest)
		return
	}

	data, err := os.ReadFile(abs)
	if err != nil {
		http.Error(w, "image not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", contentType(rel))
	w.Write(data)
}

// handleThumbnail scales the image down on the fly; thumbnails are always
// PNG regardless of the source format.
func (s *Server) handleThumbnail(w http.ResponseWriter, r *http.Request) {
	meta, ok := s.resolveID(w, r)
	if !ok {
		return
	}

	abs, err := s.store.ImagePath(&meta)
	if err != nil {
		http.Error(w, "invalid path", http.StatusBadRequest)
		return
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		http.Error(w, "image not found", http.StatusNotFound)
		return
	}

	img, err := codec.Decode(data)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	thumb, err := codec.Encode(codec.Scale(img, thumbnailMaxDim), codec.FormatPNG, 0)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Write(thumb)
}

func (s *Server) resolveID(w http.ResponseWriter, r *http.Request) (store.Metadata, bool) {
	id := mux.Vars(r)["id"]
	meta, err := s.store.Get(id)
	if err != nil {
		writeStoreError(w, err)
		return store.Metadata{}, false
	}
	return meta, true
}

func writeStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, store.ErrAmbiguousID):
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(v); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(buf.Bytes())
}

func contentType(path string) string {
	switch {
	case strings.HasSuffix(path, ".png"):
		return "image/png"
	case strings.HasSuffix(path, ".jpg"), strings.HasSuffix(path, ".jpeg"):
		return "image/jpeg"
	case strings.HasSuffix(path, ".webp"):
		return "image/webp"
	default:
		return "application/octet-stream"
	}
}
