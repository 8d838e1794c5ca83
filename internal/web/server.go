// Package web serves a JSON API over the content coordinator for operator
// front ends. It is thin plumbing: every content decision happens in the
// coordinator.
package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/copydesk/copydesk/internal/content"
)

type Server struct {
	coord *content.Coordinator
	log   zerolog.Logger
}

func NewServer(coord *content.Coordinator, log zerolog.Logger) *Server {
	return &Server{coord: coord, log: log}
}

func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/health", s.handleHealth).Methods("GET")
	r.HandleFunc("/api/collections", s.handleCollections).Methods("GET")
	r.HandleFunc("/api/collections/{slug}/activate", s.handleActivate).Methods("POST")
	r.HandleFunc("/api/posts", s.handleListPosts).Methods("GET")
	r.HandleFunc("/api/posts", s.handleCreatePost).Methods("POST")
	r.HandleFunc("/api/posts/{id}", s.handleGetPost).Methods("GET")
	r.HandleFunc("/api/posts/{id}", s.handleUpdatePost).Methods("PUT")
	r.HandleFunc("/api/posts/{id}", s.handleDeletePost).Methods("DELETE")
	r.HandleFunc("/api/tags", s.handleTagCounts).Methods("GET")

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	active := ""
	if coll := s.coord.ActiveCollection(); coll != nil {
		active = coll.Slug
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":            "ok",
		"active_collection": active,
	})
}

type collectionInfo struct {
	Slug   string `json:"slug"`
	Title  string `json:"title"`
	Active bool   `json:"active"`
}

func (s *Server) handleCollections(w http.ResponseWriter, r *http.Request) {
	active := s.coord.ActiveCollection()
	infos := []collectionInfo{}
	for _, coll := range s.coord.Collections() {
		infos = append(infos, collectionInfo{
			Slug:   coll.Slug,
			Title:  coll.Title,
			Active: active != nil && active.Slug == coll.Slug,
		})
	}
	writeJSON(w, http.StatusOK, infos)
}

func (s *Server) handleActivate(w http.ResponseWriter, r *http.Request) {
	slug := mux.Vars(r)["slug"]
	if err := s.coord.SetActiveCollection(slug); err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"active_collection": slug})
}

func (s *Server) handleListPosts(w http.ResponseWriter, r *http.Request) {
	filter := r.URL.Query().Get("q")

	limit := 0
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 {
			limit = l
		}
	}
	offset := 0
	if offsetStr := r.URL.Query().Get("offset"); offsetStr != "" {
		if o, err := strconv.Atoi(offsetStr); err == nil && o > 0 {
			offset = o
		}
	}

	posts, err := s.coord.ListPosts(r.Context(), filter, limit, offset)
	if err != nil {
		s.writeOpError(w, err)
		return
	}
	if posts == nil {
		posts = []content.Record{}
	}
	writeJSON(w, http.StatusOK, posts)
}

func (s *Server) handleGetPost(w http.ResponseWriter, r *http.Request) {
	post, err := s.coord.GetPost(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.writeOpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, post)
}

func (s *Server) handleCreatePost(w http.ResponseWriter, r *http.Request) {
	var fields content.Fields
	if err := json.NewDecoder(r.Body).Decode(&fields); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	id, err := s.coord.CreatePost(r.Context(), fields)
	if err != nil {
		s.writeOpError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"id": id})
}

func (s *Server) handleUpdatePost(w http.ResponseWriter, r *http.Request) {
	var fields content.Fields
	if err := json.NewDecoder(r.Body).Decode(&fields); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	if err := s.coord.UpdatePost(r.Context(), mux.Vars(r)["id"], fields); err != nil {
		s.writeOpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"updated": true})
}

func (s *Server) handleDeletePost(w http.ResponseWriter, r *http.Request) {
	if err := s.coord.DeletePost(r.Context(), mux.Vars(r)["id"]); err != nil {
		s.writeOpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"deleted": true})
}

func (s *Server) handleTagCounts(w http.ResponseWriter, r *http.Request) {
	counts, err := s.coord.TagCounts(r.Context())
	if err != nil {
		s.writeOpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, counts)
}

// writeOpError maps coordinator error types to HTTP statuses.
func (s *Server) writeOpError(w http.ResponseWriter, err error) {
	var validation *content.ValidationError
	switch {
	case errors.Is(err, content.ErrNotFound):
		writeError(w, http.StatusNotFound, err)
	case errors.As(err, &validation):
		writeError(w, http.StatusUnprocessableEntity, err)
	default:
		s.log.Error().Err(err).Msg("content operation failed")
		writeError(w, http.StatusInternalServerError, err)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]any{"error": err.Error()})
}
