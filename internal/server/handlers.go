package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/hyperjump/kenkyu/internal/explain"
	"github.com/hyperjump/kenkyu/internal/models"
	"github.com/hyperjump/kenkyu/internal/storage"
)

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req models.SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	resp, err := s.service.Search(r.Context(), req.Query)
	switch {
	case err == nil:
		s.respondJSON(w, http.StatusOK, resp)
	case errors.Is(err, models.ErrMalformedInput):
		s.respondError(w, http.StatusBadRequest, "Query is required")
	case errors.Is(err, models.ErrProvider):
		s.logger.Error("query embedding failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, "Failed to generate query embedding")
	default:
		s.logger.Error("search failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, "Database search failed")
	}
}

func (s *Server) handleExplain(w http.ResponseWriter, r *http.Request) {
	var req models.ExplainRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	s.logger.Debug("explain request", zap.String("author_id", req.AuthorID))
	text, err := s.service.Explain(r.Context(), req)
	switch {
	case err == nil:
		s.respondJSON(w, http.StatusOK, models.ExplainResponse{Explanation: text})
	case errors.Is(err, models.ErrMalformedInput):
		s.respondError(w, http.StatusBadRequest, "Both query and author_id are required")
	case errors.Is(err, models.ErrProvider):
		s.respondError(w, http.StatusInternalServerError, explain.UnavailableMessage)
	default:
		s.logger.Error("explain lookup failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, "Database search failed")
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	h := s.service.Health(r.Context())
	status := http.StatusOK
	if h.Status != "healthy" {
		s.logger.Warn("health check failed", zap.String("error", h.Error))
		status = http.StatusInternalServerError
	}
	s.respondJSON(w, status, h)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	h := s.service.Health(r.Context())
	if h.Status != "healthy" {
		s.respondError(w, http.StatusInternalServerError, h.Error)
		return
	}
	resp := map[string]interface{}{
		"database_entries": h.DatabaseEntries,
		"database_type":    h.DatabaseType,
	}
	if s.stats != nil {
		resp["store"] = s.stats.Stats()
	}
	if len(s.diskPaths) > 0 {
		if n, err := storage.DiskUsageBytes(s.diskPaths...); err == nil {
			resp["disk_usage_bytes"] = n
		}
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
