package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"collectdate/internal/metrics"
	"collectdate/internal/models"
)

// handleEffectiveSettings shows which rule set applies to a product,
// for the admin's "why this lead time" display.
// GET /api/settings/effective?product_id=P
func (s *Server) handleEffectiveSettings(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("settings_effective")
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}

	var productID int64
	if raw := r.URL.Query().Get("product_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_product_id", "product_id must be an integer")
			return
		}
		productID = id
	}

	es, err := s.resolver.Resolve(r.Context(), productID)
	if err != nil {
		s.logger.Error().Err(err).Msg("resolve settings failed")
		writeError(w, http.StatusInternalServerError, "db_error", "could not resolve settings")
		return
	}
	writeJSON(w, http.StatusOK, es)
}

// handleGlobalSettings reads or replaces the global settings. Saving
// sanitizes silently and never rejects a value.
// GET/PUT /api/settings/global
func (s *Server) handleGlobalSettings(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("settings_global")
	switch r.Method {
	case http.MethodGet:
		g, err := s.resolver.GlobalSettings(r.Context())
		if err != nil {
			s.logger.Error().Err(err).Msg("load global settings failed")
			writeError(w, http.StatusInternalServerError, "db_error", "could not load settings")
			return
		}
		writeJSON(w, http.StatusOK, g)

	case http.MethodPut:
		var g models.GlobalSettings
		if err := json.NewDecoder(r.Body).Decode(&g); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_body", "invalid JSON body")
			return
		}
		saved, err := s.resolver.SaveGlobalSettings(r.Context(), g)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "db_error", "could not save settings")
			return
		}
		s.availability.ClearCache(r.Context())
		writeJSON(w, http.StatusOK, saved)

	default:
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
	}
}

// handleCategoryRules lists all category rules.
// GET /api/settings/categories
func (s *Server) handleCategoryRules(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("settings_categories")
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}

	rules, err := s.resolver.CategoryRules(r.Context())
	if err != nil {
		s.logger.Error().Err(err).Msg("load category rules failed")
		writeError(w, http.StatusInternalServerError, "db_error", "could not load rules")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"rules": rules})
}

// handleCategoryRule reads, saves or deletes one category's rule.
// GET/PUT/DELETE /api/settings/categories/{id}
func (s *Server) handleCategoryRule(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("settings_category")
	categoryID := strings.TrimPrefix(r.URL.Path, "/api/settings/categories/")
	if categoryID == "" {
		writeError(w, http.StatusBadRequest, "invalid_category", "category id is required")
		return
	}

	switch r.Method {
	case http.MethodGet:
		rule, ok, err := s.resolver.CategoryRule(r.Context(), categoryID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "db_error", "could not load rule")
			return
		}
		if !ok {
			writeError(w, http.StatusNotFound, "not_found", "no rule for category "+categoryID)
			return
		}
		writeJSON(w, http.StatusOK, rule)

	case http.MethodPut:
		var rule models.CategoryRule
		if err := json.NewDecoder(r.Body).Decode(&rule); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_body", "invalid JSON body")
			return
		}
		saved, err := s.resolver.SaveCategoryRule(r.Context(), categoryID, rule)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "db_error", "could not save rule")
			return
		}
		s.availability.ClearCache(r.Context())
		writeJSON(w, http.StatusOK, saved)

	case http.MethodDelete:
		if err := s.resolver.DeleteCategoryRule(r.Context(), categoryID); err != nil {
			writeError(w, http.StatusInternalServerError, "db_error", "could not delete rule")
			return
		}
		s.availability.ClearCache(r.Context())
		writeJSON(w, http.StatusOK, map[string]any{"deleted": categoryID})

	default:
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
	}
}
