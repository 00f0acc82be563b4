package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"collectdate/internal/database"
	"collectdate/internal/exclusions"
	"collectdate/internal/export"
	"collectdate/internal/metrics"
	"collectdate/internal/models"
)

// handleExclusions lists or creates exclusion records.
// GET  /api/exclusions?kind=&from=&to=&include_synthetic=true
// POST /api/exclusions
func (s *Server) handleExclusions(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("exclusions")
	switch r.Method {
	case http.MethodGet:
		filter := database.ExclusionFilter{
			Kind:             models.ExclusionKind(r.URL.Query().Get("kind")),
			From:             r.URL.Query().Get("from"),
			To:               r.URL.Query().Get("to"),
			IncludeSynthetic: r.URL.Query().Get("include_synthetic") == "true",
		}
		records, err := s.store.List(r.Context(), filter)
		if err != nil {
			writeStoreError(w, err)
			return
		}
		if records == nil {
			records = []*models.ExclusionRecord{}
		}
		writeJSON(w, http.StatusOK, map[string]any{"exclusions": records})

	case http.MethodPost:
		var in exclusions.Input
		decoder := json.NewDecoder(r.Body)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&in); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_body", "invalid JSON body")
			return
		}
		rec, err := s.store.Add(r.Context(), in)
		if err != nil {
			writeStoreError(w, err)
			return
		}
		metrics.IncExclusionMutation("add")
		s.availability.ClearCache(r.Context())
		writeJSON(w, http.StatusCreated, rec)

	default:
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
	}
}

// handleExclusion reads, updates or deletes one record by id.
// GET/PUT/DELETE /api/exclusions/{id}
func (s *Server) handleExclusion(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("exclusion")
	idStr := strings.TrimPrefix(r.URL.Path, "/api/exclusions/")
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid_id", "exclusion id must be a positive integer")
		return
	}

	switch r.Method {
	case http.MethodGet:
		rec, err := s.store.Get(r.Context(), id)
		if err != nil {
			writeStoreError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, rec)

	case http.MethodPut:
		var in exclusions.Input
		decoder := json.NewDecoder(r.Body)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&in); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_body", "invalid JSON body")
			return
		}
		rec, err := s.store.Update(r.Context(), id, in)
		if err != nil {
			writeStoreError(w, err)
			return
		}
		metrics.IncExclusionMutation("update")
		s.availability.ClearCache(r.Context())
		writeJSON(w, http.StatusOK, rec)

	case http.MethodDelete:
		if err := s.store.Delete(r.Context(), id); err != nil {
			writeStoreError(w, err)
			return
		}
		metrics.IncExclusionMutation("delete")
		s.availability.ClearCache(r.Context())
		writeJSON(w, http.StatusOK, map[string]any{"deleted": id})

	default:
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
	}
}

// handleExclusionCheck answers whether one date is blocked by an
// exclusion record, independent of the availability window.
// GET /api/exclusions/check?date=YYYY-MM-DD
func (s *Server) handleExclusionCheck(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("exclusion_check")
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}

	date := r.URL.Query().Get("date")
	excluded, err := s.store.IsDateExcluded(r.Context(), date)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"date": date, "excluded": excluded})
}

// handleExclusionsExport streams the exclusion records as an .xlsx
// report for the admin.
// GET /api/exclusions/export
func (s *Server) handleExclusionsExport(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("exclusions_export")
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}

	records, err := s.store.List(r.Context(), database.ExclusionFilter{IncludeSynthetic: false})
	if err != nil {
		writeStoreError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="exclusions.xlsx"`)
	if err := export.ExclusionsReport(w, records); err != nil {
		s.logger.Error().Err(err).Msg("export exclusions failed")
	}
}
