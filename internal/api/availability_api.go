package api

import (
	"net/http"
	"strconv"

	"collectdate/internal/metrics"
)

const (
	// DefaultDateLimit is the date count returned when the checkout
	// does not ask for a specific number.
	DefaultDateLimit = 10
	// MaxDateLimit caps a single request's date count.
	MaxDateLimit = 90
)

// handleAvailableDates returns the next valid collection dates.
// GET /api/availability/dates?limit=N&product_id=P
func (s *Server) handleAvailableDates(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("availability_dates")
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}

	limit := DefaultDateLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid_limit", "limit must be a non-negative integer")
			return
		}
		limit = n
	}
	if limit > MaxDateLimit {
		limit = MaxDateLimit
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

	dates, err := s.availability.ListDates(r.Context(), productID, limit)
	if err != nil {
		s.logger.Error().Err(err).Msg("list dates failed")
		writeError(w, http.StatusInternalServerError, "db_error", "could not compute dates")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"dates": dates})
}

// handleCheckDate adjudicates a single date. An invalid date string is
// available=false, not an error.
// GET /api/availability/check?date=YYYY-MM-DD
func (s *Server) handleCheckDate(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("availability_check")
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}

	date := r.URL.Query().Get("date")
	available, err := s.availability.IsDateAvailable(r.Context(), date)
	if err != nil {
		s.logger.Error().Err(err).Str("date", date).Msg("check date failed")
		writeError(w, http.StatusInternalServerError, "db_error", "could not check date")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"date": date, "available": available})
}

// handleDateRange returns the inclusive min/max bookable bounds.
// GET /api/availability/range
func (s *Server) handleDateRange(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("availability_range")
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}

	minDate, maxDate, err := s.availability.DateRange(r.Context())
	if err != nil {
		s.logger.Error().Err(err).Msg("date range failed")
		writeError(w, http.StatusInternalServerError, "db_error", "could not compute range")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"min_date": minDate, "max_date": maxDate})
}
