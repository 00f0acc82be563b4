package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"collectdate/internal/availability"
	"collectdate/internal/metrics"
)

// CartItem is one product in the checkout's cart.
type CartItem struct {
	ProductID int64 `json:"product_id"`
}

// CheckoutResolveRequest is the body for POST /api/checkout/resolve.
type CheckoutResolveRequest struct {
	Items []CartItem `json:"items"`
	Limit int        `json:"limit,omitempty"`
}

// CollectionDateRequest is the body for POST /api/checkout/collection-date.
type CollectionDateRequest struct {
	OrderID    string     `json:"order_id"`
	Date       string     `json:"date"`
	Items      []CartItem `json:"items,omitempty"`
	ProductIDs []int64    `json:"product_ids,omitempty"`
}

// handleCheckoutResolve resolves the whole cart's effective settings
// (longest lead time across items wins) and returns its date list.
// POST /api/checkout/resolve
func (s *Server) handleCheckoutResolve(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("checkout_resolve")
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed; use POST")
		return
	}

	var req CheckoutResolveRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "invalid JSON body")
		return
	}

	limit := req.Limit
	if limit <= 0 {
		limit = DefaultDateLimit
	}
	if limit > MaxDateLimit {
		limit = MaxDateLimit
	}

	ids := make([]int64, 0, len(req.Items))
	for _, item := range req.Items {
		ids = append(ids, item.ProductID)
	}

	dates, es, err := s.availability.ListDatesForCart(r.Context(), ids, limit)
	if err != nil {
		s.logger.Error().Err(err).Msg("checkout resolve failed")
		writeError(w, http.StatusInternalServerError, "db_error", "could not resolve cart")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"settings": es,
		"dates":    dates,
	})
}

// handleCheckoutCollectionDate validates the selected date for the cart
// and persists it as order metadata. An unavailable date blocks the
// order with a specific message.
// POST /api/checkout/collection-date
func (s *Server) handleCheckoutCollectionDate(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("checkout_collection_date")
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed; use POST")
		return
	}

	var req CollectionDateRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "invalid JSON body")
		return
	}
	if req.OrderID == "" {
		writeError(w, http.StatusBadRequest, "missing_order", "order_id is required")
		return
	}
	if req.Date == "" {
		writeError(w, http.StatusBadRequest, "missing_date", "date is required")
		return
	}

	ids := req.ProductIDs
	for _, item := range req.Items {
		ids = append(ids, item.ProductID)
	}

	if err := s.availability.SaveCollectionDate(r.Context(), req.OrderID, req.Date, ids); err != nil {
		if errors.Is(err, availability.ErrDateUnavailable) {
			writeError(w, http.StatusUnprocessableEntity, "date_unavailable",
				"the selected collection date is not available")
			return
		}
		s.logger.Error().Err(err).Msg("save collection date failed")
		writeError(w, http.StatusInternalServerError, "db_error", "could not save collection date")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"order_id": req.OrderID,
		"date":     req.Date,
		"saved":    true,
	})
}

// handleCacheClear invalidates the date cache. Idempotent.
// POST /api/cache/clear
func (s *Server) handleCacheClear(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("cache_clear")
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed; use POST")
		return
	}
	s.availability.ClearCache(r.Context())
	writeJSON(w, http.StatusOK, map[string]any{"cleared": true})
}

// handleSelectionStats returns aggregated selections per date.
// GET /api/stats/selections
func (s *Server) handleSelectionStats(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("stats_selections")
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}

	stats, err := s.db.SelectionStats(r.Context())
	if err != nil {
		s.logger.Error().Err(err).Msg("load selection stats failed")
		writeError(w, http.StatusInternalServerError, "db_error", "could not load stats")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"selections": stats})
}
