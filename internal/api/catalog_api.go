package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"collectdate/internal/metrics"
)

// ProductCategoriesRequest is the body for the catalog sync endpoint.
type ProductCategoriesRequest struct {
	Categories []string `json:"categories"`
}

// handleProductCategories reads or replaces the boundary copy of a
// product's category assignments. The storefront pushes its catalog
// relation here whenever a product's categories change, so category
// rules can resolve without reaching into the storefront's database.
// GET/PUT /api/catalog/products/{id}/categories
func (s *Server) handleProductCategories(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("catalog_product_categories")

	rest := strings.TrimPrefix(r.URL.Path, "/api/catalog/products/")
	idStr, found := strings.CutSuffix(rest, "/categories")
	if !found {
		writeError(w, http.StatusNotFound, "not_found", "unknown catalog path")
		return
	}
	productID, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil || productID <= 0 {
		writeError(w, http.StatusBadRequest, "invalid_product_id", "product id must be a positive integer")
		return
	}

	switch r.Method {
	case http.MethodGet:
		categories, err := s.db.ProductCategories(r.Context(), productID)
		if err != nil {
			s.logger.Error().Err(err).Int64("product", productID).Msg("load product categories failed")
			writeError(w, http.StatusInternalServerError, "db_error", "could not load categories")
			return
		}
		if categories == nil {
			categories = []string{}
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"product_id": productID,
			"categories": categories,
		})

	case http.MethodPut:
		var req ProductCategoriesRequest
		decoder := json.NewDecoder(r.Body)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_body", "invalid JSON body")
			return
		}
		if err := s.db.SetProductCategories(r.Context(), productID, req.Categories); err != nil {
			s.logger.Error().Err(err).Int64("product", productID).Msg("set product categories failed")
			writeError(w, http.StatusInternalServerError, "db_error", "could not save categories")
			return
		}
		// The product may resolve to a different rule now.
		s.availability.ClearCache(r.Context())
		writeJSON(w, http.StatusOK, map[string]any{
			"product_id": productID,
			"categories": req.Categories,
		})

	default:
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
	}
}
