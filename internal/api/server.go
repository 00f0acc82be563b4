// Package api exposes the collection-date service over HTTP: the
// availability queries consumed by checkout, the admin exclusion and
// settings CRUD, and the checkout persistence boundary.
package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"collectdate/internal/availability"
	"collectdate/internal/database"
	"collectdate/internal/exclusions"
	"collectdate/internal/settings"
)

// Server handles the HTTP API.
type Server struct {
	availability *availability.Service
	resolver     *settings.Resolver
	store        *exclusions.Store
	db           *database.DB
	logger       zerolog.Logger
	limiter      *rate.Limiter
}

// New creates the API server. limiter bounds the mutation endpoints and
// may be nil to disable limiting.
func New(svc *availability.Service, resolver *settings.Resolver, store *exclusions.Store,
	db *database.DB, logger zerolog.Logger, limiter *rate.Limiter) *Server {
	return &Server{
		availability: svc,
		resolver:     resolver,
		store:        store,
		db:           db,
		logger:       logger.With().Str("component", "api").Logger(),
		limiter:      limiter,
	}
}

// Handler returns the routed handler with middleware applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/availability/dates", s.handleAvailableDates)
	mux.HandleFunc("/api/availability/check", s.handleCheckDate)
	mux.HandleFunc("/api/availability/range", s.handleDateRange)

	mux.HandleFunc("/api/settings/effective", s.handleEffectiveSettings)
	mux.HandleFunc("/api/settings/global", s.handleGlobalSettings)
	mux.HandleFunc("/api/settings/categories", s.handleCategoryRules)
	mux.HandleFunc("/api/settings/categories/", s.handleCategoryRule)

	mux.HandleFunc("/api/exclusions", s.handleExclusions)
	mux.HandleFunc("/api/exclusions/check", s.handleExclusionCheck)
	mux.HandleFunc("/api/exclusions/export", s.handleExclusionsExport)
	mux.HandleFunc("/api/exclusions/", s.handleExclusion)

	mux.HandleFunc("/api/catalog/products/", s.handleProductCategories)

	mux.HandleFunc("/api/checkout/resolve", s.handleCheckoutResolve)
	mux.HandleFunc("/api/checkout/collection-date", s.handleCheckoutCollectionDate)

	mux.HandleFunc("/api/cache/clear", s.handleCacheClear)
	mux.HandleFunc("/api/stats/selections", s.handleSelectionStats)

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	return s.withRequestLog(s.withRateLimit(mux))
}

// withRequestLog tags each request with an id and logs its outcome.
func (s *Server) withRequestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get("X-Request-ID")
		if reqID == "" {
			reqID = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", reqID)

		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		s.logger.Info().
			Str("request_id", reqID).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rec.status).
			Dur("duration", time.Since(start)).
			Msg("request")
	})
}

// withRateLimit bounds mutating requests; reads pass through.
func (s *Server) withRateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.limiter != nil && r.Method != http.MethodGet {
			if !s.limiter.Allow() {
				writeError(w, http.StatusTooManyRequests, "rate_limited", "too many requests")
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// errorBody is the structured error wire shape: a machine-readable kind
// and a human-readable message.
type errorBody struct {
	Error struct {
		Kind    string `json:"kind"`
		Message string `json:"message"`
	} `json:"error"`
}

func writeError(w http.ResponseWriter, status int, kind, message string) {
	var body errorBody
	body.Error.Kind = kind
	body.Error.Message = message
	writeJSON(w, status, body)
}

// writeStoreError maps an exclusion store error onto an HTTP status.
func writeStoreError(w http.ResponseWriter, err error) {
	e := exclusions.AsError(err)
	status := http.StatusBadRequest
	switch e.Kind {
	case exclusions.KindNotFound:
		status = http.StatusNotFound
	case exclusions.KindOverlapDetected:
		status = http.StatusConflict
	case exclusions.KindDBError:
		status = http.StatusInternalServerError
	}
	writeError(w, status, e.Kind, e.Message)
}
