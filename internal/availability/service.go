package availability

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"collectdate/internal/cache"
	"collectdate/internal/database"
	"collectdate/internal/exclusions"
	"collectdate/internal/metrics"
	"collectdate/internal/models"
	"collectdate/internal/settings"
)

// Service is the read-through front of the engine: resolves settings,
// assembles the excluded set (exclusions plus capacity-full dates) and
// memoizes computed lists in the cache layer.
type Service struct {
	engine     *Engine
	resolver   *settings.Resolver
	exclusions *exclusions.Store
	cache      *cache.Cache
	db         *database.DB
	logger     zerolog.Logger
	now        func() time.Time
}

func NewService(engine *Engine, resolver *settings.Resolver, store *exclusions.Store,
	dateCache *cache.Cache, db *database.DB, logger zerolog.Logger, now func() time.Time) *Service {
	if now == nil {
		now = time.Now
	}
	return &Service{
		engine:     engine,
		resolver:   resolver,
		exclusions: store,
		cache:      dateCache,
		db:         db,
		logger:     logger.With().Str("component", "availability").Logger(),
		now:        now,
	}
}

// ListDates returns the next limit collection dates for the product
// context (0 = global), read through the cache.
func (s *Service) ListDates(ctx context.Context, productID int64, limit int) ([]string, error) {
	es, err := s.resolver.Resolve(ctx, productID)
	if err != nil {
		return nil, err
	}
	return s.listForSettings(ctx, es, es.ScopeTag(productID), limit)
}

// ListDatesForCart resolves the whole cart (longest lead time wins) and
// lists dates under the winning product's scope.
func (s *Service) ListDatesForCart(ctx context.Context, productIDs []int64, limit int) ([]string, models.EffectiveSettings, error) {
	es, winnerID, err := s.resolver.ResolveCart(ctx, productIDs)
	if err != nil {
		return nil, models.EffectiveSettings{}, err
	}
	dates, err := s.listForSettings(ctx, es, es.ScopeTag(winnerID), limit)
	if err != nil {
		return nil, models.EffectiveSettings{}, err
	}
	return dates, es, nil
}

func (s *Service) listForSettings(ctx context.Context, es models.EffectiveSettings, scope string, limit int) ([]string, error) {
	if limit <= 0 {
		return []string{}, nil
	}

	key := s.cache.Key(scope, limit)
	if dates, ok := s.cache.Get(ctx, key); ok {
		metrics.IncCache("hit")
		return dates, nil
	}
	metrics.IncCache("miss")

	excluded, err := s.excludedSet(ctx, es)
	if err != nil {
		return nil, err
	}

	dates := s.engine.ListDates(es, excluded, limit)
	s.cache.Set(ctx, key, dates)
	return dates, nil
}

// IsDateAvailable adjudicates a single date in the global context. A
// malformed date is false, not an error.
func (s *Service) IsDateAvailable(ctx context.Context, date string) (bool, error) {
	return s.isDateAvailableFor(ctx, date, 0, nil)
}

// IsDateAvailableForCart adjudicates a date against the cart's resolved
// settings, used by the checkout collaborator.
func (s *Service) IsDateAvailableForCart(ctx context.Context, date string, productIDs []int64) (bool, error) {
	return s.isDateAvailableFor(ctx, date, 0, productIDs)
}

func (s *Service) isDateAvailableFor(ctx context.Context, date string, productID int64, cart []int64) (bool, error) {
	if _, err := models.ParseDate(date); err != nil {
		return false, nil
	}

	var es models.EffectiveSettings
	var scope string
	var err error
	if len(cart) > 0 {
		var winnerID int64
		es, winnerID, err = s.resolver.ResolveCart(ctx, cart)
		scope = es.ScopeTag(winnerID)
	} else {
		es, err = s.resolver.Resolve(ctx, productID)
		scope = es.ScopeTag(productID)
	}
	if err != nil {
		return false, err
	}

	maxDays := es.MaxBookingDays
	if maxDays <= 0 {
		maxDays = models.DefaultMaxBookingDays
	}
	dates, err := s.listForSettings(ctx, es, scope, maxDays)
	if err != nil {
		return false, err
	}
	for _, d := range dates {
		if d == date {
			return true, nil
		}
	}
	return false, nil
}

// DateRange returns the inclusive min/max bookable bounds for the
// global context.
func (s *Service) DateRange(ctx context.Context) (minDate, maxDate string, err error) {
	es, err := s.resolver.Resolve(ctx, 0)
	if err != nil {
		return "", "", err
	}
	minDate, maxDate = s.engine.DateRange(es)
	return minDate, maxDate, nil
}

// ErrDateUnavailable rejects a checkout date that is not in the
// cart's valid collection window.
var ErrDateUnavailable = errors.New("collection date is not available")

// SaveCollectionDate validates the chosen date for the cart and
// persists it as order metadata. An unavailable date blocks the save.
func (s *Service) SaveCollectionDate(ctx context.Context, orderID, date string, productIDs []int64) error {
	ok, err := s.IsDateAvailableForCart(ctx, date, productIDs)
	if err != nil {
		return err
	}
	if !ok {
		metrics.IncCheckout("rejected")
		return ErrDateUnavailable
	}

	if err := s.db.SaveCollectionDate(ctx, orderID, date); err != nil {
		s.logger.Error().Err(err).Str("order", orderID).Msg("save collection date failed")
		metrics.IncCheckout("error")
		return fmt.Errorf("save collection date: %w", err)
	}
	metrics.IncCheckout("accepted")

	// A new selection can fill a capacity-limited day.
	global, err := s.resolver.GlobalSettings(ctx)
	if err == nil && global.MaxOrdersPerDay > 0 {
		s.ClearCache(ctx)
	}
	return nil
}

// ClearCache invalidates the date-list cache and the excluded-set memo.
// Idempotent; safe to call unconditionally after any mutation.
func (s *Service) ClearCache(ctx context.Context) {
	s.cache.Clear(ctx)
	s.exclusions.Invalidate()
}

// excludedSet unions the exclusion store's discrete set with dates that
// have reached the per-day order capacity, when one is configured. The
// engine stays pure; capacity is a service-level concern.
func (s *Service) excludedSet(ctx context.Context, es models.EffectiveSettings) (ExcludedSet, error) {
	base, err := s.exclusions.ExcludedDates(ctx)
	if err != nil {
		return nil, err
	}

	global, err := s.resolver.GlobalSettings(ctx)
	if err != nil {
		return nil, err
	}
	if global.MaxOrdersPerDay <= 0 {
		return base, nil
	}

	n := s.now()
	today := time.Date(n.Year(), n.Month(), n.Day(), 0, 0, 0, 0, time.UTC)
	// The count window must cover every date the engine can visit; in
	// working mode the scan start lands well past the raw lead time.
	from := models.FormatDate(today)
	to := models.FormatDate(s.engine.ScanCeiling(es))

	counts, err := s.db.SelectionCounts(ctx, from, to)
	if err != nil {
		s.logger.Error().Err(err).Msg("load selection counts failed")
		return nil, fmt.Errorf("load selection counts: %w", err)
	}

	set := make(ExcludedSet, len(base)+len(counts))
	for d := range base {
		set[d] = struct{}{}
	}
	for d, c := range counts {
		if c >= global.MaxOrdersPerDay {
			set[d] = struct{}{}
		}
	}
	return set, nil
}
