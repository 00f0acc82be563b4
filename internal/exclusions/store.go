// Package exclusions is the authoritative record of unavailable dates
// and date ranges: validation, range-to-singles materialization for
// legacy discrete-date lookups, and the memoized excluded-date set the
// availability engine consults once per candidate date.
package exclusions

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"collectdate/internal/database"
	"collectdate/internal/models"
)

// Input is the raw admin/API payload for add and update.
type Input struct {
	Kind       string `json:"kind"`
	Date       string `json:"date,omitempty"`
	RangeStart string `json:"range_start,omitempty"`
	RangeEnd   string `json:"range_end,omitempty"`
	Reason     string `json:"reason"`
}

// Store validates and persists exclusion records.
type Store struct {
	db     *database.DB
	logger zerolog.Logger
	now    func() time.Time

	mu       sync.RWMutex
	setCache map[string]struct{}
	setTime  time.Time
	setTTL   time.Duration
}

// NewStore creates a store. now may be nil (defaults to time.Now); ttl
// bounds the excluded-date set memo, defaulting to one hour.
func NewStore(db *database.DB, logger zerolog.Logger, ttl time.Duration, now func() time.Time) *Store {
	if now == nil {
		now = time.Now
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Store{
		db:     db,
		logger: logger.With().Str("component", "exclusions").Logger(),
		now:    now,
		setTTL: ttl,
	}
}

func (s *Store) today() time.Time {
	n := s.now()
	return time.Date(n.Year(), n.Month(), n.Day(), 0, 0, 0, 0, time.UTC)
}

// Add validates the input and persists a new record, materializing
// synthetic singles for a range. Returns the stored record.
func (s *Store) Add(ctx context.Context, in Input) (*models.ExclusionRecord, error) {
	rec, err := s.validate(ctx, in, 0)
	if err != nil {
		return nil, err
	}
	if _, err := s.db.InsertExclusion(ctx, rec); err != nil {
		s.logger.Error().Err(err).Msg("insert exclusion failed")
		return nil, newError(KindDBError, "could not save exclusion")
	}
	s.Invalidate()
	return rec, nil
}

// Get loads a record by id.
func (s *Store) Get(ctx context.Context, id int64) (*models.ExclusionRecord, error) {
	rec, err := s.db.GetExclusion(ctx, id)
	if err != nil {
		if errors.Is(err, database.ErrExclusionNotFound) {
			return nil, newError(KindNotFound, "exclusion %d not found", id)
		}
		s.logger.Error().Err(err).Int64("id", id).Msg("get exclusion failed")
		return nil, newError(KindDBError, "could not load exclusion")
	}
	return rec, nil
}

// Update re-validates and replaces a record. Kind changes are allowed;
// the previous kind's fields and synthetic children are dropped.
func (s *Store) Update(ctx context.Context, id int64, in Input) (*models.ExclusionRecord, error) {
	prev, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	next, err := s.validate(ctx, in, id)
	if err != nil {
		return nil, err
	}
	if err := s.db.UpdateExclusion(ctx, id, prev, next); err != nil {
		if errors.Is(err, database.ErrExclusionNotFound) {
			return nil, newError(KindNotFound, "exclusion %d not found", id)
		}
		s.logger.Error().Err(err).Int64("id", id).Msg("update exclusion failed")
		return nil, newError(KindDBError, "could not update exclusion")
	}
	next.CreatedAt = prev.CreatedAt
	s.Invalidate()
	return next, nil
}

// Delete removes a record; for a range its synthetic children go too.
// A missing id is a not_found error.
func (s *Store) Delete(ctx context.Context, id int64) error {
	rec, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.db.DeleteExclusion(ctx, rec); err != nil {
		if errors.Is(err, database.ErrExclusionNotFound) {
			return newError(KindNotFound, "exclusion %d not found", id)
		}
		s.logger.Error().Err(err).Int64("id", id).Msg("delete exclusion failed")
		return newError(KindDBError, "could not delete exclusion")
	}
	s.Invalidate()
	return nil
}

// List returns records matching the filter. Malformed filter dates are
// rejected rather than silently matching nothing.
func (s *Store) List(ctx context.Context, filter database.ExclusionFilter) ([]*models.ExclusionRecord, error) {
	for _, d := range []string{filter.From, filter.To} {
		if d == "" {
			continue
		}
		if _, err := models.ParseDate(d); err != nil {
			return nil, newError(KindInvalidDateFormat, "invalid filter date %q; expected YYYY-MM-DD", d)
		}
	}
	records, err := s.db.ListExclusions(ctx, filter)
	if err != nil {
		s.logger.Error().Err(err).Msg("list exclusions failed")
		return nil, newError(KindDBError, "could not list exclusions")
	}
	return records, nil
}

// ExcludedDates returns the discrete excluded-date set used by the
// availability engine, memoized with a TTL. Built from Single rows
// (which include materialized range children) plus expanded Range rows,
// so a hole in the materialization cannot hide a range.
func (s *Store) ExcludedDates(ctx context.Context) (map[string]struct{}, error) {
	s.mu.RLock()
	if s.setCache != nil && s.now().Sub(s.setTime) < s.setTTL {
		set := s.setCache
		s.mu.RUnlock()
		return set, nil
	}
	s.mu.RUnlock()

	set := make(map[string]struct{})

	dates, err := s.db.ListSingleDates(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("load excluded dates failed")
		return nil, newError(KindDBError, "could not load excluded dates")
	}
	for _, d := range dates {
		set[d] = struct{}{}
	}

	ranges, err := s.db.ListExclusions(ctx, database.ExclusionFilter{Kind: models.ExclusionRange})
	if err != nil {
		s.logger.Error().Err(err).Msg("load excluded ranges failed")
		return nil, newError(KindDBError, "could not load excluded ranges")
	}
	for _, r := range ranges {
		start, end := r.Span()
		for _, d := range models.ExpandSpan(start, end) {
			set[d] = struct{}{}
		}
	}

	s.mu.Lock()
	s.setCache = set
	s.setTime = s.now()
	s.mu.Unlock()
	return set, nil
}

// IsDateExcluded checks raw Single and Range rows directly, independent
// of the materialized children and the memoized set.
func (s *Store) IsDateExcluded(ctx context.Context, date string) (bool, error) {
	if _, err := models.ParseDate(date); err != nil {
		return false, newError(KindInvalidDateFormat, "invalid date format; expected YYYY-MM-DD")
	}
	n, err := s.db.CountCoveringRecords(ctx, date)
	if err != nil {
		s.logger.Error().Err(err).Str("date", date).Msg("check excluded failed")
		return false, newError(KindDBError, "could not check date")
	}
	return n > 0, nil
}

// Invalidate drops the memoized excluded-date set.
func (s *Store) Invalidate() {
	s.mu.Lock()
	s.setCache = nil
	s.mu.Unlock()
}

// validate enforces the add/update rules and returns the normalized
// record. selfID excludes the record's own rows from the overlap check.
func (s *Store) validate(ctx context.Context, in Input, selfID int64) (*models.ExclusionRecord, error) {
	if in.Reason == "" {
		return nil, newError(KindMissingReason, "a reason is required")
	}

	today := s.today()

	switch models.ExclusionKind(in.Kind) {
	case models.ExclusionSingle:
		d, err := models.ParseDate(in.Date)
		if err != nil {
			return nil, newError(KindInvalidDateFormat, "invalid date format; expected YYYY-MM-DD")
		}
		if d.Before(today) {
			return nil, newError(KindPastDate, "date %s is in the past", in.Date)
		}
		rec := &models.ExclusionRecord{
			Kind:   models.ExclusionSingle,
			Date:   models.FormatDate(d),
			Reason: in.Reason,
		}
		if err := s.checkOverlap(ctx, rec, selfID); err != nil {
			return nil, err
		}
		return rec, nil

	case models.ExclusionRange:
		start, err := models.ParseDate(in.RangeStart)
		if err != nil {
			return nil, newError(KindInvalidDateFormat, "invalid range_start; expected YYYY-MM-DD")
		}
		end, err := models.ParseDate(in.RangeEnd)
		if err != nil {
			return nil, newError(KindInvalidDateFormat, "invalid range_end; expected YYYY-MM-DD")
		}
		if end.Before(start) {
			return nil, newError(KindInvalidRange, "range_end is before range_start")
		}
		if end.Before(today) {
			return nil, newError(KindPastDate, "range ends in the past")
		}
		rec := &models.ExclusionRecord{
			Kind:       models.ExclusionRange,
			RangeStart: models.FormatDate(start),
			RangeEnd:   models.FormatDate(end),
			Reason:     in.Reason,
		}
		if err := s.checkOverlap(ctx, rec, selfID); err != nil {
			return nil, err
		}
		return rec, nil

	default:
		return nil, newError(KindInvalidKind, "kind must be %q or %q", models.ExclusionSingle, models.ExclusionRange)
	}
}

// checkOverlap rejects any intersection with an existing Single or
// Range record, comparing raw rows rather than materialized children.
func (s *Store) checkOverlap(ctx context.Context, rec *models.ExclusionRecord, selfID int64) error {
	existing, err := s.db.ListExclusions(ctx, database.ExclusionFilter{})
	if err != nil {
		s.logger.Error().Err(err).Msg("overlap check failed")
		return newError(KindDBError, "could not check for conflicts")
	}

	start, end := rec.Span()
	for _, other := range existing {
		if other.ID == selfID {
			continue
		}
		if other.Overlaps(start, end) {
			return newError(KindOverlapDetected,
				"dates conflict with existing exclusion %d (%s)", other.ID, other.Reason)
		}
	}
	return nil
}
