// Package availability computes valid collection dates from an
// effective rule set and the excluded-date set.
package availability

import (
	"time"

	"collectdate/internal/models"
)

// ExcludedSet is a discrete excluded-date lookup keyed by YYYY-MM-DD.
type ExcludedSet map[string]struct{}

func (s ExcludedSet) contains(d time.Time) bool {
	_, ok := s[models.FormatDate(d)]
	return ok
}

// Engine derives date lists and single-date verdicts. It holds no
// persistent state; every method is a pure function of its inputs and
// the injected clock.
type Engine struct {
	now func() time.Time
}

// NewEngine creates an engine; now may be nil (defaults to time.Now).
func NewEngine(now func() time.Time) *Engine {
	if now == nil {
		now = time.Now
	}
	return &Engine{now: now}
}

func (e *Engine) today() time.Time {
	n := e.now()
	return time.Date(n.Year(), n.Month(), n.Day(), 0, 0, 0, 0, time.UTC)
}

// ListDates returns up to limit collection dates in ascending order.
// Fewer than limit dates (possibly none) is a normal result when
// collection days are sparse or most dates are excluded.
func (e *Engine) ListDates(s models.EffectiveSettings, excluded ExcludedSet, limit int) []string {
	dates := []string{}
	if limit <= 0 {
		return dates
	}

	maxDays := s.MaxBookingDays
	if maxDays <= 0 {
		maxDays = models.DefaultMaxBookingDays
	}

	d := e.scanStart(s, excluded)
	for scanned := 0; scanned <= maxDays && len(dates) < limit; scanned++ {
		if s.CollectionDays.Contains(d.Weekday()) && !excluded.contains(d) {
			dates = append(dates, models.FormatDate(d))
		}
		d = d.AddDate(0, 0, 1)
	}
	return dates
}

// IsDateAvailable reports whether one date would be offered. Invalid
// input is false, never an error: the check re-derives the full
// candidate window so list and single-date semantics cannot drift.
func (e *Engine) IsDateAvailable(s models.EffectiveSettings, excluded ExcludedSet, date string) bool {
	d, err := models.ParseDate(date)
	if err != nil {
		return false
	}
	target := models.FormatDate(d)

	maxDays := s.MaxBookingDays
	if maxDays <= 0 {
		maxDays = models.DefaultMaxBookingDays
	}
	for _, candidate := range e.ListDates(s, excluded, maxDays) {
		if candidate == target {
			return true
		}
	}
	return false
}

// DateRange returns the inclusive outer bounds for UI display: plain
// calendar arithmetic, ignoring cutoff and working-day nuance.
func (e *Engine) DateRange(s models.EffectiveSettings) (minDate, maxDate string) {
	today := e.today()
	maxDays := s.MaxBookingDays
	if maxDays <= 0 {
		maxDays = models.DefaultMaxBookingDays
	}
	minDate = models.FormatDate(today.AddDate(0, 0, s.LeadTime+1))
	maxDate = models.FormatDate(today.AddDate(0, 0, maxDays))
	return minDate, maxDate
}

// ScanCeiling returns the last date ListDates can possibly visit for
// the settings, whatever the excluded set contains. Calendar mode jumps
// at most lead'+1 days ahead; working mode's walk is bounded by its
// iteration cap. Callers use it to size lookup windows that must cover
// the whole scan.
func (e *Engine) ScanCeiling(s models.EffectiveSettings) time.Time {
	maxDays := s.MaxBookingDays
	if maxDays <= 0 {
		maxDays = models.DefaultMaxBookingDays
	}
	target := e.effectiveLeadTime(s) + 1
	offset := target
	if s.LeadTimeType == models.LeadTimeWorking {
		offset = 3*target + 365
	}
	return e.today().AddDate(0, 0, offset+maxDays)
}

// effectiveLeadTime applies the cutoff penalty: one extra day once the
// local time of day has passed the configured cutoff. An empty cutoff
// never penalizes.
func (e *Engine) effectiveLeadTime(s models.EffectiveSettings) int {
	lead := s.LeadTime
	if lead < 0 {
		lead = 0
	}
	if s.CutoffTime == "" {
		return lead
	}
	// Cutoff strings are normalized to zero-padded HH:MM at save time,
	// so a lexical comparison is a time comparison.
	if e.now().Format("15:04") > s.CutoffTime {
		lead++
	}
	return lead
}

// scanStart computes the first candidate date. Calendar mode jumps
// straight ahead; working mode walks day by day, counting only working,
// non-excluded days, with an iteration cap so an empty working-day set
// terminates instead of hanging.
func (e *Engine) scanStart(s models.EffectiveSettings, excluded ExcludedSet) time.Time {
	target := e.effectiveLeadTime(s) + 1
	today := e.today()

	if s.LeadTimeType != models.LeadTimeWorking {
		return today.AddDate(0, 0, target)
	}

	d := today
	count := 0
	maxIter := 3*target + 365
	for i := 0; i < maxIter && count < target; i++ {
		d = d.AddDate(0, 0, 1)
		if s.WorkingDays.Contains(d.Weekday()) && !excluded.contains(d) {
			count++
		}
	}
	return d
}
