package models

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"time"
)

// DateLayout is the wire format for all calendar dates.
const DateLayout = "2006-01-02"

// ParseDate parses a strict YYYY-MM-DD date to midnight UTC.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: expected YYYY-MM-DD", s)
	}
	return t, nil
}

// FormatDate renders a time as YYYY-MM-DD.
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// LeadTimeType selects the arithmetic mode for advancing lead time.
type LeadTimeType string

const (
	LeadTimeCalendar LeadTimeType = "calendar"
	LeadTimeWorking  LeadTimeType = "working"
)

// WeekdaySet is a set of weekday numbers, 0=Sunday..6=Saturday.
// Stored as a bitmask; marshals as a sorted array of ints.
type WeekdaySet uint8

// NewWeekdaySet builds a set from weekday numbers; values outside 0-6
// are dropped silently.
func NewWeekdaySet(days ...int) WeekdaySet {
	var s WeekdaySet
	for _, d := range days {
		if d >= 0 && d <= 6 {
			s |= 1 << uint(d)
		}
	}
	return s
}

// AllWeekdays is the full Sunday..Saturday set.
func AllWeekdays() WeekdaySet {
	return NewWeekdaySet(0, 1, 2, 3, 4, 5, 6)
}

// Contains reports whether the weekday is in the set.
func (s WeekdaySet) Contains(d time.Weekday) bool {
	return s&(1<<uint(d)) != 0
}

// IsEmpty reports whether the set holds no days.
func (s WeekdaySet) IsEmpty() bool { return s == 0 }

// Days returns the sorted weekday numbers in the set.
func (s WeekdaySet) Days() []int {
	days := make([]int, 0, 7)
	for d := 0; d <= 6; d++ {
		if s&(1<<uint(d)) != 0 {
			days = append(days, d)
		}
	}
	return days
}

// MarshalJSON renders the set as a sorted int array.
func (s WeekdaySet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Days())
}

// UnmarshalJSON accepts an array of ints or numeric strings; anything
// unrecognized or out of range is dropped, not errored. This is the
// single place where loosely typed stored day lists are coerced.
func (s *WeekdaySet) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		*s = 0
		return nil
	}
	var out WeekdaySet
	for _, item := range raw {
		var n int
		if err := json.Unmarshal(item, &n); err == nil {
			if n >= 0 && n <= 6 {
				out |= 1 << uint(n)
			}
			continue
		}
		var str string
		if err := json.Unmarshal(item, &str); err == nil {
			if n, err := strconv.Atoi(str); err == nil && n >= 0 && n <= 6 {
				out |= 1 << uint(n)
			}
		}
	}
	*s = out
	return nil
}

// CategoryRule is a per-category override of the collection rules.
type CategoryRule struct {
	LeadTime       int          `json:"lead_time"`
	LeadTimeType   LeadTimeType `json:"lead_time_type"`
	CutoffTime     string       `json:"cutoff_time,omitempty"`
	WorkingDays    WeekdaySet   `json:"working_days"`
	CollectionDays WeekdaySet   `json:"collection_days"`
}

// Sanitize normalizes a rule for storage. It never fails: negative lead
// times clamp to zero, an unknown type resets to calendar, an invalid
// cutoff resets to empty.
func (r CategoryRule) Sanitize() CategoryRule {
	if r.LeadTime < 0 {
		r.LeadTime = 0
	}
	if r.LeadTimeType != LeadTimeCalendar && r.LeadTimeType != LeadTimeWorking {
		r.LeadTimeType = LeadTimeCalendar
	}
	r.CutoffTime = NormalizeCutoff(r.CutoffTime)
	return r
}

// NormalizeCutoff validates an HH:MM cutoff and zero-pads it, so later
// comparisons can be plain string comparisons. Invalid input becomes "".
func NormalizeCutoff(s string) string {
	if s == "" {
		return ""
	}
	t, err := time.Parse("15:04", s)
	if err != nil {
		// Accept single-digit hours like "9:00".
		t, err = time.Parse("3:04", s)
		if err != nil {
			return ""
		}
	}
	return t.Format("15:04")
}

// GlobalSettings is the singleton fallback rule set plus global bounds.
type GlobalSettings struct {
	CategoryRule
	MaxBookingDays  int `json:"max_booking_days"`
	MaxOrdersPerDay int `json:"max_orders_per_day"`
}

const DefaultMaxBookingDays = 30

// Sanitize normalizes global settings for storage.
func (g GlobalSettings) Sanitize() GlobalSettings {
	g.CategoryRule = g.CategoryRule.Sanitize()
	if g.MaxBookingDays <= 0 {
		g.MaxBookingDays = DefaultMaxBookingDays
	}
	if g.MaxOrdersPerDay < 0 {
		g.MaxOrdersPerDay = 0
	}
	return g
}

// Effective settings sources.
const (
	SourceGlobal   = "global"
	SourceCategory = "category"
)

// EffectiveSettings is the resolved, non-persistent rule set used for a
// single computation, after the override -> category -> global chain.
type EffectiveSettings struct {
	LeadTime       int          `json:"lead_time"`
	LeadTimeType   LeadTimeType `json:"lead_time_type"`
	CutoffTime     string       `json:"cutoff_time,omitempty"`
	WorkingDays    WeekdaySet   `json:"working_days"`
	CollectionDays WeekdaySet   `json:"collection_days"`
	MaxBookingDays int          `json:"max_booking_days"`

	Source     string `json:"source"`                // "global" or "category"
	CategoryID string `json:"category_id,omitempty"` // set when Source is "category"
}

// ScopeTag returns the cache scope for a request context: "global" when
// the settings came from the global fallback, "product_<id>" otherwise.
func (e EffectiveSettings) ScopeTag(productID int64) string {
	if e.Source == SourceGlobal || productID == 0 {
		return "global"
	}
	return fmt.Sprintf("product_%d", productID)
}

// Exclusion kinds.
type ExclusionKind string

const (
	ExclusionSingle ExclusionKind = "single"
	ExclusionRange  ExclusionKind = "range"
)

// RangeReasonSuffix tags the synthetic Single rows materialized from a
// Range record, so legacy discrete-date lookups keep working and the
// rows can be removed together with their parent.
const RangeReasonSuffix = " (Range)"

// ExclusionRecord marks a date or an inclusive date range unavailable.
// Date fields hold normalized YYYY-MM-DD strings; Single uses Date,
// Range uses RangeStart/RangeEnd.
type ExclusionRecord struct {
	ID         int64         `json:"id"`
	Kind       ExclusionKind `json:"kind"`
	Date       string        `json:"date,omitempty"`
	RangeStart string        `json:"range_start,omitempty"`
	RangeEnd   string        `json:"range_end,omitempty"`
	Reason     string        `json:"reason"`
	CreatedAt  time.Time     `json:"created_at"`
	UpdatedAt  time.Time     `json:"updated_at"`
}

// Span returns the inclusive date span the record covers. For a Single
// record start and end are the same day. Fields are assumed validated.
func (e *ExclusionRecord) Span() (start, end time.Time) {
	if e.Kind == ExclusionRange {
		start, _ = ParseDate(e.RangeStart)
		end, _ = ParseDate(e.RangeEnd)
		return start, end
	}
	start, _ = ParseDate(e.Date)
	return start, start
}

// Covers reports whether the record covers the given day.
func (e *ExclusionRecord) Covers(d time.Time) bool {
	start, end := e.Span()
	return !d.Before(start) && !d.After(end)
}

// Overlaps reports whether the record's span intersects [start, end],
// both boundaries inclusive.
func (e *ExclusionRecord) Overlaps(start, end time.Time) bool {
	s, t := e.Span()
	return !t.Before(start) && !end.Before(s)
}

// IsSynthetic reports whether the record is a materialized child of a
// Range record, identified by the reason suffix convention.
func (e *ExclusionRecord) IsSynthetic() bool {
	return e.Kind == ExclusionSingle && hasRangeSuffix(e.Reason)
}

func hasRangeSuffix(reason string) bool {
	n := len(RangeReasonSuffix)
	return len(reason) > n && reason[len(reason)-n:] == RangeReasonSuffix
}

// ExpandSpan lists every day in [start, end] as YYYY-MM-DD.
func ExpandSpan(start, end time.Time) []string {
	var days []string
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		days = append(days, FormatDate(d))
	}
	return days
}

// SortDates sorts YYYY-MM-DD strings chronologically. The layout is
// zero-padded so lexicographic order is date order.
func SortDates(dates []string) {
	sort.Strings(dates)
}
