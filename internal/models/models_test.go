package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(year int, month time.Month, d int) time.Time {
	return time.Date(year, month, d, 0, 0, 0, 0, time.UTC)
}

func TestWeekdaySet_Contains(t *testing.T) {
	s := NewWeekdaySet(1, 3, 5)
	assert.True(t, s.Contains(time.Monday))
	assert.True(t, s.Contains(time.Wednesday))
	assert.True(t, s.Contains(time.Friday))
	assert.False(t, s.Contains(time.Sunday))
	assert.False(t, s.Contains(time.Saturday))
}

func TestNewWeekdaySet_DropsInvalid(t *testing.T) {
	s := NewWeekdaySet(-1, 0, 7, 12, 6)
	assert.Equal(t, []int{0, 6}, s.Days())
}

func TestWeekdaySet_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []int
	}{
		{
			name:     "int array",
			input:    `[0,1,2]`,
			expected: []int{0, 1, 2},
		},
		{
			name:     "string array",
			input:    `["1","5"]`,
			expected: []int{1, 5},
		},
		{
			name:     "mixed with junk dropped",
			input:    `[1,"2","seven",9,null]`,
			expected: []int{1, 2},
		},
		{
			name:     "not an array coerces to empty",
			input:    `"monday"`,
			expected: []int{},
		},
		{
			name:     "empty array",
			input:    `[]`,
			expected: []int{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var s WeekdaySet
			err := json.Unmarshal([]byte(tt.input), &s)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, s.Days())
		})
	}
}

func TestWeekdaySet_MarshalRoundTrip(t *testing.T) {
	s := NewWeekdaySet(6, 0, 2)
	data, err := json.Marshal(s)
	require.NoError(t, err)
	assert.JSONEq(t, `[0,2,6]`, string(data))

	var back WeekdaySet
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, s, back)
}

func TestNormalizeCutoff(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"", ""},
		{"09:00", "09:00"},
		{"9:00", "09:00"},
		{"23:59", "23:59"},
		{"25:00", ""},
		{"9am", ""},
		{"garbage", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, NormalizeCutoff(tt.input))
		})
	}
}

func TestCategoryRule_Sanitize(t *testing.T) {
	tests := []struct {
		name     string
		rule     CategoryRule
		expected CategoryRule
	}{
		{
			name: "valid rule unchanged",
			rule: CategoryRule{
				LeadTime:       3,
				LeadTimeType:   LeadTimeWorking,
				CutoffTime:     "12:00",
				WorkingDays:    NewWeekdaySet(1, 2, 3),
				CollectionDays: NewWeekdaySet(5, 6),
			},
			expected: CategoryRule{
				LeadTime:       3,
				LeadTimeType:   LeadTimeWorking,
				CutoffTime:     "12:00",
				WorkingDays:    NewWeekdaySet(1, 2, 3),
				CollectionDays: NewWeekdaySet(5, 6),
			},
		},
		{
			name: "negative lead time clamps to zero",
			rule: CategoryRule{LeadTime: -2, LeadTimeType: LeadTimeCalendar},
			expected: CategoryRule{
				LeadTime:     0,
				LeadTimeType: LeadTimeCalendar,
			},
		},
		{
			name: "unknown type resets to calendar",
			rule: CategoryRule{LeadTimeType: "business"},
			expected: CategoryRule{
				LeadTimeType: LeadTimeCalendar,
			},
		},
		{
			name: "invalid cutoff resets to empty",
			rule: CategoryRule{LeadTimeType: LeadTimeCalendar, CutoffTime: "25:61"},
			expected: CategoryRule{
				LeadTimeType: LeadTimeCalendar,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.rule.Sanitize())
		})
	}
}

func TestGlobalSettings_Sanitize(t *testing.T) {
	g := GlobalSettings{
		CategoryRule:    CategoryRule{LeadTime: 1, LeadTimeType: LeadTimeCalendar},
		MaxBookingDays:  0,
		MaxOrdersPerDay: -5,
	}
	got := g.Sanitize()
	assert.Equal(t, DefaultMaxBookingDays, got.MaxBookingDays)
	assert.Equal(t, 0, got.MaxOrdersPerDay)
}

func TestExclusionRecord_Covers(t *testing.T) {
	single := &ExclusionRecord{Kind: ExclusionSingle, Date: "2024-06-13"}
	assert.True(t, single.Covers(day(2024, 6, 13)))
	assert.False(t, single.Covers(day(2024, 6, 14)))

	rng := &ExclusionRecord{Kind: ExclusionRange, RangeStart: "2024-06-13", RangeEnd: "2024-06-15"}
	assert.True(t, rng.Covers(day(2024, 6, 13)))
	assert.True(t, rng.Covers(day(2024, 6, 14)))
	assert.True(t, rng.Covers(day(2024, 6, 15)))
	assert.False(t, rng.Covers(day(2024, 6, 12)))
	assert.False(t, rng.Covers(day(2024, 6, 16)))
}

func TestExclusionRecord_Overlaps(t *testing.T) {
	rng := &ExclusionRecord{Kind: ExclusionRange, RangeStart: "2024-06-10", RangeEnd: "2024-06-12"}

	tests := []struct {
		name     string
		start    time.Time
		end      time.Time
		expected bool
	}{
		{"inside", day(2024, 6, 11), day(2024, 6, 11), true},
		{"touching start", day(2024, 6, 8), day(2024, 6, 10), true},
		{"touching end", day(2024, 6, 12), day(2024, 6, 20), true},
		{"before", day(2024, 6, 1), day(2024, 6, 9), false},
		{"after", day(2024, 6, 13), day(2024, 6, 20), false},
		{"spanning", day(2024, 6, 1), day(2024, 6, 30), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, rng.Overlaps(tt.start, tt.end))
		})
	}
}

func TestExclusionRecord_IsSynthetic(t *testing.T) {
	assert.True(t, (&ExclusionRecord{Kind: ExclusionSingle, Reason: "Holiday (Range)"}).IsSynthetic())
	assert.False(t, (&ExclusionRecord{Kind: ExclusionSingle, Reason: "Holiday"}).IsSynthetic())
	assert.False(t, (&ExclusionRecord{Kind: ExclusionRange, Reason: "Holiday (Range)"}).IsSynthetic())
}

func TestExpandSpan(t *testing.T) {
	days := ExpandSpan(day(2024, 6, 13), day(2024, 6, 15))
	assert.Equal(t, []string{"2024-06-13", "2024-06-14", "2024-06-15"}, days)

	one := ExpandSpan(day(2024, 6, 13), day(2024, 6, 13))
	assert.Equal(t, []string{"2024-06-13"}, one)
}

func TestParseDate(t *testing.T) {
	_, err := ParseDate("2024-02-30")
	assert.Error(t, err)

	_, err = ParseDate("13/06/2024")
	assert.Error(t, err)

	d, err := ParseDate("2024-06-13")
	require.NoError(t, err)
	assert.Equal(t, day(2024, 6, 13), d)
}
