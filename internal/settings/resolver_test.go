package settings

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"collectdate/internal/models"
)

type fakeRepo struct {
	global models.GlobalSettings
	rules  map[string]models.CategoryRule
}

func (f *fakeRepo) GlobalSettings(context.Context) (models.GlobalSettings, error) {
	return f.global, nil
}

func (f *fakeRepo) SaveGlobalSettings(_ context.Context, g models.GlobalSettings) error {
	f.global = g
	return nil
}

func (f *fakeRepo) CategoryRules(context.Context) (map[string]models.CategoryRule, error) {
	if f.rules == nil {
		f.rules = make(map[string]models.CategoryRule)
	}
	return f.rules, nil
}

func (f *fakeRepo) SaveCategoryRules(_ context.Context, rules map[string]models.CategoryRule) error {
	f.rules = rules
	return nil
}

type fakeCategories map[int64][]string

func (f fakeCategories) ProductCategories(_ context.Context, productID int64) ([]string, error) {
	return f[productID], nil
}

func testGlobal() models.GlobalSettings {
	return models.GlobalSettings{
		CategoryRule: models.CategoryRule{
			LeadTime:       1,
			LeadTimeType:   models.LeadTimeCalendar,
			WorkingDays:    models.NewWeekdaySet(1, 2, 3, 4, 5),
			CollectionDays: models.AllWeekdays(),
		},
		MaxBookingDays: 30,
	}
}

func catRule(leadTime int, cutoff string) models.CategoryRule {
	return models.CategoryRule{
		LeadTime:       leadTime,
		LeadTimeType:   models.LeadTimeWorking,
		CutoffTime:     cutoff,
		WorkingDays:    models.NewWeekdaySet(1, 3, 5),
		CollectionDays: models.NewWeekdaySet(6),
	}
}

func newTestResolver(repo *fakeRepo, cats fakeCategories) *Resolver {
	return NewResolver(repo, cats, zerolog.Nop())
}

func TestResolve_GlobalFallback(t *testing.T) {
	repo := &fakeRepo{global: testGlobal()}
	r := newTestResolver(repo, fakeCategories{})

	es, err := r.Resolve(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, models.SourceGlobal, es.Source)
	assert.Equal(t, 1, es.LeadTime)
	assert.Equal(t, 30, es.MaxBookingDays)
	assert.Empty(t, es.CategoryID)
}

func TestResolve_ProductWithoutRulesFallsBackToGlobal(t *testing.T) {
	repo := &fakeRepo{
		global: testGlobal(),
		rules:  map[string]models.CategoryRule{"frozen": catRule(5, "")},
	}
	r := newTestResolver(repo, fakeCategories{42: {"bakery"}})

	es, err := r.Resolve(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, models.SourceGlobal, es.Source)
}

func TestResolve_CategoryRuleAppliesAsUnit(t *testing.T) {
	repo := &fakeRepo{
		global: testGlobal(),
		rules:  map[string]models.CategoryRule{"frozen": catRule(5, "12:00")},
	}
	r := newTestResolver(repo, fakeCategories{42: {"frozen"}})

	es, err := r.Resolve(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, models.SourceCategory, es.Source)
	assert.Equal(t, "frozen", es.CategoryID)
	assert.Equal(t, 5, es.LeadTime)
	assert.Equal(t, models.LeadTimeWorking, es.LeadTimeType)
	assert.Equal(t, "12:00", es.CutoffTime)
	assert.True(t, es.CollectionDays.Contains(time.Saturday))
	assert.False(t, es.CollectionDays.Contains(time.Monday))
	// MaxBookingDays stays global; categories never carry a ceiling.
	assert.Equal(t, 30, es.MaxBookingDays)
}

func TestResolve_LongestLeadTimeWinsAmongCategories(t *testing.T) {
	repo := &fakeRepo{
		global: testGlobal(),
		rules: map[string]models.CategoryRule{
			"frozen": catRule(5, "10:00"),
			"bakery": catRule(2, "16:00"),
		},
	}
	r := newTestResolver(repo, fakeCategories{42: {"bakery", "frozen"}})

	es, err := r.Resolve(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, "frozen", es.CategoryID)
	assert.Equal(t, 5, es.LeadTime)
	// The winner's cutoff applies, not the other category's.
	assert.Equal(t, "10:00", es.CutoffTime)
}

func TestResolve_TieKeepsFirstEncountered(t *testing.T) {
	repo := &fakeRepo{
		global: testGlobal(),
		rules: map[string]models.CategoryRule{
			"frozen": catRule(3, "10:00"),
			"bakery": catRule(3, "16:00"),
		},
	}
	r := newTestResolver(repo, fakeCategories{42: {"bakery", "frozen"}})

	es, err := r.Resolve(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, "bakery", es.CategoryID)
	assert.Equal(t, "16:00", es.CutoffTime)
}

func TestResolveCart(t *testing.T) {
	repo := &fakeRepo{
		global: testGlobal(),
		rules: map[string]models.CategoryRule{
			"frozen": catRule(5, ""),
			"bakery": catRule(2, ""),
		},
	}
	r := newTestResolver(repo, fakeCategories{
		1: {"bakery"},
		2: {"frozen"},
		3: nil,
	})

	t.Run("strictest item wins", func(t *testing.T) {
		es, winnerID, err := r.ResolveCart(context.Background(), []int64{1, 3, 2})
		require.NoError(t, err)
		assert.Equal(t, int64(2), winnerID)
		assert.Equal(t, 5, es.LeadTime)
		assert.Equal(t, "frozen", es.CategoryID)
	})

	t.Run("tie keeps first item", func(t *testing.T) {
		es, winnerID, err := r.ResolveCart(context.Background(), []int64{2, 2})
		require.NoError(t, err)
		assert.Equal(t, int64(2), winnerID)
		assert.Equal(t, 5, es.LeadTime)
	})

	t.Run("empty cart resolves to global", func(t *testing.T) {
		es, winnerID, err := r.ResolveCart(context.Background(), nil)
		require.NoError(t, err)
		assert.Zero(t, winnerID)
		assert.Equal(t, models.SourceGlobal, es.Source)
	})
}

func TestSaveGlobalSettings_Sanitizes(t *testing.T) {
	repo := &fakeRepo{global: testGlobal()}
	r := newTestResolver(repo, fakeCategories{})

	in := testGlobal()
	in.LeadTime = -4
	in.CutoffTime = "not a time"
	in.MaxBookingDays = 0

	saved, err := r.SaveGlobalSettings(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, 0, saved.LeadTime)
	assert.Empty(t, saved.CutoffTime)
	assert.Equal(t, models.DefaultMaxBookingDays, saved.MaxBookingDays)
	assert.Equal(t, saved, repo.global)
}

func TestSaveCategoryRule_SanitizesAndStores(t *testing.T) {
	repo := &fakeRepo{global: testGlobal()}
	r := newTestResolver(repo, fakeCategories{})

	saved, err := r.SaveCategoryRule(context.Background(), "frozen", models.CategoryRule{
		LeadTime:     -1,
		LeadTimeType: "lunar",
		CutoffTime:   "9:00",
	})
	require.NoError(t, err)
	assert.Equal(t, 0, saved.LeadTime)
	assert.Equal(t, models.LeadTimeCalendar, saved.LeadTimeType)
	assert.Equal(t, "09:00", saved.CutoffTime)

	got, ok, err := r.CategoryRule(context.Background(), "frozen")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, saved, got)
}

func TestDeleteCategoryRule(t *testing.T) {
	repo := &fakeRepo{
		global: testGlobal(),
		rules:  map[string]models.CategoryRule{"frozen": catRule(5, "")},
	}
	r := newTestResolver(repo, fakeCategories{})

	require.NoError(t, r.DeleteCategoryRule(context.Background(), "frozen"))
	_, ok, err := r.CategoryRule(context.Background(), "frozen")
	require.NoError(t, err)
	assert.False(t, ok)

	// Deleting again is a no-op, not an error.
	assert.NoError(t, r.DeleteCategoryRule(context.Background(), "frozen"))
}
