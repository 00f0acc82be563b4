package availability

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"collectdate/internal/cache"
	"collectdate/internal/database"
	"collectdate/internal/exclusions"
	"collectdate/internal/models"
	"collectdate/internal/settings"
)

// serviceNow pins the clock to Monday 2024-06-10 08:00 UTC.
func serviceNow() time.Time {
	return time.Date(2024, 6, 10, 8, 0, 0, 0, time.UTC)
}

type serviceFixture struct {
	svc   *Service
	db    *database.DB
	store *exclusions.Store
}

func newServiceFixture(t *testing.T, global models.GlobalSettings) *serviceFixture {
	t.Helper()
	db, err := database.NewDB(filepath.Join(t.TempDir(), "test.db"), zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	ctx := context.Background()
	require.NoError(t, db.SaveGlobalSettings(ctx, global))

	store := exclusions.NewStore(db, zerolog.Nop(), time.Hour, serviceNow)
	resolver := settings.NewResolver(db, db, zerolog.Nop())
	dateCache := cache.New(time.Hour, serviceNow)
	engine := NewEngine(serviceNow)

	return &serviceFixture{
		svc:   NewService(engine, resolver, store, dateCache, db, zerolog.Nop(), serviceNow),
		db:    db,
		store: store,
	}
}

func serviceGlobal() models.GlobalSettings {
	return models.GlobalSettings{
		CategoryRule: models.CategoryRule{
			LeadTime:       2,
			LeadTimeType:   models.LeadTimeCalendar,
			WorkingDays:    models.NewWeekdaySet(1, 2, 3, 4, 5),
			CollectionDays: models.AllWeekdays(),
		},
		MaxBookingDays: 30,
	}
}

func TestService_ListDates(t *testing.T) {
	f := newServiceFixture(t, serviceGlobal())

	dates, err := f.svc.ListDates(context.Background(), 0, 3)
	require.NoError(t, err)
	assert.Equal(t, []string{"2024-06-13", "2024-06-14", "2024-06-15"}, dates)
}

func TestService_ListDates_SkipsExclusions(t *testing.T) {
	f := newServiceFixture(t, serviceGlobal())
	ctx := context.Background()

	_, err := f.store.Add(ctx, exclusions.Input{
		Kind: "range", RangeStart: "2024-06-13", RangeEnd: "2024-06-14", Reason: "Closure",
	})
	require.NoError(t, err)

	dates, err := f.svc.ListDates(ctx, 0, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"2024-06-15", "2024-06-16"}, dates)
}

func TestService_ListDates_CachesUntilCleared(t *testing.T) {
	f := newServiceFixture(t, serviceGlobal())
	ctx := context.Background()

	first, err := f.svc.ListDates(ctx, 0, 3)
	require.NoError(t, err)

	// Mutate storage behind the cache's back.
	_, err = f.db.InsertExclusion(ctx, &models.ExclusionRecord{
		Kind: models.ExclusionSingle, Date: first[0], Reason: "Stocktake",
	})
	require.NoError(t, err)
	f.store.Invalidate()

	cached, err := f.svc.ListDates(ctx, 0, 3)
	require.NoError(t, err)
	assert.Equal(t, first, cached)

	f.svc.ClearCache(ctx)
	fresh, err := f.svc.ListDates(ctx, 0, 3)
	require.NoError(t, err)
	assert.NotContains(t, fresh, first[0])
}

func TestService_ListDates_ZeroLimit(t *testing.T) {
	f := newServiceFixture(t, serviceGlobal())

	dates, err := f.svc.ListDates(context.Background(), 0, 0)
	require.NoError(t, err)
	assert.Empty(t, dates)
	assert.NotNil(t, dates)
}

func TestService_CapacityFullDatesExcluded(t *testing.T) {
	global := serviceGlobal()
	global.MaxOrdersPerDay = 1
	f := newServiceFixture(t, global)
	ctx := context.Background()

	require.NoError(t, f.db.SaveCollectionDate(ctx, "order-1", "2024-06-13"))

	dates, err := f.svc.ListDates(ctx, 0, 3)
	require.NoError(t, err)
	assert.Equal(t, []string{"2024-06-14", "2024-06-15", "2024-06-16"}, dates)
}

func TestService_CapacityWorkingModeCoversWholeScan(t *testing.T) {
	global := serviceGlobal()
	global.LeadTime = 5
	global.LeadTimeType = models.LeadTimeWorking
	global.MaxOrdersPerDay = 1
	f := newServiceFixture(t, global)
	ctx := context.Background()

	// Working-day lead pushes the scan start to 2024-06-18; the count
	// window must still reach the far end of the scan.
	require.NoError(t, f.db.SaveCollectionDate(ctx, "order-1", "2024-07-10"))
	require.NoError(t, f.db.SaveCollectionDate(ctx, "order-2", "2024-07-18"))

	dates, err := f.svc.ListDates(ctx, 0, 60)
	require.NoError(t, err)
	assert.Equal(t, "2024-06-18", dates[0])
	assert.Contains(t, dates, "2024-07-17")
	assert.NotContains(t, dates, "2024-07-10")
	assert.NotContains(t, dates, "2024-07-18")
}

func TestService_CapacityUnlimitedByDefault(t *testing.T) {
	f := newServiceFixture(t, serviceGlobal())
	ctx := context.Background()

	for _, order := range []string{"order-1", "order-2", "order-3"} {
		require.NoError(t, f.db.SaveCollectionDate(ctx, order+"-x", "2024-06-13"))
	}

	dates, err := f.svc.ListDates(ctx, 0, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"2024-06-13"}, dates)
}

func TestService_IsDateAvailable(t *testing.T) {
	f := newServiceFixture(t, serviceGlobal())
	ctx := context.Background()

	tests := []struct {
		date string
		want bool
	}{
		{"2024-06-13", true},
		{"2024-06-12", false}, // inside lead time
		{"2024-08-30", false}, // beyond ceiling
		{"garbage", false},
		{"2024-02-30", false},
	}
	for _, tt := range tests {
		got, err := f.svc.IsDateAvailable(ctx, tt.date)
		require.NoError(t, err, tt.date)
		assert.Equal(t, tt.want, got, tt.date)
	}
}

func TestService_SaveCollectionDate(t *testing.T) {
	f := newServiceFixture(t, serviceGlobal())
	ctx := context.Background()

	err := f.svc.SaveCollectionDate(ctx, "order-9", "2024-06-13", nil)
	require.NoError(t, err)

	counts, err := f.db.SelectionCounts(ctx, "2024-06-13", "2024-06-13")
	require.NoError(t, err)
	assert.Equal(t, 1, counts["2024-06-13"])
}

func TestService_SaveCollectionDate_RejectsUnavailable(t *testing.T) {
	f := newServiceFixture(t, serviceGlobal())
	ctx := context.Background()

	err := f.svc.SaveCollectionDate(ctx, "order-9", "2024-06-12", nil)
	assert.ErrorIs(t, err, ErrDateUnavailable)

	counts, err := f.db.SelectionCounts(ctx, "2024-06-12", "2024-06-12")
	require.NoError(t, err)
	assert.Zero(t, counts["2024-06-12"])
}

func TestService_SaveCollectionDate_CapacityFillsDay(t *testing.T) {
	global := serviceGlobal()
	global.MaxOrdersPerDay = 1
	f := newServiceFixture(t, global)
	ctx := context.Background()

	require.NoError(t, f.svc.SaveCollectionDate(ctx, "order-1", "2024-06-13", nil))

	// The filled day is gone for the next shopper.
	err := f.svc.SaveCollectionDate(ctx, "order-2", "2024-06-13", nil)
	assert.ErrorIs(t, err, ErrDateUnavailable)
}

func TestService_DateRange(t *testing.T) {
	f := newServiceFixture(t, serviceGlobal())

	minDate, maxDate, err := f.svc.DateRange(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "2024-06-13", minDate)
	assert.Equal(t, "2024-07-10", maxDate)
}
