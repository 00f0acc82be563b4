package stats

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"collectdate/internal/database"
)

func TestAggregator_Run(t *testing.T) {
	db, err := database.NewDB(filepath.Join(t.TempDir(), "test.db"), zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	ctx := context.Background()

	require.NoError(t, db.SaveCollectionDate(ctx, "order-1", "2024-06-13"))
	require.NoError(t, db.SaveCollectionDate(ctx, "order-2", "2024-06-13"))
	require.NoError(t, db.SaveCollectionDate(ctx, "order-3", "2024-06-14"))

	agg := NewAggregator(db, zerolog.Nop())
	require.NoError(t, agg.Run(ctx))

	stats, err := db.SelectionStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats["2024-06-13"])
	assert.Equal(t, 1, stats["2024-06-14"])

	// Re-running refreshes counts instead of double counting.
	require.NoError(t, db.SaveCollectionDate(ctx, "order-4", "2024-06-14"))
	require.NoError(t, agg.Run(ctx))

	stats, err = db.SelectionStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats["2024-06-14"])
}

func TestAggregator_RunEmpty(t *testing.T) {
	db, err := database.NewDB(filepath.Join(t.TempDir(), "test.db"), zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	agg := NewAggregator(db, zerolog.Nop())
	require.NoError(t, agg.Run(context.Background()))

	stats, err := db.SelectionStats(context.Background())
	require.NoError(t, err)
	assert.Empty(t, stats)
}
