package database

import (
	"context"
	"fmt"
	"time"
)

// SaveCollectionDate stores (or replaces) the collection date chosen for
// an order. Last write wins, matching the checkout's re-submit behavior.
func (db *DB) SaveCollectionDate(ctx context.Context, orderID, date string) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO order_collection_dates (order_id, collection_date, created_at)
		VALUES (?, ?, ?)
		ON CONFLICT(order_id) DO UPDATE SET
			collection_date = excluded.collection_date,
			created_at = excluded.created_at`,
		orderID, date, time.Now())
	if err != nil {
		return fmt.Errorf("save collection date: %w", err)
	}
	return nil
}

// SelectionCounts returns how many orders selected each date in
// [from, to], keyed by YYYY-MM-DD. Dates with no selections are absent.
func (db *DB) SelectionCounts(ctx context.Context, from, to string) (map[string]int, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT collection_date, COUNT(*) FROM order_collection_dates
		WHERE collection_date >= ? AND collection_date <= ?
		GROUP BY collection_date`, from, to)
	if err != nil {
		return nil, fmt.Errorf("selection counts: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var date string
		var n int
		if err := rows.Scan(&date, &n); err != nil {
			return nil, fmt.Errorf("scan count: %w", err)
		}
		counts[date] = n
	}
	return counts, rows.Err()
}

// AggregateSelections refreshes the per-date stats table from the order
// metadata. Used by the daily aggregation job and the stats endpoint.
func (db *DB) AggregateSelections(ctx context.Context) (int, error) {
	res, err := db.ExecContext(ctx, `
		INSERT INTO collection_date_stats (collection_date, selections, updated_at)
		SELECT collection_date, COUNT(*), CURRENT_TIMESTAMP
		FROM order_collection_dates
		GROUP BY collection_date
		ON CONFLICT(collection_date) DO UPDATE SET
			selections = excluded.selections,
			updated_at = excluded.updated_at`)
	if err != nil {
		return 0, fmt.Errorf("aggregate selections: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return int(n), nil
}

// SelectionStats reads the aggregated stats table, soonest date first.
func (db *DB) SelectionStats(ctx context.Context) (map[string]int, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT collection_date, selections FROM collection_date_stats
		ORDER BY collection_date`)
	if err != nil {
		return nil, fmt.Errorf("selection stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[string]int)
	for rows.Next() {
		var date string
		var n int
		if err := rows.Scan(&date, &n); err != nil {
			return nil, fmt.Errorf("scan stat: %w", err)
		}
		stats[date] = n
	}
	return stats, rows.Err()
}
