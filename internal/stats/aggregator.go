// Package stats maintains the per-date selection counts behind the
// admin analytics view. The aggregation is fire-and-forget; it has no
// bearing on availability correctness.
package stats

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"collectdate/internal/database"
)

// Aggregator refreshes the collection-date stats table.
type Aggregator struct {
	db     *database.DB
	logger zerolog.Logger
}

func NewAggregator(db *database.DB, logger zerolog.Logger) *Aggregator {
	return &Aggregator{
		db:     db,
		logger: logger.With().Str("component", "stats").Logger(),
	}
}

// Run performs one aggregation pass.
func (a *Aggregator) Run(ctx context.Context) error {
	n, err := a.db.AggregateSelections(ctx)
	if err != nil {
		return err
	}
	a.logger.Info().Int("rows", n).Msg("selection stats aggregated")
	return nil
}

// Start runs the aggregation on the given interval until the context is
// cancelled. The first pass runs after a short delay so startup stays
// fast; failures are logged and the loop keeps going.
func (a *Aggregator) Start(ctx context.Context, interval time.Duration) {
	select {
	case <-time.After(time.Minute):
		if err := a.Run(ctx); err != nil {
			a.logger.Error().Err(err).Msg("stats aggregation failed")
		}
	case <-ctx.Done():
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := a.Run(ctx); err != nil {
				a.logger.Error().Err(err).Msg("stats aggregation failed")
			}
		case <-ctx.Done():
			return
		}
	}
}
