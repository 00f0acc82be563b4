package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"collectdate/internal/models"
)

// ErrExclusionNotFound is returned when an exclusion id does not exist.
var ErrExclusionNotFound = errors.New("exclusion not found")

// ExclusionFilter narrows ListExclusions results. Zero values mean no
// constraint; synthetic range children are hidden unless requested.
type ExclusionFilter struct {
	Kind             models.ExclusionKind
	From             string // YYYY-MM-DD, span must end on or after
	To               string // YYYY-MM-DD, span must start on or before
	IncludeSynthetic bool
}

// InsertExclusion inserts a record and its synthetic range children in
// one transaction, returning the new id.
func (db *DB) InsertExclusion(ctx context.Context, rec *models.ExclusionRecord) (int64, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	now := time.Now()
	res, err := tx.ExecContext(ctx, `
		INSERT INTO exclusions (kind, date, range_start, range_end, reason, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.Kind, nullable(rec.Date), nullable(rec.RangeStart), nullable(rec.RangeEnd), rec.Reason, now, now)
	if err != nil {
		return 0, fmt.Errorf("insert exclusion: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}

	if rec.Kind == models.ExclusionRange {
		if err := insertRangeChildren(ctx, tx, rec, now); err != nil {
			return 0, err
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	rec.ID = id
	rec.CreatedAt = now
	rec.UpdatedAt = now
	return id, nil
}

func insertRangeChildren(ctx context.Context, tx *sql.Tx, rec *models.ExclusionRecord, now time.Time) error {
	start, end := rec.Span()
	reason := rec.Reason + models.RangeReasonSuffix
	for _, day := range models.ExpandSpan(start, end) {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO exclusions (kind, date, reason, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?)`,
			models.ExclusionSingle, day, reason, now, now); err != nil {
			return fmt.Errorf("insert range child %s: %w", day, err)
		}
	}
	return nil
}

// GetExclusion loads a record by id.
func (db *DB) GetExclusion(ctx context.Context, id int64) (*models.ExclusionRecord, error) {
	row := db.QueryRowContext(ctx, `
		SELECT id, kind, date, range_start, range_end, reason, created_at, updated_at
		FROM exclusions WHERE id = ?`, id)
	rec, err := scanExclusion(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrExclusionNotFound
		}
		return nil, fmt.Errorf("get exclusion %d: %w", id, err)
	}
	return rec, nil
}

// UpdateExclusion replaces the record's fields and rebuilds its synthetic
// children. Fields of the previous kind are nulled out by the full
// column overwrite, so Single<->Range changes are handled uniformly.
func (db *DB) UpdateExclusion(ctx context.Context, id int64, prev, next *models.ExclusionRecord) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	now := time.Now()
	res, err := tx.ExecContext(ctx, `
		UPDATE exclusions
		SET kind = ?, date = ?, range_start = ?, range_end = ?, reason = ?, updated_at = ?
		WHERE id = ?`,
		next.Kind, nullable(next.Date), nullable(next.RangeStart), nullable(next.RangeEnd), next.Reason, now, id)
	if err != nil {
		return fmt.Errorf("update exclusion %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrExclusionNotFound
	}

	if prev.Kind == models.ExclusionRange {
		if err := deleteRangeChildren(ctx, tx, prev); err != nil {
			return err
		}
	}
	if next.Kind == models.ExclusionRange {
		if err := insertRangeChildren(ctx, tx, next, now); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	next.ID = id
	next.UpdatedAt = now
	return nil
}

// DeleteExclusion removes a record; a Range also loses its synthetic
// children, matched by the reason suffix within the range's span.
func (db *DB) DeleteExclusion(ctx context.Context, rec *models.ExclusionRecord) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `DELETE FROM exclusions WHERE id = ?`, rec.ID)
	if err != nil {
		return fmt.Errorf("delete exclusion %d: %w", rec.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrExclusionNotFound
	}

	if rec.Kind == models.ExclusionRange {
		if err := deleteRangeChildren(ctx, tx, rec); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func deleteRangeChildren(ctx context.Context, tx *sql.Tx, rec *models.ExclusionRecord) error {
	if _, err := tx.ExecContext(ctx, `
		DELETE FROM exclusions
		WHERE kind = ? AND reason = ? AND date >= ? AND date <= ?`,
		models.ExclusionSingle, rec.Reason+models.RangeReasonSuffix, rec.RangeStart, rec.RangeEnd); err != nil {
		return fmt.Errorf("delete range children: %w", err)
	}
	return nil
}

// ListExclusions returns records matching the filter, ordered
// chronologically by span start.
func (db *DB) ListExclusions(ctx context.Context, filter ExclusionFilter) ([]*models.ExclusionRecord, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, kind, date, range_start, range_end, reason, created_at, updated_at
		FROM exclusions
		ORDER BY COALESCE(date, range_start), id`)
	if err != nil {
		return nil, fmt.Errorf("list exclusions: %w", err)
	}
	defer rows.Close()

	var records []*models.ExclusionRecord
	for rows.Next() {
		rec, err := scanExclusion(rows)
		if err != nil {
			return nil, fmt.Errorf("scan exclusion: %w", err)
		}
		if !matchesFilter(rec, filter) {
			continue
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func matchesFilter(rec *models.ExclusionRecord, f ExclusionFilter) bool {
	if !f.IncludeSynthetic && rec.IsSynthetic() {
		return false
	}
	if f.Kind != "" && rec.Kind != f.Kind {
		return false
	}
	if f.From != "" || f.To != "" {
		start, end := rec.Span()
		if f.From != "" {
			from, err := models.ParseDate(f.From)
			if err != nil || end.Before(from) {
				return false
			}
		}
		if f.To != "" {
			to, err := models.ParseDate(f.To)
			if err != nil || start.After(to) {
				return false
			}
		}
	}
	return true
}

// ListSingleDates returns the date column of every Single row. Ranges
// are covered through their materialized children.
func (db *DB) ListSingleDates(ctx context.Context) ([]string, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT date FROM exclusions WHERE kind = ? AND date IS NOT NULL`,
		models.ExclusionSingle)
	if err != nil {
		return nil, fmt.Errorf("list single dates: %w", err)
	}
	defer rows.Close()

	var dates []string
	for rows.Next() {
		var d string
		if err := rows.Scan(&d); err != nil {
			return nil, fmt.Errorf("scan date: %w", err)
		}
		dates = append(dates, d)
	}
	return dates, rows.Err()
}

// CountCoveringRecords counts non-synthetic records whose span contains
// the date, checking raw Single and Range rows directly.
func (db *DB) CountCoveringRecords(ctx context.Context, date string) (int, error) {
	var n int
	err := db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM exclusions
		WHERE (kind = ? AND date = ? AND reason NOT LIKE '%'||?)
		   OR (kind = ? AND range_start <= ? AND range_end >= ?)`,
		models.ExclusionSingle, date, models.RangeReasonSuffix,
		models.ExclusionRange, date, date).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count covering records: %w", err)
	}
	return n, nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanExclusion(row rowScanner) (*models.ExclusionRecord, error) {
	var rec models.ExclusionRecord
	var date, rangeStart, rangeEnd sql.NullString
	if err := row.Scan(&rec.ID, &rec.Kind, &date, &rangeStart, &rangeEnd,
		&rec.Reason, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
		return nil, err
	}
	rec.Date = date.String
	rec.RangeStart = rangeStart.String
	rec.RangeEnd = rangeEnd.String
	return &rec, nil
}
