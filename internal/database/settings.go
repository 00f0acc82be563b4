package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"collectdate/internal/models"
)

// Settings store keys. Global settings and the category rule map are
// each persisted as a single serialized value.
const (
	keyGlobalSettings = "global_settings"
	keyCategoryRules  = "category_rules"
)

func (db *DB) getValue(ctx context.Context, key string, out any) (bool, error) {
	var raw string
	err := db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, key).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("get setting %s: %w", key, err)
	}
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		return false, fmt.Errorf("decode setting %s: %w", key, err)
	}
	return true, nil
}

func (db *DB) putValue(ctx context.Context, key string, val any) error {
	data, err := json.Marshal(val)
	if err != nil {
		return fmt.Errorf("encode setting %s: %w", key, err)
	}
	_, err = db.ExecContext(ctx, `
		INSERT INTO settings (key, value, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			value = excluded.value,
			updated_at = excluded.updated_at`,
		key, string(data), time.Now())
	if err != nil {
		return fmt.Errorf("put setting %s: %w", key, err)
	}
	return nil
}

// GlobalSettings returns the stored global settings, or sane defaults
// when none were saved yet.
func (db *DB) GlobalSettings(ctx context.Context) (models.GlobalSettings, error) {
	var g models.GlobalSettings
	found, err := db.getValue(ctx, keyGlobalSettings, &g)
	if err != nil {
		return models.GlobalSettings{}, err
	}
	if !found {
		return models.GlobalSettings{
			CategoryRule: models.CategoryRule{
				LeadTimeType:   models.LeadTimeCalendar,
				WorkingDays:    models.NewWeekdaySet(1, 2, 3, 4, 5),
				CollectionDays: models.AllWeekdays(),
			},
			MaxBookingDays: models.DefaultMaxBookingDays,
		}, nil
	}
	return g.Sanitize(), nil
}

// SaveGlobalSettings persists global settings.
func (db *DB) SaveGlobalSettings(ctx context.Context, g models.GlobalSettings) error {
	return db.putValue(ctx, keyGlobalSettings, g)
}

// HasGlobalSettings reports whether global settings were ever saved.
func (db *DB) HasGlobalSettings(ctx context.Context) (bool, error) {
	var ignored json.RawMessage
	return db.getValue(ctx, keyGlobalSettings, &ignored)
}

// CategoryRules returns the category rule map, empty when unset.
func (db *DB) CategoryRules(ctx context.Context) (map[string]models.CategoryRule, error) {
	rules := make(map[string]models.CategoryRule)
	if _, err := db.getValue(ctx, keyCategoryRules, &rules); err != nil {
		return nil, err
	}
	return rules, nil
}

// SaveCategoryRules persists the whole category rule map.
func (db *DB) SaveCategoryRules(ctx context.Context, rules map[string]models.CategoryRule) error {
	return db.putValue(ctx, keyCategoryRules, rules)
}

// ProductCategories returns the category ids a product belongs to.
func (db *DB) ProductCategories(ctx context.Context, productID int64) ([]string, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT category_id FROM product_categories
		WHERE product_id = ? ORDER BY category_id`, productID)
	if err != nil {
		return nil, fmt.Errorf("product categories %d: %w", productID, err)
	}
	defer rows.Close()

	var categories []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

// SetProductCategories replaces a product's category assignments.
func (db *DB) SetProductCategories(ctx context.Context, productID int64, categories []string) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM product_categories WHERE product_id = ?`, productID); err != nil {
		return fmt.Errorf("clear product categories: %w", err)
	}
	for _, c := range categories {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO product_categories (product_id, category_id) VALUES (?, ?)`,
			productID, c); err != nil {
			return fmt.Errorf("insert product category: %w", err)
		}
	}
	return tx.Commit()
}
