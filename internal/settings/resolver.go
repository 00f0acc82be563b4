// Package settings resolves the effective collection rules for a
// product: product override (reserved), category rule with a longest
// lead time tie-break, then the global fallback.
package settings

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"collectdate/internal/models"
)

// Repository is the persistence boundary for global settings and the
// category rule map.
type Repository interface {
	GlobalSettings(ctx context.Context) (models.GlobalSettings, error)
	SaveGlobalSettings(ctx context.Context, g models.GlobalSettings) error
	CategoryRules(ctx context.Context) (map[string]models.CategoryRule, error)
	SaveCategoryRules(ctx context.Context, rules map[string]models.CategoryRule) error
}

// CategorySource answers which categories a product belongs to. Backed
// by the storefront catalog boundary.
type CategorySource interface {
	ProductCategories(ctx context.Context, productID int64) ([]string, error)
}

// Resolver computes EffectiveSettings per request context.
type Resolver struct {
	repo       Repository
	categories CategorySource
	logger     zerolog.Logger
}

func NewResolver(repo Repository, categories CategorySource, logger zerolog.Logger) *Resolver {
	return &Resolver{
		repo:       repo,
		categories: categories,
		logger:     logger.With().Str("component", "settings").Logger(),
	}
}

// Resolve returns the effective settings for a product; productID 0
// means "no specific product" and resolves straight to global.
func (r *Resolver) Resolve(ctx context.Context, productID int64) (models.EffectiveSettings, error) {
	global, err := r.repo.GlobalSettings(ctx)
	if err != nil {
		return models.EffectiveSettings{}, fmt.Errorf("load global settings: %w", err)
	}

	if productID != 0 {
		if es, ok := r.resolveProductOverride(productID); ok {
			return es, nil
		}
		es, ok, err := r.resolveCategoryRule(ctx, productID, global)
		if err != nil {
			return models.EffectiveSettings{}, err
		}
		if ok {
			return es, nil
		}
	}

	return fromGlobal(global), nil
}

// resolveProductOverride is the reserved per-product extension point.
// No override storage exists yet, so it never matches.
func (r *Resolver) resolveProductOverride(productID int64) (models.EffectiveSettings, bool) {
	return models.EffectiveSettings{}, false
}

// resolveCategoryRule picks, among the product's categories that carry a
// rule, the one with the strictly greatest lead time. The winning rule
// is used as a unit; fields are never mixed across categories.
func (r *Resolver) resolveCategoryRule(ctx context.Context, productID int64, global models.GlobalSettings) (models.EffectiveSettings, bool, error) {
	categories, err := r.categories.ProductCategories(ctx, productID)
	if err != nil {
		return models.EffectiveSettings{}, false, fmt.Errorf("load product categories: %w", err)
	}
	if len(categories) == 0 {
		return models.EffectiveSettings{}, false, nil
	}

	rules, err := r.repo.CategoryRules(ctx)
	if err != nil {
		return models.EffectiveSettings{}, false, fmt.Errorf("load category rules: %w", err)
	}

	var winner string
	var best models.CategoryRule
	found := false
	for _, c := range categories {
		rule, ok := rules[c]
		if !ok {
			continue
		}
		if !found || rule.LeadTime > best.LeadTime {
			winner, best, found = c, rule, true
		}
	}
	if !found {
		return models.EffectiveSettings{}, false, nil
	}

	return models.EffectiveSettings{
		LeadTime:       best.LeadTime,
		LeadTimeType:   best.LeadTimeType,
		CutoffTime:     best.CutoffTime,
		WorkingDays:    best.WorkingDays,
		CollectionDays: best.CollectionDays,
		MaxBookingDays: global.MaxBookingDays,
		Source:         models.SourceCategory,
		CategoryID:     winner,
	}, true, nil
}

// ResolveCart resolves each cart item and returns the settings with the
// greatest lead time, first encountered winning ties, together with the
// product that contributed them. An empty cart resolves to global.
func (r *Resolver) ResolveCart(ctx context.Context, productIDs []int64) (models.EffectiveSettings, int64, error) {
	if len(productIDs) == 0 {
		es, err := r.Resolve(ctx, 0)
		return es, 0, err
	}

	var winner models.EffectiveSettings
	var winnerID int64
	found := false
	for _, id := range productIDs {
		es, err := r.Resolve(ctx, id)
		if err != nil {
			return models.EffectiveSettings{}, 0, err
		}
		if !found || es.LeadTime > winner.LeadTime {
			winner, winnerID, found = es, id, true
		}
	}
	return winner, winnerID, nil
}

// SaveGlobalSettings sanitizes and persists global settings. Silent
// normalization, never a validation error.
func (r *Resolver) SaveGlobalSettings(ctx context.Context, g models.GlobalSettings) (models.GlobalSettings, error) {
	g = g.Sanitize()
	if err := r.repo.SaveGlobalSettings(ctx, g); err != nil {
		r.logger.Error().Err(err).Msg("save global settings failed")
		return models.GlobalSettings{}, fmt.Errorf("save global settings: %w", err)
	}
	return g, nil
}

// SaveCategoryRule sanitizes and stores a rule in the category map.
func (r *Resolver) SaveCategoryRule(ctx context.Context, categoryID string, rule models.CategoryRule) (models.CategoryRule, error) {
	rules, err := r.repo.CategoryRules(ctx)
	if err != nil {
		return models.CategoryRule{}, fmt.Errorf("load category rules: %w", err)
	}
	rule = rule.Sanitize()
	rules[categoryID] = rule
	if err := r.repo.SaveCategoryRules(ctx, rules); err != nil {
		r.logger.Error().Err(err).Str("category", categoryID).Msg("save category rule failed")
		return models.CategoryRule{}, fmt.Errorf("save category rules: %w", err)
	}
	return rule, nil
}

// DeleteCategoryRule removes a rule from the map. Deleting a missing
// rule is a no-op, consistent with last-write-wins admin semantics.
func (r *Resolver) DeleteCategoryRule(ctx context.Context, categoryID string) error {
	rules, err := r.repo.CategoryRules(ctx)
	if err != nil {
		return fmt.Errorf("load category rules: %w", err)
	}
	if _, ok := rules[categoryID]; !ok {
		return nil
	}
	delete(rules, categoryID)
	if err := r.repo.SaveCategoryRules(ctx, rules); err != nil {
		r.logger.Error().Err(err).Str("category", categoryID).Msg("delete category rule failed")
		return fmt.Errorf("save category rules: %w", err)
	}
	return nil
}

// CategoryRule returns one stored rule.
func (r *Resolver) CategoryRule(ctx context.Context, categoryID string) (models.CategoryRule, bool, error) {
	rules, err := r.repo.CategoryRules(ctx)
	if err != nil {
		return models.CategoryRule{}, false, fmt.Errorf("load category rules: %w", err)
	}
	rule, ok := rules[categoryID]
	return rule, ok, nil
}

// CategoryRules returns the whole rule map.
func (r *Resolver) CategoryRules(ctx context.Context) (map[string]models.CategoryRule, error) {
	return r.repo.CategoryRules(ctx)
}

// GlobalSettings returns the stored global settings.
func (r *Resolver) GlobalSettings(ctx context.Context) (models.GlobalSettings, error) {
	return r.repo.GlobalSettings(ctx)
}

func fromGlobal(g models.GlobalSettings) models.EffectiveSettings {
	return models.EffectiveSettings{
		LeadTime:       g.LeadTime,
		LeadTimeType:   g.LeadTimeType,
		CutoffTime:     g.CutoffTime,
		WorkingDays:    g.WorkingDays,
		CollectionDays: g.CollectionDays,
		MaxBookingDays: g.MaxBookingDays,
		Source:         models.SourceGlobal,
	}
}
