package preferences

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

const (
	opGetFilters    = "preferences.get_filters"
	opSetFilters    = "preferences.set_filters"
	opAddFilter     = "preferences.add_filter"
	opRemoveFilter  = "preferences.remove_filter"
	fieldFilterID   = "filter_id"
	reasonDuplicate = "duplicate"
)

// FilterStore persists hide-by-title filters.
type FilterStore struct {
	base *storeBase
}

// Get returns the filters in display order.
func (s *FilterStore) Get(ctx context.Context) ([]Filter, error) {
	filters, err := loadFilters(s.base.db.WithContext(ctx))
	if err != nil {
		return nil, s.base.fail(opGetFilters, reasonQueryFailed, err)
	}
	return filters, nil
}

// Set replaces every filter without notifying the sync engine.
func (s *FilterStore) Set(ctx context.Context, filters []Filter) error {
	if err := replaceFilters(s.base.db.WithContext(ctx), dedupeFilters(filters)); err != nil {
		return s.base.fail(opSetFilters, reasonWriteFailed, err)
	}
	return nil
}

// Reset removes every filter.
func (s *FilterStore) Reset(ctx context.Context) error {
	return s.Set(ctx, nil)
}

// Add appends a filter for pattern. Patterns are unique case-insensitively.
func (s *FilterStore) Add(ctx context.Context, pattern string) (Filter, error) {
	normalized, err := normalizePattern(pattern)
	if err != nil {
		return Filter{}, newServiceError(opAddFilter, reasonInvalidInput, err)
	}

	var filter Filter
	err = s.base.userEdit(ctx, func() error {
		existing, err := s.Get(ctx)
		if err != nil {
			return err
		}
		for _, current := range existing {
			if strings.EqualFold(current.Pattern, normalized) {
				return newServiceError(opAddFilter, reasonDuplicate,
					fmt.Errorf("%w: %q", ErrDuplicateFilter, normalized))
			}
		}

		filterID, err := s.base.idProvider.NewID()
		if err != nil {
			return s.base.fail(opAddFilter, reasonIDFailed, err)
		}
		filter = Filter{
			ID:        filterID,
			Pattern:   normalized,
			CreatedAt: s.base.nowMillis(),
		}
		record := FilterRecord{
			FilterID:        filter.ID,
			Pattern:         filter.Pattern,
			CreatedAtMillis: filter.CreatedAt,
			Position:        len(existing),
		}
		if err := s.base.db.WithContext(ctx).Create(&record).Error; err != nil {
			return s.base.fail(opAddFilter, reasonWriteFailed, err, zap.String(fieldFilterID, filter.ID))
		}
		return nil
	})
	if err != nil {
		return Filter{}, err
	}
	return filter, nil
}

// Remove deletes the filter with the given id.
func (s *FilterStore) Remove(ctx context.Context, filterID string) error {
	return s.base.userEdit(ctx, func() error {
		result := s.base.db.WithContext(ctx).Where("filter_id = ?", filterID).Delete(&FilterRecord{})
		if result.Error != nil {
			return s.base.fail(opRemoveFilter, reasonWriteFailed, result.Error, zap.String(fieldFilterID, filterID))
		}
		if result.RowsAffected == 0 {
			return newServiceError(opRemoveFilter, reasonNotFound, fmt.Errorf("%w: filter %s", ErrNotFound, filterID))
		}
		return nil
	})
}
