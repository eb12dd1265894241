package preferences

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	opGetCategories  = "preferences.get_categories"
	opSetCategories  = "preferences.set_categories"
	opSaveCategory   = "preferences.save_category"
	opRemoveCategory = "preferences.remove_category"
	fieldCategoryID  = "category_id"
)

// CategoryStore persists built-in and custom category definitions.
type CategoryStore struct {
	base *storeBase
}

// Get returns the categories in display order.
func (s *CategoryStore) Get(ctx context.Context) ([]Category, error) {
	categories, err := loadCategories(s.base.db.WithContext(ctx))
	if err != nil {
		return nil, s.base.fail(opGetCategories, reasonQueryFailed, err)
	}
	return categories, nil
}

// Set replaces every category without notifying the sync engine.
func (s *CategoryStore) Set(ctx context.Context, categories []Category) error {
	if err := replaceCategories(s.base.db.WithContext(ctx), dedupeCategories(categories)); err != nil {
		return s.base.fail(opSetCategories, reasonWriteFailed, err)
	}
	return nil
}

// Reset restores the built-in category set.
func (s *CategoryStore) Reset(ctx context.Context) error {
	return s.Set(ctx, DefaultCategories(s.base.nowMillis()))
}

// Save creates a custom category when ID is empty, otherwise updates the existing one.
// UpdatedAt is always stamped with the current time.
func (s *CategoryStore) Save(ctx context.Context, input Category) (Category, error) {
	now := s.base.nowMillis()
	category := input.Clone()
	category.ID = strings.TrimSpace(category.ID)
	category.Label = strings.TrimSpace(category.Label)
	category.Keywords = normalizeKeywords(category.Keywords)
	if category.MatchMode == "" {
		category.MatchMode = MatchModeAny
	}

	var saved Category
	err := s.base.userEdit(ctx, func() error {
		return s.base.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			var existing CategoryRecord
			position := 0
			if category.ID == "" {
				categoryID, err := s.base.idProvider.NewID()
				if err != nil {
					return newServiceError(opSaveCategory, reasonIDFailed, err)
				}
				category.ID = categoryID
				category.CreatedAt = now
				category.IsDefault = false
				var count int64
				if err := tx.Model(&CategoryRecord{}).Count(&count).Error; err != nil {
					return newServiceError(opSaveCategory, reasonQueryFailed, err)
				}
				position = int(count)
			} else {
				err := tx.Where("category_id = ?", category.ID).Take(&existing).Error
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return newServiceError(opSaveCategory, reasonNotFound,
						fmt.Errorf("%w: category %s", ErrNotFound, category.ID))
				}
				if err != nil {
					return newServiceError(opSaveCategory, reasonQueryFailed, err)
				}
				category.CreatedAt = existing.CreatedAtMillis
				category.IsDefault = existing.IsDefault
				position = existing.Position
			}
			category.UpdatedAt = now

			if err := category.Validate(); err != nil {
				return newServiceError(opSaveCategory, reasonInvalidInput, err)
			}
			record := categoryToRecord(category, position)
			if err := tx.Save(&record).Error; err != nil {
				return s.base.fail(opSaveCategory, reasonWriteFailed, err, zap.String(fieldCategoryID, category.ID))
			}
			saved = category
			return nil
		})
	})
	if err != nil {
		return Category{}, err
	}
	return saved, nil
}

// Remove deletes a category. Removing a built-in category hides it.
func (s *CategoryStore) Remove(ctx context.Context, categoryID string) error {
	return s.base.userEdit(ctx, func() error {
		result := s.base.db.WithContext(ctx).Where("category_id = ?", categoryID).Delete(&CategoryRecord{})
		if result.Error != nil {
			return s.base.fail(opRemoveCategory, reasonWriteFailed, result.Error, zap.String(fieldCategoryID, categoryID))
		}
		if result.RowsAffected == 0 {
			return newServiceError(opRemoveCategory, reasonNotFound, fmt.Errorf("%w: category %s", ErrNotFound, categoryID))
		}
		return nil
	})
}
