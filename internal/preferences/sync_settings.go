package preferences

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	opGetSyncSettings    = "preferences.get_sync_settings"
	opUpdateSyncSettings = "preferences.update_sync_settings"
)

// SyncSettingsStore persists local-only sync bookkeeping.
type SyncSettingsStore struct {
	base *storeBase
}

// Get returns the sync settings, creating them with a fresh device id on first access.
func (s *SyncSettingsStore) Get(ctx context.Context) (SyncSettings, error) {
	record, err := s.ensure(ctx)
	if err != nil {
		return SyncSettings{}, err
	}
	return SyncSettings{
		Enabled:        record.Enabled,
		LastSyncedAt:   record.LastSyncedAtMillis,
		LocalChangedAt: record.LocalChangedAtMillis,
		DeviceID:       record.DeviceID,
	}, nil
}

// SetEnabled stores the sticky opt-out flag.
func (s *SyncSettingsStore) SetEnabled(ctx context.Context, enabled bool) error {
	return s.update(ctx, map[string]any{"enabled": enabled})
}

// MarkSynced records a successful load or write.
func (s *SyncSettingsStore) MarkSynced(ctx context.Context, at time.Time) error {
	return s.update(ctx, map[string]any{"last_synced_at_ms": at.UTC().UnixMilli()})
}

// MarkLocalChange records the time of the latest user mutation.
func (s *SyncSettingsStore) MarkLocalChange(ctx context.Context, at time.Time) error {
	return s.update(ctx, map[string]any{"local_changed_at_ms": at.UTC().UnixMilli()})
}

// ClearSyncHistory forgets when this device last synced or changed anything.
func (s *SyncSettingsStore) ClearSyncHistory(ctx context.Context) error {
	return s.update(ctx, map[string]any{
		"last_synced_at_ms":   int64(0),
		"local_changed_at_ms": int64(0),
	})
}

func (s *SyncSettingsStore) update(ctx context.Context, values map[string]any) error {
	if _, err := s.ensure(ctx); err != nil {
		return err
	}
	err := s.base.db.WithContext(ctx).
		Model(&SyncSettingsRecord{}).
		Where("id = ?", singletonRowID).
		Updates(values).Error
	if err != nil {
		return s.base.fail(opUpdateSyncSettings, reasonWriteFailed, err)
	}
	return nil
}

func (s *SyncSettingsStore) ensure(ctx context.Context) (SyncSettingsRecord, error) {
	db := s.base.db.WithContext(ctx)
	var record SyncSettingsRecord
	err := db.Where("id = ?", singletonRowID).Take(&record).Error
	if err == nil {
		return record, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return SyncSettingsRecord{}, s.base.fail(opGetSyncSettings, reasonQueryFailed, err)
	}

	deviceID, err := s.base.idProvider.NewID()
	if err != nil {
		return SyncSettingsRecord{}, s.base.fail(opGetSyncSettings, reasonIDFailed, err)
	}
	created := SyncSettingsRecord{
		ID:       singletonRowID,
		Enabled:  true,
		DeviceID: deviceID,
	}
	if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&created).Error; err != nil {
		return SyncSettingsRecord{}, s.base.fail(opGetSyncSettings, reasonWriteFailed, err)
	}
	if err := db.Where("id = ?", singletonRowID).Take(&record).Error; err != nil {
		return SyncSettingsRecord{}, s.base.fail(opGetSyncSettings, reasonQueryFailed, err)
	}
	return record, nil
}
