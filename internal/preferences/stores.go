package preferences

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	errMissingDatabase   = errors.New("database handle is required")
	errMissingIDProvider = errors.New("id provider is required")
	errUnchanged         = errors.New("preference unchanged")
	noOpLogger           = zap.NewNop()
)

// ErrConcurrentEdit reports that a user edit landed after the snapshot a replacement was based on.
var ErrConcurrentEdit = errors.New("preferences: edited since snapshot")

// ServiceError carries a dotted "<operation>.<reason>" code alongside the cause.
type ServiceError struct {
	code string
	err  error
}

func (e *ServiceError) Error() string {
	if e.err == nil {
		return e.code
	}
	return fmt.Sprintf("%s: %v", e.code, e.err)
}

func (e *ServiceError) Unwrap() error {
	return e.err
}

func (e *ServiceError) Code() string {
	return e.code
}

const (
	opNewStores        = "preferences.new"
	opLoadSnapshot     = "preferences.load_snapshot"
	opReplaceSnapshot  = "preferences.replace_snapshot"
	opResetAll         = "preferences.reset_all"
	opMarkLocalChange  = "preferences.mark_local_change"
	reasonQueryFailed  = "query_failed"
	reasonWriteFailed  = "write_failed"
	reasonInvalidInput = "invalid_input"
	reasonIDFailed     = "id_generation_failed"
	reasonNotFound     = "not_found"
	reasonTxFailed     = "transaction_failed"
	reasonConcurrent   = "concurrent_edit"
)

func newServiceError(operation, reason string, cause error) error {
	code := fmt.Sprintf("%s.%s", operation, reason)
	return &ServiceError{code: code, err: cause}
}

// ChangeNotifier receives a signal after every user-initiated preference mutation.
type ChangeNotifier interface {
	ScheduleSyncToCloud()
}

type changeSignal struct {
	mu       sync.RWMutex
	notifier ChangeNotifier
}

func (s *changeSignal) set(notifier ChangeNotifier) {
	s.mu.Lock()
	s.notifier = notifier
	s.mu.Unlock()
}

func (s *changeSignal) fire() {
	s.mu.RLock()
	notifier := s.notifier
	s.mu.RUnlock()
	if notifier != nil {
		notifier.ScheduleSyncToCloud()
	}
}

type storeBase struct {
	db         *gorm.DB
	clock      func() time.Time
	idProvider IDProvider
	signal     *changeSignal
	logger     *zap.Logger

	// editMu orders user edits against snapshot reads and replacements.
	editMu   sync.Mutex
	revision uint64
}

// userEdit commits one user mutation. A successful edit stamps the local change time and
// advances the revision before the lock is released, then signals the sync engine.
// Returning errUnchanged from edit means there was nothing to store.
func (b *storeBase) userEdit(ctx context.Context, edit func() error) error {
	b.editMu.Lock()
	if err := edit(); err != nil {
		b.editMu.Unlock()
		if errors.Is(err, errUnchanged) {
			return nil
		}
		return err
	}
	b.revision++
	markErr := (&SyncSettingsStore{base: b}).MarkLocalChange(ctx, b.clock())
	b.editMu.Unlock()

	if markErr != nil {
		b.logError(opMarkLocalChange, reasonWriteFailed, markErr)
	}
	b.signal.fire()
	return nil
}

func (b *storeBase) nowMillis() int64 {
	return b.clock().UTC().UnixMilli()
}

func (b *storeBase) logError(operation, reason string, err error, fields ...zap.Field) {
	attrs := []zap.Field{
		zap.String("operation", operation),
		zap.String("reason", reason),
	}
	if err != nil {
		attrs = append(attrs, zap.Error(err))
	}
	attrs = append(attrs, fields...)
	b.logger.Error("preferences store error", attrs...)
}

func (b *storeBase) fail(operation, reason string, err error, fields ...zap.Field) error {
	b.logError(operation, reason, err, fields...)
	return newServiceError(operation, reason, err)
}

// StoresConfig describes the dependencies shared by every preference store.
type StoresConfig struct {
	Database   *gorm.DB
	Clock      func() time.Time
	IDProvider IDProvider
	Logger     *zap.Logger
}

// Snapshot is the full set of synchronized preferences at one point in time.
type Snapshot struct {
	Filters           []Filter
	Categories        []Category
	DisabledCalendars []string
	Display           DisplaySettings
}

// Stores bundles the independent preference stores over one database.
type Stores struct {
	Filters    *FilterStore
	Categories *CategoryStore
	Calendars  *CalendarStore
	Display    *DisplayStore
	Sync       *SyncSettingsStore

	base *storeBase
}

// NewStores constructs every preference store.
func NewStores(cfg StoresConfig) (*Stores, error) {
	if cfg.Database == nil {
		return nil, newServiceError(opNewStores, "missing_database", errMissingDatabase)
	}
	if cfg.IDProvider == nil {
		return nil, newServiceError(opNewStores, "missing_id_provider", errMissingIDProvider)
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}

	base := &storeBase{
		db:         cfg.Database,
		clock:      clock,
		idProvider: cfg.IDProvider,
		signal:     &changeSignal{},
		logger:     logger,
	}
	return &Stores{
		Filters:    &FilterStore{base: base},
		Categories: &CategoryStore{base: base},
		Calendars:  &CalendarStore{base: base},
		Display:    &DisplayStore{base: base},
		Sync:       &SyncSettingsStore{base: base},
		base:       base,
	}, nil
}

// SetChangeNotifier registers the receiver of user mutation signals. Passing nil detaches it.
func (s *Stores) SetChangeNotifier(notifier ChangeNotifier) {
	s.base.signal.set(notifier)
}

// Load reads the four synchronized stores in one consistent pass.
func (s *Stores) Load(ctx context.Context) (Snapshot, error) {
	var snapshot Snapshot
	err := s.base.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		filters, err := loadFilters(tx)
		if err != nil {
			return err
		}
		categories, err := loadCategories(tx)
		if err != nil {
			return err
		}
		calendars, err := loadDisabledCalendars(tx)
		if err != nil {
			return err
		}
		display, err := loadDisplay(tx)
		if err != nil {
			return err
		}
		snapshot = Snapshot{
			Filters:           filters,
			Categories:        categories,
			DisabledCalendars: calendars,
			Display:           display,
		}
		return nil
	})
	if err != nil {
		return Snapshot{}, s.base.fail(opLoadSnapshot, reasonQueryFailed, err)
	}
	return snapshot, nil
}

// Checkpoint reads the synchronized stores and the sync settings with no user edit in
// between, and returns the revision they were read at.
func (s *Stores) Checkpoint(ctx context.Context) (Snapshot, SyncSettings, uint64, error) {
	s.base.editMu.Lock()
	defer s.base.editMu.Unlock()

	snapshot, err := s.Load(ctx)
	if err != nil {
		return Snapshot{}, SyncSettings{}, 0, err
	}
	settings, err := s.Sync.Get(ctx)
	if err != nil {
		return Snapshot{}, SyncSettings{}, 0, err
	}
	return snapshot, settings, s.base.revision, nil
}

// Revision counts committed user edits since the stores were constructed.
func (s *Stores) Revision() uint64 {
	s.base.editMu.Lock()
	defer s.base.editMu.Unlock()
	return s.base.revision
}

// ReplaceIfUnchanged is Replace guarded by the revision returned from Checkpoint.
// It fails with ErrConcurrentEdit, leaving the stores untouched, when a user edit
// was committed after that checkpoint.
func (s *Stores) ReplaceIfUnchanged(ctx context.Context, snapshot Snapshot, revision uint64) error {
	s.base.editMu.Lock()
	defer s.base.editMu.Unlock()

	if s.base.revision != revision {
		return newServiceError(opReplaceSnapshot, reasonConcurrent, ErrConcurrentEdit)
	}
	return s.replaceLocked(ctx, snapshot)
}

// Replace overwrites the four synchronized stores atomically without notifying.
func (s *Stores) Replace(ctx context.Context, snapshot Snapshot) error {
	s.base.editMu.Lock()
	defer s.base.editMu.Unlock()
	return s.replaceLocked(ctx, snapshot)
}

func (s *Stores) replaceLocked(ctx context.Context, snapshot Snapshot) error {
	err := s.base.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := replaceFilters(tx, dedupeFilters(snapshot.Filters)); err != nil {
			return err
		}
		if err := replaceCategories(tx, dedupeCategories(snapshot.Categories)); err != nil {
			return err
		}
		if err := replaceDisabledCalendars(tx, dedupeStrings(snapshot.DisabledCalendars)); err != nil {
			return err
		}
		return saveDisplay(tx, snapshot.Display)
	})
	if err != nil {
		return s.base.fail(opReplaceSnapshot, reasonTxFailed, err)
	}
	return nil
}

// ResetAll restores factory defaults and forgets local sync history.
// The sync opt-out flag and device id are kept.
func (s *Stores) ResetAll(ctx context.Context) error {
	defaults := Snapshot{
		Filters:           nil,
		Categories:        DefaultCategories(s.base.nowMillis()),
		DisabledCalendars: nil,
		Display:           DefaultDisplaySettings(),
	}
	if err := s.Replace(ctx, defaults); err != nil {
		return s.base.fail(opResetAll, reasonWriteFailed, err)
	}
	if err := s.Sync.ClearSyncHistory(ctx); err != nil {
		return s.base.fail(opResetAll, reasonWriteFailed, err)
	}
	return nil
}

func loadFilters(db *gorm.DB) ([]Filter, error) {
	var records []FilterRecord
	if err := db.Order("position ASC").Find(&records).Error; err != nil {
		return nil, err
	}
	filters := make([]Filter, 0, len(records))
	for _, record := range records {
		filters = append(filters, filterFromRecord(record))
	}
	return filters, nil
}

func loadCategories(db *gorm.DB) ([]Category, error) {
	var records []CategoryRecord
	if err := db.Order("position ASC").Find(&records).Error; err != nil {
		return nil, err
	}
	categories := make([]Category, 0, len(records))
	for _, record := range records {
		categories = append(categories, categoryFromRecord(record))
	}
	return categories, nil
}

func loadDisabledCalendars(db *gorm.DB) ([]string, error) {
	var records []DisabledCalendarRecord
	if err := db.Order("position ASC").Find(&records).Error; err != nil {
		return nil, err
	}
	calendarIDs := make([]string, 0, len(records))
	for _, record := range records {
		calendarIDs = append(calendarIDs, record.CalendarID)
	}
	return calendarIDs, nil
}

func loadDisplay(db *gorm.DB) (DisplaySettings, error) {
	var record DisplaySettingsRecord
	err := db.Where("id = ?", singletonRowID).Take(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return DefaultDisplaySettings(), nil
	}
	if err != nil {
		return DisplaySettings{}, err
	}
	return displayFromRecord(record), nil
}

func dedupeFilters(filters []Filter) []Filter {
	seen := make(map[string]struct{}, len(filters))
	deduped := make([]Filter, 0, len(filters))
	for _, filter := range filters {
		if _, ok := seen[filter.ID]; ok {
			continue
		}
		seen[filter.ID] = struct{}{}
		deduped = append(deduped, filter)
	}
	return deduped
}

func dedupeCategories(categories []Category) []Category {
	seen := make(map[string]struct{}, len(categories))
	deduped := make([]Category, 0, len(categories))
	for _, category := range categories {
		if _, ok := seen[category.ID]; ok {
			continue
		}
		seen[category.ID] = struct{}{}
		deduped = append(deduped, category)
	}
	return deduped
}

func dedupeStrings(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	deduped := make([]string, 0, len(values))
	for _, value := range values {
		if value == "" {
			continue
		}
		if _, ok := seen[value]; ok {
			continue
		}
		seen[value] = struct{}{}
		deduped = append(deduped, value)
	}
	return deduped
}
