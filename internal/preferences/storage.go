package preferences

import "gorm.io/gorm"

const singletonRowID = 1

// FilterRecord stores a hide-by-title filter.
type FilterRecord struct {
	FilterID        string `gorm:"column:filter_id;primaryKey;size:190;not null"`
	Pattern         string `gorm:"column:pattern;size:200;not null"`
	CreatedAtMillis int64  `gorm:"column:created_at_ms;not null"`
	Position        int    `gorm:"column:position;not null;default:0;index"`
}

// TableName provides the explicit table binding for GORM.
func (FilterRecord) TableName() string {
	return "pref_filters"
}

// CategoryRecord stores a category definition, built-in or custom.
type CategoryRecord struct {
	CategoryID      string   `gorm:"column:category_id;primaryKey;size:190;not null"`
	Label           string   `gorm:"column:label;size:80;not null"`
	Color           string   `gorm:"column:color;size:7;not null"`
	Keywords        []string `gorm:"column:keywords_json;type:text;not null;serializer:json"`
	MatchMode       string   `gorm:"column:match_mode;size:8;not null;default:'any'"`
	CreatedAtMillis int64    `gorm:"column:created_at_ms;not null"`
	UpdatedAtMillis int64    `gorm:"column:updated_at_ms;not null"`
	IsDefault       bool     `gorm:"column:is_default;not null;default:false"`
	Position        int      `gorm:"column:position;not null;default:0;index"`
}

// TableName provides the explicit table binding for GORM.
func (CategoryRecord) TableName() string {
	return "pref_categories"
}

// DisabledCalendarRecord stores one hidden calendar id.
type DisabledCalendarRecord struct {
	CalendarID string `gorm:"column:calendar_id;primaryKey;size:190;not null"`
	Position   int    `gorm:"column:position;not null;default:0"`
}

// TableName provides the explicit table binding for GORM.
func (DisabledCalendarRecord) TableName() string {
	return "pref_disabled_calendars"
}

// DisplaySettingsRecord is the singleton row holding display toggles.
type DisplaySettingsRecord struct {
	ID                 int    `gorm:"column:id;primaryKey"`
	TimedEventMinHours int    `gorm:"column:timed_event_min_hours;not null"`
	MatchDescription   bool   `gorm:"column:match_description;not null"`
	WeekViewEnabled    bool   `gorm:"column:week_view_enabled;not null"`
	MonthScrollEnabled bool   `gorm:"column:month_scroll_enabled;not null"`
	MonthScrollDensity string `gorm:"column:month_scroll_density;size:16;not null"`
}

// TableName provides the explicit table binding for GORM.
func (DisplaySettingsRecord) TableName() string {
	return "pref_display_settings"
}

// SyncSettingsRecord is the singleton row holding local-only sync bookkeeping.
type SyncSettingsRecord struct {
	ID                   int    `gorm:"column:id;primaryKey"`
	Enabled              bool   `gorm:"column:enabled;not null;default:true"`
	LastSyncedAtMillis   int64  `gorm:"column:last_synced_at_ms;not null;default:0"`
	LocalChangedAtMillis int64  `gorm:"column:local_changed_at_ms;not null;default:0"`
	DeviceID             string `gorm:"column:device_id;size:190;not null"`
}

// TableName provides the explicit table binding for GORM.
func (SyncSettingsRecord) TableName() string {
	return "sync_settings"
}

// Models lists every table owned by the preference stores, for AutoMigrate.
func Models() []any {
	return []any{
		&FilterRecord{},
		&CategoryRecord{},
		&DisabledCalendarRecord{},
		&DisplaySettingsRecord{},
		&SyncSettingsRecord{},
	}
}

// SeedDefaultCategories inserts the built-in categories. It is applied once per database.
func SeedDefaultCategories(db *gorm.DB, stampMillis int64) error {
	return replaceCategories(db, DefaultCategories(stampMillis))
}

func filterFromRecord(record FilterRecord) Filter {
	return Filter{
		ID:        record.FilterID,
		Pattern:   record.Pattern,
		CreatedAt: record.CreatedAtMillis,
	}
}

func categoryFromRecord(record CategoryRecord) Category {
	return Category{
		ID:        record.CategoryID,
		Label:     record.Label,
		Color:     record.Color,
		Keywords:  append([]string(nil), record.Keywords...),
		MatchMode: MatchMode(record.MatchMode),
		CreatedAt: record.CreatedAtMillis,
		UpdatedAt: record.UpdatedAtMillis,
		IsDefault: record.IsDefault,
	}
}

func categoryToRecord(category Category, position int) CategoryRecord {
	keywords := category.Keywords
	if keywords == nil {
		keywords = []string{}
	}
	return CategoryRecord{
		CategoryID:      category.ID,
		Label:           category.Label,
		Color:           category.Color,
		Keywords:        keywords,
		MatchMode:       string(category.MatchMode),
		CreatedAtMillis: category.CreatedAt,
		UpdatedAtMillis: category.UpdatedAt,
		IsDefault:       category.IsDefault,
		Position:        position,
	}
}

func displayFromRecord(record DisplaySettingsRecord) DisplaySettings {
	return DisplaySettings{
		TimedEventMinHours: record.TimedEventMinHours,
		MatchDescription:   record.MatchDescription,
		WeekViewEnabled:    record.WeekViewEnabled,
		MonthScrollEnabled: record.MonthScrollEnabled,
		MonthScrollDensity: record.MonthScrollDensity,
	}
}

func displayToRecord(settings DisplaySettings) DisplaySettingsRecord {
	return DisplaySettingsRecord{
		ID:                 singletonRowID,
		TimedEventMinHours: settings.TimedEventMinHours,
		MatchDescription:   settings.MatchDescription,
		WeekViewEnabled:    settings.WeekViewEnabled,
		MonthScrollEnabled: settings.MonthScrollEnabled,
		MonthScrollDensity: settings.MonthScrollDensity,
	}
}

func replaceFilters(db *gorm.DB, filters []Filter) error {
	if err := db.Where("1 = 1").Delete(&FilterRecord{}).Error; err != nil {
		return err
	}
	if len(filters) == 0 {
		return nil
	}
	records := make([]FilterRecord, 0, len(filters))
	for index, filter := range filters {
		records = append(records, FilterRecord{
			FilterID:        filter.ID,
			Pattern:         filter.Pattern,
			CreatedAtMillis: filter.CreatedAt,
			Position:        index,
		})
	}
	return db.Create(&records).Error
}

func replaceCategories(db *gorm.DB, categories []Category) error {
	if err := db.Where("1 = 1").Delete(&CategoryRecord{}).Error; err != nil {
		return err
	}
	if len(categories) == 0 {
		return nil
	}
	records := make([]CategoryRecord, 0, len(categories))
	for index, category := range categories {
		records = append(records, categoryToRecord(category, index))
	}
	return db.Create(&records).Error
}

func replaceDisabledCalendars(db *gorm.DB, calendarIDs []string) error {
	if err := db.Where("1 = 1").Delete(&DisabledCalendarRecord{}).Error; err != nil {
		return err
	}
	if len(calendarIDs) == 0 {
		return nil
	}
	records := make([]DisabledCalendarRecord, 0, len(calendarIDs))
	for index, calendarID := range calendarIDs {
		records = append(records, DisabledCalendarRecord{CalendarID: calendarID, Position: index})
	}
	return db.Create(&records).Error
}

func saveDisplay(db *gorm.DB, settings DisplaySettings) error {
	record := displayToRecord(settings)
	return db.Save(&record).Error
}
