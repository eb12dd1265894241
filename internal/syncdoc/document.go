// Package syncdoc defines the synchronized configuration document, its two schema
// versions, and the migration and merge rules applied to it.
package syncdoc

import (
	"github.com/MarcoPoloResearchLab/yearsync/internal/preferences"
)

const (
	// VersionLegacy identifies documents written before categories were unified.
	VersionLegacy = 1
	// VersionCurrent identifies the shape every merge and apply operates on.
	VersionCurrent = 2

	// legacyShowAllTimedEventsHours is what showTimedEvents=true means in the current schema.
	legacyShowAllTimedEventsHours = 0
)

// Document is one of DocumentV1 or DocumentV2. Migrate is the only way to narrow it.
type Document interface {
	SchemaVersion() int
	isDocument()
}

// DocumentV1 is the legacy document shape.
type DocumentV1 struct {
	Version                   int                    `json:"version"`
	UpdatedAt                 int64                  `json:"updatedAt"`
	DeviceID                  string                 `json:"deviceId"`
	Filters                   []preferences.Filter   `json:"filters"`
	DisabledCalendars         []string               `json:"disabledCalendars"`
	DisabledBuiltInCategories []string               `json:"disabledBuiltInCategories"`
	CustomCategories          []preferences.Category `json:"customCategories"`
	ShowTimedEvents           *bool                  `json:"showTimedEvents,omitempty"`
	MatchDescription          *bool                  `json:"matchDescription,omitempty"`
	WeekViewEnabled           *bool                  `json:"weekViewEnabled,omitempty"`
	MonthScrollEnabled        *bool                  `json:"monthScrollEnabled,omitempty"`
	MonthScrollDensity        *string                `json:"monthScrollDensity,omitempty"`
}

// SchemaVersion reports 1.
func (DocumentV1) SchemaVersion() int { return VersionLegacy }

func (DocumentV1) isDocument() {}

// DocumentV2 is the current document shape.
type DocumentV2 struct {
	Version            int                    `json:"version"`
	UpdatedAt          int64                  `json:"updatedAt"`
	DeviceID           string                 `json:"deviceId"`
	Filters            []preferences.Filter   `json:"filters"`
	DisabledCalendars  []string               `json:"disabledCalendars"`
	Categories         []preferences.Category `json:"categories"`
	TimedEventMinHours *int                   `json:"timedEventMinHours,omitempty"`
	MatchDescription   *bool                  `json:"matchDescription,omitempty"`
	WeekViewEnabled    *bool                  `json:"weekViewEnabled,omitempty"`
	MonthScrollEnabled *bool                  `json:"monthScrollEnabled,omitempty"`
	MonthScrollDensity *string                `json:"monthScrollDensity,omitempty"`
}

// SchemaVersion reports 2.
func (DocumentV2) SchemaVersion() int { return VersionCurrent }

func (DocumentV2) isDocument() {}

// FromSnapshot builds a current document from local preferences.
func FromSnapshot(snapshot preferences.Snapshot, deviceID string, updatedAt int64) DocumentV2 {
	display := snapshot.Display
	categories := make([]preferences.Category, 0, len(snapshot.Categories))
	for _, category := range snapshot.Categories {
		categories = append(categories, category.Clone())
	}
	return DocumentV2{
		Version:            VersionCurrent,
		UpdatedAt:          updatedAt,
		DeviceID:           deviceID,
		Filters:            append([]preferences.Filter{}, snapshot.Filters...),
		DisabledCalendars:  append([]string{}, snapshot.DisabledCalendars...),
		Categories:         categories,
		TimedEventMinHours: pointer(display.TimedEventMinHours),
		MatchDescription:   pointer(display.MatchDescription),
		WeekViewEnabled:    pointer(display.WeekViewEnabled),
		MonthScrollEnabled: pointer(display.MonthScrollEnabled),
		MonthScrollDensity: pointer(display.MonthScrollDensity),
	}
}

// Snapshot converts the document into local preferences. Absent display fields fall back to defaults.
func (d DocumentV2) Snapshot() preferences.Snapshot {
	display := preferences.DefaultDisplaySettings()
	if d.TimedEventMinHours != nil {
		display.TimedEventMinHours = *d.TimedEventMinHours
	}
	if d.MatchDescription != nil {
		display.MatchDescription = *d.MatchDescription
	}
	if d.WeekViewEnabled != nil {
		display.WeekViewEnabled = *d.WeekViewEnabled
	}
	if d.MonthScrollEnabled != nil {
		display.MonthScrollEnabled = *d.MonthScrollEnabled
	}
	if d.MonthScrollDensity != nil {
		display.MonthScrollDensity = *d.MonthScrollDensity
	}
	categories := make([]preferences.Category, 0, len(d.Categories))
	for _, category := range d.Categories {
		categories = append(categories, category.Clone())
	}
	return preferences.Snapshot{
		Filters:           append([]preferences.Filter{}, d.Filters...),
		Categories:        categories,
		DisabledCalendars: append([]string{}, d.DisabledCalendars...),
		Display:           display,
	}
}

// Clone returns a deep copy of the document.
func (d DocumentV2) Clone() DocumentV2 {
	copied := d
	copied.Filters = append([]preferences.Filter{}, d.Filters...)
	copied.DisabledCalendars = append([]string{}, d.DisabledCalendars...)
	copied.Categories = make([]preferences.Category, 0, len(d.Categories))
	for _, category := range d.Categories {
		copied.Categories = append(copied.Categories, category.Clone())
	}
	copied.TimedEventMinHours = clonePointer(d.TimedEventMinHours)
	copied.MatchDescription = clonePointer(d.MatchDescription)
	copied.WeekViewEnabled = clonePointer(d.WeekViewEnabled)
	copied.MonthScrollEnabled = clonePointer(d.MonthScrollEnabled)
	copied.MonthScrollDensity = clonePointer(d.MonthScrollDensity)
	return copied
}

// IsEmpty reports whether the document carries no user customization: no filters, no disabled
// calendars, and exactly the stock built-in categories.
func IsEmpty(d DocumentV2) bool {
	if len(d.Filters) > 0 || len(d.DisabledCalendars) > 0 {
		return false
	}
	defaultIDs := preferences.DefaultCategoryIDs()
	if len(d.Categories) != len(defaultIDs) {
		return false
	}
	seen := make(map[string]struct{}, len(d.Categories))
	for _, category := range d.Categories {
		if !preferences.IsStockCategory(category) {
			return false
		}
		seen[category.ID] = struct{}{}
	}
	return len(seen) == len(defaultIDs)
}

func pointer[T any](value T) *T {
	return &value
}

func clonePointer[T any](value *T) *T {
	if value == nil {
		return nil
	}
	copied := *value
	return &copied
}
