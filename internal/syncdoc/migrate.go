package syncdoc

import (
	"fmt"
	"slices"
	"time"

	"github.com/MarcoPoloResearchLab/yearsync/internal/preferences"
)

// Migrate narrows any document to the current shape. A DocumentV2 is returned unchanged.
// Built-in categories carried over from a legacy document are stamped with now, since the
// legacy shape never tracked them per item. A nil or foreign document is ErrInvalidDocument.
func Migrate(doc Document, now time.Time) (DocumentV2, error) {
	switch typed := doc.(type) {
	case DocumentV2:
		return typed, nil
	case *DocumentV2:
		if typed != nil {
			return *typed, nil
		}
	case DocumentV1:
		return migrateV1(typed, now), nil
	case *DocumentV1:
		if typed != nil {
			return migrateV1(*typed, now), nil
		}
	}
	return DocumentV2{}, fmt.Errorf("%w: no document of a known version (%T)", ErrInvalidDocument, doc)
}

func migrateV1(legacy DocumentV1, now time.Time) DocumentV2 {
	stamp := now.UTC().UnixMilli()

	categories := make([]preferences.Category, 0, len(preferences.DefaultCategoryIDs())+len(legacy.CustomCategories))
	seen := make(map[string]struct{})
	for _, category := range preferences.DefaultCategories(stamp) {
		if slices.Contains(legacy.DisabledBuiltInCategories, category.ID) {
			continue
		}
		seen[category.ID] = struct{}{}
		categories = append(categories, category)
	}
	for _, custom := range legacy.CustomCategories {
		if _, ok := seen[custom.ID]; ok {
			continue
		}
		seen[custom.ID] = struct{}{}
		migrated := custom.Clone()
		migrated.IsDefault = false
		categories = append(categories, migrated)
	}

	return DocumentV2{
		Version:            VersionCurrent,
		UpdatedAt:          legacy.UpdatedAt,
		DeviceID:           legacy.DeviceID,
		Filters:            append([]preferences.Filter{}, legacy.Filters...),
		DisabledCalendars:  append([]string{}, legacy.DisabledCalendars...),
		Categories:         categories,
		TimedEventMinHours: timedEventMinHoursFromLegacy(legacy.ShowTimedEvents),
		MatchDescription:   clonePointer(legacy.MatchDescription),
		WeekViewEnabled:    clonePointer(legacy.WeekViewEnabled),
		MonthScrollEnabled: clonePointer(legacy.MonthScrollEnabled),
		MonthScrollDensity: clonePointer(legacy.MonthScrollDensity),
	}
}

// timedEventMinHoursFromLegacy maps showTimedEvents: true shows every timed event (0 hours),
// false restores the default three hour threshold.
func timedEventMinHoursFromLegacy(showTimedEvents *bool) *int {
	if showTimedEvents == nil {
		return nil
	}
	if *showTimedEvents {
		return pointer(legacyShowAllTimedEventsHours)
	}
	return pointer(preferences.DefaultTimedEventMinHours)
}
