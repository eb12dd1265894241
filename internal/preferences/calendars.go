package preferences

import (
	"context"
	"fmt"
	"slices"
	"strings"
)

const (
	opGetCalendars    = "preferences.get_disabled_calendars"
	opSetCalendars    = "preferences.set_disabled_calendars"
	opToggleCalendar  = "preferences.toggle_calendar"
	opUpdateCalendars = "preferences.update_disabled_calendars"
)

// CalendarStore persists the ids of calendars hidden from the year view.
// The list is a whole value; there is no per-item history.
type CalendarStore struct {
	base *storeBase
}

// Get returns the disabled calendar ids.
func (s *CalendarStore) Get(ctx context.Context) ([]string, error) {
	calendarIDs, err := loadDisabledCalendars(s.base.db.WithContext(ctx))
	if err != nil {
		return nil, s.base.fail(opGetCalendars, reasonQueryFailed, err)
	}
	return calendarIDs, nil
}

// Set replaces the disabled calendar ids without notifying the sync engine.
func (s *CalendarStore) Set(ctx context.Context, calendarIDs []string) error {
	if err := replaceDisabledCalendars(s.base.db.WithContext(ctx), dedupeStrings(calendarIDs)); err != nil {
		return s.base.fail(opSetCalendars, reasonWriteFailed, err)
	}
	return nil
}

// Reset enables every calendar.
func (s *CalendarStore) Reset(ctx context.Context) error {
	return s.Set(ctx, nil)
}

// SetCalendarEnabled shows or hides a single calendar.
func (s *CalendarStore) SetCalendarEnabled(ctx context.Context, calendarID string, enabled bool) error {
	calendarID = strings.TrimSpace(calendarID)
	if calendarID == "" {
		return newServiceError(opToggleCalendar, reasonInvalidInput, fmt.Errorf("calendar id is required"))
	}
	return s.base.userEdit(ctx, func() error {
		disabled, err := s.Get(ctx)
		if err != nil {
			return err
		}
		index := slices.Index(disabled, calendarID)
		switch {
		case enabled && index >= 0:
			disabled = slices.Delete(disabled, index, index+1)
		case !enabled && index < 0:
			disabled = append(disabled, calendarID)
		default:
			return errUnchanged
		}
		return s.Set(ctx, disabled)
	})
}

// SetDisabledCalendars replaces the whole list as a user edit.
func (s *CalendarStore) SetDisabledCalendars(ctx context.Context, calendarIDs []string) error {
	trimmed := make([]string, 0, len(calendarIDs))
	for _, calendarID := range calendarIDs {
		trimmed = append(trimmed, strings.TrimSpace(calendarID))
	}
	return s.base.userEdit(ctx, func() error {
		if err := s.Set(ctx, trimmed); err != nil {
			return newServiceError(opUpdateCalendars, reasonWriteFailed, err)
		}
		return nil
	})
}
