package preferences

import "context"

const (
	opGetDisplay    = "preferences.get_display"
	opSetDisplay    = "preferences.set_display"
	opUpdateDisplay = "preferences.update_display"
)

// DisplayStore persists the display toggles.
type DisplayStore struct {
	base *storeBase
}

// Get returns the stored display settings, or factory defaults when none were saved.
func (s *DisplayStore) Get(ctx context.Context) (DisplaySettings, error) {
	settings, err := loadDisplay(s.base.db.WithContext(ctx))
	if err != nil {
		return DisplaySettings{}, s.base.fail(opGetDisplay, reasonQueryFailed, err)
	}
	return settings, nil
}

// Set stores settings without notifying the sync engine.
func (s *DisplayStore) Set(ctx context.Context, settings DisplaySettings) error {
	if err := saveDisplay(s.base.db.WithContext(ctx), settings); err != nil {
		return s.base.fail(opSetDisplay, reasonWriteFailed, err)
	}
	return nil
}

// Reset restores factory display settings.
func (s *DisplayStore) Reset(ctx context.Context) error {
	return s.Set(ctx, DefaultDisplaySettings())
}

// Update validates and stores settings as a user edit.
func (s *DisplayStore) Update(ctx context.Context, settings DisplaySettings) error {
	if err := settings.Validate(); err != nil {
		return newServiceError(opUpdateDisplay, reasonInvalidInput, err)
	}
	return s.base.userEdit(ctx, func() error {
		return s.Set(ctx, settings)
	})
}
