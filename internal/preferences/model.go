package preferences

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// MatchMode controls how a category's keywords are matched against an event title.
type MatchMode string

const (
	// MatchModeAny matches when at least one keyword is present.
	MatchModeAny MatchMode = "any"
	// MatchModeAll matches only when every keyword is present.
	MatchModeAll MatchMode = "all"
)

const (
	// DefaultTimedEventMinHours hides timed events shorter than three hours.
	DefaultTimedEventMinHours = 3
	// DefaultMonthScrollDensity is the month scroll layout used on a fresh install.
	DefaultMonthScrollDensity = "comfortable"

	maxIdentifierLength = 190
	maxPatternLength    = 200
	maxLabelLength      = 80
)

var (
	// ErrInvalidFilter indicates that a filter pattern is empty or too long.
	ErrInvalidFilter = errors.New("preferences: invalid filter")
	// ErrDuplicateFilter indicates that a filter with the same pattern already exists.
	ErrDuplicateFilter = errors.New("preferences: duplicate filter")
	// ErrInvalidCategory indicates that a category failed validation.
	ErrInvalidCategory = errors.New("preferences: invalid category")
	// ErrInvalidDisplaySettings indicates that display settings failed validation.
	ErrInvalidDisplaySettings = errors.New("preferences: invalid display settings")
	// ErrNotFound indicates that the referenced item does not exist.
	ErrNotFound = errors.New("preferences: not found")

	colorPattern = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)
)

// ParseMatchMode validates raw input and returns a MatchMode.
func ParseMatchMode(rawInput string) (MatchMode, error) {
	switch MatchMode(strings.ToLower(strings.TrimSpace(rawInput))) {
	case MatchModeAny:
		return MatchModeAny, nil
	case MatchModeAll:
		return MatchModeAll, nil
	default:
		return "", fmt.Errorf("%w: unknown match mode %q", ErrInvalidCategory, rawInput)
	}
}

// Filter hides events whose title contains Pattern.
type Filter struct {
	ID        string `json:"id"`
	Pattern   string `json:"pattern"`
	CreatedAt int64  `json:"createdAt"`
}

// Category groups events by keyword and colors them in the year view.
type Category struct {
	ID        string    `json:"id"`
	Label     string    `json:"label"`
	Color     string    `json:"color"`
	Keywords  []string  `json:"keywords"`
	MatchMode MatchMode `json:"matchMode"`
	CreatedAt int64     `json:"createdAt"`
	UpdatedAt int64     `json:"updatedAt"`
	IsDefault bool      `json:"isDefault,omitempty"`
}

// Validate checks the category fields that the renderer depends on.
func (c Category) Validate() error {
	id := strings.TrimSpace(c.ID)
	if id == "" || len(id) > maxIdentifierLength {
		return fmt.Errorf("%w: invalid id", ErrInvalidCategory)
	}
	label := strings.TrimSpace(c.Label)
	if label == "" {
		return fmt.Errorf("%w: empty label", ErrInvalidCategory)
	}
	if len(label) > maxLabelLength {
		return fmt.Errorf("%w: label exceeds %d characters", ErrInvalidCategory, maxLabelLength)
	}
	if !colorPattern.MatchString(c.Color) {
		return fmt.Errorf("%w: color %q is not #rrggbb", ErrInvalidCategory, c.Color)
	}
	if _, err := ParseMatchMode(string(c.MatchMode)); err != nil {
		return err
	}
	return nil
}

// Clone returns a deep copy of the category.
func (c Category) Clone() Category {
	copied := c
	copied.Keywords = append([]string(nil), c.Keywords...)
	return copied
}

// DisplaySettings captures the year view's display toggles.
type DisplaySettings struct {
	TimedEventMinHours int    `json:"timedEventMinHours"`
	MatchDescription   bool   `json:"matchDescription"`
	WeekViewEnabled    bool   `json:"weekViewEnabled"`
	MonthScrollEnabled bool   `json:"monthScrollEnabled"`
	MonthScrollDensity string `json:"monthScrollDensity"`
}

// DefaultDisplaySettings returns the factory display configuration.
func DefaultDisplaySettings() DisplaySettings {
	return DisplaySettings{
		TimedEventMinHours: DefaultTimedEventMinHours,
		MonthScrollDensity: DefaultMonthScrollDensity,
	}
}

// Validate rejects values the renderer cannot honor.
func (d DisplaySettings) Validate() error {
	if d.TimedEventMinHours < 0 || d.TimedEventMinHours > 24 {
		return fmt.Errorf("%w: timedEventMinHours %d outside 0..24", ErrInvalidDisplaySettings, d.TimedEventMinHours)
	}
	switch d.MonthScrollDensity {
	case "compact", "comfortable", "spacious":
	default:
		return fmt.Errorf("%w: unknown month scroll density %q", ErrInvalidDisplaySettings, d.MonthScrollDensity)
	}
	return nil
}

// SyncSettings is local-only sync bookkeeping. It is never transmitted.
type SyncSettings struct {
	Enabled bool
	// LastSyncedAt is unix milliseconds of the last successful load or write, zero when never synced.
	LastSyncedAt int64
	// LocalChangedAt is unix milliseconds of the last user mutation, zero when untouched.
	LocalChangedAt int64
	DeviceID       string
}

// HasSynced reports whether this device ever completed a load or write.
func (s SyncSettings) HasSynced() bool {
	return s.LastSyncedAt > 0
}

func normalizePattern(rawInput string) (string, error) {
	trimmed := strings.TrimSpace(rawInput)
	if trimmed == "" {
		return "", fmt.Errorf("%w: empty pattern", ErrInvalidFilter)
	}
	if len(trimmed) > maxPatternLength {
		return "", fmt.Errorf("%w: pattern exceeds %d characters", ErrInvalidFilter, maxPatternLength)
	}
	return trimmed, nil
}

func normalizeKeywords(keywords []string) []string {
	normalized := make([]string, 0, len(keywords))
	seen := make(map[string]struct{}, len(keywords))
	for _, keyword := range keywords {
		trimmed := strings.TrimSpace(keyword)
		if trimmed == "" {
			continue
		}
		key := strings.ToLower(trimmed)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		normalized = append(normalized, trimmed)
	}
	return normalized
}
