package preferences

import "slices"

type builtInCategory struct {
	id        string
	label     string
	color     string
	keywords  []string
	matchMode MatchMode
}

var builtInCategories = []builtInCategory{
	{id: "birthdays", label: "Birthdays", color: "#e91e63", keywords: []string{"birthday", "bday"}, matchMode: MatchModeAny},
	{id: "holidays", label: "Holidays", color: "#4caf50", keywords: []string{"holiday", "vacation", "day off"}, matchMode: MatchModeAny},
	{id: "travel", label: "Travel", color: "#2196f3", keywords: []string{"flight", "trip", "hotel", "train"}, matchMode: MatchModeAny},
	{id: "work", label: "Work", color: "#ff9800", keywords: []string{"meeting", "deadline", "review", "standup"}, matchMode: MatchModeAny},
	{id: "health", label: "Health", color: "#9c27b0", keywords: []string{"doctor", "dentist", "gym"}, matchMode: MatchModeAny},
}

// DefaultCategoryIDs lists the built-in category identifiers in display order.
func DefaultCategoryIDs() []string {
	ids := make([]string, 0, len(builtInCategories))
	for _, builtIn := range builtInCategories {
		ids = append(ids, builtIn.id)
	}
	return ids
}

// DefaultCategories returns the built-in categories stamped with the supplied unix millisecond time.
func DefaultCategories(stampMillis int64) []Category {
	categories := make([]Category, 0, len(builtInCategories))
	for _, builtIn := range builtInCategories {
		categories = append(categories, Category{
			ID:        builtIn.id,
			Label:     builtIn.label,
			Color:     builtIn.color,
			Keywords:  append([]string(nil), builtIn.keywords...),
			MatchMode: builtIn.matchMode,
			CreatedAt: stampMillis,
			UpdatedAt: stampMillis,
			IsDefault: true,
		})
	}
	return categories
}

// IsStockCategory reports whether the category is a built-in one left exactly as shipped.
// Timestamps are ignored.
func IsStockCategory(category Category) bool {
	if !category.IsDefault {
		return false
	}
	for _, builtIn := range builtInCategories {
		if builtIn.id != category.ID {
			continue
		}
		return builtIn.label == category.Label &&
			builtIn.color == category.Color &&
			builtIn.matchMode == category.MatchMode &&
			slices.Equal(builtIn.keywords, category.Keywords)
	}
	return false
}
