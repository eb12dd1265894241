package syncdoc

import (
	"time"

	"github.com/MarcoPoloResearchLab/yearsync/internal/preferences"
)

// Strategy names the conflict rule applied to one document field.
type Strategy string

const (
	// StrategyListLWW keeps the whole value from the side with the newer document updatedAt.
	StrategyListLWW Strategy = "list-lww"
	// StrategyItemLWW merges list items by id, keeping the item with the newer item updatedAt.
	StrategyItemLWW Strategy = "item-lww"
)

// FieldStrategies documents which rule each synchronized field follows.
var FieldStrategies = map[string]Strategy{
	"filters":            StrategyListLWW,
	"disabledCalendars":  StrategyListLWW,
	"timedEventMinHours": StrategyListLWW,
	"matchDescription":   StrategyListLWW,
	"weekViewEnabled":    StrategyListLWW,
	"monthScrollEnabled": StrategyListLWW,
	"monthScrollDensity": StrategyListLWW,
	"categories":         StrategyItemLWW,
}

// Merge combines a local snapshot with a remote document.
//
// An empty local side adopts the remote document verbatim. Otherwise whole-list fields come
// from whichever side has the newer document updatedAt, with ties going to local, and
// categories merge per id by their own updatedAt. Categories have no tombstones: one that is
// missing on a side cannot be told apart from one that side never saw, so it survives.
// The result is stamped with the local device id and now.
func Merge(local, remote DocumentV2, now time.Time) DocumentV2 {
	stamp := now.UTC().UnixMilli()

	if IsEmpty(local) {
		adopted := remote.Clone()
		adopted.Version = VersionCurrent
		adopted.DeviceID = local.DeviceID
		adopted.UpdatedAt = stamp
		return adopted
	}

	listWinner := local
	if remote.UpdatedAt > local.UpdatedAt {
		listWinner = remote
	}

	merged := listWinner.Clone()
	merged.Version = VersionCurrent
	merged.Categories = mergeCategoriesByItem(local.Categories, remote.Categories)
	merged.DeviceID = local.DeviceID
	merged.UpdatedAt = stamp
	return merged
}

// mergeCategoriesByItem keeps local order and appends remote-only categories in remote order.
// On equal item timestamps the local copy wins.
func mergeCategoriesByItem(local, remote []preferences.Category) []preferences.Category {
	remoteByID := make(map[string]preferences.Category, len(remote))
	for _, category := range remote {
		remoteByID[category.ID] = category
	}

	merged := make([]preferences.Category, 0, len(local)+len(remote))
	seen := make(map[string]struct{}, len(local)+len(remote))
	for _, localCategory := range local {
		if _, ok := seen[localCategory.ID]; ok {
			continue
		}
		seen[localCategory.ID] = struct{}{}
		chosen := localCategory
		if remoteCategory, ok := remoteByID[localCategory.ID]; ok && remoteCategory.UpdatedAt > localCategory.UpdatedAt {
			chosen = remoteCategory
		}
		merged = append(merged, chosen.Clone())
	}
	for _, remoteCategory := range remote {
		if _, ok := seen[remoteCategory.ID]; ok {
			continue
		}
		seen[remoteCategory.ID] = struct{}{}
		merged = append(merged, remoteCategory.Clone())
	}
	return merged
}
