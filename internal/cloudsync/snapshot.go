package cloudsync

import (
	"context"
	"time"

	"github.com/MarcoPoloResearchLab/yearsync/internal/preferences"
	"github.com/MarcoPoloResearchLab/yearsync/internal/syncdoc"
)

// SnapshotBuilder converts between the local preference stores and the synchronized document.
type SnapshotBuilder struct {
	stores *preferences.Stores
	clock  func() time.Time
}

// Capture is the local side of a merge: the document stamped with the last local edit,
// the sync settings, and the store revision both were read at.
type Capture struct {
	Document syncdoc.DocumentV2
	Settings preferences.SyncSettings
	Revision uint64
}

func NewSnapshotBuilder(stores *preferences.Stores, clock func() time.Time) *SnapshotBuilder {
	if clock == nil {
		clock = time.Now
	}
	return &SnapshotBuilder{stores: stores, clock: clock}
}

// Build reads every synchronized store and stamps the document with now.
func (b *SnapshotBuilder) Build(ctx context.Context) (syncdoc.DocumentV2, error) {
	snapshot, err := b.stores.Load(ctx)
	if err != nil {
		return syncdoc.DocumentV2{}, err
	}
	settings, err := b.stores.Sync.Get(ctx)
	if err != nil {
		return syncdoc.DocumentV2{}, err
	}
	return syncdoc.FromSnapshot(snapshot, settings.DeviceID, b.clock().UTC().UnixMilli()), nil
}

// Capture reads the stores for a merge. UpdatedAt is the last local mutation, so that
// document-level last-write-wins compares edit times rather than the time of the merge.
func (b *SnapshotBuilder) Capture(ctx context.Context) (Capture, error) {
	snapshot, settings, revision, err := b.stores.Checkpoint(ctx)
	if err != nil {
		return Capture{}, err
	}
	return Capture{
		Document: syncdoc.FromSnapshot(snapshot, settings.DeviceID, settings.LocalChangedAt),
		Settings: settings,
		Revision: revision,
	}, nil
}

// ApplyIfUnchanged overwrites the synchronized stores with the document contents unless a
// user edit was committed after the capture at revision. That case returns an error matching
// preferences.ErrConcurrentEdit.
func (b *SnapshotBuilder) ApplyIfUnchanged(ctx context.Context, doc syncdoc.DocumentV2, revision uint64) error {
	return b.stores.ReplaceIfUnchanged(ctx, doc.Snapshot(), revision)
}
