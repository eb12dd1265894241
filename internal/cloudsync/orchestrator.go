// Package cloudsync keeps the local preference stores and the remote document in step.
package cloudsync

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/MarcoPoloResearchLab/yearsync/internal/preferences"
	"github.com/MarcoPoloResearchLab/yearsync/internal/remote"
	"github.com/MarcoPoloResearchLab/yearsync/internal/syncdoc"
)

// DefaultDebounce is the quiet window that coalesces bursts of local edits into one write.
const DefaultDebounce = 2 * time.Second

// maxReconcileAttempts bounds how often a merge is redone when user edits keep landing
// between the local capture and the apply.
const maxReconcileAttempts = 3

const (
	opInit          = "cloudsync.init"
	opLoad          = "cloudsync.load"
	opWrite         = "cloudsync.write"
	opSyncNow       = "cloudsync.sync_now"
	opDelete        = "cloudsync.delete_cloud_data"
	opToggle        = "cloudsync.toggle"
	reasonFind      = "remote_find_failed"
	reasonRead      = "remote_read_failed"
	reasonWrite     = "remote_write_failed"
	reasonRemove    = "remote_delete_failed"
	reasonSnapshot  = "snapshot_failed"
	reasonApply     = "apply_failed"
	reasonSettings  = "settings_failed"
	reasonOffline   = "offline"
	reasonNoConsent = "needs_consent"
	reasonBusy      = "busy"
)

var (
	errMissingStores       = errors.New("preference stores are required")
	errMissingRemote       = errors.New("remote client is required")
	errMissingPermission   = errors.New("permission source is required")
	errMissingConnectivity = errors.New("connectivity monitor is required")
	errOffline             = errors.New("cannot reach cloud storage while offline")
	errNeedsConsent        = errors.New("cloud storage permission has not been granted")
	errBusy                = errors.New("a sync operation is already running")
)

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

// PermissionSource reports whether the remote-storage scope is granted.
type PermissionSource interface {
	HasRemoteStoragePermission() bool
}

// PermissionFunc adapts a plain function to PermissionSource.
type PermissionFunc func() bool

func (f PermissionFunc) HasRemoteStoragePermission() bool {
	return f()
}

// Config wires the orchestrator to its collaborators.
type Config struct {
	Stores       *preferences.Stores
	Remote       remote.Client
	Permission   PermissionSource
	Connectivity *ConnectivityMonitor
	Debounce     time.Duration
	Clock        func() time.Time
	Logger       *zap.Logger
}

// Orchestrator owns the sync state machine: read-only load, debounced whole-document
// writes, a manual bidirectional merge, and delete-and-reset. Public operations never
// return errors; they resolve to an Outcome and record the last error for the status.
type Orchestrator struct {
	stores       *preferences.Stores
	remote       remote.Client
	permission   PermissionSource
	connectivity *ConnectivityMonitor
	builder      *SnapshotBuilder
	debounce     time.Duration
	clock        func() time.Time
	logger       *zap.Logger

	mu                sync.Mutex
	enabled           bool
	isSyncing         bool
	isWriting         bool
	needsAnotherWrite bool
	hasPendingChanges bool
	lastError         string
	lastSyncedAt      int64
	deviceID          string
	fileID            string
	timer             *time.Timer
	timerGeneration   uint64
	initialized       bool
	closed            bool
	baseCtx           context.Context
	cancel            context.CancelFunc
	unsubscribe       func()
	wg                sync.WaitGroup

	listenersMu    sync.RWMutex
	listeners      map[int64]func(State)
	nextListenerID int64
}

// NewOrchestrator validates the configuration. Call Init before use.
func NewOrchestrator(cfg Config) (*Orchestrator, error) {
	if cfg.Stores == nil {
		return nil, &ServiceError{code: opInit + ".missing_stores", err: errMissingStores}
	}
	if cfg.Remote == nil {
		return nil, &ServiceError{code: opInit + ".missing_remote", err: errMissingRemote}
	}
	if cfg.Permission == nil {
		return nil, &ServiceError{code: opInit + ".missing_permission", err: errMissingPermission}
	}
	if cfg.Connectivity == nil {
		return nil, &ServiceError{code: opInit + ".missing_connectivity", err: errMissingConnectivity}
	}
	debounce := cfg.Debounce
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		stores:       cfg.Stores,
		remote:       cfg.Remote,
		permission:   cfg.Permission,
		connectivity: cfg.Connectivity,
		builder:      NewSnapshotBuilder(cfg.Stores, clock),
		debounce:     debounce,
		clock:        clock,
		logger:       logger,
		baseCtx:      context.Background(),
		listeners:    make(map[int64]func(State)),
	}, nil
}

// Init loads the local sync settings, registers for local mutations and connectivity
// changes, and binds background work to ctx.
func (o *Orchestrator) Init(ctx context.Context) error {
	settings, err := o.stores.Sync.Get(ctx)
	if err != nil {
		o.logError(opInit, reasonSettings, err)
		return &ServiceError{code: opInit + "." + reasonSettings, err: err}
	}

	o.mu.Lock()
	if o.initialized {
		o.mu.Unlock()
		return nil
	}
	o.initialized = true
	o.enabled = settings.Enabled
	o.deviceID = settings.DeviceID
	o.lastSyncedAt = settings.LastSyncedAt
	o.baseCtx, o.cancel = context.WithCancel(ctx)
	o.unsubscribe = o.connectivity.Subscribe(o.handleConnectivity)
	o.mu.Unlock()

	o.stores.SetChangeNotifier(o)
	o.logger.Info("cloud sync initialized",
		zap.Bool("enabled", settings.Enabled),
		zap.String("device_id", settings.DeviceID),
	)
	o.notify()
	return nil
}

// Teardown removes listeners, clears the pending debounce timer and waits for background work.
func (o *Orchestrator) Teardown() {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return
	}
	o.closed = true
	o.stopTimerLocked()
	unsubscribe := o.unsubscribe
	o.unsubscribe = nil
	cancel := o.cancel
	o.mu.Unlock()

	o.stores.SetChangeNotifier(nil)
	if unsubscribe != nil {
		unsubscribe()
	}
	if cancel != nil {
		cancel()
	}
	o.wg.Wait()
}

// State reports the projected status and bookkeeping.
func (o *Orchestrator) State() State {
	permitted := o.permission.HasRemoteStoragePermission()
	online := o.connectivity.Online()

	o.mu.Lock()
	defer o.mu.Unlock()
	return State{
		Status: projectStatus(statusInputs{
			enabled:   o.enabled,
			permitted: permitted,
			busy:      o.isSyncing || o.isWriting,
			online:    online,
			lastError: o.lastError,
		}),
		LastError:         o.lastError,
		LastSyncedAt:      o.lastSyncedAt,
		HasPendingChanges: o.hasPendingChanges,
		DeviceID:          o.deviceID,
	}
}

// OnStatusChange registers a listener that receives the state after every transition.
func (o *Orchestrator) OnStatusChange(listener func(State)) func() {
	o.listenersMu.Lock()
	o.nextListenerID++
	id := o.nextListenerID
	o.listeners[id] = listener
	o.listenersMu.Unlock()

	return func() {
		o.listenersMu.Lock()
		delete(o.listeners, id)
		o.listenersMu.Unlock()
	}
}

// LoadFromCloud restores local preferences from the remote document. It never writes back.
func (o *Orchestrator) LoadFromCloud(ctx context.Context) Outcome {
	o.mu.Lock()
	if reason, ok := o.readGuardLocked(); !ok {
		o.mu.Unlock()
		o.logger.Debug("cloud load skipped", zap.String("reason", string(reason)))
		return skipped(reason)
	}
	o.isSyncing = true
	o.mu.Unlock()
	o.notify()

	outcome := o.load(ctx)
	o.finishSyncing(outcome)
	return outcome
}

// ScheduleSyncToCloud (re)starts the debounce window after a local mutation.
// The stores have already recorded the mutation time.
func (o *Orchestrator) ScheduleSyncToCloud() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed || !o.enabled {
		return
	}
	o.armTimerLocked()
}

// SyncNow is the manual retry action: a full read, merge, apply and write.
func (o *Orchestrator) SyncNow(ctx context.Context) Outcome {
	o.mu.Lock()
	if reason, ok := o.readGuardLocked(); !ok {
		o.mu.Unlock()
		return skipped(reason)
	}
	if o.isWriting {
		o.mu.Unlock()
		return skipped(ReasonBusy)
	}
	o.isSyncing = true
	if o.timer != nil {
		o.hasPendingChanges = true
	}
	o.stopTimerLocked()
	o.mu.Unlock()
	o.notify()

	outcome := o.syncNow(ctx)
	o.finishSyncing(outcome)
	return outcome
}

// EnableSync clears the opt-out flag and restores from the remote document.
func (o *Orchestrator) EnableSync(ctx context.Context) Outcome {
	if err := o.stores.Sync.SetEnabled(ctx, true); err != nil {
		return o.failLocal(opToggle, reasonSettings, err)
	}
	o.mu.Lock()
	o.enabled = true
	o.mu.Unlock()
	o.logger.Info("cloud sync enabled")
	o.notify()
	return o.LoadFromCloud(ctx)
}

// DisableSync sets the opt-out flag. Local preferences are kept and no more writes are scheduled.
func (o *Orchestrator) DisableSync(ctx context.Context) Outcome {
	if err := o.stores.Sync.SetEnabled(ctx, false); err != nil {
		return o.failLocal(opToggle, reasonSettings, err)
	}
	o.mu.Lock()
	o.enabled = false
	o.stopTimerLocked()
	o.needsAnotherWrite = false
	o.lastError = ""
	o.mu.Unlock()
	o.logger.Info("cloud sync disabled")
	o.notify()
	return completed()
}

// DeleteCloudData removes the remote document and resets local preferences to factory defaults.
// It fails closed when offline or without permission.
func (o *Orchestrator) DeleteCloudData(ctx context.Context) Outcome {
	permitted := o.permission.HasRemoteStoragePermission()
	online := o.connectivity.Online()

	o.mu.Lock()
	switch {
	case o.closed:
		o.mu.Unlock()
		return skipped(ReasonStopped)
	case !online:
		o.mu.Unlock()
		return failed(ReasonOffline, opDelete+"."+reasonOffline, errOffline.Error())
	case !permitted:
		o.mu.Unlock()
		return failed(ReasonNeedsConsent, opDelete+"."+reasonNoConsent, errNeedsConsent.Error())
	case o.isSyncing || o.isWriting:
		o.mu.Unlock()
		return failed(ReasonBusy, opDelete+"."+reasonBusy, errBusy.Error())
	}
	o.isSyncing = true
	o.stopTimerLocked()
	o.needsAnotherWrite = false
	o.hasPendingChanges = false
	o.mu.Unlock()
	o.notify()

	outcome := o.deleteCloudData(ctx)
	o.finishSyncing(outcome)
	return outcome
}

// PermissionChanged re-evaluates deferred work after the grant is set or revoked.
func (o *Orchestrator) PermissionChanged() {
	o.resumePending()
	o.notify()
}

func (o *Orchestrator) handleConnectivity(online bool) {
	o.logger.Info("connectivity changed", zap.Bool("online", online))
	if online {
		o.resumePending()
	}
	o.notify()
}

func (o *Orchestrator) resumePending() {
	if !o.connectivity.Online() || !o.permission.HasRemoteStoragePermission() {
		return
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed || !o.enabled || !o.hasPendingChanges {
		return
	}
	o.armTimerLocked()
}

// readGuardLocked decides whether a read-path operation may start.
func (o *Orchestrator) readGuardLocked() (Reason, bool) {
	switch {
	case o.closed:
		return ReasonStopped, false
	case o.isSyncing:
		return ReasonAlreadySyncing, false
	case !o.enabled:
		return ReasonDisabled, false
	case !o.permission.HasRemoteStoragePermission():
		return ReasonNeedsConsent, false
	case !o.connectivity.Online():
		return ReasonOffline, false
	default:
		return "", true
	}
}

func (o *Orchestrator) finishSyncing(outcome Outcome) {
	o.mu.Lock()
	o.isSyncing = false
	o.recordOutcomeLocked(outcome)
	resume := o.hasPendingChanges
	o.mu.Unlock()
	if resume {
		o.resumePending()
	}
	o.notify()
}

func (o *Orchestrator) recordOutcomeLocked(outcome Outcome) {
	switch outcome.Status {
	case OutcomeCompleted:
		o.lastError = ""
	case OutcomeFailed:
		o.lastError = outcome.Error
	}
}

// load replaces local preferences with the remote document. Local edits that have not
// reached the cloud yet are merged in instead of overwritten, and a write stays pending.
func (o *Orchestrator) load(ctx context.Context) Outcome {
	fileID, found, err := o.remote.Find(ctx)
	if err != nil {
		return o.failRemote(opLoad, reasonFind, err)
	}
	if !found {
		o.setFileID("")
		o.logger.Info("no remote document yet, keeping local preferences")
		return completed()
	}

	doc, err := o.remote.Read(ctx, fileID)
	if err != nil {
		return o.failRemote(opLoad, reasonRead, err)
	}
	migrated, err := o.migrateRemote(doc)
	if err != nil {
		return o.failRemote(opLoad, reasonRead, err)
	}
	applied, outcome, ok := o.reconcile(ctx, opLoad, migrated, false)
	if !ok {
		return outcome
	}
	o.setFileID(fileID)
	if applied.merged {
		o.mu.Lock()
		o.hasPendingChanges = true
		o.mu.Unlock()
	}
	if outcome, ok := o.markSynced(ctx, opLoad); !ok {
		return outcome
	}
	o.logger.Info("loaded preferences from cloud",
		zap.Int("schema_version", doc.SchemaVersion()),
		zap.String("remote_device_id", migrated.DeviceID),
		zap.Bool("merged_local_edits", applied.merged),
	)
	return completed()
}

func (o *Orchestrator) syncNow(ctx context.Context) Outcome {
	fileID, found, err := o.remote.Find(ctx)
	if err != nil {
		return o.failRemote(opSyncNow, reasonFind, err)
	}

	var applied reconciled
	if found {
		doc, err := o.remote.Read(ctx, fileID)
		if err != nil {
			return o.failRemote(opSyncNow, reasonRead, err)
		}
		migrated, err := o.migrateRemote(doc)
		if err != nil {
			return o.failRemote(opSyncNow, reasonRead, err)
		}
		var outcome Outcome
		var ok bool
		if applied, outcome, ok = o.reconcile(ctx, opSyncNow, migrated, true); !ok {
			return outcome
		}
	} else {
		fileID = ""
		capture, err := o.builder.Capture(ctx)
		if err != nil {
			return o.failLocal(opSyncNow, reasonSnapshot, err)
		}
		applied = reconciled{document: capture.Document, revision: capture.Revision}
		applied.document.UpdatedAt = o.clock().UTC().UnixMilli()
	}

	storedID, err := o.writeDocument(ctx, fileID, applied.document)
	if err != nil {
		return o.failRemote(opSyncNow, reasonWrite, err)
	}
	o.setFileID(storedID)
	// Edits committed after the capture keep the pending flag for the next write.
	if o.stores.Revision() == applied.revision {
		o.mu.Lock()
		o.hasPendingChanges = false
		o.mu.Unlock()
	}
	if outcome, ok := o.markSynced(ctx, opSyncNow); !ok {
		return outcome
	}
	o.logger.Info("merged preferences with cloud", zap.Bool("remote_found", found))
	return completed()
}

// reconciled is the document now held by the local stores and the revision it was applied at.
type reconciled struct {
	document syncdoc.DocumentV2
	revision uint64
	merged   bool
}

// reconcile brings remoteDoc into the local stores. Unless alwaysMerge is set, the remote
// document is applied as is when the local side has nothing unsynced. The apply is refused
// when a user edit was committed after the local capture; the merge is then redone from a
// fresh capture, so the edit is never overwritten.
func (o *Orchestrator) reconcile(ctx context.Context, operation string, remoteDoc syncdoc.DocumentV2, alwaysMerge bool) (reconciled, Outcome, bool) {
	for attempt := 1; ; attempt++ {
		capture, err := o.builder.Capture(ctx)
		if err != nil {
			return reconciled{}, o.failLocal(operation, reasonSnapshot, err), false
		}
		merge := alwaysMerge || o.hasUnsyncedEdits(capture.Settings)
		next := remoteDoc
		if merge {
			next = syncdoc.Merge(capture.Document, remoteDoc, o.clock())
		}

		err = o.builder.ApplyIfUnchanged(ctx, next, capture.Revision)
		if err == nil {
			return reconciled{document: next, revision: capture.Revision, merged: merge}, Outcome{}, true
		}
		if !errors.Is(err, preferences.ErrConcurrentEdit) || attempt == maxReconcileAttempts {
			return reconciled{}, o.failLocal(operation, reasonApply, err), false
		}
		o.logger.Debug("local edit landed during cloud round trip, merging again",
			zap.String("operation", operation),
			zap.Int("attempt", attempt),
		)
	}
}

// hasUnsyncedEdits reports whether local preferences hold changes the cloud has not seen.
func (o *Orchestrator) hasUnsyncedEdits(settings preferences.SyncSettings) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.timer != nil || o.hasPendingChanges || o.isWriting || o.needsAnotherWrite {
		return true
	}
	return settings.LocalChangedAt > settings.LastSyncedAt
}

// migrateRemote narrows a remote document, treating an empty read as an invalid document.
func (o *Orchestrator) migrateRemote(doc syncdoc.Document) (syncdoc.DocumentV2, error) {
	migrated, err := syncdoc.Migrate(doc, o.clock())
	if err != nil {
		return syncdoc.DocumentV2{}, remote.NewError(remote.CodeInvalidDocument, err.Error())
	}
	return migrated, nil
}

func (o *Orchestrator) deleteCloudData(ctx context.Context) Outcome {
	fileID, found, err := o.remote.Find(ctx)
	if err != nil {
		return o.failRemote(opDelete, reasonFind, err)
	}
	if found {
		if err := o.remote.Delete(ctx, fileID); err != nil {
			return o.failRemote(opDelete, reasonRemove, err)
		}
	}
	o.setFileID("")
	if err := o.stores.ResetAll(ctx); err != nil {
		return o.failLocal(opDelete, reasonApply, err)
	}
	o.mu.Lock()
	o.lastSyncedAt = 0
	o.mu.Unlock()
	o.logger.Info("cloud data deleted and local preferences reset", zap.Bool("remote_found", found))
	return completed()
}

func (o *Orchestrator) armTimerLocked() {
	if o.closed {
		return
	}
	o.stopTimerLocked()
	o.timerGeneration++
	generation := o.timerGeneration
	o.timer = time.AfterFunc(o.debounce, func() {
		o.flush(generation)
	})
}

func (o *Orchestrator) stopTimerLocked() {
	if o.timer != nil {
		o.timer.Stop()
		o.timer = nil
	}
	o.timerGeneration++
}

// flush runs when the debounce window closes.
func (o *Orchestrator) flush(generation uint64) {
	permitted := o.permission.HasRemoteStoragePermission()
	online := o.connectivity.Online()

	o.mu.Lock()
	if o.closed || generation != o.timerGeneration {
		o.mu.Unlock()
		return
	}
	o.timer = nil
	switch {
	case !o.enabled:
		o.mu.Unlock()
		return
	case !online, !permitted, o.isSyncing:
		o.hasPendingChanges = true
		o.mu.Unlock()
		o.logger.Debug("cloud write deferred",
			zap.Bool("online", online),
			zap.Bool("permitted", permitted),
		)
		o.notify()
		return
	case o.isWriting:
		o.needsAnotherWrite = true
		o.mu.Unlock()
		return
	}
	o.isWriting = true
	o.hasPendingChanges = false
	ctx := o.baseCtx
	o.wg.Add(1)
	o.mu.Unlock()
	defer o.wg.Done()
	o.notify()

	outcome := o.write(ctx)

	o.mu.Lock()
	o.isWriting = false
	o.recordOutcomeLocked(outcome)
	if outcome.Status == OutcomeFailed {
		o.hasPendingChanges = true
	}
	again := o.needsAnotherWrite
	o.needsAnotherWrite = false
	if again && o.enabled {
		o.armTimerLocked()
	}
	o.mu.Unlock()
	o.notify()
}

// write pushes the local snapshot. A device that has never synced merges with an existing
// remote document first, so a fresh install cannot overwrite established settings.
func (o *Orchestrator) write(ctx context.Context) Outcome {
	settings, err := o.stores.Sync.Get(ctx)
	if err != nil {
		return o.failLocal(opWrite, reasonSettings, err)
	}
	doc, err := o.builder.Build(ctx)
	if err != nil {
		return o.failLocal(opWrite, reasonSnapshot, err)
	}

	fileID := o.cachedFileID()
	if fileID == "" || !settings.HasSynced() {
		foundID, found, err := o.remote.Find(ctx)
		if err != nil {
			return o.failRemote(opWrite, reasonFind, err)
		}
		fileID = ""
		if found {
			fileID = foundID
		}
	}

	if fileID != "" && !settings.HasSynced() {
		remoteDoc, err := o.remote.Read(ctx, fileID)
		if err != nil {
			return o.failRemote(opWrite, reasonRead, err)
		}
		migrated, err := o.migrateRemote(remoteDoc)
		if err != nil {
			return o.failRemote(opWrite, reasonRead, err)
		}
		applied, outcome, ok := o.reconcile(ctx, opWrite, migrated, true)
		if !ok {
			return outcome
		}
		doc = applied.document
		o.logger.Info("merged with existing cloud document before first write")
	}

	storedID, err := o.writeDocument(ctx, fileID, doc)
	if err != nil {
		return o.failRemote(opWrite, reasonWrite, err)
	}
	o.setFileID(storedID)
	if outcome, ok := o.markSynced(ctx, opWrite); !ok {
		return outcome
	}
	o.logger.Debug("wrote preferences to cloud", zap.String("file_id", storedID))
	return completed()
}

// writeDocument replaces fileID, or creates the document when the id is empty or has vanished.
func (o *Orchestrator) writeDocument(ctx context.Context, fileID string, doc syncdoc.DocumentV2) (string, error) {
	storedID, err := o.remote.Write(ctx, fileID, doc)
	if err == nil || fileID == "" || remote.StatusOf(err) != http.StatusNotFound {
		return storedID, err
	}
	o.logger.Warn("cloud document vanished, recreating", zap.String("file_id", fileID))
	return o.remote.Write(ctx, "", doc)
}

func (o *Orchestrator) markSynced(ctx context.Context, operation string) (Outcome, bool) {
	now := o.clock()
	if err := o.stores.Sync.MarkSynced(ctx, now); err != nil {
		return o.failLocal(operation, reasonSettings, err), false
	}
	o.mu.Lock()
	o.lastSyncedAt = now.UTC().UnixMilli()
	o.mu.Unlock()
	return Outcome{}, true
}

func (o *Orchestrator) cachedFileID() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.fileID
}

func (o *Orchestrator) setFileID(fileID string) {
	o.mu.Lock()
	o.fileID = fileID
	o.mu.Unlock()
}

func (o *Orchestrator) notify() {
	o.listenersMu.RLock()
	if len(o.listeners) == 0 {
		o.listenersMu.RUnlock()
		return
	}
	listeners := make([]func(State), 0, len(o.listeners))
	for _, listener := range o.listeners {
		listeners = append(listeners, listener)
	}
	o.listenersMu.RUnlock()

	state := o.State()
	for _, listener := range listeners {
		listener(state)
	}
}

func (o *Orchestrator) failRemote(operation, reason string, err error) Outcome {
	o.logError(operation, reason, err, zap.Int("status", remote.StatusOf(err)))
	return failed(ReasonRemoteError, operation+"."+reason, userMessage(err))
}

func (o *Orchestrator) failLocal(operation, reason string, err error) Outcome {
	o.logError(operation, reason, err)
	return failed(ReasonLocalError, operation+"."+reason, userMessage(err))
}

func (o *Orchestrator) logError(operation, reason string, err error, fields ...zap.Field) {
	attrs := []zap.Field{
		zap.String("operation", operation),
		zap.String("reason", reason),
	}
	if err != nil {
		attrs = append(attrs, zap.Error(err))
	}
	attrs = append(attrs, fields...)
	o.logger.Error("cloud sync error", attrs...)
}

// userMessage prefers the provider's own message for remote failures.
func userMessage(err error) string {
	var remoteErr *remote.Error
	if errors.As(err, &remoteErr) && remoteErr.Message != "" {
		return remoteErr.Message
	}
	return err.Error()
}
