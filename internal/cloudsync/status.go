package cloudsync

// Status is the small enum the frontend renders as the sync indicator.
type Status string

const (
	StatusDisabled     Status = "disabled"
	StatusNeedsConsent Status = "needs_consent"
	StatusSyncing      Status = "syncing"
	StatusOffline      Status = "offline"
	StatusError        Status = "error"
	StatusSynced       Status = "synced"
)

// State is a point-in-time view of the orchestrator.
type State struct {
	Status            Status `json:"status"`
	LastError         string `json:"lastError,omitempty"`
	LastSyncedAt      int64  `json:"lastSyncedAt,omitempty"`
	HasPendingChanges bool   `json:"hasPendingChanges"`
	DeviceID          string `json:"deviceId,omitempty"`
}

type statusInputs struct {
	enabled   bool
	permitted bool
	busy      bool
	online    bool
	lastError string
}

// projectStatus applies the precedence disabled, needs consent, syncing, offline, error, synced.
func projectStatus(in statusInputs) Status {
	switch {
	case !in.enabled:
		return StatusDisabled
	case !in.permitted:
		return StatusNeedsConsent
	case in.busy:
		return StatusSyncing
	case !in.online:
		return StatusOffline
	case in.lastError != "":
		return StatusError
	default:
		return StatusSynced
	}
}

// OutcomeStatus classifies how a public sync operation ended.
type OutcomeStatus string

const (
	OutcomeCompleted OutcomeStatus = "completed"
	OutcomeSkipped   OutcomeStatus = "skipped"
	OutcomeFailed    OutcomeStatus = "failed"
)

// Reason explains a skipped or failed outcome.
type Reason string

const (
	ReasonAlreadySyncing Reason = "already_syncing"
	ReasonBusy           Reason = "busy"
	ReasonDisabled       Reason = "disabled"
	ReasonNeedsConsent   Reason = "needs_consent"
	ReasonOffline        Reason = "offline"
	ReasonNoRemote       Reason = "no_remote_document"
	ReasonStopped        Reason = "stopped"
	ReasonRemoteError    Reason = "remote_error"
	ReasonLocalError     Reason = "local_error"
)

// Outcome is returned by every public operation instead of an error.
type Outcome struct {
	Status OutcomeStatus `json:"status"`
	Reason Reason        `json:"reason,omitempty"`
	Code   string        `json:"code,omitempty"`
	Error  string        `json:"error,omitempty"`
}

func completed() Outcome {
	return Outcome{Status: OutcomeCompleted}
}

func skipped(reason Reason) Outcome {
	return Outcome{Status: OutcomeSkipped, Reason: reason}
}

func failed(reason Reason, code, message string) Outcome {
	return Outcome{Status: OutcomeFailed, Reason: reason, Code: code, Error: message}
}
