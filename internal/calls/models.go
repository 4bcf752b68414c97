package calls

import "time"

// CallRecord is one phone number queued for outbound dialing, tracked through
// the dispatch lifecycle.
//
// Invariants:
// - Status only moves forward through the state machine; terminal records are
//   never mutated again.
// - ProviderCallID is set exactly when the provider accepted the call, and is
//   immutable once set.
// - ProviderStatus holds the last raw provider status string for diagnostics;
//   local branching never depends on it.
type CallRecord struct {
	ID          string `json:"id" db:"id"`
	PhoneNumber string `json:"phone_number" db:"phone_number"`

	Status CallStatus `json:"status" db:"status"`

	ProviderCallID string `json:"provider_call_id,omitempty" db:"provider_call_id"`
	ProviderStatus string `json:"provider_status,omitempty" db:"provider_status"`

	// DurationSeconds is set only on terminal states; 0 for non-completed terminals.
	DurationSeconds int `json:"duration_seconds" db:"duration_seconds"`

	ErrorMessage string `json:"error_message,omitempty" db:"error_message"`

	// CalledAt is the time of the first dispatch attempt; nil before dispatch.
	CalledAt *time.Time `json:"called_at,omitempty" db:"called_at"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

type CallStatus string

const (
	StatusPending   CallStatus = "pending"
	StatusCalling   CallStatus = "calling"
	StatusCompleted CallStatus = "completed"
	StatusFailed    CallStatus = "failed"
	StatusBusy      CallStatus = "busy"
	StatusNoAnswer  CallStatus = "no_answer"
)

// IsTerminal reports whether no further transition can occur.
func (s CallStatus) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusBusy, StatusNoAnswer:
		return true
	default:
		return false
	}
}

// IsValid reports whether s is a known lifecycle status.
func (s CallStatus) IsValid() bool {
	switch s {
	case StatusPending, StatusCalling, StatusCompleted, StatusFailed, StatusBusy, StatusNoAnswer:
		return true
	default:
		return false
	}
}

// CanTransition reports whether moving from s to next is a legal forward step:
// pending -> calling, pending -> failed (placement rejected before the
// provider assigned an id), calling -> any terminal.
func (s CallStatus) CanTransition(next CallStatus) bool {
	if !next.IsValid() {
		return false
	}
	switch s {
	case StatusPending:
		return next == StatusCalling || next == StatusFailed
	case StatusCalling:
		return next.IsTerminal()
	default:
		return false
	}
}

// StatusUpdate is a partial update applied to a record under its per-record
// lock. Only the fields a transition may touch are present; nil pointers mean
// "leave unchanged".
type StatusUpdate struct {
	Status CallStatus

	// Expect, when non-empty, requires the record's current status to equal it
	// or the update fails with ErrInvalidTransition. The dispatch claim uses
	// this as a compare-and-set so two passes can never both win a record.
	Expect CallStatus

	ProviderCallID  *string
	ProviderStatus  *string
	DurationSeconds *int
	ErrorMessage    *string
	CalledAt        *time.Time
}

// Stats are aggregate counts over the whole collection. Failed aggregates
// failed, no_answer and busy, matching the reporting shape consumers expect.
type Stats struct {
	Total      int `json:"total"`
	Pending    int `json:"pending"`
	Completed  int `json:"completed"`
	Failed     int `json:"failed"`
	InProgress int `json:"in_progress"`
}
