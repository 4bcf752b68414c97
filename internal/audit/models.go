package audit

import "time"

// RunEvent is an immutable, append-only record of one operational pass
// (a dispatch batch, a reconciliation sweep, an import, a parsed command).
//
// Invariants:
// - Events are never updated or deleted.
// - Writes are best-effort; critical flows must not block on audit failures.
//
// Storage recommendation (Postgres):
// - Table run_events with an INSERT-only policy.
// - Optional: partition by time for retention.
type RunEvent struct {
	ID   string  `json:"id" db:"id"`
	Type RunType `json:"type" db:"type"`

	// Selected / Succeeded / Failed are the pass counters; their exact
	// meaning depends on the run type (records placed, records updated,
	// rows imported, ...).
	Selected  int `json:"selected" db:"selected"`
	Succeeded int `json:"succeeded" db:"succeeded"`
	Failed    int `json:"failed" db:"failed"`

	// Message is a short human-readable note for internal ops.
	Message string `json:"message,omitempty" db:"message"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type RunType string

const (
	RunDispatch  RunType = "dispatch"
	RunReconcile RunType = "reconcile"
	RunImport    RunType = "import"
	RunCommand   RunType = "command"
)
