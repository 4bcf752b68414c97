package dialer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"autodialer/internal/audit"
	"autodialer/internal/calls"
	"autodialer/internal/telephony"
	"autodialer/pkg/logger"

	"golang.org/x/sync/errgroup"
)

// providerStatusMap is the fixed translation from provider vocabulary to the
// local lifecycle. Anything absent from the table means "still in flight" and
// produces no write.
var providerStatusMap = map[string]calls.CallStatus{
	"completed": calls.StatusCompleted,
	"busy":      calls.StatusBusy,
	"no-answer": calls.StatusNoAnswer,
	"failed":    calls.StatusFailed,
	"canceled":  calls.StatusFailed,
}

// MapProviderStatus translates a raw provider status. ok is false when the
// status does not map to a terminal local state.
func MapProviderStatus(raw string) (calls.CallStatus, bool) {
	s, ok := providerStatusMap[raw]
	return s, ok
}

// Reconciler polls the provider for the authoritative status of in-flight
// calls and applies terminal transitions. Re-running it is a no-op for
// already-terminal records because the in-flight set excludes them.
type Reconciler struct {
	store   *calls.Service
	gateway telephony.Gateway
	cfg     Config

	guard   *BatchGuard
	auditor *audit.Service

	clock func() time.Time
}

func NewReconciler(store *calls.Service, gateway telephony.Gateway, cfg Config, guard *BatchGuard, auditor *audit.Service) *Reconciler {
	return &Reconciler{
		store:   store,
		gateway: gateway,
		cfg:     cfg.withDefaults(),
		guard:   guard,
		auditor: auditor,
		clock:   time.Now,
	}
}

// ReconcileResult summarizes one reconciliation pass.
type ReconcileResult struct {
	// Checked is how many in-flight records were queried.
	Checked int `json:"checked"`
	// Updated holds the records that reached a terminal state this pass.
	Updated []calls.CallRecord `json:"updated,omitempty"`
	// Errors holds per-record query failures; those records stay calling.
	Errors []RecordError `json:"errors,omitempty"`
}

func (r ReconcileResult) NothingToDo() bool { return r.Checked == 0 }

// Reconcile queries the provider for every in-flight record. One provider
// failure never blocks reconciliation of the others.
func (r *Reconciler) Reconcile(ctx context.Context) (ReconcileResult, error) {
	if r.guard != nil {
		release, ok, err := r.guard.Acquire(ctx)
		if err != nil {
			return ReconcileResult{}, fmt.Errorf("dialer: batch guard: %w", err)
		}
		if !ok {
			return ReconcileResult{}, ErrPassInProgress
		}
		defer release()
	}

	inFlight, err := r.store.ListInFlight(ctx)
	if err != nil {
		return ReconcileResult{}, fmt.Errorf("dialer: list in flight: %w", err)
	}
	if len(inFlight) == 0 {
		return ReconcileResult{}, nil
	}

	log := logger.From(ctx)

	var mu sync.Mutex
	res := ReconcileResult{Checked: len(inFlight)}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.MaxConcurrency)

	for _, rec := range inFlight {
		rec := rec
		g.Go(func() error {
			if gctx.Err() != nil {
				return gctx.Err()
			}

			status, err := r.gateway.CallStatus(gctx, rec.ProviderCallID)
			if err != nil {
				// Record stays calling; report and continue with the rest.
				mu.Lock()
				res.Errors = append(res.Errors, RecordError{
					RecordID:    rec.ID,
					PhoneNumber: rec.PhoneNumber,
					Message:     err.Error(),
				})
				mu.Unlock()
				log.Debug("status query failed", "record_id", rec.ID, "err", err)
				return nil
			}

			updated, ok, err := r.applyProviderStatus(gctx, rec.ID, status.ProviderStatus, status.DurationSeconds)
			if err != nil {
				mu.Lock()
				res.Errors = append(res.Errors, RecordError{
					RecordID:    rec.ID,
					PhoneNumber: rec.PhoneNumber,
					Message:     err.Error(),
				})
				mu.Unlock()
				return nil
			}
			if ok {
				mu.Lock()
				res.Updated = append(res.Updated, updated)
				mu.Unlock()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return res, err
	}

	log.Info("reconcile pass finished",
		"checked", res.Checked, "updated", len(res.Updated), "errors", len(res.Errors))
	if r.auditor != nil {
		if err := r.auditor.LogRun(ctx, audit.RunEvent{
			Type:      audit.RunReconcile,
			Selected:  res.Checked,
			Succeeded: len(res.Updated),
			Failed:    len(res.Errors),
		}); err != nil {
			log.Warn("audit write failed", "run_type", string(audit.RunReconcile), "err", err)
		}
	}
	return res, nil
}

// ApplyCallbackStatus applies a provider status push for the call identified
// by providerCallID. It shares the reconciliation transition path, so pushed
// and polled updates obey the same mapping and monotonicity rules. updated is
// false when the status is non-terminal or the record already left calling.
func (r *Reconciler) ApplyCallbackStatus(ctx context.Context, providerCallID, rawStatus string, durationSeconds int) (calls.CallRecord, bool, error) {
	rec, err := r.store.GetByProviderCallID(ctx, providerCallID)
	if err != nil {
		return calls.CallRecord{}, false, err
	}
	return r.applyProviderStatus(ctx, rec.ID, rawStatus, durationSeconds)
}

func (r *Reconciler) applyProviderStatus(ctx context.Context, recordID, rawStatus string, durationSeconds int) (calls.CallRecord, bool, error) {
	mapped, ok := MapProviderStatus(rawStatus)
	if !ok {
		// Unknown or non-terminal provider status: no write.
		return calls.CallRecord{}, false, nil
	}

	duration := 0
	if mapped == calls.StatusCompleted {
		duration = durationSeconds
	}

	updated, err := r.store.UpdateStatus(ctx, recordID, calls.StatusUpdate{
		Status:          mapped,
		ProviderStatus:  &rawStatus,
		DurationSeconds: &duration,
	})
	if err != nil {
		// A racing pass already finalized the record; that is not a failure.
		if errors.Is(err, calls.ErrInvalidTransition) {
			return calls.CallRecord{}, false, nil
		}
		return calls.CallRecord{}, false, err
	}
	return updated, true, nil
}
