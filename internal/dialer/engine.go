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

var (
	ErrGatewayUnreachable = errors.New("dialer: gateway unreachable")
	ErrPassInProgress     = errors.New("dialer: another pass is already running")
)

// Config holds the explicit knobs for dispatch and reconciliation passes.
type Config struct {
	// FromNumber is the caller ID for every outbound call.
	FromNumber string

	// BatchSize is the default pending-record cap per dispatch pass.
	BatchSize int

	// MaxConcurrency caps parallel provider calls within one pass.
	MaxConcurrency int
}

func (c Config) withDefaults() Config {
	out := c
	if out.BatchSize <= 0 {
		out.BatchSize = 100
	}
	if out.MaxConcurrency <= 0 {
		out.MaxConcurrency = 10
	}
	return out
}

// Engine turns pending call records into placed provider calls.
//
// Status writes are optimistic: a record is marked calling before placement so
// a crash mid-pass can never double-dial it; the true outcome arrives later
// via the reconciler or a status callback. Per-record failures are swallowed
// into the batch result; only a store failure or a fully unreachable gateway
// escalates.
type Engine struct {
	store   *calls.Service
	gateway telephony.Gateway
	cfg     Config

	// guard and auditor are optional.
	guard   *BatchGuard
	auditor *audit.Service

	clock func() time.Time
}

func NewEngine(store *calls.Service, gateway telephony.Gateway, cfg Config, guard *BatchGuard, auditor *audit.Service) *Engine {
	return &Engine{
		store:   store,
		gateway: gateway,
		cfg:     cfg.withDefaults(),
		guard:   guard,
		auditor: auditor,
		clock:   time.Now,
	}
}

// RecordError is one swallowed per-record failure, kept for caller-visible
// reporting.
type RecordError struct {
	RecordID    string `json:"record_id"`
	PhoneNumber string `json:"phone_number"`
	Message     string `json:"message"`
}

// BatchResult summarizes one dispatch pass.
type BatchResult struct {
	// Selected is how many pending records the pass picked up.
	Selected int `json:"selected"`
	// Placed counts calls the provider accepted, including ones resolved
	// directly from the deterministic outcome table.
	Placed int `json:"placed"`
	// Failed counts records that could not be placed.
	Failed int `json:"failed"`

	Errors []RecordError `json:"errors,omitempty"`
}

// NothingToDo reports whether the pass found no pending records.
func (r BatchResult) NothingToDo() bool { return r.Selected == 0 }

// DispatchBatch places up to maxCount pending calls, oldest first. maxCount
// <= 0 falls back to the configured batch size.
//
// Cancelling ctx stops selecting further records; updates already written
// stay valid, and a later pass re-reads the pending set.
func (e *Engine) DispatchBatch(ctx context.Context, maxCount int) (BatchResult, error) {
	if maxCount <= 0 {
		maxCount = e.cfg.BatchSize
	}

	if e.guard != nil {
		release, ok, err := e.guard.Acquire(ctx)
		if err != nil {
			return BatchResult{}, fmt.Errorf("dialer: batch guard: %w", err)
		}
		if !ok {
			return BatchResult{}, ErrPassInProgress
		}
		defer release()
	}

	pending, err := e.store.ListPending(ctx, maxCount)
	if err != nil {
		return BatchResult{}, fmt.Errorf("dialer: list pending: %w", err)
	}
	if len(pending) == 0 {
		return BatchResult{}, nil
	}

	log := logger.From(ctx)

	var (
		mu        sync.Mutex
		res       = BatchResult{Selected: len(pending)}
		transport int
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.MaxConcurrency)

	for _, rec := range pending {
		rec := rec
		g.Go(func() error {
			if gctx.Err() != nil {
				return gctx.Err()
			}
			placed, recErr, transportFailure := e.dispatchRecord(gctx, rec)

			mu.Lock()
			defer mu.Unlock()
			if placed {
				res.Placed++
			} else {
				res.Failed++
			}
			if recErr != nil {
				res.Errors = append(res.Errors, *recErr)
			}
			if transportFailure {
				transport++
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return res, err
	}

	log.Info("dispatch pass finished",
		"selected", res.Selected, "placed", res.Placed, "failed", res.Failed)
	e.logRun(ctx, audit.RunDispatch, res.Selected, res.Placed, res.Failed)

	// Individual failures never escalate; a pass where every single placement
	// died on transport means the gateway itself is down.
	if res.Placed == 0 && transport == res.Selected {
		return res, ErrGatewayUnreachable
	}
	return res, nil
}

// DispatchOne places a single record immediately. The record must still be
// pending; used by the intent adapter for "call this number now" commands.
func (e *Engine) DispatchOne(ctx context.Context, id string) (BatchResult, error) {
	rec, err := e.store.Get(ctx, id)
	if err != nil {
		return BatchResult{}, err
	}
	if rec.Status != calls.StatusPending {
		return BatchResult{}, fmt.Errorf("dialer: record %s is %s, not pending", id, rec.Status)
	}

	res := BatchResult{Selected: 1}
	placed, recErr, _ := e.dispatchRecord(ctx, rec)
	if placed {
		res.Placed = 1
	} else {
		res.Failed = 1
	}
	if recErr != nil {
		res.Errors = append(res.Errors, *recErr)
	}
	return res, nil
}

// dispatchRecord runs the two-phase placement for one record. All failures are
// written to the record and reported, never raised. transportFailure is true
// when the gateway could not be reached at all (as opposed to an explicit
// provider rejection).
func (e *Engine) dispatchRecord(ctx context.Context, rec calls.CallRecord) (placed bool, recErr *RecordError, transportFailure bool) {
	log := logger.From(ctx)
	now := e.clock().UTC()

	// Optimistic transition: calling reflects intent, not confirmation. The
	// claim is a compare-and-set from pending, so a concurrent pass holding the
	// same snapshot loses here instead of dialing twice.
	if _, err := e.store.UpdateStatus(ctx, rec.ID, calls.StatusUpdate{
		Status:   calls.StatusCalling,
		Expect:   calls.StatusPending,
		CalledAt: &now,
	}); err != nil {
		// Another pass won the record (no longer pending); skip quietly.
		if errors.Is(err, calls.ErrInvalidTransition) {
			return false, nil, false
		}
		return false, &RecordError{RecordID: rec.ID, PhoneNumber: rec.PhoneNumber, Message: err.Error()}, false
	}

	result, err := e.gateway.PlaceCall(ctx, telephony.PlaceCallRequest{
		To:   rec.PhoneNumber,
		From: e.cfg.FromNumber,
	})
	if err != nil {
		msg := err.Error()
		if _, werr := e.store.UpdateStatus(ctx, rec.ID, calls.StatusUpdate{
			Status:       calls.StatusFailed,
			ErrorMessage: &msg,
		}); werr != nil {
			log.Error("failed-placement write failed", "record_id", rec.ID, "err", werr)
		}

		var pe *telephony.ProviderError
		rejected := errors.As(err, &pe)
		log.Debug("placement failed", "record_id", rec.ID, "number", rec.PhoneNumber, "rejected", rejected, "err", err)
		return false, &RecordError{RecordID: rec.ID, PhoneNumber: rec.PhoneNumber, Message: msg}, !rejected
	}

	upd := calls.StatusUpdate{
		Status:         calls.StatusCalling,
		ProviderCallID: &result.ProviderCallID,
		ProviderStatus: &result.ProviderStatus,
	}
	if outcome, ok := immediateOutcomeFor(rec.PhoneNumber); ok {
		upd.Status = outcome.Status
		upd.DurationSeconds = &outcome.DurationSeconds
	}
	if _, err := e.store.UpdateStatus(ctx, rec.ID, upd); err != nil {
		return true, &RecordError{RecordID: rec.ID, PhoneNumber: rec.PhoneNumber, Message: err.Error()}, false
	}

	log.Debug("call placed", "record_id", rec.ID, "number", rec.PhoneNumber,
		"provider_call_id", result.ProviderCallID, "status", string(upd.Status))
	return true, nil, false
}

func (e *Engine) logRun(ctx context.Context, runType audit.RunType, selected, succeeded, failed int) {
	if e.auditor == nil {
		return
	}
	// Best-effort; a failed audit write never blocks dialing.
	if err := e.auditor.LogRun(ctx, audit.RunEvent{
		Type:      runType,
		Selected:  selected,
		Succeeded: succeeded,
		Failed:    failed,
	}); err != nil {
		logger.From(ctx).Warn("audit write failed", "run_type", string(runType), "err", err)
	}
}
