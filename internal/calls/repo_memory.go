package calls

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// MemoryRepo is an in-memory repository useful for tests and early development.
// A single mutex covers the whole collection, which trivially satisfies the
// per-record serialization requirement and gives Stats an exact snapshot.
//
// NOTE: This is not intended for production; use the Postgres implementation.
type MemoryRepo struct {
	mu    sync.Mutex
	recs  map[string]CallRecord
	order []string // ids in insertion order
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{recs: make(map[string]CallRecord)}
}

func (r *MemoryRepo) Insert(ctx context.Context, rec CallRecord) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.recs[rec.ID]; ok {
		return fmt.Errorf("calls: duplicate id %q", rec.ID)
	}
	r.recs[rec.ID] = rec
	r.order = append(r.order, rec.ID)
	return nil
}

func (r *MemoryRepo) Get(ctx context.Context, id string) (CallRecord, error) {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.recs[id]
	if !ok {
		return CallRecord{}, ErrNotFound
	}
	return rec, nil
}

func (r *MemoryRepo) GetByProviderCallID(ctx context.Context, providerCallID string) (CallRecord, error) {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, id := range r.order {
		if rec := r.recs[id]; rec.ProviderCallID == providerCallID {
			return rec, nil
		}
	}
	return CallRecord{}, ErrNotFound
}

func (r *MemoryRepo) UpdateStatus(ctx context.Context, id string, upd StatusUpdate, now time.Time) (CallRecord, error) {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.recs[id]
	if !ok {
		return CallRecord{}, ErrNotFound
	}

	applied, err := applyUpdate(rec, upd, now)
	if err != nil {
		return CallRecord{}, err
	}
	r.recs[id] = applied
	return applied, nil
}

func (r *MemoryRepo) ListPending(ctx context.Context, limit int) ([]CallRecord, error) {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []CallRecord
	for _, id := range r.order {
		if len(out) >= limit {
			break
		}
		if rec := r.recs[id]; rec.Status == StatusPending {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (r *MemoryRepo) ListInFlight(ctx context.Context) ([]CallRecord, error) {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []CallRecord
	for _, id := range r.order {
		rec := r.recs[id]
		if rec.Status == StatusCalling && rec.ProviderCallID != "" {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (r *MemoryRepo) ListRecent(ctx context.Context, limit int) ([]CallRecord, error) {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]CallRecord, 0, len(r.recs))
	for _, id := range r.order {
		out = append(out, r.recs[id])
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *MemoryRepo) Delete(ctx context.Context, id string) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.recs[id]; !ok {
		return ErrNotFound
	}
	delete(r.recs, id)
	for i, oid := range r.order {
		if oid == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return nil
}

func (r *MemoryRepo) Stats(ctx context.Context) (Stats, error) {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()

	var s Stats
	for _, rec := range r.recs {
		s.Total++
		switch rec.Status {
		case StatusPending:
			s.Pending++
		case StatusCompleted:
			s.Completed++
		case StatusFailed, StatusNoAnswer, StatusBusy:
			s.Failed++
		case StatusCalling:
			s.InProgress++
		}
	}
	return s, nil
}

// applyUpdate enforces the state machine and field immutability for a
// transition. Shared by the memory and Postgres repositories so both enforce
// identical rules under their respective locks.
func applyUpdate(rec CallRecord, upd StatusUpdate, now time.Time) (CallRecord, error) {
	if rec.Status.IsTerminal() {
		return CallRecord{}, fmt.Errorf("%w: %s is terminal", ErrInvalidTransition, rec.Status)
	}
	if upd.Expect != "" && rec.Status != upd.Expect {
		return CallRecord{}, fmt.Errorf("%w: expected %s, record is %s", ErrInvalidTransition, upd.Expect, rec.Status)
	}
	if rec.Status != upd.Status && !rec.Status.CanTransition(upd.Status) {
		return CallRecord{}, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, rec.Status, upd.Status)
	}

	rec.Status = upd.Status
	if upd.ProviderCallID != nil && rec.ProviderCallID == "" {
		rec.ProviderCallID = *upd.ProviderCallID
	}
	if upd.ProviderStatus != nil {
		rec.ProviderStatus = *upd.ProviderStatus
	}
	if upd.DurationSeconds != nil {
		rec.DurationSeconds = *upd.DurationSeconds
	}
	if upd.ErrorMessage != nil {
		rec.ErrorMessage = *upd.ErrorMessage
	}
	if upd.CalledAt != nil && rec.CalledAt == nil {
		t := *upd.CalledAt
		rec.CalledAt = &t
	}
	rec.UpdatedAt = now
	return rec, nil
}
