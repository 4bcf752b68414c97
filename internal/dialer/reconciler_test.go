package dialer

import (
	"context"
	"errors"
	"testing"

	"autodialer/internal/calls"
	"autodialer/internal/phone"
	"autodialer/internal/telephony"
)

func newTestReconciler(t *testing.T) (*calls.Service, *fakeGateway, *Reconciler) {
	t.Helper()
	store := calls.NewService(calls.NewMemoryRepo(), phone.Normalizer{DefaultCountryCode: "+1"})
	gw := newFakeGateway()
	rec := NewReconciler(store, gw, Config{MaxConcurrency: 2}, nil, nil)
	return store, gw, rec
}

// inFlight creates a record already placed with the provider.
func inFlight(t *testing.T, store *calls.Service, raw, sid string) calls.CallRecord {
	t.Helper()
	ctx := context.Background()

	rec := mustCreate(t, store, raw)
	if _, err := store.UpdateStatus(ctx, rec.ID, calls.StatusUpdate{Status: calls.StatusCalling}); err != nil {
		t.Fatalf("to calling: %v", err)
	}
	out, err := store.UpdateStatus(ctx, rec.ID, calls.StatusUpdate{Status: calls.StatusCalling, ProviderCallID: &sid})
	if err != nil {
		t.Fatalf("set provider id: %v", err)
	}
	return out
}

func TestMapProviderStatus(t *testing.T) {
	cases := []struct {
		raw  string
		want calls.CallStatus
		ok   bool
	}{
		{"completed", calls.StatusCompleted, true},
		{"busy", calls.StatusBusy, true},
		{"no-answer", calls.StatusNoAnswer, true},
		{"failed", calls.StatusFailed, true},
		{"canceled", calls.StatusFailed, true},
		{"queued", "", false},
		{"ringing", "", false},
		{"in-progress", "", false},
		{"something-new", "", false},
	}
	for _, c := range cases {
		got, ok := MapProviderStatus(c.raw)
		if ok != c.ok || got != c.want {
			t.Fatalf("MapProviderStatus(%q) = %q/%v, want %q/%v", c.raw, got, ok, c.want, c.ok)
		}
	}
}

func TestReconcile_AppliesTerminalStatuses(t *testing.T) {
	store, gw, r := newTestReconciler(t)
	ctx := context.Background()

	a := inFlight(t, store, "+12025550101", "CA-a")
	b := inFlight(t, store, "+12025550102", "CA-b")
	gw.statuses["CA-a"] = telephony.CallStatusResult{ProviderStatus: "completed", DurationSeconds: 42}
	gw.statuses["CA-b"] = telephony.CallStatusResult{ProviderStatus: "no-answer", DurationSeconds: 17}

	res, err := r.Reconcile(ctx)
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if res.Checked != 2 || len(res.Updated) != 2 || len(res.Errors) != 0 {
		t.Fatalf("unexpected result: %+v", res)
	}

	rec, _ := store.Get(ctx, a.ID)
	if rec.Status != calls.StatusCompleted || rec.DurationSeconds != 42 {
		t.Fatalf("completed record: got %s/%ds", rec.Status, rec.DurationSeconds)
	}
	if rec.ProviderStatus != "completed" {
		t.Fatalf("raw provider status not kept: %q", rec.ProviderStatus)
	}

	// Duration only sticks on completed calls.
	rec, _ = store.Get(ctx, b.ID)
	if rec.Status != calls.StatusNoAnswer || rec.DurationSeconds != 0 {
		t.Fatalf("no-answer record: got %s/%ds", rec.Status, rec.DurationSeconds)
	}
}

func TestReconcile_UnknownStatusLeavesRecordInFlight(t *testing.T) {
	store, gw, r := newTestReconciler(t)
	ctx := context.Background()

	a := inFlight(t, store, "+12025550111", "CA-a")
	gw.statuses["CA-a"] = telephony.CallStatusResult{ProviderStatus: "ringing"}

	res, err := r.Reconcile(ctx)
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if res.Checked != 1 || len(res.Updated) != 0 {
		t.Fatalf("unexpected result: %+v", res)
	}

	rec, _ := store.Get(ctx, a.ID)
	if rec.Status != calls.StatusCalling {
		t.Fatalf("expected still calling, got %s", rec.Status)
	}
}

func TestReconcile_QueryFailureSkipsOnlyThatRecord(t *testing.T) {
	store, gw, r := newTestReconciler(t)
	ctx := context.Background()

	a := inFlight(t, store, "+12025550121", "CA-a")
	b := inFlight(t, store, "+12025550122", "CA-b")
	c := inFlight(t, store, "+12025550123", "CA-c")
	gw.statuses["CA-a"] = telephony.CallStatusResult{ProviderStatus: "completed", DurationSeconds: 5}
	gw.statusErr["CA-b"] = errors.New("i/o timeout")
	gw.statuses["CA-c"] = telephony.CallStatusResult{ProviderStatus: "busy"}

	res, err := r.Reconcile(ctx)
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if res.Checked != 3 || len(res.Updated) != 2 || len(res.Errors) != 1 {
		t.Fatalf("unexpected result: %+v", res)
	}
	if res.Errors[0].RecordID != b.ID {
		t.Fatalf("error attributed to wrong record: %+v", res.Errors[0])
	}

	rec, _ := store.Get(ctx, a.ID)
	if rec.Status != calls.StatusCompleted {
		t.Fatalf("record a: got %s", rec.Status)
	}
	rec, _ = store.Get(ctx, b.ID)
	if rec.Status != calls.StatusCalling {
		t.Fatalf("record b should stay calling, got %s", rec.Status)
	}
	rec, _ = store.Get(ctx, c.ID)
	if rec.Status != calls.StatusBusy {
		t.Fatalf("record c: got %s", rec.Status)
	}
}

func TestReconcile_IsIdempotent(t *testing.T) {
	store, gw, r := newTestReconciler(t)
	ctx := context.Background()

	inFlight(t, store, "+12025550131", "CA-a")
	gw.statuses["CA-a"] = telephony.CallStatusResult{ProviderStatus: "completed", DurationSeconds: 9}

	first, err := r.Reconcile(ctx)
	if err != nil {
		t.Fatalf("first pass: %v", err)
	}
	if len(first.Updated) != 1 {
		t.Fatalf("first pass: %+v", first)
	}

	// Terminal records leave the in-flight set; the second pass sees nothing.
	second, err := r.Reconcile(ctx)
	if err != nil {
		t.Fatalf("second pass: %v", err)
	}
	if !second.NothingToDo() {
		t.Fatalf("second pass should be empty, got %+v", second)
	}
}

func TestReconcile_NothingToDo(t *testing.T) {
	_, _, r := newTestReconciler(t)

	res, err := r.Reconcile(context.Background())
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if !res.NothingToDo() {
		t.Fatalf("expected empty pass")
	}
}

func TestApplyCallbackStatus(t *testing.T) {
	store, _, r := newTestReconciler(t)
	ctx := context.Background()

	a := inFlight(t, store, "+12025550141", "CA-a")

	rec, updated, err := r.ApplyCallbackStatus(ctx, "CA-a", "completed", 12)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if !updated || rec.Status != calls.StatusCompleted || rec.DurationSeconds != 12 {
		t.Fatalf("unexpected: updated=%v rec=%+v", updated, rec)
	}

	// A second push for the now-terminal call is a quiet no-op.
	_, updated, err = r.ApplyCallbackStatus(ctx, "CA-a", "completed", 12)
	if err != nil {
		t.Fatalf("repeat apply: %v", err)
	}
	if updated {
		t.Fatalf("terminal record should not update again")
	}

	got, _ := store.Get(ctx, a.ID)
	if got.Status != calls.StatusCompleted {
		t.Fatalf("record regressed: %s", got.Status)
	}

	if _, _, err := r.ApplyCallbackStatus(ctx, "CA-missing", "completed", 0); !errors.Is(err, calls.ErrNotFound) {
		t.Fatalf("unknown sid: expected ErrNotFound, got %v", err)
	}
}

func TestApplyCallbackStatus_NonTerminalPushIsIgnored(t *testing.T) {
	store, _, r := newTestReconciler(t)
	ctx := context.Background()

	a := inFlight(t, store, "+12025550151", "CA-a")

	_, updated, err := r.ApplyCallbackStatus(ctx, "CA-a", "ringing", 0)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if updated {
		t.Fatalf("non-terminal push should not update")
	}
	rec, _ := store.Get(ctx, a.ID)
	if rec.Status != calls.StatusCalling {
		t.Fatalf("expected calling, got %s", rec.Status)
	}
}
