package audit

import (
	"context"
	"testing"
)

func TestLogRun_RequiresType(t *testing.T) {
	svc := NewService(NewMemoryRepo())

	if err := svc.LogRun(context.Background(), RunEvent{Selected: 3}); err == nil {
		t.Fatalf("expected error for missing type")
	}
}

func TestLogRun_FillsIDAndTimestamp(t *testing.T) {
	repo := NewMemoryRepo()
	svc := NewService(repo)

	err := svc.LogRun(context.Background(), RunEvent{
		Type:      RunDispatch,
		Selected:  5,
		Succeeded: 4,
		Failed:    1,
	})
	if err != nil {
		t.Fatalf("log: %v", err)
	}

	evs := repo.Events()
	if len(evs) != 1 {
		t.Fatalf("expected 1 event, got %d", len(evs))
	}
	e := evs[0]
	if e.ID == "" || e.CreatedAt.IsZero() {
		t.Fatalf("id/timestamp not filled: %+v", e)
	}
	if e.Type != RunDispatch || e.Selected != 5 || e.Succeeded != 4 || e.Failed != 1 {
		t.Fatalf("counters not kept: %+v", e)
	}
}
