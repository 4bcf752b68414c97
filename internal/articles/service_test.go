package articles

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

type fakeGenerator struct {
	failFor map[string]bool
}

func (g *fakeGenerator) GenerateArticle(ctx context.Context, title, details string) (string, error) {
	if g.failFor[title] {
		return "", errors.New("model unavailable")
	}
	return fmt.Sprintf("generated body for %s (%s)", title, details), nil
}

func TestGenerateFromInput(t *testing.T) {
	repo := NewMemoryRepo()
	svc := NewService(repo, &fakeGenerator{})

	res, err := svc.GenerateFromInput(context.Background(), "Title: A\nDetails: one\nTitle: B")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if len(res.Generated) != 2 || len(res.Failed) != 0 {
		t.Fatalf("unexpected result: %+v", res)
	}
	if res.Generated[0].Title != "A" || res.Generated[0].Content == "" {
		t.Fatalf("unexpected article: %+v", res.Generated[0])
	}

	stored, err := svc.ListRecent(context.Background(), 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(stored) != 2 {
		t.Fatalf("expected 2 stored, got %d", len(stored))
	}
}

func TestGenerateFromInput_PartialFailure(t *testing.T) {
	repo := NewMemoryRepo()
	svc := NewService(repo, &fakeGenerator{failFor: map[string]bool{"B": true}})

	res, err := svc.GenerateFromInput(context.Background(), "Title: A\nTitle: B\nTitle: C")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if len(res.Generated) != 2 {
		t.Fatalf("expected 2 generated, got %d", len(res.Generated))
	}
	if len(res.Failed) != 1 || res.Failed[0] != "B" {
		t.Fatalf("unexpected failed set: %v", res.Failed)
	}
}

func TestGenerateFromInput_NoTopics(t *testing.T) {
	svc := NewService(NewMemoryRepo(), &fakeGenerator{})

	if _, err := svc.GenerateFromInput(context.Background(), "no markers here"); !errors.Is(err, ErrNoTopics) {
		t.Fatalf("expected ErrNoTopics, got %v", err)
	}
}

func TestGetAndDelete(t *testing.T) {
	repo := NewMemoryRepo()
	svc := NewService(repo, &fakeGenerator{})
	ctx := context.Background()

	res, err := svc.GenerateFromInput(ctx, "Title: A")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	id := res.Generated[0].ID

	got, err := svc.Get(ctx, id)
	if err != nil || got.Title != "A" {
		t.Fatalf("get: %v %+v", err, got)
	}

	if err := svc.Delete(ctx, id); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := svc.Get(ctx, id); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
