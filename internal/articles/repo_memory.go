package articles

import (
	"context"
	"sort"
	"sync"
)

// MemoryRepo is an in-memory article repository useful for tests and early
// development.
//
// NOTE: This is not intended for production; replace with a Postgres
// implementation when the content pipeline needs durability.
type MemoryRepo struct {
	mu   sync.Mutex
	recs map[string]Article
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{recs: make(map[string]Article)}
}

func (r *MemoryRepo) Insert(ctx context.Context, a Article) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	r.recs[a.ID] = a
	return nil
}

func (r *MemoryRepo) Get(ctx context.Context, id string) (Article, error) {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.recs[id]
	if !ok {
		return Article{}, ErrNotFound
	}
	return a, nil
}

func (r *MemoryRepo) ListRecent(ctx context.Context, limit int) ([]Article, error) {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Article, 0, len(r.recs))
	for _, a := range r.recs {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool {
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
	return nil
}
