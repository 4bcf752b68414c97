package calls

import (
	"context"
	"errors"
	"fmt"
	"time"

	"autodialer/internal/phone"
)

var (
	ErrNotFound          = errors.New("calls: record not found")
	ErrValidation        = errors.New("calls: validation failed")
	ErrInvalidTransition = errors.New("calls: invalid status transition")
)

// Repository is the persistence contract for call records.
//
// Implementations must serialize updates per record id: a dispatch update and
// a reconciliation update for the same id may never interleave. UpdateStatus
// enforces the forward-only state machine under that lock.
type Repository interface {
	Insert(ctx context.Context, rec CallRecord) error
	Get(ctx context.Context, id string) (CallRecord, error)
	GetByProviderCallID(ctx context.Context, providerCallID string) (CallRecord, error)
	UpdateStatus(ctx context.Context, id string, upd StatusUpdate, now time.Time) (CallRecord, error)

	// ListPending returns up to limit pending records, oldest first.
	ListPending(ctx context.Context, limit int) ([]CallRecord, error)
	// ListInFlight returns all calling records with a provider call id.
	ListInFlight(ctx context.Context) ([]CallRecord, error)
	// ListRecent returns up to limit records, newest first.
	ListRecent(ctx context.Context, limit int) ([]CallRecord, error)

	Delete(ctx context.Context, id string) error
	Stats(ctx context.Context) (Stats, error)
}

// Service owns record creation and exposes the repository operations the
// dispatch pipeline uses. Raw input passes through the normalizer exactly once,
// at creation; everything downstream sees dialable numbers only.
type Service struct {
	repo       Repository
	normalizer phone.Normalizer
	clock      func() time.Time
	newID      func() string
}

func NewService(repo Repository, normalizer phone.Normalizer) *Service {
	return &Service{
		repo:       repo,
		normalizer: normalizer,
		clock:      time.Now,
		newID:      newRecordID,
	}
}

// Create normalizes raw and inserts a pending record.
func (s *Service) Create(ctx context.Context, raw string) (CallRecord, error) {
	if s.repo == nil {
		return CallRecord{}, errors.New("calls: repository not configured")
	}

	number, err := s.normalizer.Normalize(raw)
	if err != nil {
		return CallRecord{}, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	now := s.clock().UTC()
	rec := CallRecord{
		ID:          s.newID(),
		PhoneNumber: number,
		Status:      StatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repo.Insert(ctx, rec); err != nil {
		return CallRecord{}, err
	}
	return rec, nil
}

// BulkResult reports per-input outcomes of a bulk ingestion. Rejected inputs
// never abort the batch.
type BulkResult struct {
	Created  []CallRecord    `json:"created"`
	Rejected []RejectedInput `json:"rejected"`
}

type RejectedInput struct {
	Input  string `json:"input"`
	Reason string `json:"reason"`
}

// CreateBulk ingests a sequence of raw candidate numbers. Each entry is
// normalized and inserted independently; invalid entries are collected, not
// raised.
func (s *Service) CreateBulk(ctx context.Context, raws []string) (BulkResult, error) {
	var out BulkResult
	for _, raw := range raws {
		rec, err := s.Create(ctx, raw)
		if err != nil {
			if errors.Is(err, ErrValidation) {
				out.Rejected = append(out.Rejected, RejectedInput{Input: raw, Reason: err.Error()})
				continue
			}
			// Store-level failure is systemic; stop here.
			return out, err
		}
		out.Created = append(out.Created, rec)
	}
	return out, nil
}

func (s *Service) Get(ctx context.Context, id string) (CallRecord, error) {
	return s.repo.Get(ctx, id)
}

// GetByProviderCallID resolves the record a provider status push refers to.
func (s *Service) GetByProviderCallID(ctx context.Context, providerCallID string) (CallRecord, error) {
	if providerCallID == "" {
		return CallRecord{}, ErrNotFound
	}
	return s.repo.GetByProviderCallID(ctx, providerCallID)
}

// UpdateStatus applies a partial, transition-checked update.
func (s *Service) UpdateStatus(ctx context.Context, id string, upd StatusUpdate) (CallRecord, error) {
	if !upd.Status.IsValid() {
		return CallRecord{}, fmt.Errorf("%w: unknown status %q", ErrInvalidTransition, upd.Status)
	}
	return s.repo.UpdateStatus(ctx, id, upd, s.clock().UTC())
}

func (s *Service) ListPending(ctx context.Context, limit int) ([]CallRecord, error) {
	if limit <= 0 {
		return nil, nil
	}
	return s.repo.ListPending(ctx, limit)
}

func (s *Service) ListInFlight(ctx context.Context) ([]CallRecord, error) {
	return s.repo.ListInFlight(ctx)
}

func (s *Service) ListRecent(ctx context.Context, limit int) ([]CallRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	return s.repo.ListRecent(ctx, limit)
}

func (s *Service) Delete(ctx context.Context, id string) error {
	return s.repo.Delete(ctx, id)
}

func (s *Service) Stats(ctx context.Context) (Stats, error) {
	return s.repo.Stats(ctx)
}
