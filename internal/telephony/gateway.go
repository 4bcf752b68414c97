package telephony

import (
	"context"
	"fmt"
)

// Gateway is the provider-agnostic contract the dispatch pipeline consumes.
//
// Rules:
// - No provider SDK or HTTP calls outside telephony adapters.
// - Every call must return within a bounded time or fail with a timeout error;
//   callers treat timeouts like any other per-record failure.
type Gateway interface {
	// PlaceCall submits one outbound call. A non-nil error means the call was
	// not accepted: either the provider rejected it (*ProviderError) or the
	// provider was unreachable.
	PlaceCall(ctx context.Context, req PlaceCallRequest) (PlaceCallResult, error)

	// CallStatus fetches the provider's current view of an accepted call.
	CallStatus(ctx context.Context, providerCallID string) (CallStatusResult, error)
}

type PlaceCallRequest struct {
	// To and From are dialable numbers (+digits).
	To   string
	From string
}

type PlaceCallResult struct {
	// ProviderCallID is the provider's unique identifier for the accepted call.
	ProviderCallID string

	// ProviderStatus is the raw status string from the accept response
	// (e.g. "queued").
	ProviderStatus string
}

type CallStatusResult struct {
	// ProviderStatus is the raw provider vocabulary
	// (queued, ringing, in-progress, completed, busy, no-answer, failed, canceled).
	ProviderStatus string

	// DurationSeconds is 0 until the provider reports a duration.
	DurationSeconds int
}

// ProviderError is an explicit rejection from the provider (bad number, auth),
// as opposed to a transport failure.
type ProviderError struct {
	Code    int
	Message string
}

func (e *ProviderError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("telephony: provider rejected (code %d): %s", e.Code, e.Message)
	}
	return fmt.Sprintf("telephony: provider rejected: %s", e.Message)
}
