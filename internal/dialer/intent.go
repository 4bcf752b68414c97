package dialer

import (
	"context"
	"errors"
	"fmt"

	"autodialer/internal/calls"
)

// IntentAction is the discriminant of a parsed user command.
type IntentAction string

const (
	ActionMakeCall IntentAction = "make_call"
	ActionNone     IntentAction = "none"
	ActionError    IntentAction = "error"
)

// Intent is the structured form of a free-text command, already interpreted
// by the NLP layer. The adapter is the only place its shape is understood.
type Intent struct {
	Action       IntentAction `json:"action"`
	PhoneNumbers []string     `json:"phone_numbers,omitempty"`
	Message      string       `json:"message,omitempty"`
}

// IntentAdapter sequences store and engine operations for a parsed intent.
// It performs no network calls of its own.
type IntentAdapter struct {
	store  *calls.Service
	engine *Engine
}

func NewIntentAdapter(store *calls.Service, engine *Engine) *IntentAdapter {
	return &IntentAdapter{store: store, engine: engine}
}

// IntentOutcome is what the caller shows the user.
type IntentOutcome struct {
	// Dispatched is true when the intent produced call placements.
	Dispatched bool `json:"dispatched"`

	Created  int `json:"created"`
	Placed   int `json:"placed"`
	Rejected int `json:"rejected"`

	Message string `json:"message"`
}

const msgCouldNotUnderstand = "Could not understand the command"

// Apply executes a parsed intent: make_call creates each number and dispatches
// it immediately as a single-record pass; everything else is a no-op carrying
// a user-facing message. Per-number failures are counted, never raised.
func (a *IntentAdapter) Apply(ctx context.Context, intent Intent) (IntentOutcome, error) {
	switch intent.Action {
	case ActionMakeCall:
		return a.makeCalls(ctx, intent.PhoneNumbers)
	case ActionNone, ActionError:
		msg := intent.Message
		if msg == "" {
			msg = msgCouldNotUnderstand
		}
		return IntentOutcome{Message: msg}, nil
	default:
		return IntentOutcome{Message: msgCouldNotUnderstand}, nil
	}
}

func (a *IntentAdapter) makeCalls(ctx context.Context, numbers []string) (IntentOutcome, error) {
	if len(numbers) == 0 {
		return IntentOutcome{Message: "No phone number detected"}, nil
	}

	out := IntentOutcome{Dispatched: true}
	for _, raw := range numbers {
		rec, err := a.store.Create(ctx, raw)
		if err != nil {
			if errors.Is(err, calls.ErrValidation) {
				out.Rejected++
				continue
			}
			return out, err
		}
		out.Created++

		res, err := a.engine.DispatchOne(ctx, rec.ID)
		if err != nil {
			return out, err
		}
		out.Placed += res.Placed
	}

	out.Message = fmt.Sprintf("Called %d number(s)", out.Placed)
	return out, nil
}
