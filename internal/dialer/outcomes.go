package dialer

import "autodialer/internal/calls"

// immediateOutcome is a terminal state known at placement time.
type immediateOutcome struct {
	Status          calls.CallStatus
	DurationSeconds int
}

// immediateOutcomes maps the provider-designated test numbers whose result is
// deterministic the moment the call is accepted. Test credentials cannot fetch
// call status afterwards, so the engine resolves these directly instead of
// leaving them for reconciliation.
//
// Twilio magic test numbers:
//
//	+15005550006  valid number, call completes
//	+15005550009  callee busy
//	+15005550001  invalid number, call fails
//
// Every other number stays calling until reconciliation or a status callback
// reports the real outcome.
var immediateOutcomes = map[string]immediateOutcome{
	"+15005550006": {Status: calls.StatusCompleted, DurationSeconds: 30},
	"+15005550009": {Status: calls.StatusBusy, DurationSeconds: 0},
	"+15005550001": {Status: calls.StatusFailed, DurationSeconds: 0},
}

func immediateOutcomeFor(number string) (immediateOutcome, bool) {
	o, ok := immediateOutcomes[number]
	return o, ok
}
