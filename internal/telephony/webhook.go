package telephony

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
)

// StatusCallbackForm captures the subset of Twilio's voice status callback we
// care about. Twilio posts application/x-www-form-urlencoded.
//
// This is an adapter-only shape; status mapping and record updates happen in
// the dialer.
type StatusCallbackForm struct {
	CallSid    string
	AccountSid string
	CallStatus string
	To         string
	From       string

	// CallDuration is only present on terminal callbacks.
	CallDuration int
}

// ParseStatusCallback decodes a provider status push.
func ParseStatusCallback(r *http.Request) (StatusCallbackForm, error) {
	if err := r.ParseForm(); err != nil {
		return StatusCallbackForm{}, err
	}

	f := StatusCallbackForm{
		CallSid:    strings.TrimSpace(r.PostFormValue("CallSid")),
		AccountSid: r.PostFormValue("AccountSid"),
		CallStatus: strings.TrimSpace(r.PostFormValue("CallStatus")),
		To:         r.PostFormValue("To"),
		From:       r.PostFormValue("From"),
	}
	if f.CallSid == "" {
		return StatusCallbackForm{}, errors.New("telephony: status callback missing CallSid")
	}
	if f.CallStatus == "" {
		return StatusCallbackForm{}, errors.New("telephony: status callback missing CallStatus")
	}
	if d := r.PostFormValue("CallDuration"); d != "" {
		if n, err := strconv.Atoi(d); err == nil {
			f.CallDuration = n
		}
	}
	return f, nil
}
