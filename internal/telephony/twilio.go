package telephony

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"autodialer/internal/config"

	"github.com/go-resty/resty/v2"
)

const twilioAPIBase = "https://api.twilio.com/2010-04-01"

// TwilioGateway places calls through the Twilio REST API.
type TwilioGateway struct {
	http       *resty.Client
	accountSID string

	voiceURL          string
	statusCallbackURL string
}

func NewTwilioGateway(cfg config.TwilioConfig) (*TwilioGateway, error) {
	if cfg.AccountSID == "" || cfg.AuthToken == "" {
		return nil, errors.New("telephony: twilio credentials are required")
	}

	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	client := resty.New().
		SetBaseURL(twilioAPIBase).
		SetBasicAuth(cfg.AccountSID, cfg.AuthToken).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json")

	return &TwilioGateway{
		http:              client,
		accountSID:        cfg.AccountSID,
		voiceURL:          cfg.VoiceURL,
		statusCallbackURL: cfg.StatusCallbackURL,
	}, nil
}

// twilioCall is the subset of Twilio's call resource we consume.
type twilioCall struct {
	Sid      string `json:"sid"`
	Status   string `json:"status"`
	To       string `json:"to"`
	From     string `json:"from"`
	Duration string `json:"duration"` // Twilio returns duration as a string
}

type twilioAPIError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"status"`
}

func (g *TwilioGateway) PlaceCall(ctx context.Context, req PlaceCallRequest) (PlaceCallResult, error) {
	if req.To == "" || req.From == "" {
		return PlaceCallResult{}, errors.New("telephony: to and from are required")
	}

	form := map[string]string{
		"To":   req.To,
		"From": req.From,
		"Url":  g.voiceURL,
	}
	if g.statusCallbackURL != "" {
		form["StatusCallback"] = g.statusCallbackURL
	}

	var call twilioCall
	var apiErr twilioAPIError
	resp, err := g.http.R().
		SetContext(ctx).
		SetFormData(form).
		SetResult(&call).
		SetError(&apiErr).
		Post(fmt.Sprintf("/Accounts/%s/Calls.json", g.accountSID))
	if err != nil {
		return PlaceCallResult{}, fmt.Errorf("telephony: place call: %w", err)
	}
	if resp.IsError() {
		return PlaceCallResult{}, &ProviderError{Code: apiErr.Code, Message: apiErr.Message}
	}
	if call.Sid == "" {
		return PlaceCallResult{}, errors.New("telephony: provider response missing call sid")
	}

	return PlaceCallResult{
		ProviderCallID: call.Sid,
		ProviderStatus: call.Status,
	}, nil
}

func (g *TwilioGateway) CallStatus(ctx context.Context, providerCallID string) (CallStatusResult, error) {
	if providerCallID == "" {
		return CallStatusResult{}, errors.New("telephony: provider call id is required")
	}

	var call twilioCall
	var apiErr twilioAPIError
	resp, err := g.http.R().
		SetContext(ctx).
		SetResult(&call).
		SetError(&apiErr).
		Get(fmt.Sprintf("/Accounts/%s/Calls/%s.json", g.accountSID, providerCallID))
	if err != nil {
		return CallStatusResult{}, fmt.Errorf("telephony: call status: %w", err)
	}
	if resp.IsError() {
		return CallStatusResult{}, &ProviderError{Code: apiErr.Code, Message: apiErr.Message}
	}

	duration := 0
	if call.Duration != "" {
		if n, err := strconv.Atoi(call.Duration); err == nil {
			duration = n
		}
	}

	return CallStatusResult{
		ProviderStatus:  call.Status,
		DurationSeconds: duration,
	}, nil
}
