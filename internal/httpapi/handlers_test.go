package httpapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"autodialer/internal/calls"
	"autodialer/internal/dialer"
	"autodialer/internal/phone"
	"autodialer/internal/telephony"

	"github.com/gin-gonic/gin"
)

type stubGateway struct{}

func (stubGateway) PlaceCall(ctx context.Context, req telephony.PlaceCallRequest) (telephony.PlaceCallResult, error) {
	return telephony.PlaceCallResult{ProviderCallID: "CA1", ProviderStatus: "queued"}, nil
}

func (stubGateway) CallStatus(ctx context.Context, providerCallID string) (telephony.CallStatusResult, error) {
	return telephony.CallStatusResult{ProviderStatus: "in-progress"}, nil
}

func testRouter(t *testing.T) (*gin.Engine, *calls.Service) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := calls.NewService(calls.NewMemoryRepo(), phone.Normalizer{DefaultCountryCode: "+1"})
	eng := dialer.NewEngine(store, stubGateway{}, dialer.Config{FromNumber: "+15550000000"}, nil, nil)
	rec := dialer.NewReconciler(store, stubGateway{}, dialer.Config{}, nil, nil)

	h := Handlers{
		Calls:        store,
		Engine:       eng,
		Reconciler:   rec,
		VoiceMessage: "Hello there",
	}

	r := gin.New()
	r.POST("/v1/calls", h.CreateCall)
	r.POST("/v1/calls/bulk", h.BulkCreateCalls)
	r.GET("/v1/calls/stats", h.GetStats)
	r.POST("/webhooks/twilio/voice", h.TwilioVoice)
	r.POST("/webhooks/twilio/status", h.TwilioStatusCallback)
	return r, store
}

func TestCreateCall_InvalidNumberIs422(t *testing.T) {
	r, _ := testRouter(t)

	req := httptest.NewRequest("POST", "/v1/calls", strings.NewReader(`{"phone_number":"abc123"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d: %s", w.Code, w.Body.String())
	}
}

func TestBulkCreate_SplitsPastedText(t *testing.T) {
	r, store := testRouter(t)

	req := httptest.NewRequest("POST", "/v1/calls/bulk", strings.NewReader(`{"numbers":"12345\nabc123,+19998887777"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	recs, err := store.ListRecent(context.Background(), 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("expected 2 created, got %d", len(recs))
	}
}

func TestTwilioVoice_RendersSay(t *testing.T) {
	r, _ := testRouter(t)

	req := httptest.NewRequest("POST", "/webhooks/twilio/voice", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/xml" {
		t.Fatalf("expected xml content type, got %q", ct)
	}
	if !strings.Contains(w.Body.String(), "Hello there") {
		t.Fatalf("message missing from TwiML:\n%s", w.Body.String())
	}
}

func TestTwilioStatusCallback_AppliesTerminalStatus(t *testing.T) {
	r, store := testRouter(t)
	ctx := context.Background()

	rec, err := store.Create(ctx, "+12025550001")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := store.UpdateStatus(ctx, rec.ID, calls.StatusUpdate{Status: calls.StatusCalling}); err != nil {
		t.Fatalf("to calling: %v", err)
	}
	sid := "CA777"
	if _, err := store.UpdateStatus(ctx, rec.ID, calls.StatusUpdate{Status: calls.StatusCalling, ProviderCallID: &sid}); err != nil {
		t.Fatalf("set sid: %v", err)
	}

	form := url.Values{
		"CallSid":      {"CA777"},
		"CallStatus":   {"completed"},
		"CallDuration": {"21"},
	}
	req := httptest.NewRequest("POST", "/webhooks/twilio/status", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", w.Code)
	}

	got, _ := store.Get(ctx, rec.ID)
	if got.Status != calls.StatusCompleted || got.DurationSeconds != 21 {
		t.Fatalf("callback not applied: %+v", got)
	}
}

func TestTwilioStatusCallback_UnknownSidStill204(t *testing.T) {
	r, _ := testRouter(t)

	form := url.Values{"CallSid": {"CA-unknown"}, "CallStatus": {"completed"}}
	req := httptest.NewRequest("POST", "/webhooks/twilio/status", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", w.Code)
	}
}

func TestGetStats_WithoutRedis(t *testing.T) {
	r, store := testRouter(t)

	if _, err := store.Create(context.Background(), "+12025550002"); err != nil {
		t.Fatalf("create: %v", err)
	}

	req := httptest.NewRequest("GET", "/v1/calls/stats", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"total":1`) {
		t.Fatalf("unexpected stats payload: %s", w.Body.String())
	}
}
