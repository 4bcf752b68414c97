package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"autodialer/internal/articles"
	"autodialer/internal/audit"
	"autodialer/internal/auth"
	"autodialer/internal/calls"
	"autodialer/internal/dialer"
	"autodialer/internal/importer"
	"autodialer/internal/nlp"
	"autodialer/internal/phone"
	"autodialer/internal/telephony"
	"autodialer/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

// Handlers groups HTTP handlers for dependency injection.
// Keep these thin: parse/validate input, call internal services, return JSON.
type Handlers struct {
	Auth       *auth.Manager
	Calls      *calls.Service
	Engine     *dialer.Engine
	Reconciler *dialer.Reconciler
	Intent     *dialer.IntentAdapter
	NLP        *nlp.Client
	Articles   *articles.Service
	Auditor    *audit.Service

	// Redis caches the stats payload; nil disables caching.
	Redis *redis.Client

	// VoiceMessage is spoken to callees who answer.
	VoiceMessage string
}

const statsCacheKey = "calls:stats"
const statsCacheTTL = 3 * time.Second

// --- Auth ---

type loginRequest struct {
	APIKey string `json:"api_key"`
}

// Login exchanges the operator API key for a token pair.
func (h Handlers) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if !h.Auth.CheckOperatorKey(req.APIKey) {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid api key"})
		return
	}
	pair, err := h.Auth.IssuePair(time.Now())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "token issuance failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"access_token": pair.AccessToken, "refresh_token": pair.RefreshToken})
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// Refresh trades a valid refresh token for a fresh pair.
func (h Handlers) Refresh(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.RefreshToken == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "refresh_token is required"})
		return
	}
	if _, err := h.Auth.Verify(req.RefreshToken, auth.TokenTypeRefresh, time.Now()); err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid refresh token"})
		return
	}
	pair, err := h.Auth.IssuePair(time.Now())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "token issuance failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"access_token": pair.AccessToken, "refresh_token": pair.RefreshToken})
}

// --- Calls ---

type createCallRequest struct {
	PhoneNumber string `json:"phone_number"`
}

func (h Handlers) CreateCall(c *gin.Context) {
	var req createCallRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	rec, err := h.Calls.Create(c.Request.Context(), req.PhoneNumber)
	if err != nil {
		if errors.Is(err, calls.ErrValidation) {
			c.AbortWithStatusJSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
			return
		}
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "create failed"})
		return
	}
	c.JSON(http.StatusCreated, rec)
}

type bulkCreateRequest struct {
	// Numbers is pasted free text; entries split on newlines and commas.
	Numbers string `json:"numbers"`
}

func (h Handlers) BulkCreateCalls(c *gin.Context) {
	var req bulkCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	entries := phone.SplitBulk(req.Numbers)
	if len(entries) == 0 {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "please enter at least one phone number"})
		return
	}

	res, err := h.Calls.CreateBulk(c.Request.Context(), entries)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "bulk create failed"})
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h Handlers) ListCalls(c *gin.Context) {
	limit := 100
	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}

	recs, err := h.Calls.ListRecent(c.Request.Context(), limit)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "list failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"calls": recs})
}

func (h Handlers) GetStats(c *gin.Context) {
	ctx := c.Request.Context()

	if h.Redis != nil {
		if cached, err := h.Redis.Get(ctx, statsCacheKey).Bytes(); err == nil {
			c.Data(http.StatusOK, "application/json", cached)
			return
		}
	}

	stats, err := h.Calls.Stats(ctx)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "stats failed"})
		return
	}

	if h.Redis != nil {
		if payload, err := json.Marshal(stats); err == nil {
			// Best-effort cache; serving stale-by-seconds counts is fine.
			_ = h.Redis.Set(ctx, statsCacheKey, payload, statsCacheTTL).Err()
		}
	}
	c.JSON(http.StatusOK, stats)
}

func (h Handlers) DeleteCall(c *gin.Context) {
	id := c.Param("id")
	if err := h.Calls.Delete(c.Request.Context(), id); err != nil {
		if errors.Is(err, calls.ErrNotFound) {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "delete failed"})
		return
	}
	c.Status(http.StatusNoContent)
}

// --- Dispatch / reconcile ---

type dispatchRequest struct {
	MaxCount int `json:"max_count"`
}

func (h Handlers) DispatchBatch(c *gin.Context) {
	var req dispatchRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
			return
		}
	}

	res, err := h.Engine.DispatchBatch(c.Request.Context(), req.MaxCount)
	if err != nil {
		switch {
		case errors.Is(err, dialer.ErrPassInProgress):
			c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": "a dispatch pass is already running"})
		case errors.Is(err, dialer.ErrGatewayUnreachable):
			c.JSON(http.StatusBadGateway, gin.H{"error": "telephony gateway unreachable", "result": res})
		default:
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "dispatch failed"})
		}
		return
	}
	if res.NothingToDo() {
		c.JSON(http.StatusOK, gin.H{"message": "no pending calls to make", "result": res})
		return
	}
	c.JSON(http.StatusOK, gin.H{"result": res})
}

func (h Handlers) Reconcile(c *gin.Context) {
	res, err := h.Reconciler.Reconcile(c.Request.Context())
	if err != nil {
		if errors.Is(err, dialer.ErrPassInProgress) {
			c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": "a reconcile pass is already running"})
			return
		}
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "reconcile failed"})
		return
	}
	if res.NothingToDo() {
		c.JSON(http.StatusOK, gin.H{"message": "no calls in flight", "result": res})
		return
	}
	c.JSON(http.StatusOK, gin.H{"result": res})
}

// --- Command ---

type commandRequest struct {
	Command string `json:"command"`
}

// Command parses a free-text instruction and applies the resulting intent.
func (h Handlers) Command(c *gin.Context) {
	var req commandRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Command == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "command is required"})
		return
	}

	ctx := c.Request.Context()
	intent, err := h.NLP.ParseCommand(ctx, req.Command)
	if err != nil {
		// Interpreter failures become a displayable error intent.
		intent = dialer.Intent{Action: dialer.ActionError, Message: "Failed to parse command: " + err.Error()}
	}

	outcome, err := h.Intent.Apply(ctx, intent)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "command apply failed"})
		return
	}

	h.logRun(c, audit.RunCommand, outcome.Created, outcome.Placed, outcome.Rejected)
	c.JSON(http.StatusOK, outcome)
}

// --- Import ---

func (h Handlers) ImportCalls(c *gin.Context) {
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "please select a file to upload"})
		return
	}
	defer file.Close()

	numbers, err := importer.ReadNumbers(file, header.Filename)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}
	if len(numbers) == 0 {
		c.AbortWithStatusJSON(http.StatusUnprocessableEntity, gin.H{"error": "no phone numbers found in file"})
		return
	}

	res, err := h.Calls.CreateBulk(c.Request.Context(), numbers)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "import failed"})
		return
	}

	h.logRun(c, audit.RunImport, len(numbers), len(res.Created), len(res.Rejected))
	c.JSON(http.StatusOK, res)
}

// --- Articles ---

type generateArticlesRequest struct {
	Topics string `json:"topics"`
}

func (h Handlers) GenerateArticles(c *gin.Context) {
	var req generateArticlesRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Topics == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "topics are required"})
		return
	}

	res, err := h.Articles.GenerateFromInput(c.Request.Context(), req.Topics)
	if err != nil {
		if errors.Is(err, articles.ErrNoTopics) {
			c.AbortWithStatusJSON(http.StatusUnprocessableEntity, gin.H{"error": "could not parse topics; use 'Title: ...' and 'Details: ...' lines"})
			return
		}
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "generation failed"})
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h Handlers) ListArticles(c *gin.Context) {
	recs, err := h.Articles.ListRecent(c.Request.Context(), 50)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "list failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"articles": recs})
}

func (h Handlers) GetArticle(c *gin.Context) {
	a, err := h.Articles.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, articles.ErrNotFound) {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "get failed"})
		return
	}
	c.JSON(http.StatusOK, a)
}

func (h Handlers) DeleteArticle(c *gin.Context) {
	if err := h.Articles.Delete(c.Request.Context(), c.Param("id")); err != nil {
		if errors.Is(err, articles.ErrNotFound) {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "delete failed"})
		return
	}
	c.Status(http.StatusNoContent)
}

// --- Provider webhooks ---

// TwilioVoice serves the TwiML executed when a callee answers.
func (h Handlers) TwilioVoice(c *gin.Context) {
	msg := h.VoiceMessage
	if msg == "" {
		msg = "Hello. This is an automated call. Goodbye."
	}
	doc, err := telephony.RenderVoiceSay(msg)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "twiml render failed"})
		return
	}
	c.Data(http.StatusOK, "application/xml", []byte(doc))
}

// TwilioStatusCallback applies a provider status push to the matching record.
// Always answers 204 so the provider does not retry pushes we chose to ignore.
func (h Handlers) TwilioStatusCallback(c *gin.Context) {
	log := logger.FromGin(c)

	form, err := telephony.ParseStatusCallback(c.Request)
	if err != nil {
		log.Warn("status callback parse failed", "err", err)
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid form"})
		return
	}

	rec, updated, err := h.Reconciler.ApplyCallbackStatus(c.Request.Context(), form.CallSid, form.CallStatus, form.CallDuration)
	switch {
	case errors.Is(err, calls.ErrNotFound):
		log.Warn("status callback for unknown call", "provider_call_id", form.CallSid)
	case err != nil:
		log.Error("status callback apply failed", "provider_call_id", form.CallSid, "err", err)
	case updated:
		log.Info("status callback applied",
			"record_id", rec.ID, "provider_status", form.CallStatus, "status", string(rec.Status))
	}
	c.Status(http.StatusNoContent)
}

func (h Handlers) logRun(c *gin.Context, runType audit.RunType, selected, succeeded, failed int) {
	if h.Auditor == nil {
		return
	}
	if err := h.Auditor.LogRun(c.Request.Context(), audit.RunEvent{
		Type:      runType,
		Selected:  selected,
		Succeeded: succeeded,
		Failed:    failed,
	}); err != nil {
		logger.FromGin(c).Warn("audit write failed", "run_type", string(runType), "err", err)
	}
}
