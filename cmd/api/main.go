package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"autodialer/internal/articles"
	"autodialer/internal/audit"
	"autodialer/internal/auth"
	"autodialer/internal/calls"
	"autodialer/internal/config"
	"autodialer/internal/dialer"
	"autodialer/internal/httpapi"
	"autodialer/internal/nlp"
	"autodialer/internal/phone"
	"autodialer/internal/telephony"
	"autodialer/pkg/logger"
	"autodialer/pkg/utils"

	"github.com/gin-gonic/gin"
	_ "github.com/jackc/pgx/v5/stdlib"
)

func main() {
	// Root context that cancels on shutdown
	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}

	log := logger.New(cfg.App.Env)
	slog.SetDefault(log)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	authManager, err := auth.NewManager(cfg.Auth)
	if err != nil {
		log.Error("auth init failed", "err", err)
		os.Exit(1)
	}

	db, err := utils.OpenPostgres(rootCtx, "pgx", cfg.PostgresDSN(), utils.PostgresPoolConfig{})
	if err != nil {
		log.Error("postgres init failed", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	rdb, err := utils.OpenRedis(rootCtx, utils.RedisConfig{Addr: cfg.RedisAddr()})
	if err != nil {
		log.Error("redis init failed", "err", err)
		os.Exit(1)
	}
	defer rdb.Close()

	gateway, err := telephony.NewTwilioGateway(cfg.Twilio)
	if err != nil {
		log.Error("telephony init failed", "err", err)
		os.Exit(1)
	}

	store := calls.NewService(
		calls.NewPostgresRepo(db),
		phone.Normalizer{DefaultCountryCode: cfg.Dialer.DefaultCountryCode},
	)
	auditor := audit.NewService(audit.NewPostgresRepo(db))

	engineCfg := dialer.Config{
		FromNumber:     cfg.Twilio.FromNumber,
		BatchSize:      cfg.Dialer.BatchSize,
		MaxConcurrency: cfg.Dialer.MaxConcurrency,
	}
	// One pass of each kind at a time, across all replicas.
	dispatchGuard := dialer.NewBatchGuard(rdb, "dialer:pass:dispatch", 1, 5*time.Minute)
	reconcileGuard := dialer.NewBatchGuard(rdb, "dialer:pass:reconcile", 1, 5*time.Minute)

	engine := dialer.NewEngine(store, gateway, engineCfg, dispatchGuard, auditor)
	reconciler := dialer.NewReconciler(store, gateway, engineCfg, reconcileGuard, auditor)

	nlpClient := nlp.NewClient(cfg.OpenRouter)

	h := httpapi.Handlers{
		Auth:         authManager,
		Calls:        store,
		Engine:       engine,
		Reconciler:   reconciler,
		Intent:       dialer.NewIntentAdapter(store, engine),
		NLP:          nlpClient,
		Articles:     articles.NewService(articles.NewPostgresRepo(db), nlpClient),
		Auditor:      auditor,
		Redis:        rdb,
		VoiceMessage: cfg.Twilio.VoiceMessage,
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.Middleware(log))

	registerRoutes(r, h, auth.RequireAccessToken(authManager))

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("api listening", "addr", srv.Addr, "env", cfg.App.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", "err", err)
			stop()
		}
	}()

	<-rootCtx.Done()
	log.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", "err", err)
	}
}
