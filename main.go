package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/felo/mailbridge/internal/audit"
	"github.com/felo/mailbridge/internal/bridge"
	"github.com/felo/mailbridge/internal/config"
	"github.com/felo/mailbridge/internal/handlers"
	"github.com/felo/mailbridge/internal/runner"
)

func main() {
	configPath := flag.String("config", config.DefaultConfigPath(), "path to config file")
	debug := flag.Bool("debug", false, "enable debug logging")
	flag.Parse()

	logger := newLogger(*debug)
	defer logger.Sync()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatal("failed to load config", zap.Error(err))
	}

	// The host application must already be installed; this process only
	// talks to its script interpreter.
	if _, err := os.Stat(cfg.Interpreter); err != nil {
		logger.Warn("script interpreter not found; operations will fail",
			zap.String("interpreter", cfg.Interpreter))
	}

	var auditLog *audit.Log
	if cfg.AuditEnabled {
		auditLog, err = audit.Open(cfg.AuditPath)
		if err != nil {
			logger.Fatal("failed to open audit log", zap.Error(err))
		}
		defer auditLog.Close()
		logger.Info("audit log opened", zap.String("path", cfg.AuditPath))
	}

	run := runner.New(cfg.Interpreter, cfg.Timeout(), logger)
	br := bridge.New(run, logger, bridge.Options{
		MaxAttachmentSize: cfg.MaxAttachmentBytes,
		BulkLimit:         cfg.BulkLimit,
	})
	h := handlers.New(br, auditLog, logger)

	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	h.Routes(r)

	srv := &http.Server{
		Addr:         cfg.Address(),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		// Script runs block the handler for up to the script timeout.
		WriteTimeout: cfg.Timeout() + 30*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("starting mailbridge", zap.String("addr", cfg.Address()))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	<-sigChan
	logger.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
	}
}

func newLogger(debug bool) *zap.Logger {
	var (
		l   *zap.Logger
		err error
	)
	if debug {
		l, err = zap.NewDevelopment()
	} else {
		l, err = zap.NewProduction()
	}
	if err != nil {
		panic(err)
	}
	return l
}
