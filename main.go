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

	"github.com/bodul/minefield/minegen"
	"github.com/bodul/minefield/world"
)

func main() {
	cfg, err := LoadConfig()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rule, err := minegen.CompileRule(cfg.MineRule)
	if err != nil {
		logger.Error("invalid mine rule", "rule", cfg.MineRule, "error", err)
		os.Exit(1)
	}

	factory := func(seed uint64) world.Factory {
		return minegen.NewRandom(cfg.ChunkSize, seed, rule)
	}
	if cfg.ProjectID != "" {
		gemini, err := NewGeminiClient(ctx, cfg.ProjectID, cfg.Region, cfg.Model)
		if err != nil {
			logger.Error("init gemini", "error", err)
			os.Exit(1)
		}
		defer gemini.Close()
		layouts := NewGeminiFactory(gemini, cfg.ChunkSize, rule)
		factory = func(uint64) world.Factory { return layouts }
		logger.Info("gemini mine layouts enabled", "project", cfg.ProjectID, "model", cfg.Model)
	} else {
		logger.Info("GCP_PROJECT_ID not set, using seeded mine layouts", "rule", rule)
	}

	srv := NewServer(cfg, factory, logger)
	defer srv.Close()

	httpSrv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: srv,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("shutdown", "error", err)
		}
	}()

	logger.Info("server started", "addr", "http://localhost:"+cfg.Port)
	if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("serve", "error", err)
		os.Exit(1)
	}
}
