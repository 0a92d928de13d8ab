package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/park285/cheese-gamecenter/internal/app"
	appcfg "github.com/park285/cheese-gamecenter/internal/config"
	"github.com/park285/cheese-gamecenter/internal/obslog"
)

func main() {
	cfg, err := appcfg.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	if err := obslog.InitFromEnv(); err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	logger := obslog.L()
	defer func() { _ = logger.Sync() }()

	initCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	a, err := app.New(initCtx, cfg, logger)
	cancel()
	if err != nil {
		logger.Fatal("app_init_failed", zap.Error(err))
	}

	cctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	a.Connect(cctx)
	cancel()

	serveErr := make(chan error, 1)
	go func() { serveErr <- a.Server.ListenAndServe(cfg.HTTPAddr) }()
	logger.Info("gamecenter_started",
		zap.String("http_addr", cfg.HTTPAddr),
		zap.Bool("networked", cfg.Networked()),
		zap.String("time_control", cfg.TimeControl),
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigCh:
		logger.Info("gamecenter_signal", zap.String("signal", sig.String()))
	case err := <-serveErr:
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("gamecenter_http_failed", zap.Error(err))
		}
	}

	sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := a.Close(sctx); err != nil {
		logger.Warn("gamecenter_shutdown", zap.Error(err))
	}
}
