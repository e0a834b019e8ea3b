package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/borghilucas/fluitax-sub001/internal/config"
	"github.com/borghilucas/fluitax-sub001/internal/logx"
	"github.com/borghilucas/fluitax-sub001/internal/metrics"
	"github.com/borghilucas/fluitax-sub001/internal/watcher"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("erro carregando config", "err", err)
		os.Exit(1)
	}

	logx.Init(cfg.LogLevel)
	slog.Info("[fluitax-watcher] iniciando...")

	// inicia métricas Prometheus
	metrics.Init()
	metricsAddr := os.Getenv("FLUITAX_METRICS_ADDR_WATCHER")
	if metricsAddr == "" {
		metricsAddr = ":9100"
	}
	metrics.StartHTTPServer(metricsAddr)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	w, err := watcher.New(cfg)
	if err != nil {
		slog.Error("erro criando watcher", "err", err)
		os.Exit(1)
	}

	if err := w.Run(ctx); err != nil && err != context.Canceled {
		slog.Error("watcher finalizou com erro", "err", err)
		os.Exit(1)
	}

	slog.Info("[fluitax-watcher] finalizado")
}
