package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"ringstore/internal/admin"
	"ringstore/internal/cluster"
	"ringstore/internal/config"
	"ringstore/internal/metrics"
	"ringstore/internal/node"
	"ringstore/internal/ring"
)

const shutdownTimeout = 30 * time.Second

func main() {
	cfg, err := config.Load("ringd", os.Args[1:])
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logger, err := config.NewLogger(cfg.LogLevel)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	r, err := ring.NewRing(cfg.Slots)
	if err != nil {
		logger.Fatal("failed to create ring", zap.Error(err))
	}

	clients := node.NewClientManager()
	defer clients.Close()

	m := metrics.New()
	router := cluster.NewRouter(r, cluster.NodeDialer(clients), logger, m)
	if err := router.Bootstrap(cfg.RingNodes()); err != nil {
		logger.Fatal("failed to place storage nodes", zap.Error(err))
	}

	srv := &http.Server{
		Addr:              cfg.AdminAddr,
		Handler:           admin.NewHandler(router, m, logger).Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("admin listening",
			zap.String("addr", cfg.AdminAddr),
			zap.Int("slots", r.SlotCount()),
			zap.Int("members", r.Len()))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("admin server failed", zap.Error(err))
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("admin shutdown", zap.Error(err))
	}
}
