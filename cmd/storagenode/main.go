package main

import (
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"ringstore/internal/config"
	"ringstore/internal/metrics"
	"ringstore/internal/node"
)

func main() {
	cfg, err := config.Load("storagenode", os.Args[1:])
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	if cfg.NodeID == "" {
		log.Fatalf("Invalid configuration: %v", config.ErrNodeIDMissing)
	}

	logger, err := config.NewLogger(cfg.LogLevel)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	m := metrics.New()
	n := node.NewNode(cfg.NodeID, cfg.ListenAddr, logger, m)

	if cfg.AdminAddr != "" {
		routes := mux.NewRouter()
		routes.Handle("/metrics", m.Handler()).Methods(http.MethodGet)
		go func() {
			if err := http.ListenAndServe(cfg.AdminAddr, routes); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics listener failed", zap.Error(err))
			}
		}()
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		n.Stop()
	}()

	if err := n.Start(); err != nil {
		logger.Fatal("storage node failed", zap.Error(err))
	}
}
