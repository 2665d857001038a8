// Package node runs a storage node: a gRPC endpoint that fetches and stores
// files in a local store, plus the client side used to reach other nodes.
package node

import (
	"fmt"
	"net"

	"go.uber.org/zap"
	"google.golang.org/grpc"

	"ringstore/internal/metrics"
	"ringstore/internal/storage"
)

// Node represents a single storage node process.
type Node struct {
	nodeID     string
	listenAddr string
	grpcServer *grpc.Server
	store      storage.Store
	logger     *zap.Logger
	metrics    *metrics.Metrics
}

// NewNode creates a new node instance backed by an in-memory store.
func NewNode(nodeID, listenAddr string, logger *zap.Logger, m *metrics.Metrics) *Node {
	n := &Node{
		nodeID:     nodeID,
		listenAddr: listenAddr,
		store:      storage.NewInMemoryStore(),
		logger:     logger.With(zap.String("node_id", nodeID)),
		metrics:    m,
	}

	server := NewServer(n.store, nodeID, logger, m)
	n.grpcServer = grpc.NewServer(grpc.UnaryInterceptor(server.unaryMetrics))
	RegisterStorageNodeServer(n.grpcServer, server)
	return n
}

// ID returns the node ID.
func (n *Node) ID() string {
	return n.nodeID
}

// Store returns the node's local store.
func (n *Node) Store() storage.Store {
	return n.store
}

// Start listens on the configured address and serves until Stop.
func (n *Node) Start() error {
	lis, err := net.Listen("tcp", n.listenAddr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", n.listenAddr, err)
	}
	return n.Serve(lis)
}

// Serve serves the StorageNode service on lis until Stop.
func (n *Node) Serve(lis net.Listener) error {
	n.logger.Info("starting storage node", zap.String("addr", lis.Addr().String()))

	if err := n.grpcServer.Serve(lis); err != nil {
		return fmt.Errorf("failed to serve: %w", err)
	}
	return nil
}

// Stop gracefully stops the node.
func (n *Node) Stop() {
	n.logger.Info("stopping storage node")
	n.grpcServer.GracefulStop()
}
