// Package cluster routes file reads and writes to storage nodes through the
// consistent hashing ring, and moves data between nodes when the ring's
// membership changes.
package cluster

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"ringstore/internal/metrics"
	"ringstore/internal/ring"
)

var (
	// ErrHandoff marks a membership change whose data transfer failed.
	ErrHandoff = errors.New("handoff failed")
	// ErrCleanup marks a join that completed but left stale copies behind
	// on the previous owner.
	ErrCleanup = errors.New("stale copies left on previous owner")
	// ErrDuplicateID is returned when a joining node reuses a member's ID.
	ErrDuplicateID = errors.New("node id already a member")
)

// StorageClient is the fetch/store capability of one storage node.
type StorageClient interface {
	Fetch(ctx context.Context, path string) ([]byte, error)
	Store(ctx context.Context, path string, content []byte) error
	List(ctx context.Context) ([]string, error)
	Delete(ctx context.Context, path string) error
}

// DialFunc returns a client for the node at addr.
type DialFunc func(addr string) (StorageClient, error)

// Router places files on storage nodes with a ring.
type Router struct {
	mu      sync.RWMutex // held for writing across membership changes and their handoff
	ring    *ring.Ring
	dial    DialFunc
	logger  *zap.Logger
	metrics *metrics.Metrics
}

// NewRouter creates a router over r.
func NewRouter(r *ring.Ring, dial DialFunc, logger *zap.Logger, m *metrics.Metrics) *Router {
	m.SlotCount.Set(float64(r.SlotCount()))
	m.Members.Set(float64(r.Len()))
	return &Router{
		ring:    r,
		dial:    dial,
		logger:  logger,
		metrics: m,
	}
}

// Ring returns the underlying ring.
func (rt *Router) Ring() *ring.Ring {
	return rt.ring
}

// Locate resolves path to its owning node.
func (rt *Router) Locate(path string) (ring.Location, error) {
	loc, err := rt.ring.Lookup(path)
	rt.metrics.Resolves.WithLabelValues(metrics.Result(err)).Inc()
	return loc, err
}

// NodeByID returns the member with the given ID.
func (rt *Router) NodeByID(id string) (ring.Node, bool) {
	for _, n := range rt.ring.Nodes() {
		if n.ID == id {
			return n, true
		}
	}
	return ring.Node{}, false
}

// Upload stores content on the node that owns path.
func (rt *Router) Upload(ctx context.Context, path string, content []byte) (ring.Node, error) {
	rt.mu.RLock()
	defer rt.mu.RUnlock()

	loc, err := rt.Locate(path)
	if err != nil {
		return ring.Node{}, fmt.Errorf("upload %s: %w", path, err)
	}
	client, err := rt.dial(loc.Node.Addr)
	if err != nil {
		return loc.Node, fmt.Errorf("upload %s: %w", path, err)
	}
	if err := client.Store(ctx, path, content); err != nil {
		return loc.Node, fmt.Errorf("upload %s: %w", path, err)
	}
	rt.logger.Debug("uploaded",
		zap.String("item", path),
		zap.Int("slot", loc.Slot),
		zap.String("node_id", loc.Node.ID))
	return loc.Node, nil
}

// Fetch returns the content of path from the node that owns it.
func (rt *Router) Fetch(ctx context.Context, path string) ([]byte, ring.Node, error) {
	rt.mu.RLock()
	defer rt.mu.RUnlock()

	loc, err := rt.Locate(path)
	if err != nil {
		return nil, ring.Node{}, fmt.Errorf("fetch %s: %w", path, err)
	}
	client, err := rt.dial(loc.Node.Addr)
	if err != nil {
		return nil, loc.Node, fmt.Errorf("fetch %s: %w", path, err)
	}
	content, err := client.Fetch(ctx, path)
	if err != nil {
		return nil, loc.Node, fmt.Errorf("fetch %s: %w", path, err)
	}
	return content, loc.Node, nil
}

// Bootstrap adds nodes to the ring without moving data.
// It stops at the first node that cannot be placed.
func (rt *Router) Bootstrap(nodes []ring.Node) error {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	defer func() { rt.metrics.Members.Set(float64(rt.ring.Len())) }()

	for _, n := range nodes {
		pos, err := rt.ring.AddNode(n)
		rt.metrics.MembershipChanges.WithLabelValues("bootstrap", metrics.Result(err)).Inc()
		if err != nil {
			return fmt.Errorf("bootstrap %s (%s): %w", n.ID, n.Addr, err)
		}
		rt.logger.Info("node placed",
			zap.String("node_id", n.ID),
			zap.String("addr", n.Addr),
			zap.Int("position", pos))
	}
	return nil
}

// Join adds node to the ring and copies from its successor every file the
// new node now owns. If a copy fails the node is taken back out and the
// successor keeps all of its files. Originals are deleted from the successor
// only once every copy succeeded; a failed delete leaves the node in the ring
// and is reported as ErrCleanup along with its position.
func (rt *Router) Join(ctx context.Context, n ring.Node) (int, error) {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	pos, err := rt.join(ctx, n)
	rt.metrics.MembershipChanges.WithLabelValues("join", metrics.Result(err)).Inc()
	rt.metrics.Members.Set(float64(rt.ring.Len()))
	return pos, err
}

func (rt *Router) join(ctx context.Context, n ring.Node) (int, error) {
	if _, exists := rt.NodeByID(n.ID); exists {
		return 0, fmt.Errorf("join %s (%s): %w", n.ID, n.Addr, ErrDuplicateID)
	}
	pos, err := rt.ring.AddNode(n)
	if err != nil {
		return 0, fmt.Errorf("join %s (%s): %w", n.ID, n.Addr, err)
	}
	logger := rt.logger.With(zap.String("node_id", n.ID), zap.String("addr", n.Addr), zap.Int("position", pos))

	successor, ok := successorOf(rt.ring.Members(), pos)
	if !ok {
		logger.Info("node joined empty ring")
		return pos, nil
	}

	copied, err := rt.copyOwned(ctx, successor, n)
	if err != nil {
		if _, rerr := rt.ring.RemoveNode(n); rerr != nil {
			logger.Error("rollback after failed handoff", zap.Error(rerr))
		}
		logger.Warn("join rolled back", zap.Error(err))
		return 0, fmt.Errorf("join %s: %w: %w", n.ID, ErrHandoff, err)
	}

	// n owns the copies from here on; the ring is not rolled back.
	rt.metrics.HandoffFiles.WithLabelValues("join").Add(float64(len(copied)))
	if err := rt.deleteFrom(ctx, successor, copied); err != nil {
		logger.Warn("node joined, stale copies remain on successor",
			zap.String("successor", successor.ID),
			zap.Int("files_moved", len(copied)),
			zap.Error(err))
		return pos, fmt.Errorf("join %s: %w: %w", n.ID, ErrCleanup, err)
	}
	logger.Info("node joined",
		zap.String("successor", successor.ID),
		zap.Int("files_moved", len(copied)))
	return pos, nil
}

// Leave removes node from the ring and pushes each of its files to the
// file's new owner. Membership changes even when the transfer fails.
func (rt *Router) Leave(ctx context.Context, n ring.Node) (int, error) {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	pos, err := rt.leave(ctx, n)
	rt.metrics.MembershipChanges.WithLabelValues("leave", metrics.Result(err)).Inc()
	rt.metrics.Members.Set(float64(rt.ring.Len()))
	return pos, err
}

func (rt *Router) leave(ctx context.Context, n ring.Node) (int, error) {
	pos, err := rt.ring.RemoveNode(n)
	if err != nil {
		return 0, fmt.Errorf("leave %s (%s): %w", n.ID, n.Addr, err)
	}
	logger := rt.logger.With(zap.String("node_id", n.ID), zap.String("addr", n.Addr), zap.Int("position", pos))

	moved, err := rt.pushFrom(ctx, n)
	rt.metrics.HandoffFiles.WithLabelValues("leave").Add(float64(moved))
	if err != nil {
		logger.Warn("node left with incomplete handoff", zap.Int("files_moved", moved), zap.Error(err))
		return pos, fmt.Errorf("leave %s: %w: %w", n.ID, ErrHandoff, err)
	}
	logger.Info("node left", zap.Int("files_moved", moved))
	return pos, nil
}

// successorOf returns the member clockwise after pos, skipping pos itself.
func successorOf(members []ring.Member, pos int) (ring.Node, bool) {
	if len(members) < 2 {
		return ring.Node{}, false
	}
	for _, m := range members {
		if m.Position > pos {
			return m.Node, true
		}
	}
	return members[0].Node, true
}
