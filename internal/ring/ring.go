package ring

import (
	"sort"
	"sync"
)

// DefaultSlots is the hash space size used when none is configured.
const DefaultSlots = 50

// Node represents a storage node placed on the ring.
// Addr is the only input to placement and must not change after AddNode.
type Node struct {
	ID   string
	Addr string
}

// Member is an occupied slot.
type Member struct {
	Position int
	Node     Node
}

// Location describes how an item was resolved.
type Location struct {
	Item     string
	Slot     int // slot the item hashed to
	Position int // slot of the owning node
	Node     Node
}

// Option configures a Ring.
type Option func(*Ring)

// WithHashFunc replaces the SHA-256 slot function.
func WithHashFunc(fn HashFunc) Option {
	return func(r *Ring) {
		if fn != nil {
			r.hash = fn
		}
	}
}

// Ring implements consistent hashing over a fixed number of slots.
type Ring struct {
	mu      sync.RWMutex
	slots   int
	hash    HashFunc
	members []Member // sorted by Position, no duplicates
}

// NewRing creates an empty ring with the given number of slots.
func NewRing(slots int, opts ...Option) (*Ring, error) {
	if slots <= 0 {
		return nil, ErrInvalidSlotCount
	}
	r := &Ring{
		slots:   slots,
		hash:    HashToSlot,
		members: make([]Member, 0),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// AddNode places node at the slot its address hashes to and returns that slot.
func (r *Ring) AddNode(node Node) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.members) >= r.slots {
		return 0, ErrCapacityExceeded
	}

	pos := r.hash(node.Addr, r.slots)
	idx := r.searchAtLeast(pos)
	if idx < len(r.members) && r.members[idx].Position == pos {
		return 0, &CollisionError{
			Position: pos,
			Incoming: node,
			Occupant: r.members[idx].Node,
		}
	}

	r.members = append(r.members, Member{})
	copy(r.members[idx+1:], r.members[idx:])
	r.members[idx] = Member{Position: pos, Node: node}
	return pos, nil
}

// RemoveNode frees the slot held by node and returns it.
// Items owned by node resolve to its clockwise successor afterwards.
func (r *Ring) RemoveNode(node Node) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.members) == 0 {
		return 0, ErrRingEmpty
	}

	pos := r.hash(node.Addr, r.slots)
	idx := r.searchAtLeast(pos)
	if idx >= len(r.members) || r.members[idx].Position != pos {
		return 0, ErrNodeNotFound
	}
	// Same slot, different address: the caller's node was never added.
	if r.members[idx].Node.Addr != node.Addr {
		return 0, ErrNodeNotFound
	}

	r.members = append(r.members[:idx], r.members[idx+1:]...)
	return pos, nil
}

// Resolve returns the node responsible for item.
func (r *Ring) Resolve(item string) (Node, error) {
	loc, err := r.Lookup(item)
	if err != nil {
		return Node{}, err
	}
	return loc.Node, nil
}

// Lookup resolves item and reports the slots involved.
func (r *Ring) Lookup(item string) (Location, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if len(r.members) == 0 {
		return Location{}, ErrRingEmpty
	}

	slot := r.hash(item, r.slots)
	// First occupied slot strictly after the item's slot, wrapping past the top.
	idx := r.searchAtLeast(slot+1) % len(r.members)
	m := r.members[idx]
	return Location{
		Item:     item,
		Slot:     slot,
		Position: m.Position,
		Node:     m.Node,
	}, nil
}

// Position returns the slot addr hashes to, whether or not it is a member.
func (r *Ring) Position(addr string) int {
	return r.hash(addr, r.slots)
}

// SlotCount returns the size of the hash space.
func (r *Ring) SlotCount() int {
	return r.slots
}

// Len returns the number of occupied slots.
func (r *Ring) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.members)
}

// Positions returns the occupied slots in ascending order.
func (r *Ring) Positions() []int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	positions := make([]int, len(r.members))
	for i, m := range r.members {
		positions[i] = m.Position
	}
	return positions
}

// Nodes returns the members in ring order.
func (r *Ring) Nodes() []Node {
	r.mu.RLock()
	defer r.mu.RUnlock()

	nodes := make([]Node, len(r.members))
	for i, m := range r.members {
		nodes[i] = m.Node
	}
	return nodes
}

// Members returns a copy of the slot table.
func (r *Ring) Members() []Member {
	r.mu.RLock()
	defer r.mu.RUnlock()

	members := make([]Member, len(r.members))
	copy(members, r.members)
	return members
}

// Locate implements placement.Placer.
func (r *Ring) Locate(item string) (Node, error) {
	return r.Resolve(item)
}

// searchAtLeast returns the index of the first member with Position >= pos.
// Callers must hold r.mu.
func (r *Ring) searchAtLeast(pos int) int {
	return sort.Search(len(r.members), func(i int) bool {
		return r.members[i].Position >= pos
	})
}
