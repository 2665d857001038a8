package ring

import (
	"errors"
	"fmt"
)

var (
	// ErrCapacityExceeded is returned by AddNode when every slot is occupied.
	ErrCapacityExceeded = errors.New("hash space is full")
	// ErrSlotCollision is returned by AddNode when the node's slot is taken.
	ErrSlotCollision = errors.New("slot already occupied")
	// ErrRingEmpty is returned when resolving or removing against an empty ring.
	ErrRingEmpty = errors.New("ring is empty")
	// ErrNodeNotFound is returned by RemoveNode for a node that is not a member.
	ErrNodeNotFound = errors.New("node not present in ring")
	// ErrInvalidSlotCount is returned by NewRing for a non-positive slot count.
	ErrInvalidSlotCount = errors.New("slot count must be positive")
)

// CollisionError describes a rejected AddNode. It matches ErrSlotCollision
// under errors.Is.
type CollisionError struct {
	Position int
	Incoming Node
	Occupant Node
}

func (e *CollisionError) Error() string {
	return fmt.Sprintf("slot %d: %s (%s) collides with %s (%s)",
		e.Position, e.Incoming.ID, e.Incoming.Addr, e.Occupant.ID, e.Occupant.Addr)
}

func (e *CollisionError) Unwrap() error {
	return ErrSlotCollision
}
