// Package modulo implements the naive "hash mod live node count" placement
// that consistent hashing replaces. Changing the node count remaps almost
// every item, which is what the ring avoids.
package modulo

import (
	"errors"

	"ringstore/internal/ring"
)

// ErrNoNodes is returned when locating against an empty table.
var ErrNoNodes = errors.New("no storage nodes configured")

// Table places items on an ordered list of nodes.
type Table struct {
	nodes []ring.Node
}

// NewTable creates a table over nodes in the given order.
func NewTable(nodes []ring.Node) *Table {
	return &Table{nodes: append([]ring.Node(nil), nodes...)}
}

// Index returns the byte sum of key modulo the node count.
func (t *Table) Index(key string) (int, error) {
	if len(t.nodes) == 0 {
		return 0, ErrNoNodes
	}
	sum := 0
	for _, b := range []byte(key) {
		sum += int(b)
	}
	return sum % len(t.nodes), nil
}

// Locate implements placement.Placer.
func (t *Table) Locate(item string) (ring.Node, error) {
	idx, err := t.Index(item)
	if err != nil {
		return ring.Node{}, err
	}
	return t.nodes[idx], nil
}

// Len returns the number of nodes.
func (t *Table) Len() int {
	return len(t.nodes)
}
