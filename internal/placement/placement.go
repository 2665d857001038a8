// Package placement compares item-to-node assignment strategies.
package placement

import (
	"fmt"
	"sort"

	"ringstore/internal/ring"
)

// Placer maps an item onto the node that should hold it.
type Placer interface {
	Locate(item string) (ring.Node, error)
}

// Assignment maps items to their owning node.
type Assignment map[string]ring.Node

// Move is an item whose owner differs between two assignments.
type Move struct {
	Item string
	From ring.Node
	To   ring.Node
}

// Assign locates every item with p.
func Assign(p Placer, items []string) (Assignment, error) {
	a := make(Assignment, len(items))
	for _, item := range items {
		n, err := p.Locate(item)
		if err != nil {
			return nil, fmt.Errorf("locate %s: %w", item, err)
		}
		a[item] = n
	}
	return a, nil
}

// Moved returns the items present in both assignments whose owner changed,
// sorted by item.
func Moved(before, after Assignment) []Move {
	moves := make([]Move, 0)
	for item, from := range before {
		to, ok := after[item]
		if !ok || to == from {
			continue
		}
		moves = append(moves, Move{Item: item, From: from, To: to})
	}
	sort.Slice(moves, func(i, j int) bool {
		return moves[i].Item < moves[j].Item
	})
	return moves
}

// Load counts items per node ID.
func Load(a Assignment) map[string]int {
	load := make(map[string]int)
	for _, n := range a {
		load[n.ID]++
	}
	return load
}
