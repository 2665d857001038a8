// Package ring implements a consistent hashing ring over a fixed-size modular
// hash space. Each node claims exactly one slot derived from its address and
// an item resolves to the first occupied slot clockwise past its own hash,
// so membership changes only remap the items adjacent to the changed slot.
package ring
