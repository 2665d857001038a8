// Package storage provides the local file storage interface and in-memory
// implementation backing a single storage node. Paths are opaque keys; the
// store does not interpret them.
package storage
