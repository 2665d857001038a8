package ring

import (
	"crypto/sha256"
	"math/big"
)

// HashFunc maps a key onto [0, slots).
type HashFunc func(key string, slots int) int

// HashToSlot interprets the SHA-256 digest of key as a big-endian unsigned
// integer and reduces it modulo slots. It returns 0 when slots is not positive.
func HashToSlot(key string, slots int) int {
	if slots <= 0 {
		return 0
	}
	sum := sha256.Sum256([]byte(key))
	n := new(big.Int).SetBytes(sum[:])
	return int(n.Mod(n, big.NewInt(int64(slots))).Int64())
}
