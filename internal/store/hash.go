package store

import (
	"encoding/hex"

	"github.com/zeebo/blake3"
)

// ContentHash returns the hex BLAKE3 digest used to detect unchanged files.
func ContentHash(content []byte) string {
	sum := blake3.Sum256(content)
	return hex.EncodeToString(sum[:])
}
