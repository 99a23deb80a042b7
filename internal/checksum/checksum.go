// Package checksum identifies frame contents for history rows and ETags.
package checksum

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
)

// Size is the length of a frame digest in hex characters.
const Size = 16

// Frame returns a short digest of a width×height frame. The shape is part
// of the digest: the same payload reshaped is a different frame.
func Frame(width, height int, payload []byte) string {
	var shape [8]byte
	binary.LittleEndian.PutUint32(shape[:4], uint32(width))
	binary.LittleEndian.PutUint32(shape[4:], uint32(height))

	h := sha256.New()
	h.Write(shape[:])
	h.Write(payload)
	return hex.EncodeToString(h.Sum(nil))[:Size]
}
