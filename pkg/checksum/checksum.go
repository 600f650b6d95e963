// Package checksum fingerprints ledger contents so unchanged blobs can be
// recognised without parsing them.
package checksum

import (
	"crypto/sha256"
	"encoding/hex"
)

// Sum is the SHA-256 digest and length of a byte stream
type Sum struct {
	Digest    [sha256.Size]byte
	SizeBytes int64
}

// Of computes the checksum of data
func Of(data []byte) Sum {
	return Sum{Digest: sha256.Sum256(data), SizeBytes: int64(len(data))}
}

// String renders the digest as hex
func (s Sum) String() string {
	return hex.EncodeToString(s.Digest[:])
}
