// Package cryptoutil provides the checksum helpers used to detect corrupt
// persisted table snapshots.
package cryptoutil

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"hash"
	"strings"

	"github.com/deploymenttheory/go-batch-runner/internal/common/errors"
	"golang.org/x/crypto/blake2b"
)

// HashAlgorithm represents supported hash algorithms
type HashAlgorithm string

const (
	// BLAKE2b256 is the default snapshot checksum
	BLAKE2b256 HashAlgorithm = "blake2b-256"

	// SHA256 algorithm
	SHA256 HashAlgorithm = "sha256"
)

// Hasher computes and verifies hex encoded digests
type Hasher struct {
	algorithm HashAlgorithm
	newHash   func() hash.Hash
}

// NewHasher creates a new Hasher for the specified algorithm
func NewHasher(algorithm HashAlgorithm) (*Hasher, error) {
	switch HashAlgorithm(strings.ToLower(string(algorithm))) {
	case BLAKE2b256, "":
		return &Hasher{algorithm: BLAKE2b256, newHash: newBlake2b256}, nil
	case SHA256:
		return &Hasher{algorithm: SHA256, newHash: sha256.New}, nil
	default:
		return nil, fmt.Errorf("%w: unsupported hash algorithm %q", errors.ErrInvalidArgument, algorithm)
	}
}

func newBlake2b256() hash.Hash {
	// New256 only fails for oversized keys
	h, _ := blake2b.New256(nil)
	return h
}

// Algorithm returns the algorithm name
func (h *Hasher) Algorithm() HashAlgorithm {
	return h.algorithm
}

// Hash returns the hex digest of data
func (h *Hasher) Hash(data []byte) string {
	hasher := h.newHash()
	hasher.Write(data)
	return hex.EncodeToString(hasher.Sum(nil))
}

// Verify checks data against a hex digest in constant time
func (h *Hasher) Verify(data []byte, expected string) bool {
	actual := h.Hash(data)
	return subtle.ConstantTimeCompare([]byte(actual), []byte(strings.ToLower(expected))) == 1
}
