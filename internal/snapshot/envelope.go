package snapshot

import (
	"encoding/json"
	"fmt"

	compression "github.com/deploymenttheory/go-batch-runner/internal/common/compressionutil"
	"github.com/deploymenttheory/go-batch-runner/internal/common/cryptoutil"
	"github.com/deploymenttheory/go-batch-runner/internal/common/errors"
)

const envelopeVersion = 1

// envelope wraps a compressed payload with its checksum. Payload is base64
// in the JSON form.
type envelope struct {
	Version   int                      `json:"version"`
	Algorithm cryptoutil.HashAlgorithm `json:"algorithm"`
	Checksum  string                   `json:"checksum"`
	Payload   []byte                   `json:"payload"`
}

// Seal compresses data with xz and adds a BLAKE2b checksum
func Seal(data []byte) ([]byte, error) {
	packed, err := compression.Compress(data, compression.XZ)
	if err != nil {
		return nil, err
	}
	hasher, err := cryptoutil.NewHasher(cryptoutil.BLAKE2b256)
	if err != nil {
		return nil, err
	}
	return json.Marshal(envelope{
		Version:   envelopeVersion,
		Algorithm: hasher.Algorithm(),
		Checksum:  hasher.Hash(packed),
		Payload:   packed,
	})
}

// Open verifies and unpacks a sealed blob. Any failure is ErrSnapshotCorrupt.
func Open(sealed []byte) ([]byte, error) {
	var env envelope
	if err := json.Unmarshal(sealed, &env); err != nil {
		return nil, fmt.Errorf("%w: %s", errors.ErrSnapshotCorrupt, err.Error())
	}
	if env.Version != envelopeVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", errors.ErrSnapshotCorrupt, env.Version)
	}
	hasher, err := cryptoutil.NewHasher(env.Algorithm)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", errors.ErrSnapshotCorrupt, err.Error())
	}
	if !hasher.Verify(env.Payload, env.Checksum) {
		return nil, fmt.Errorf("%w: checksum mismatch", errors.ErrSnapshotCorrupt)
	}
	data, err := compression.Decompress(env.Payload, compression.XZ)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", errors.ErrSnapshotCorrupt, err.Error())
	}
	return data, nil
}
