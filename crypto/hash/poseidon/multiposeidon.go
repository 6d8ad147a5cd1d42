// Package poseidon hashes arbitrary length lists of field elements with the
// iden3 Poseidon implementation, which is limited to 16 inputs per call.
package poseidon

import (
	"fmt"
	"math/big"

	"github.com/iden3/go-iden3-crypto/poseidon"
	"github.com/vocdoni/anonclaims/types"
)

const (
	chunkSize = 16
	// MaxInputs is the longest list MultiPoseidon accepts.
	MaxInputs = chunkSize * chunkSize
)

// MultiPoseidon hashes up to MaxInputs elements. Up to 16 elements are a
// plain Poseidon hash; longer lists are hashed in chunks of 16 and the chunk
// digests are hashed together.
func MultiPoseidon(inputs ...*big.Int) (*big.Int, error) {
	switch {
	case len(inputs) == 0:
		return nil, fmt.Errorf("%w: no inputs provided", types.ErrMalformedInput)
	case len(inputs) > MaxInputs:
		return nil, fmt.Errorf("%w: too many inputs (%d > %d)", types.ErrMalformedInput, len(inputs), MaxInputs)
	case len(inputs) <= chunkSize:
		return poseidon.Hash(inputs)
	}
	digests := make([]*big.Int, 0, (len(inputs)+chunkSize-1)/chunkSize)
	for start := 0; start < len(inputs); start += chunkSize {
		h, err := poseidon.Hash(inputs[start:min(start+chunkSize, len(inputs))])
		if err != nil {
			return nil, fmt.Errorf("chunk %d: %w", start/chunkSize, err)
		}
		digests = append(digests, h)
	}
	return poseidon.Hash(digests)
}
