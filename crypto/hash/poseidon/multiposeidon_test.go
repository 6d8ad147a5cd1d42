package poseidon

import (
	"errors"
	"math/big"
	"testing"

	qt "github.com/frankban/quicktest"
	"github.com/iden3/go-iden3-crypto/poseidon"
	"github.com/vocdoni/anonclaims/types"
)

func TestMultiPoseidon(t *testing.T) {
	c := qt.New(t)

	_, err := MultiPoseidon()
	c.Assert(errors.Is(err, types.ErrMalformedInput), qt.IsTrue)

	inputs := make([]*big.Int, MaxInputs+1)
	for i := range inputs {
		inputs[i] = big.NewInt(int64(i))
	}
	_, err = MultiPoseidon(inputs...)
	c.Assert(err, qt.ErrorMatches, ".*too many inputs.*")

	// the longest accepted list
	_, err = MultiPoseidon(inputs[:MaxInputs]...)
	c.Assert(err, qt.IsNil)

	// a single chunk equals a plain poseidon hash
	single, err := MultiPoseidon(inputs[:3]...)
	c.Assert(err, qt.IsNil)
	expected, err := poseidon.Hash(inputs[:3])
	c.Assert(err, qt.IsNil)
	c.Assert(single.Cmp(expected), qt.Equals, 0)

	// more than one chunk hashes the chunk hashes
	multi, err := MultiPoseidon(inputs[:20]...)
	c.Assert(err, qt.IsNil)
	h1, _ := poseidon.Hash(inputs[:16])
	h2, _ := poseidon.Hash(inputs[16:20])
	expected, _ = poseidon.Hash([]*big.Int{h1, h2})
	c.Assert(multi.Cmp(expected), qt.Equals, 0)
}
