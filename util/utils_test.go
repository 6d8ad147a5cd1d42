package util

import (
	"crypto/sha256"
	"math/big"
	"testing"

	qt "github.com/frankban/quicktest"
)

func TestBigToFF(t *testing.T) {
	c := qt.New(t)
	c.Assert(BigToFF(big.NewInt(5)).Int64(), qt.Equals, int64(5))
	c.Assert(BigToFF(ScalarField()).Sign(), qt.Equals, 0)

	over := new(big.Int).Add(ScalarField(), big.NewInt(3))
	c.Assert(BigToFF(over).Int64(), qt.Equals, int64(3))

	neg := big.NewInt(-1)
	c.Assert(BigToFF(neg).Cmp(new(big.Int).Sub(ScalarField(), big.NewInt(1))), qt.Equals, 0)
}

func TestStringToField(t *testing.T) {
	c := qt.New(t)
	a := StringToField("claim-1")
	c.Assert(a.Cmp(StringToField("claim-1")), qt.Equals, 0)
	c.Assert(a.Cmp(StringToField("claim-2")), qt.Not(qt.Equals), 0)
	c.Assert(a.Cmp(ScalarField()), qt.Equals, -1)

	hash := sha256.Sum256([]byte("claim-1"))
	expected := new(big.Int).Mod(new(big.Int).SetBytes(hash[:]), ScalarField())
	c.Assert(a.Cmp(expected), qt.Equals, 0)
}

func TestRandomBytes(t *testing.T) {
	c := qt.New(t)
	a, b := RandomBytes(32), RandomBytes(32)
	c.Assert(a, qt.HasLen, 32)
	c.Assert(a, qt.Not(qt.DeepEquals), b)
}
