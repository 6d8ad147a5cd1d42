// Package util holds the small helpers shared by the protocol packages.
package util

import (
	"crypto/rand"
	"crypto/sha256"
	"math/big"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/vocdoni/anonclaims/crypto"
)

// RandomBytes generates a random byte slice of length n.
func RandomBytes(n int) []byte {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		panic(err)
	}
	return b
}

// bn254ScalarField is the scalar field of BN254, which is also the base
// field of BabyJubJub and the field the Poseidon hash works on.
var bn254ScalarField = ecc.BN254.ScalarField()

// ScalarField returns a copy of the BN254 scalar field modulus.
func ScalarField() *big.Int {
	return new(big.Int).Set(bn254ScalarField)
}

// BigToFF reduces iv into the BN254 scalar field.
func BigToFF(iv *big.Int) *big.Int {
	return crypto.BigToFF(bn254ScalarField, iv)
}

// StringToField maps an arbitrary string (claim ids, group ids, proof
// arguments) to a field element: sha256 of the UTF-8 bytes, read as a big
// endian integer and reduced modulo the scalar field.
func StringToField(s string) *big.Int {
	hash := sha256.Sum256([]byte(s))
	return BigToFF(new(big.Int).SetBytes(hash[:]))
}
