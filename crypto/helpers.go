package crypto

import "math/big"

const SerializedFieldSize = 32 // bytes

// FieldBytes transforms the input to the field provided and serializes it
// as a 32 bytes big endian slice, left padded with zeros. Storage keys of
// nullifiers and statements use this form so equal elements always map to
// equal keys.
func FieldBytes(input, base *big.Int) []byte {
	out := make([]byte, SerializedFieldSize)
	return BigToFF(base, input).FillBytes(out)
}

// BigToFF function returns the finite field representation of the big.Int
// provided. It uses the curve scalar field to represent the provided number.
func BigToFF(baseField, iv *big.Int) *big.Int {
	z := big.NewInt(0)
	if c := iv.Cmp(baseField); c == 0 {
		return z
	} else if c != 1 && iv.Cmp(z) != -1 {
		return iv
	}
	return z.Mod(iv, baseField)
}
