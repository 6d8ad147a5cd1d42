package types

import (
	"fmt"
	"math/big"

	"github.com/fxamacker/cbor/v2"
)

// BigInt is a big.Int wrapper which marshals JSON and CBOR to a decimal
// string. Public keys, signatures and nullifiers travel in this form.
type BigInt big.Int

// MarshalText returns the decimal string representation of the big number.
// If the receiver is nil, we return "0".
func (i *BigInt) MarshalText() ([]byte, error) {
	if i == nil {
		return []byte("0"), nil
	}
	return (*big.Int)(i).MarshalText()
}

// UnmarshalText parses the text representation into the big number.
func (i *BigInt) UnmarshalText(data []byte) error {
	if i == nil {
		return fmt.Errorf("cannot unmarshal into nil BigInt")
	}
	if _, ok := (*big.Int)(i).SetString(string(data), 10); !ok {
		return fmt.Errorf("invalid big number: %q", data)
	}
	return nil
}

func (i *BigInt) MarshalCBOR() ([]byte, error) {
	return cbor.Marshal(i.String())
}

func (i *BigInt) UnmarshalCBOR(data []byte) error {
	var s string
	if err := cbor.Unmarshal(data, &s); err != nil {
		return err
	}
	return i.UnmarshalText([]byte(s))
}

// String returns the decimal representation. A nil receiver returns "0".
func (i *BigInt) String() string {
	if i == nil {
		return "0"
	}
	return (*big.Int)(i).String()
}

// SetString parses a decimal string, returns nil if it is not a number.
func (i *BigInt) SetString(s string) (*BigInt, bool) {
	_, ok := (*big.Int)(i).SetString(s, 10)
	return i, ok
}

// BigIntFromString parses a decimal string into a new BigInt.
func BigIntFromString(s string) (*BigInt, error) {
	i, ok := new(BigInt).SetString(s)
	if !ok {
		return nil, fmt.Errorf("invalid big number: %q", s)
	}
	return i, nil
}

// MathBigInt converts b to a math/big *Int.
func (i *BigInt) MathBigInt() *big.Int {
	return (*big.Int)(i)
}

func (i *BigInt) SetBigInt(v *big.Int) *BigInt {
	(*big.Int)(i).Set(v)
	return i
}

func (i *BigInt) SetUint64(v uint64) *BigInt {
	(*big.Int)(i).SetUint64(v)
	return i
}

func (i *BigInt) SetBytes(b []byte) *BigInt {
	(*big.Int)(i).SetBytes(b)
	return i
}

// Bytes returns the big endian bytes of the number.
func (i *BigInt) Bytes() []byte {
	return (*big.Int)(i).Bytes()
}

// Equal reports whether both numbers are equal. Two nil values are equal.
func (i *BigInt) Equal(j *BigInt) bool {
	if i == nil || j == nil {
		return i == j
	}
	return (*big.Int)(i).Cmp((*big.Int)(j)) == 0
}
