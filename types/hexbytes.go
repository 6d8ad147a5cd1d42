package types

import (
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"
)

// HexBytes is a []byte which encodes as hexadecimal in json, as opposed to the
// base64 default.
type HexBytes []byte

func (b HexBytes) String() string {
	return hex.EncodeToString(b)
}

// BigInt returns the big.Int representation of the bytes, read as big endian.
func (b HexBytes) BigInt() *BigInt {
	return (*BigInt)(new(big.Int).SetBytes(b))
}

func (b HexBytes) MarshalJSON() ([]byte, error) {
	enc := make([]byte, hex.EncodedLen(len(b))+2)
	enc[0] = '"'
	hex.Encode(enc[1:], b)
	enc[len(enc)-1] = '"'
	return enc, nil
}

func (b *HexBytes) UnmarshalJSON(data []byte) error {
	if len(data) < 2 || data[0] != '"' || data[len(data)-1] != '"' {
		return fmt.Errorf("invalid JSON string: %q", data)
	}
	data = data[1 : len(data)-1]

	// Strip a leading "0x", to be more permissive.
	if len(data) >= 2 && data[0] == '0' && (data[1] == 'x' || data[1] == 'X') {
		data = data[2:]
	}

	decoded := make([]byte, hex.DecodedLen(len(data)))
	if _, err := hex.Decode(decoded, data); err != nil {
		return err
	}
	*b = decoded
	return nil
}

// HexStringToHexBytes converts a hex string, with or without the 0x prefix,
// to HexBytes.
func HexStringToHexBytes(hexString string) (HexBytes, error) {
	b, err := hex.DecodeString(strings.TrimPrefix(strings.TrimPrefix(hexString, "0x"), "0X"))
	if err != nil {
		return nil, err
	}
	return HexBytes(b), nil
}
