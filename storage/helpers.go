package storage

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

var encMode = func() cbor.EncMode {
	encOpts := cbor.CoreDetEncOptions()
	// the default (unix seconds) would truncate deadlines and expiries
	encOpts.Time = cbor.TimeRFC3339Nano
	em, err := encOpts.EncMode()
	if err != nil {
		panic(fmt.Sprintf("cbor encoding mode: %v", err))
	}
	return em
}()

// encodeRecord encodes a stored record with the deterministic cbor mode.
func encodeRecord(a any) ([]byte, error) {
	data, err := encMode.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("encode record: %w", err)
	}
	return data, nil
}

func decodeRecord(data []byte, out any) error {
	return cbor.Unmarshal(data, out)
}
