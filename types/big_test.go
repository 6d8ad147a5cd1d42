package types

import (
	"encoding/json"
	"math/big"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"
	"github.com/fxamacker/cbor/v2"
)

func TestBigMarshalUnmarshalJSON(t *testing.T) {
	c := qt.New(t)
	bi := (*BigInt)(big.NewInt(1234567890))
	jsonBigInt := map[string]*BigInt{
		"bi": bi,
	}
	bBigInt, err := json.Marshal(jsonBigInt)
	c.Assert(err, qt.IsNil)
	c.Assert(string(bBigInt), qt.Equals, `{"bi":"1234567890"}`)

	var unmarshaled map[string]*BigInt
	c.Assert(json.Unmarshal(bBigInt, &unmarshaled), qt.IsNil)
	c.Assert(unmarshaled["bi"].Equal(bi), qt.IsTrue)
}

func TestBigMarshalUnmarshalCBOR(t *testing.T) {
	c := qt.New(t)
	bi := (*BigInt)(big.NewInt(1234567890))
	cborBigInt := map[string]*BigInt{
		"bi": bi,
	}
	bBigInt, err := cbor.Marshal(cborBigInt)
	c.Assert(err, qt.IsNil)

	var unmarshaled map[string]*BigInt
	c.Assert(cbor.Unmarshal(bBigInt, &unmarshaled), qt.IsNil)
	c.Assert(unmarshaled["bi"].Equal(bi), qt.IsTrue)
}

func TestBigIntFromString(t *testing.T) {
	c := qt.New(t)
	_, err := BigIntFromString("not a number")
	c.Assert(err, qt.IsNotNil)

	n, err := BigIntFromString("21888242871839275222246405745257275088548364400416034343698204186575808495616")
	c.Assert(err, qt.IsNil)
	c.Assert(len(n.Bytes()), qt.Equals, FieldElementSize)
}

func TestHexBytesJSON(t *testing.T) {
	c := qt.New(t)
	var hb HexBytes
	c.Assert(json.Unmarshal([]byte(`"0xdeadbeef"`), &hb), qt.IsNil)
	c.Assert(hb.String(), qt.Equals, "deadbeef")

	out, err := json.Marshal(hb)
	c.Assert(err, qt.IsNil)
	c.Assert(string(out), qt.Equals, `"deadbeef"`)

	c.Assert(json.Unmarshal([]byte(`"zz"`), &hb), qt.IsNotNil)
}

func TestClaimCBORRoundTrip(t *testing.T) {
	c := qt.New(t)
	ts := time.UnixMilli(1740000000000).UTC()
	claim := &Claim{
		ID:          "c1",
		Title:       "title",
		Timestamp:   ts,
		AnonGroupID: "example.org",
		Status:      ClaimPending,
		PayloadSignature: PayloadSignature{
			Signature:       (*BigInt)(big.NewInt(42)),
			EphemeralPubkey: (*BigInt)(big.NewInt(7)),
		},
	}
	data, err := cbor.Marshal(claim)
	c.Assert(err, qt.IsNil)

	decoded := &Claim{}
	c.Assert(cbor.Unmarshal(data, decoded), qt.IsNil)
	c.Assert(decoded.ID, qt.Equals, "c1")
	c.Assert(decoded.Timestamp.Equal(ts), qt.IsTrue)
	c.Assert(decoded.Signature.Equal(claim.Signature), qt.IsTrue)
	c.Assert(decoded.Signed().EphemeralPubkey.Equal(claim.EphemeralPubkey), qt.IsTrue)
}

func TestStatusTerminal(t *testing.T) {
	c := qt.New(t)
	c.Assert(ClaimPending.Terminal(), qt.IsFalse)
	c.Assert(ClaimActive.Terminal(), qt.IsFalse)
	c.Assert(ClaimClosed.Terminal(), qt.IsTrue)
	c.Assert(ClaimRejected.Terminal(), qt.IsTrue)
	_, err := ParseClaimStatus("archived")
	c.Assert(err, qt.IsNotNil)
}
