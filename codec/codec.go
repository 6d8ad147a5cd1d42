// Package codec defines the canonical byte encoding of the signable payloads
// (claims and messages) and the sign and verify operations over it.
//
// The canonical form is deterministic CBOR with integer keys: map ordering,
// integer widths and timestamps (unix milliseconds) are fixed, so two
// semantically equal payloads always produce the same bytes.
package codec

import (
	"fmt"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/vocdoni/anonclaims/crypto/ephemeral"
	"github.com/vocdoni/anonclaims/log"
	"github.com/vocdoni/anonclaims/types"
)

// DefaultEpochCutover is the first instant whose payloads can be verified.
// Earlier payloads were produced by an incompatible circuit.
var DefaultEpochCutover = time.Date(2025, time.February, 23, 0, 0, 0, 0, time.UTC)

const (
	kindClaim   = "claim"
	kindMessage = "message"
)

// canonicalClaim holds the authored fields of a claim. Status, likes and
// deadlines are assigned by the server after signing and are not covered.
type canonicalClaim struct {
	Kind              string `cbor:"1,keyasint"`
	ID                string `cbor:"2,keyasint"`
	Title             string `cbor:"3,keyasint"`
	Description       string `cbor:"4,keyasint"`
	SourceURL         string `cbor:"5,keyasint"`
	Timestamp         int64  `cbor:"6,keyasint"`
	AnonGroupID       string `cbor:"7,keyasint"`
	AnonGroupProvider string `cbor:"8,keyasint"`
	Internal          bool   `cbor:"9,keyasint"`
}

type canonicalMessage struct {
	Kind              string `cbor:"1,keyasint"`
	ID                string `cbor:"2,keyasint"`
	Text              string `cbor:"3,keyasint"`
	Timestamp         int64  `cbor:"4,keyasint"`
	AnonGroupID       string `cbor:"5,keyasint"`
	AnonGroupProvider string `cbor:"6,keyasint"`
	Internal          bool   `cbor:"7,keyasint"`
}

var encMode = func() cbor.EncMode {
	em, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("canonical cbor mode: %v", err))
	}
	return em
}()

// Codec signs and verifies payloads. Now and EpochCutover are replaceable.
type Codec struct {
	EpochCutover time.Time
	Now          func() time.Time
}

// New returns a codec with the given cutover; the zero time selects
// DefaultEpochCutover.
func New(cutover time.Time) *Codec {
	if cutover.IsZero() {
		cutover = DefaultEpochCutover
	}
	return &Codec{EpochCutover: cutover, Now: time.Now}
}

// Encode returns the canonical bytes of a claim or a message. The signature
// fields are never part of the encoding.
func Encode(payload types.SignedPayload) ([]byte, error) {
	switch p := payload.(type) {
	case *types.Claim:
		return encMode.Marshal(&canonicalClaim{
			Kind:              kindClaim,
			ID:                p.ID,
			Title:             p.Title,
			Description:       p.Description,
			SourceURL:         p.SourceURL,
			Timestamp:         p.Timestamp.UnixMilli(),
			AnonGroupID:       p.AnonGroupID,
			AnonGroupProvider: p.AnonGroupProvider,
			Internal:          p.Internal,
		})
	case *types.Message:
		return encMode.Marshal(&canonicalMessage{
			Kind:              kindMessage,
			ID:                p.ID,
			Text:              p.Text,
			Timestamp:         p.Timestamp.UnixMilli(),
			AnonGroupID:       p.AnonGroupID,
			AnonGroupProvider: p.AnonGroupProvider,
			Internal:          p.Internal,
		})
	case nil:
		return nil, fmt.Errorf("%w: nil payload", types.ErrMalformedInput)
	default:
		return nil, fmt.Errorf("%w: unsupported payload %T", types.ErrMalformedInput, payload)
	}
}

// Sign signs the payload with the identity and fills its signature fields.
func Sign(payload types.SignedPayload, id *ephemeral.Identity) error {
	data, err := Encode(payload)
	if err != nil {
		return err
	}
	sig := payload.Signed()
	sig.Signature = id.Sign(data)
	sig.EphemeralPubkey = id.PublicKey
	sig.EphemeralPubkeyExpiry = id.Expiry
	return nil
}

// Verify checks a signed payload. It returns ErrProtocolVersion for payloads
// older than the cutover and ErrExpiredIdentity once the signing key has
// expired; otherwise the result of the signature check, where false means
// the signature does not match. Malformed keys are errors.
func (c *Codec) Verify(payload types.SignedPayload) (bool, error) {
	return c.VerifyAt(payload, c.Now())
}

// VerifyAt is Verify with an explicit clock reading.
func (c *Codec) VerifyAt(payload types.SignedPayload, now time.Time) (bool, error) {
	if payload == nil {
		return false, fmt.Errorf("%w: nil payload", types.ErrMalformedInput)
	}
	if payload.PayloadTime().Before(c.EpochCutover) {
		return false, fmt.Errorf("%w: timestamp %s is before %s", types.ErrProtocolVersion,
			payload.PayloadTime().UTC().Format(time.RFC3339), c.EpochCutover.UTC().Format(time.DateOnly))
	}
	sig := payload.Signed()
	if !now.Before(sig.EphemeralPubkeyExpiry) {
		return false, fmt.Errorf("%w: expired at %s", types.ErrExpiredIdentity,
			sig.EphemeralPubkeyExpiry.UTC().Format(time.RFC3339))
	}
	data, err := Encode(payload)
	if err != nil {
		return false, err
	}
	ok, err := ephemeral.Verify(sig.EphemeralPubkey, data, sig.Signature)
	if err != nil {
		return false, err
	}
	if !ok {
		log.Debugw("payload signature mismatch", "pubkey", sig.EphemeralPubkey.String())
	}
	return ok, nil
}
