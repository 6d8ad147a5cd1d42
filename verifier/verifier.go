// Package verifier checks a signed payload end to end: the signature of the
// ephemeral key and the membership proof that ties the key to its anonymity
// set.
package verifier

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/vocdoni/anonclaims/codec"
	"github.com/vocdoni/anonclaims/log"
	"github.com/vocdoni/anonclaims/provider"
	"github.com/vocdoni/anonclaims/types"
)

// Reason is the cause of a failed verification.
type Reason string

const (
	ReasonNone             Reason = ""
	ReasonProtocolVersion  Reason = "protocol_version"
	ReasonExpiredIdentity  Reason = "expired_identity"
	ReasonInvalidSignature Reason = "invalid_signature"
	ReasonKeyMismatch      Reason = "key_mismatch"
	ReasonGroupMismatch    Reason = "group_mismatch"
	ReasonUnknownProvider  Reason = "unknown_provider"
	ReasonInvalidProof     Reason = "invalid_proof"
	ReasonMalformed        Reason = "malformed"
)

// Result is the outcome of a verification. Err carries the underlying error
// when the check did not just fail but could not be completed or was
// rejected by policy.
type Result struct {
	Valid  bool   `json:"valid"`
	Reason Reason `json:"reason,omitempty"`
	Err    error  `json:"-"`
}

// Error returns the protocol error matching the failure, nil if valid.
func (r *Result) Error() error {
	if r.Valid {
		return nil
	}
	if r.Err != nil {
		return r.Err
	}
	switch r.Reason {
	case ReasonInvalidSignature:
		return types.ErrInvalidSignature
	case ReasonKeyMismatch, ReasonGroupMismatch:
		return types.ErrUnauthorized
	case ReasonUnknownProvider:
		return types.ErrUnknownProvider
	case ReasonInvalidProof:
		return types.ErrInvalidProof
	default:
		return types.ErrMalformedInput
	}
}

// Pipeline verifies signed payloads against their author membership.
type Pipeline struct {
	codec     *codec.Codec
	providers *provider.Registry
}

func New(cdc *codec.Codec, providers *provider.Registry) *Pipeline {
	return &Pipeline{codec: cdc, providers: providers}
}

// Verify checks the signature of the payload, then the membership proof of
// its signer. It stops at the first failure.
func (p *Pipeline) Verify(ctx context.Context, payload types.SignedPayload, m *types.Membership) *Result {
	return p.VerifyAt(ctx, payload, m, p.codec.Now())
}

// VerifyAt is Verify with an explicit clock reading.
func (p *Pipeline) VerifyAt(ctx context.Context, payload types.SignedPayload, m *types.Membership, now time.Time) *Result {
	res := p.verify(ctx, payload, m, now)
	if !res.Valid {
		log.Debugw("payload verification failed", "reason", string(res.Reason), "error", errString(res.Err))
	}
	return res
}

func (p *Pipeline) verify(ctx context.Context, payload types.SignedPayload, m *types.Membership, now time.Time) *Result {
	if payload == nil || m == nil {
		return fail(ReasonMalformed, fmt.Errorf("%w: missing payload or membership", types.ErrMalformedInput))
	}
	ok, err := p.codec.VerifyAt(payload, now)
	switch {
	case errors.Is(err, types.ErrProtocolVersion):
		return fail(ReasonProtocolVersion, err)
	case errors.Is(err, types.ErrExpiredIdentity):
		return fail(ReasonExpiredIdentity, err)
	case err != nil:
		return fail(ReasonMalformed, err)
	case !ok:
		return fail(ReasonInvalidSignature, nil)
	}

	sig := payload.Signed()
	if !sig.EphemeralPubkey.Equal(m.Pubkey) {
		return fail(ReasonKeyMismatch, nil)
	}
	if groupID, providerSlug := payloadGroup(payload); groupID != m.GroupID || providerSlug != m.Provider {
		return fail(ReasonGroupMismatch, nil)
	}
	prov, err := p.providers.Get(m.Provider)
	if err != nil {
		return fail(ReasonUnknownProvider, err)
	}
	ok, err = prov.VerifyProof(ctx, m.Proof, m.GroupID, m.Pubkey, m.PubkeyExpiry, m.ProofArgs)
	switch {
	case errors.Is(err, types.ErrExpiredIdentity):
		return fail(ReasonExpiredIdentity, err)
	case err != nil:
		return fail(ReasonInvalidProof, err)
	case !ok:
		return fail(ReasonInvalidProof, nil)
	}
	return &Result{Valid: true}
}

func payloadGroup(payload types.SignedPayload) (string, string) {
	switch p := payload.(type) {
	case *types.Claim:
		return p.AnonGroupID, p.AnonGroupProvider
	case *types.Message:
		return p.AnonGroupID, p.AnonGroupProvider
	}
	return "", ""
}

func fail(reason Reason, err error) *Result {
	return &Result{Reason: reason, Err: err}
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
