package verifier

import (
	"context"
	"errors"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"
	"github.com/vocdoni/anonclaims/codec"
	"github.com/vocdoni/anonclaims/crypto/ephemeral"
	"github.com/vocdoni/anonclaims/provider"
	"github.com/vocdoni/anonclaims/provider/oauth"
	"github.com/vocdoni/anonclaims/prover/mock"
	"github.com/vocdoni/anonclaims/types"
)

func TestPipeline(t *testing.T) {
	c := qt.New(t)
	ctx := context.Background()
	now := time.Date(2025, time.April, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	backend := mock.New()
	prov := oauth.New("", "", backend)
	prov.SetNow(clock)
	cdc := codec.New(time.Time{})
	cdc.Now = clock
	p := New(cdc, provider.NewRegistry(prov))

	gen := ephemeral.NewGenerator(time.Hour)
	gen.Now = clock
	id, err := gen.Generate()
	c.Assert(err, qt.IsNil)
	proof, err := prov.WithAuthenticator(oauth.StaticEmail("carol@vocdoni.io")).GenerateProof(ctx, id)
	c.Assert(err, qt.IsNil)
	membership := func() *types.Membership {
		return &types.Membership{
			Pubkey:       id.PublicKey,
			GroupID:      proof.AnonGroup.ID,
			Provider:     oauth.DefaultSlug,
			Proof:        proof.Proof,
			ProofArgs:    proof.ProofArgs,
			Role:         types.RoleCurator,
			PubkeyExpiry: id.Expiry,
		}
	}
	claim := func() *types.Claim {
		cl := &types.Claim{
			ID:                "claim-1",
			Title:             "New office opens in May",
			Timestamp:         now,
			AnonGroupID:       "vocdoni.io",
			AnonGroupProvider: oauth.DefaultSlug,
		}
		c.Assert(codec.Sign(cl, id), qt.IsNil)
		return cl
	}

	res := p.Verify(ctx, claim(), membership())
	c.Assert(res.Valid, qt.IsTrue)
	c.Assert(res.Error(), qt.IsNil)

	tampered := claim()
	tampered.Description = "and closes in June"
	res = p.Verify(ctx, tampered, membership())
	c.Assert(res.Reason, qt.Equals, ReasonInvalidSignature)
	c.Assert(errors.Is(res.Error(), types.ErrInvalidSignature), qt.IsTrue)

	old := claim()
	old.Timestamp = codec.DefaultEpochCutover.Add(-time.Minute)
	c.Assert(codec.Sign(old, id), qt.IsNil)
	res = p.Verify(ctx, old, membership())
	c.Assert(res.Reason, qt.Equals, ReasonProtocolVersion)
	c.Assert(errors.Is(res.Error(), types.ErrProtocolVersion), qt.IsTrue)

	res = p.VerifyAt(ctx, claim(), membership(), id.Expiry)
	c.Assert(res.Reason, qt.Equals, ReasonExpiredIdentity)
	c.Assert(errors.Is(res.Error(), types.ErrExpiredIdentity), qt.IsTrue)

	other := membership()
	other.Pubkey = new(types.BigInt).SetUint64(7)
	res = p.Verify(ctx, claim(), other)
	c.Assert(res.Reason, qt.Equals, ReasonKeyMismatch)

	other = membership()
	other.GroupID = "example.com"
	res = p.Verify(ctx, claim(), other)
	c.Assert(res.Reason, qt.Equals, ReasonGroupMismatch)
	c.Assert(errors.Is(res.Error(), types.ErrUnauthorized), qt.IsTrue)

	cl := claim()
	cl.AnonGroupProvider = "github"
	c.Assert(codec.Sign(cl, id), qt.IsNil)
	other = membership()
	other.Provider = "github"
	res = p.Verify(ctx, cl, other)
	c.Assert(res.Reason, qt.Equals, ReasonUnknownProvider)
	c.Assert(errors.Is(res.Error(), types.ErrUnknownProvider), qt.IsTrue)

	other = membership()
	other.Proof = append(types.HexBytes{}, other.Proof...)
	other.Proof[0] ^= 0xff
	res = p.Verify(ctx, claim(), other)
	c.Assert(res.Reason, qt.Equals, ReasonInvalidProof)
	c.Assert(errors.Is(res.Error(), types.ErrInvalidProof), qt.IsTrue)

	// an unavailable backend surfaces as such, never as an invalid proof
	backend.SetUnavailable(true)
	res = p.Verify(ctx, claim(), membership())
	c.Assert(res.Valid, qt.IsFalse)
	c.Assert(errors.Is(res.Error(), types.ErrProverUnavailable), qt.IsTrue)
	c.Assert(errors.Is(res.Error(), types.ErrInvalidProof), qt.IsFalse)

	res = p.Verify(ctx, nil, membership())
	c.Assert(res.Reason, qt.Equals, ReasonMalformed)
}
