package nullifier_test

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"
	"github.com/vocdoni/anonclaims/nullifier"
	"github.com/vocdoni/anonclaims/prover/mock"
	"github.com/vocdoni/anonclaims/storage"
	"github.com/vocdoni/anonclaims/types"
	"github.com/vocdoni/anonclaims/util"
	"go.vocdoni.io/dvote/db/metadb"
)

func TestDerive(t *testing.T) {
	c := qt.New(t)
	secret := big.NewInt(123456789)

	n1, err := nullifier.Derive(secret, "claim-1")
	c.Assert(err, qt.IsNil)
	again, err := nullifier.Derive(secret, "claim-1")
	c.Assert(err, qt.IsNil)
	c.Assert(n1.Equal(again), qt.IsTrue)

	n2, err := nullifier.Derive(secret, "claim-2")
	c.Assert(err, qt.IsNil)
	c.Assert(n1.Equal(n2), qt.IsFalse)

	other, err := nullifier.Derive(big.NewInt(987654321), "claim-1")
	c.Assert(err, qt.IsNil)
	c.Assert(n1.Equal(other), qt.IsFalse)

	c.Assert(n1.MathBigInt().Cmp(util.ScalarField()), qt.Equals, -1)

	commitment, err := nullifier.Commitment(secret)
	c.Assert(err, qt.IsNil)
	c.Assert(commitment.Equal(n1), qt.IsFalse)
}

func TestRegistry(t *testing.T) {
	c := qt.New(t)
	ctx := context.Background()
	reg := nullifier.NewRegistry(storage.New(metadb.NewTest(t)))
	voter, err := nullifier.NewSecret()
	c.Assert(err, qt.IsNil)

	voted, err := reg.HasVoted(ctx, voter, "claim-1")
	c.Assert(err, qt.IsNil)
	c.Assert(voted, qt.IsFalse)

	n, err := reg.CheckAndReserve(ctx, voter, "claim-1")
	c.Assert(err, qt.IsNil)
	c.Assert(n, qt.IsNotNil)

	_, err = reg.CheckAndReserve(ctx, voter, "claim-1")
	c.Assert(errors.Is(err, types.ErrDuplicateVote), qt.IsTrue)

	// the same voter on another claim
	n2, err := reg.CheckAndReserve(ctx, voter, "claim-2")
	c.Assert(err, qt.IsNil)
	c.Assert(n2.Equal(n), qt.IsFalse)

	voted, err = reg.HasVoted(ctx, voter, "claim-1")
	c.Assert(err, qt.IsNil)
	c.Assert(voted, qt.IsTrue)

	// the server side view of the same voter
	voted, err = reg.HasVoted(ctx, &nullifier.Proven{Value: n}, "claim-1")
	c.Assert(err, qt.IsNil)
	c.Assert(voted, qt.IsTrue)
}

func TestReserveWithVote(t *testing.T) {
	c := qt.New(t)
	ctx := context.Background()
	stg := storage.New(metadb.NewTest(t))
	reg := nullifier.NewRegistry(stg)
	voter := nullifier.SecretFromBigInt(big.NewInt(42))
	c.Assert(stg.SetClaim(ctx, &types.Claim{
		ID:           "claim-1",
		Status:       types.ClaimPending,
		VoteDeadline: time.Now().Add(time.Hour),
	}), qt.IsNil)

	vote := &types.Vote{
		ID:          "v1",
		ClaimID:     "claim-1",
		VoterPubkey: new(types.BigInt).SetUint64(1),
		Role:        types.RoleValidator,
		Choice:      types.VoteDown,
	}
	n, err := reg.Reserve(ctx, voter, "claim-1", vote)
	c.Assert(err, qt.IsNil)
	c.Assert(vote.Nullifier.Equal(n), qt.IsTrue)

	votes, err := stg.Votes(ctx, "claim-1")
	c.Assert(err, qt.IsNil)
	c.Assert(votes, qt.HasLen, 1)
	c.Assert(votes[0].Nullifier.Equal(n), qt.IsTrue)
}

func TestReserveConcurrent(t *testing.T) {
	c := qt.New(t)
	ctx := context.Background()
	reg := nullifier.NewRegistry(storage.New(metadb.NewTest(t)))
	voter := nullifier.SecretFromBigInt(big.NewInt(7))

	var ok, dup int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := reg.CheckAndReserve(ctx, voter, "claim-1")
			switch {
			case err == nil:
				atomic.AddInt32(&ok, 1)
			case errors.Is(err, types.ErrDuplicateVote):
				atomic.AddInt32(&dup, 1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()
	c.Assert(ok, qt.Equals, int32(1))
	c.Assert(dup, qt.Equals, int32(19))
}

func TestProven(t *testing.T) {
	c := qt.New(t)
	ctx := context.Background()
	backend := mock.New()
	voter, err := nullifier.NewSecret()
	c.Assert(err, qt.IsNil)
	commitment, err := voter.Commitment()
	c.Assert(err, qt.IsNil)

	proven, err := voter.Prove(ctx, backend, "claim-1")
	c.Assert(err, qt.IsNil)
	expected, err := voter.Nullifier(ctx, "claim-1")
	c.Assert(err, qt.IsNil)
	c.Assert(proven.Value.Equal(expected), qt.IsTrue)

	ok, err := proven.Verify(ctx, backend, "claim-1", commitment)
	c.Assert(err, qt.IsNil)
	c.Assert(ok, qt.IsTrue)

	// bound to the scope and to the commitment
	ok, err = proven.Verify(ctx, backend, "claim-2", commitment)
	c.Assert(err, qt.IsNil)
	c.Assert(ok, qt.IsFalse)
	ok, err = proven.Verify(ctx, backend, "claim-1", new(types.BigInt).SetUint64(1))
	c.Assert(err, qt.IsNil)
	c.Assert(ok, qt.IsFalse)

	_, err = proven.Verify(ctx, backend, "claim-1", nil)
	c.Assert(errors.Is(err, types.ErrUnauthorized), qt.IsTrue)

	// a nullifier outside of the field is malformed
	_, err = (&nullifier.Proven{Value: new(types.BigInt).SetBigInt(util.ScalarField())}).Nullifier(ctx, "claim-1")
	c.Assert(errors.Is(err, types.ErrMalformedInput), qt.IsTrue)
}
