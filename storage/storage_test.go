package storage

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"
	"github.com/google/uuid"
	"github.com/vocdoni/anonclaims/types"
	"go.vocdoni.io/dvote/db/metadb"
)

var t0 = time.Date(2025, time.March, 10, 12, 0, 0, 123456789, time.UTC)

func newStorage(t *testing.T) *Storage {
	return New(metadb.NewTest(t))
}

func bigInt(v int64) *types.BigInt {
	return new(types.BigInt).SetBigInt(big.NewInt(v))
}

func testClaim(id string, ts time.Time) *types.Claim {
	return &types.Claim{
		ID:                id,
		Title:             "title " + id,
		Description:       "description",
		SourceURL:         "https://vocdoni.io",
		Timestamp:         ts,
		AnonGroupID:       "vocdoni.io",
		AnonGroupProvider: "google-oauth",
		Status:            types.ClaimPending,
		VoteDeadline:      ts.Add(24 * time.Hour),
		ExpiresAt:         ts.Add(48 * time.Hour),
		PayloadSignature: types.PayloadSignature{
			Signature:             bigInt(99),
			EphemeralPubkey:       bigInt(1),
			EphemeralPubkeyExpiry: ts.Add(time.Hour),
		},
	}
}

func testVote(claimID string, voter int64, choice types.VoteChoice) *types.Vote {
	return &types.Vote{
		ID:          uuid.NewString(),
		ClaimID:     claimID,
		VoterPubkey: bigInt(voter),
		Role:        types.RoleValidator,
		Choice:      choice,
		CreatedAt:   t0,
	}
}

func TestMemberships(t *testing.T) {
	c := qt.New(t)
	ctx := context.Background()
	stg := newStorage(t)

	_, err := stg.Membership(ctx, bigInt(1))
	c.Assert(errors.Is(err, types.ErrNotFound), qt.IsTrue)

	m := &types.Membership{
		Pubkey:       bigInt(1),
		GroupID:      "vocdoni.io",
		Provider:     "google-oauth",
		Proof:        types.HexBytes{1, 2, 3},
		ProofArgs:    types.ProofArgs{"root": "abcd"},
		Role:         types.RoleCurator,
		PubkeyExpiry: t0,
		CreatedAt:    t0,
	}
	c.Assert(stg.SetMembership(ctx, m), qt.IsNil)
	c.Assert(stg.SetMembership(ctx, m), qt.Equals, types.ErrMembershipExists)

	got, err := stg.Membership(ctx, bigInt(1))
	c.Assert(err, qt.IsNil)
	c.Assert(got.Role, qt.Equals, types.RoleCurator)
	c.Assert(got.ProofArgs["root"], qt.Equals, "abcd")
	c.Assert(got.PubkeyExpiry.Equal(t0), qt.IsTrue, qt.Commentf("sub-second precision is kept"))

	changed, err := stg.UpdateRole(ctx, bigInt(1), types.RoleValidator)
	c.Assert(err, qt.IsNil)
	c.Assert(changed, qt.IsTrue)
	changed, err = stg.UpdateRole(ctx, bigInt(1), types.RoleValidator)
	c.Assert(err, qt.IsNil)
	c.Assert(changed, qt.IsFalse)

	_, err = stg.UpdateRole(ctx, bigInt(2), types.RoleValidator)
	c.Assert(errors.Is(err, ErrNotFound), qt.IsTrue)
	_, err = stg.UpdateRole(ctx, bigInt(1), "admin")
	c.Assert(errors.Is(err, types.ErrMalformedInput), qt.IsTrue)
}

func TestClaims(t *testing.T) {
	c := qt.New(t)
	ctx := context.Background()
	stg := newStorage(t)

	claim := testClaim("c1", t0)
	c.Assert(stg.SetClaim(ctx, claim), qt.IsNil)
	c.Assert(stg.SetClaim(ctx, claim), qt.ErrorIs, types.ErrMalformedInput)

	got, err := stg.Claim(ctx, "c1")
	c.Assert(err, qt.IsNil)
	c.Assert(got.Title, qt.Equals, claim.Title)
	c.Assert(got.Signature.Equal(claim.Signature), qt.IsTrue)
	c.Assert(got.VoteDeadline.Equal(claim.VoteDeadline), qt.IsTrue)

	ok, err := stg.UpdateClaimStatus(ctx, "c1", types.ClaimPending, types.ClaimClosed)
	c.Assert(err, qt.IsNil)
	c.Assert(ok, qt.IsTrue)
	// the second transition from pending is refused
	ok, err = stg.UpdateClaimStatus(ctx, "c1", types.ClaimPending, types.ClaimRejected)
	c.Assert(err, qt.IsNil)
	c.Assert(ok, qt.IsFalse)
	got, err = stg.Claim(ctx, "c1")
	c.Assert(err, qt.IsNil)
	c.Assert(got.Status, qt.Equals, types.ClaimClosed)

	_, err = stg.UpdateClaimStatus(ctx, "missing", types.ClaimPending, types.ClaimClosed)
	c.Assert(errors.Is(err, types.ErrNotFound), qt.IsTrue)
}

func TestExpiredClaims(t *testing.T) {
	c := qt.New(t)
	ctx := context.Background()
	stg := newStorage(t)

	c.Assert(stg.SetClaim(ctx, testClaim("old", t0)), qt.IsNil)
	c.Assert(stg.SetClaim(ctx, testClaim("new", t0.Add(time.Hour))), qt.IsNil)
	closed := testClaim("closed", t0)
	closed.Status = types.ClaimClosed
	c.Assert(stg.SetClaim(ctx, closed), qt.IsNil)

	expired, err := stg.ExpiredClaims(ctx, t0.Add(24*time.Hour))
	c.Assert(err, qt.IsNil)
	c.Assert(expired, qt.HasLen, 1)
	c.Assert(expired[0].ID, qt.Equals, "old")

	expired, err = stg.ExpiredClaims(ctx, t0.Add(30*time.Hour))
	c.Assert(err, qt.IsNil)
	c.Assert(expired, qt.HasLen, 2)
}

func TestListClaims(t *testing.T) {
	c := qt.New(t)
	ctx := context.Background()
	stg := newStorage(t)

	for i := 0; i < 3; i++ {
		c.Assert(stg.SetClaim(ctx, testClaim(fmt.Sprintf("c%d", i), t0.Add(time.Duration(i)*time.Minute))), qt.IsNil)
	}
	internal := testClaim("internal", t0.Add(time.Hour))
	internal.Internal = true
	c.Assert(stg.SetClaim(ctx, internal), qt.IsNil)

	// c0 gets two votes, c1 one
	c.Assert(stg.ReserveNullifier(ctx, "c0", bigInt(10), testVote("c0", 1, types.VoteUp)), qt.IsNil)
	c.Assert(stg.ReserveNullifier(ctx, "c0", bigInt(11), testVote("c0", 2, types.VoteDown)), qt.IsNil)
	c.Assert(stg.ReserveNullifier(ctx, "c1", bigInt(12), testVote("c1", 1, types.VoteUp)), qt.IsNil)

	list, err := stg.Claims(ctx, types.ClaimFilter{})
	c.Assert(err, qt.IsNil)
	c.Assert(list, qt.HasLen, 3)
	c.Assert(list[0].ID, qt.Equals, "c2")

	list, err = stg.Claims(ctx, types.ClaimFilter{SortBy: types.SortByVoteCount})
	c.Assert(err, qt.IsNil)
	c.Assert(list[0].ID, qt.Equals, "c0")
	c.Assert(list[0].Votes, qt.Equals, types.Tally{Up: 1, Down: 1})
	c.Assert(list[1].ID, qt.Equals, "c1")

	list, err = stg.Claims(ctx, types.ClaimFilter{InternalGroup: "vocdoni.io", Limit: 2})
	c.Assert(err, qt.IsNil)
	c.Assert(list, qt.HasLen, 2)
	c.Assert(list[0].ID, qt.Equals, "internal")

	_, err = stg.UpdateClaimStatus(ctx, "c1", types.ClaimPending, types.ClaimRejected)
	c.Assert(err, qt.IsNil)
	list, err = stg.Claims(ctx, types.ClaimFilter{Status: types.ClaimRejected})
	c.Assert(err, qt.IsNil)
	c.Assert(list, qt.HasLen, 1)
	c.Assert(list[0].ID, qt.Equals, "c1")
}

func TestReserveNullifier(t *testing.T) {
	c := qt.New(t)
	ctx := context.Background()
	stg := newStorage(t)
	c.Assert(stg.SetClaim(ctx, testClaim("c1", t0)), qt.IsNil)

	vote := testVote("c1", 1, types.VoteUp)
	c.Assert(stg.ReserveNullifier(ctx, "c1", bigInt(42), vote), qt.IsNil)

	// same nullifier, different voter key
	err := stg.ReserveNullifier(ctx, "c1", bigInt(42), testVote("c1", 2, types.VoteDown))
	c.Assert(errors.Is(err, types.ErrDuplicateVote), qt.IsTrue)
	// same voter key, different nullifier
	err = stg.ReserveNullifier(ctx, "c1", bigInt(43), testVote("c1", 1, types.VoteDown))
	c.Assert(errors.Is(err, types.ErrDuplicateVote), qt.IsTrue)
	// the same nullifier is free in another scope
	c.Assert(stg.ReserveNullifier(ctx, "c2", bigInt(42), nil), qt.IsNil)

	tally, err := stg.Tally(ctx, "c1")
	c.Assert(err, qt.IsNil)
	c.Assert(tally, qt.Equals, types.Tally{Up: 1})

	has, err := stg.HasNullifier(ctx, "c1", bigInt(42))
	c.Assert(err, qt.IsNil)
	c.Assert(has, qt.IsTrue)
	has, err = stg.HasNullifier(ctx, "c1", bigInt(43))
	c.Assert(err, qt.IsNil)
	c.Assert(has, qt.IsFalse)

	votes, err := stg.Votes(ctx, "c1")
	c.Assert(err, qt.IsNil)
	c.Assert(votes, qt.HasLen, 1)
	c.Assert(votes[0].Nullifier, qt.IsNil)
	c.Assert(votes[0].ID, qt.Equals, vote.ID)

	byVoter, err := stg.VoteByVoter(ctx, "c1", bigInt(1))
	c.Assert(err, qt.IsNil)
	c.Assert(byVoter.Choice, qt.Equals, types.VoteUp)
	_, err = stg.VoteByVoter(ctx, "c1", bigInt(2))
	c.Assert(errors.Is(err, ErrNotFound), qt.IsTrue)
}

func TestReserveNullifierClosedClaim(t *testing.T) {
	c := qt.New(t)
	ctx := context.Background()
	stg := newStorage(t)
	c.Assert(stg.SetClaim(ctx, testClaim("c1", t0.Add(-24*time.Hour))), qt.IsNil)
	c.Assert(stg.SetClaim(ctx, testClaim("c2", t0)), qt.IsNil)

	// the deadline of c1 is t0, exclusive
	err := stg.ReserveNullifier(ctx, "c1", bigInt(1), testVote("c1", 1, types.VoteUp))
	c.Assert(errors.Is(err, types.ErrVotingClosed), qt.IsTrue)

	ok, err := stg.UpdateClaimStatus(ctx, "c2", types.ClaimPending, types.ClaimRejected)
	c.Assert(err, qt.IsNil)
	c.Assert(ok, qt.IsTrue)
	err = stg.ReserveNullifier(ctx, "c2", bigInt(2), testVote("c2", 1, types.VoteUp))
	c.Assert(errors.Is(err, types.ErrVotingClosed), qt.IsTrue)

	err = stg.ReserveNullifier(ctx, "missing", bigInt(3), testVote("missing", 1, types.VoteUp))
	c.Assert(errors.Is(err, types.ErrNotFound), qt.IsTrue)

	for _, scope := range []string{"c1", "c2", "missing"} {
		has, err := stg.HasNullifier(ctx, scope, bigInt(1))
		c.Assert(err, qt.IsNil)
		c.Assert(has, qt.IsFalse)
	}
	tally, err := stg.Tally(ctx, "c2")
	c.Assert(err, qt.IsNil)
	c.Assert(tally, qt.Equals, types.Tally{})
}

func TestResolveClaim(t *testing.T) {
	c := qt.New(t)
	ctx := context.Background()
	stg := newStorage(t)
	c.Assert(stg.SetClaim(ctx, testClaim("c1", t0)), qt.IsNil)
	c.Assert(stg.ReserveNullifier(ctx, "c1", bigInt(1), testVote("c1", 1, types.VoteUp)), qt.IsNil)

	var seen types.Tally
	majority := func(tally types.Tally) types.ClaimStatus {
		seen = tally
		if tally.Up > tally.Down {
			return types.ClaimClosed
		}
		return types.ClaimRejected
	}
	// nothing decided leaves the claim as it is
	next, _, err := stg.ResolveClaim(ctx, "c1", types.ClaimPending, func(types.Tally) types.ClaimStatus { return "" })
	c.Assert(err, qt.IsNil)
	c.Assert(next, qt.Equals, types.ClaimStatus(""))

	next, tally, err := stg.ResolveClaim(ctx, "c1", types.ClaimPending, majority)
	c.Assert(err, qt.IsNil)
	c.Assert(next, qt.Equals, types.ClaimClosed)
	c.Assert(tally, qt.Equals, types.Tally{Up: 1})
	c.Assert(seen, qt.Equals, tally)

	// a second resolution finds the status changed
	next, _, err = stg.ResolveClaim(ctx, "c1", types.ClaimPending, majority)
	c.Assert(err, qt.IsNil)
	c.Assert(next, qt.Equals, types.ClaimStatus(""))
	claim, err := stg.Claim(ctx, "c1")
	c.Assert(err, qt.IsNil)
	c.Assert(claim.Status, qt.Equals, types.ClaimClosed)

	_, _, err = stg.ResolveClaim(ctx, "missing", types.ClaimPending, majority)
	c.Assert(errors.Is(err, ErrNotFound), qt.IsTrue)
}

func TestReserveNullifierCanceled(t *testing.T) {
	c := qt.New(t)
	stg := newStorage(t)
	c.Assert(stg.SetClaim(context.Background(), testClaim("c1", t0)), qt.IsNil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := stg.ReserveNullifier(ctx, "c1", bigInt(42), testVote("c1", 1, types.VoteUp))
	c.Assert(errors.Is(err, context.Canceled), qt.IsTrue)

	has, err := stg.HasNullifier(context.Background(), "c1", bigInt(42))
	c.Assert(err, qt.IsNil)
	c.Assert(has, qt.IsFalse)
	votes, err := stg.Votes(context.Background(), "c1")
	c.Assert(err, qt.IsNil)
	c.Assert(votes, qt.HasLen, 0)
}

func TestReserveNullifierConcurrent(t *testing.T) {
	c := qt.New(t)
	ctx := context.Background()
	stg := newStorage(t)
	c.Assert(stg.SetClaim(ctx, testClaim("c1", t0)), qt.IsNil)

	const workers = 16
	var wg sync.WaitGroup
	var reserved, duplicated int32
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func(i int) {
			defer wg.Done()
			err := stg.ReserveNullifier(ctx, "c1", bigInt(7), testVote("c1", int64(i), types.VoteUp))
			switch {
			case err == nil:
				atomic.AddInt32(&reserved, 1)
			case errors.Is(err, types.ErrDuplicateVote):
				atomic.AddInt32(&duplicated, 1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()
	c.Assert(reserved, qt.Equals, int32(1))
	c.Assert(duplicated, qt.Equals, int32(workers-1))
	tally, err := stg.Tally(ctx, "c1")
	c.Assert(err, qt.IsNil)
	c.Assert(tally.Total(), qt.Equals, uint64(1))
}

func TestLikes(t *testing.T) {
	c := qt.New(t)
	ctx := context.Background()
	stg := newStorage(t)
	c.Assert(stg.SetClaim(ctx, testClaim("c1", t0)), qt.IsNil)

	liked, err := stg.ToggleLike(ctx, types.LikeTargetClaim, "c1", bigInt(1))
	c.Assert(err, qt.IsNil)
	c.Assert(liked, qt.IsTrue)
	liked, err = stg.ToggleLike(ctx, types.LikeTargetClaim, "c1", bigInt(2))
	c.Assert(err, qt.IsNil)
	c.Assert(liked, qt.IsTrue)

	claim, err := stg.Claim(ctx, "c1")
	c.Assert(err, qt.IsNil)
	c.Assert(claim.Likes, qt.Equals, uint64(2))
	// the rest of the claim survives the counter update
	c.Assert(claim.Signature.Equal(bigInt(99)), qt.IsTrue)

	liked, err = stg.ToggleLike(ctx, types.LikeTargetClaim, "c1", bigInt(1))
	c.Assert(err, qt.IsNil)
	c.Assert(liked, qt.IsFalse)
	claim, err = stg.Claim(ctx, "c1")
	c.Assert(err, qt.IsNil)
	c.Assert(claim.Likes, qt.Equals, uint64(1))

	has, err := stg.HasLiked(ctx, types.LikeTargetClaim, "c1", bigInt(2))
	c.Assert(err, qt.IsNil)
	c.Assert(has, qt.IsTrue)

	_, err = stg.ToggleLike(ctx, types.LikeTargetMessage, "c1", bigInt(1))
	c.Assert(errors.Is(err, ErrNotFound), qt.IsTrue)
}

func TestMessages(t *testing.T) {
	c := qt.New(t)
	ctx := context.Background()
	stg := newStorage(t)

	for i, internal := range []bool{false, true, false} {
		c.Assert(stg.SetMessage(ctx, &types.Message{
			ID:          fmt.Sprintf("m%d", i),
			AnonGroupID: "vocdoni.io",
			Text:        "hello",
			Timestamp:   t0.Add(time.Duration(i) * time.Second),
			Internal:    internal,
		}), qt.IsNil)
	}
	c.Assert(stg.SetMessage(ctx, &types.Message{ID: "other", AnonGroupID: "example.com", Timestamp: t0}), qt.IsNil)

	msgs, err := stg.Messages(ctx, "vocdoni.io", false, 0)
	c.Assert(err, qt.IsNil)
	c.Assert(msgs, qt.HasLen, 2)
	c.Assert(msgs[0].ID, qt.Equals, "m2")

	msgs, err = stg.Messages(ctx, "vocdoni.io", true, 2)
	c.Assert(err, qt.IsNil)
	c.Assert(msgs, qt.HasLen, 2)
	c.Assert(msgs[1].ID, qt.Equals, "m1")

	liked, err := stg.ToggleLike(ctx, types.LikeTargetMessage, "m0", bigInt(1))
	c.Assert(err, qt.IsNil)
	c.Assert(liked, qt.IsTrue)
	m, err := stg.Message(ctx, "m0")
	c.Assert(err, qt.IsNil)
	c.Assert(m.Likes, qt.Equals, uint64(1))
}

func TestAllowList(t *testing.T) {
	c := qt.New(t)
	ctx := context.Background()
	stg := newStorage(t)

	allowed, err := stg.IsGroupAllowed(ctx, "vocdoni.io")
	c.Assert(err, qt.IsNil)
	c.Assert(allowed, qt.IsFalse)

	c.Assert(stg.SetGroupAllowed(ctx, "vocdoni.io", true), qt.IsNil)
	c.Assert(stg.SetGroupAllowed(ctx, "example.com", true), qt.IsNil)
	allowed, err = stg.IsGroupAllowed(ctx, "vocdoni.io")
	c.Assert(err, qt.IsNil)
	c.Assert(allowed, qt.IsTrue)

	groups, err := stg.AllowedGroups(ctx)
	c.Assert(err, qt.IsNil)
	c.Assert(groups, qt.DeepEquals, []string{"example.com", "vocdoni.io"})

	c.Assert(stg.SetGroupAllowed(ctx, "vocdoni.io", false), qt.IsNil)
	allowed, err = stg.IsGroupAllowed(ctx, "vocdoni.io")
	c.Assert(err, qt.IsNil)
	c.Assert(allowed, qt.IsFalse)
}
