package sqlite

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"
	"github.com/google/uuid"
	"github.com/vocdoni/anonclaims/types"
)

var t0 = time.Date(2025, time.March, 10, 12, 0, 0, 123456789, time.UTC)

func openTest(t *testing.T, dir string) *Store {
	t.Helper()
	s, err := Open(dir)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func bigInt(v int64) *types.BigInt {
	return new(types.BigInt).SetBigInt(big.NewInt(v))
}

func testClaim(id string, ts time.Time) *types.Claim {
	return &types.Claim{
		ID:                id,
		Title:             "title " + id,
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
		Nullifier:   bigInt(voter * 100),
		CreatedAt:   t0,
	}
}

func TestMemberships(t *testing.T) {
	c := qt.New(t)
	ctx := context.Background()
	s := openTest(t, t.TempDir())

	m := &types.Membership{
		Pubkey:             bigInt(5),
		GroupID:            "vocdoni.io",
		Provider:           "census",
		Proof:              types.HexBytes{9, 9},
		ProofArgs:          types.ProofArgs{"root": "00ff"},
		Role:               types.RoleCurator,
		PubkeyExpiry:       t0,
		IdentityCommitment: bigInt(77),
		CreatedAt:          t0,
	}
	c.Assert(s.SetMembership(ctx, m), qt.IsNil)
	c.Assert(s.SetMembership(ctx, m), qt.Equals, types.ErrMembershipExists)

	got, err := s.Membership(ctx, bigInt(5))
	c.Assert(err, qt.IsNil)
	c.Assert(got.PubkeyExpiry.Equal(t0), qt.IsTrue)
	c.Assert(got.ProofArgs, qt.DeepEquals, m.ProofArgs)
	c.Assert(got.IdentityCommitment.Equal(bigInt(77)), qt.IsTrue)
	c.Assert([]byte(got.Proof), qt.DeepEquals, []byte{9, 9})

	changed, err := s.UpdateRole(ctx, bigInt(5), types.RoleValidator)
	c.Assert(err, qt.IsNil)
	c.Assert(changed, qt.IsTrue)
	changed, err = s.UpdateRole(ctx, bigInt(5), types.RoleValidator)
	c.Assert(err, qt.IsNil)
	c.Assert(changed, qt.IsFalse)
	_, err = s.UpdateRole(ctx, bigInt(6), types.RoleValidator)
	c.Assert(errors.Is(err, types.ErrNotFound), qt.IsTrue)
}

func TestClaimsAndVotes(t *testing.T) {
	c := qt.New(t)
	ctx := context.Background()
	s := openTest(t, t.TempDir())

	c.Assert(s.SetClaim(ctx, testClaim("a", t0)), qt.IsNil)
	c.Assert(s.SetClaim(ctx, testClaim("b", t0.Add(time.Minute))), qt.IsNil)
	c.Assert(s.SetClaim(ctx, testClaim("a", t0)), qt.ErrorIs, types.ErrMalformedInput)

	c.Assert(s.ReserveNullifier(ctx, "a", bigInt(100), testVote("a", 1, types.VoteUp)), qt.IsNil)
	c.Assert(s.ReserveNullifier(ctx, "a", bigInt(200), testVote("a", 2, types.VoteUp)), qt.IsNil)
	err := s.ReserveNullifier(ctx, "a", bigInt(100), testVote("a", 3, types.VoteDown))
	c.Assert(errors.Is(err, types.ErrDuplicateVote), qt.IsTrue)
	err = s.ReserveNullifier(ctx, "a", bigInt(300), testVote("a", 1, types.VoteDown))
	c.Assert(errors.Is(err, types.ErrDuplicateVote), qt.IsTrue)
	// the failed vote left its nullifier unreserved
	has, err := s.HasNullifier(ctx, "a", bigInt(300))
	c.Assert(err, qt.IsNil)
	c.Assert(has, qt.IsFalse)

	tally, err := s.Tally(ctx, "a")
	c.Assert(err, qt.IsNil)
	c.Assert(tally, qt.Equals, types.Tally{Up: 2})

	list, err := s.Claims(ctx, types.ClaimFilter{})
	c.Assert(err, qt.IsNil)
	c.Assert(list, qt.HasLen, 2)
	c.Assert(list[0].ID, qt.Equals, "b")
	list, err = s.Claims(ctx, types.ClaimFilter{SortBy: types.SortByVoteCount, Limit: 1})
	c.Assert(err, qt.IsNil)
	c.Assert(list, qt.HasLen, 1)
	c.Assert(list[0].ID, qt.Equals, "a")
	c.Assert(list[0].Votes.Up, qt.Equals, uint64(2))

	votes, err := s.Votes(ctx, "a")
	c.Assert(err, qt.IsNil)
	c.Assert(votes, qt.HasLen, 2)
	v, err := s.VoteByVoter(ctx, "a", bigInt(2))
	c.Assert(err, qt.IsNil)
	c.Assert(v.Nullifier.Equal(bigInt(200)), qt.IsTrue)

	expired, err := s.ExpiredClaims(ctx, t0.Add(24*time.Hour))
	c.Assert(err, qt.IsNil)
	c.Assert(expired, qt.HasLen, 1)
	c.Assert(expired[0].VoteDeadline.Equal(t0.Add(24*time.Hour)), qt.IsTrue)

	ok, err := s.UpdateClaimStatus(ctx, "a", types.ClaimPending, types.ClaimClosed)
	c.Assert(err, qt.IsNil)
	c.Assert(ok, qt.IsTrue)
	ok, err = s.UpdateClaimStatus(ctx, "a", types.ClaimPending, types.ClaimRejected)
	c.Assert(err, qt.IsNil)
	c.Assert(ok, qt.IsFalse)
}

func TestVotesNeedAnOpenClaim(t *testing.T) {
	c := qt.New(t)
	ctx := context.Background()
	s := openTest(t, t.TempDir())
	c.Assert(s.SetClaim(ctx, testClaim("old", t0.Add(-24*time.Hour))), qt.IsNil)
	c.Assert(s.SetClaim(ctx, testClaim("a", t0)), qt.IsNil)

	err := s.ReserveNullifier(ctx, "old", bigInt(100), testVote("old", 1, types.VoteUp))
	c.Assert(errors.Is(err, types.ErrVotingClosed), qt.IsTrue)
	err = s.ReserveNullifier(ctx, "missing", bigInt(100), testVote("missing", 1, types.VoteUp))
	c.Assert(errors.Is(err, types.ErrNotFound), qt.IsTrue)

	c.Assert(s.ReserveNullifier(ctx, "a", bigInt(100), testVote("a", 1, types.VoteDown)), qt.IsNil)
	next, tally, err := s.ResolveClaim(ctx, "a", types.ClaimPending, func(t types.Tally) types.ClaimStatus {
		if t.Up > t.Down {
			return types.ClaimClosed
		}
		return types.ClaimRejected
	})
	c.Assert(err, qt.IsNil)
	c.Assert(next, qt.Equals, types.ClaimRejected)
	c.Assert(tally, qt.Equals, types.Tally{Down: 1})

	// resolved claims take no more votes and are not resolved twice
	err = s.ReserveNullifier(ctx, "a", bigInt(200), testVote("a", 2, types.VoteUp))
	c.Assert(errors.Is(err, types.ErrVotingClosed), qt.IsTrue)
	has, err := s.HasNullifier(ctx, "a", bigInt(200))
	c.Assert(err, qt.IsNil)
	c.Assert(has, qt.IsFalse)
	next, _, err = s.ResolveClaim(ctx, "a", types.ClaimPending, func(types.Tally) types.ClaimStatus { return types.ClaimClosed })
	c.Assert(err, qt.IsNil)
	c.Assert(next, qt.Equals, types.ClaimStatus(""))
	_, _, err = s.ResolveClaim(ctx, "missing", types.ClaimPending, func(types.Tally) types.ClaimStatus { return types.ClaimClosed })
	c.Assert(errors.Is(err, types.ErrNotFound), qt.IsTrue)
}

func TestSharedFileCAS(t *testing.T) {
	c := qt.New(t)
	ctx := context.Background()
	dir := t.TempDir()
	stores := []*Store{openTest(t, dir), openTest(t, dir)}
	c.Assert(stores[0].SetClaim(ctx, testClaim("a", t0)), qt.IsNil)

	var wg sync.WaitGroup
	var transitions int32
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(s *Store) {
			defer wg.Done()
			ok, err := s.UpdateClaimStatus(ctx, "a", types.ClaimPending, types.ClaimRejected)
			if err != nil {
				t.Errorf("update: %v", err)
			}
			if ok {
				atomic.AddInt32(&transitions, 1)
			}
		}(stores[i%2])
	}
	wg.Wait()
	c.Assert(transitions, qt.Equals, int32(1))
}

func TestLikesMessagesAllowList(t *testing.T) {
	c := qt.New(t)
	ctx := context.Background()
	s := openTest(t, t.TempDir())

	c.Assert(s.SetMessage(ctx, &types.Message{ID: "m1", AnonGroupID: "vocdoni.io", Text: "hi", Timestamp: t0}), qt.IsNil)
	c.Assert(s.SetMessage(ctx, &types.Message{ID: "m2", AnonGroupID: "vocdoni.io", Text: "internal",
		Timestamp: t0.Add(time.Second), Internal: true}), qt.IsNil)

	msgs, err := s.Messages(ctx, "vocdoni.io", false, 0)
	c.Assert(err, qt.IsNil)
	c.Assert(msgs, qt.HasLen, 1)
	msgs, err = s.Messages(ctx, "vocdoni.io", true, 0)
	c.Assert(err, qt.IsNil)
	c.Assert(msgs, qt.HasLen, 2)
	c.Assert(msgs[0].ID, qt.Equals, "m2")

	liked, err := s.ToggleLike(ctx, types.LikeTargetMessage, "m1", bigInt(1))
	c.Assert(err, qt.IsNil)
	c.Assert(liked, qt.IsTrue)
	m, err := s.Message(ctx, "m1")
	c.Assert(err, qt.IsNil)
	c.Assert(m.Likes, qt.Equals, uint64(1))
	liked, err = s.ToggleLike(ctx, types.LikeTargetMessage, "m1", bigInt(1))
	c.Assert(err, qt.IsNil)
	c.Assert(liked, qt.IsFalse)
	_, err = s.ToggleLike(ctx, types.LikeTargetClaim, "m1", bigInt(1))
	c.Assert(errors.Is(err, types.ErrNotFound), qt.IsTrue)

	c.Assert(s.SetGroupAllowed(ctx, "vocdoni.io", true), qt.IsNil)
	c.Assert(s.SetGroupAllowed(ctx, "vocdoni.io", true), qt.IsNil)
	groups, err := s.AllowedGroups(ctx)
	c.Assert(err, qt.IsNil)
	c.Assert(groups, qt.DeepEquals, []string{"vocdoni.io"})
	allowed, err := s.IsGroupAllowed(ctx, "example.com")
	c.Assert(err, qt.IsNil)
	c.Assert(allowed, qt.IsFalse)
}
