package storage

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/vocdoni/anonclaims/types"
)

// ReserveNullifier reserves (scope, nullifier). When vote is not nil it is
// stored in the same transaction, with its voter index and the updated
// tally of the claim. A nullifier already reserved for the scope, or a voter
// that already voted the claim, fails with ErrDuplicateVote and writes
// nothing. The claim must still be pending with its deadline after the vote
// time, otherwise ErrVotingClosed.
func (s *Storage) ReserveNullifier(ctx context.Context, scope string, nullifier *types.BigInt, vote *types.Vote) error {
	if nullifier == nil {
		return fmt.Errorf("%w: nil nullifier", types.ErrMalformedInput)
	}
	s.globalLock.Lock()
	defer s.globalLock.Unlock()

	nkey := withPrefix(nullifierPrefix, compositeKey(scope, nullifier.String()))
	if found, err := s.exists(nil, nkey); err != nil {
		return err
	} else if found {
		return fmt.Errorf("%w: nullifier already used for %s", types.ErrDuplicateVote, scope)
	}

	wTx := s.db.WriteTx()
	defer wTx.Discard()
	if vote == nil {
		if err := wTx.Set(nkey, marker); err != nil {
			return err
		}
	} else {
		if vote.ClaimID != scope {
			return fmt.Errorf("%w: vote for %s reserved in scope %s", types.ErrMalformedInput, vote.ClaimID, scope)
		}
		if !vote.Choice.Valid() {
			return fmt.Errorf("%w: vote choice %q", types.ErrMalformedInput, vote.Choice)
		}
		if err := s.checkOpen(scope, vote.CreatedAt); err != nil {
			return err
		}
		vkey := withPrefix(voterPrefix, compositeKey(scope, vote.VoterPubkey.String()))
		if found, err := s.exists(nil, vkey); err != nil {
			return err
		} else if found {
			return fmt.Errorf("%w: public key already voted %s", types.ErrDuplicateVote, scope)
		}
		tally, err := s.Tally(ctx, scope)
		if err != nil {
			return err
		}
		switch vote.Choice {
		case types.VoteUp:
			tally.Up++
		case types.VoteDown:
			tally.Down++
		}
		encVote, err := encodeRecord(vote)
		if err != nil {
			return err
		}
		encTally, err := encodeRecord(tally)
		if err != nil {
			return err
		}
		for _, kv := range [][2][]byte{
			{nkey, []byte(vote.ID)},
			{vkey, []byte(vote.ID)},
			{withPrefix(votePrefix, compositeKey(scope, vote.ID)), encVote},
			{withPrefix(tallyPrefix, []byte(scope)), encTally},
		} {
			if err := wTx.Set(kv[0], kv[1]); err != nil {
				return err
			}
		}
	}
	// a canceled vote must not leave its nullifier behind
	if err := ctx.Err(); err != nil {
		return err
	}
	return wTx.Commit()
}

// checkOpen fails unless the claim accepts votes at t. Callers hold the
// global lock, which status transitions also take.
func (s *Storage) checkOpen(claimID string, t time.Time) error {
	c := &types.Claim{}
	if err := s.getRecord(claimPrefix, []byte(claimID), c); err != nil {
		return err
	}
	if c.Status != types.ClaimPending {
		return fmt.Errorf("%w: claim %s is %s", types.ErrVotingClosed, claimID, c.Status)
	}
	if !t.Before(c.VoteDeadline) {
		return fmt.Errorf("%w: deadline %s reached", types.ErrVotingClosed, c.VoteDeadline)
	}
	return nil
}

// HasNullifier reports whether (scope, nullifier) is reserved.
func (s *Storage) HasNullifier(_ context.Context, scope string, nullifier *types.BigInt) (bool, error) {
	return s.exists(nullifierPrefix, compositeKey(scope, nullifier.String()))
}

// Tally returns the vote count of a claim, zero if it has no votes.
func (s *Storage) Tally(_ context.Context, claimID string) (types.Tally, error) {
	var t types.Tally
	if err := s.getRecord(tallyPrefix, []byte(claimID), &t); err != nil && !errors.Is(err, ErrNotFound) {
		return types.Tally{}, err
	}
	return t, nil
}

// Votes lists the votes of a claim, oldest first.
func (s *Storage) Votes(_ context.Context, claimID string) ([]*types.Vote, error) {
	votes := []*types.Vote{}
	start := append([]byte(claimID), keySeparator...)
	if err := iterate(s, votePrefix, start, func(v *types.Vote) bool {
		votes = append(votes, v)
		return true
	}); err != nil {
		return nil, err
	}
	sort.SliceStable(votes, func(i, j int) bool {
		return votes[i].CreatedAt.Before(votes[j].CreatedAt)
	})
	return votes, nil
}

// VoteByVoter returns the vote a public key cast on a claim.
func (s *Storage) VoteByVoter(_ context.Context, claimID string, pubkey *types.BigInt) (*types.Vote, error) {
	voteID, err := s.get(voterPrefix, compositeKey(claimID, pubkey.String()))
	if err != nil {
		return nil, err
	}
	v := &types.Vote{}
	if err := s.getRecord(votePrefix, compositeKey(claimID, string(voteID)), v); err != nil {
		return nil, err
	}
	return v, nil
}
