package lifecycle

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/vocdoni/anonclaims/log"
	"github.com/vocdoni/anonclaims/nullifier"
	"github.com/vocdoni/anonclaims/types"
)

// VoteRequest is a validator vote as submitted. The nullifier is computed
// by the voter from its secret; its proof is optional unless the lifecycle
// requires it.
type VoteRequest struct {
	ClaimID     string            `json:"claimId"`
	VoterPubkey *types.BigInt     `json:"-"`
	Choice      types.VoteChoice  `json:"vote"`
	Nullifier   *nullifier.Proven `json:"nullifier"`
}

// CastVote records a validator vote. The clock and the claim are read once:
// the vote is accepted only if the claim is pending and the deadline has
// not been reached at that instant. The nullifier and the vote are written
// in one transaction; a repeated nullifier fails with ErrDuplicateVote and
// changes nothing.
func (m *Manager) CastVote(ctx context.Context, req *VoteRequest) (*types.Vote, error) {
	if req == nil || req.ClaimID == "" {
		return nil, fmt.Errorf("%w: vote without claim", types.ErrMalformedInput)
	}
	if !req.Choice.Valid() {
		return nil, fmt.Errorf("%w: vote %q", types.ErrMalformedInput, req.Choice)
	}
	now := m.Now()
	mb, err := m.membership(ctx, req.VoterPubkey)
	if err != nil {
		return nil, err
	}
	if mb.Role != types.RoleValidator {
		return nil, fmt.Errorf("%w: only validators can vote", types.ErrUnauthorized)
	}
	if !now.Before(mb.PubkeyExpiry) {
		return nil, fmt.Errorf("%w: public key expired at %s", types.ErrExpiredIdentity, mb.PubkeyExpiry)
	}

	claim, err := m.store.Claim(ctx, req.ClaimID)
	if err != nil {
		return nil, err
	}
	if claim.Status != types.ClaimPending {
		return nil, fmt.Errorf("%w: claim %s is %s", types.ErrVotingClosed, claim.ID, claim.Status)
	}
	if !now.Before(claim.VoteDeadline) {
		return nil, fmt.Errorf("%w: deadline %s reached", types.ErrVotingClosed, claim.VoteDeadline)
	}

	if err := m.checkNullifierProof(ctx, req, mb); err != nil {
		return nil, err
	}
	vote := &types.Vote{
		ID:          uuid.NewString(),
		ClaimID:     claim.ID,
		VoterPubkey: req.VoterPubkey,
		Role:        mb.Role,
		Choice:      req.Choice,
		CreatedAt:   now,
	}
	if _, err := m.nullifiers.Reserve(ctx, req.Nullifier, claim.ID, vote); err != nil {
		return nil, err
	}
	log.Debugw("vote accepted", "claimID", claim.ID, "choice", string(vote.Choice))
	return vote, nil
}

func (m *Manager) checkNullifierProof(ctx context.Context, req *VoteRequest, mb *types.Membership) error {
	if req.Nullifier == nil {
		return fmt.Errorf("%w: missing nullifier", types.ErrMalformedInput)
	}
	if len(req.Nullifier.Proof) == 0 {
		if m.opts.RequireNullifierProof {
			return fmt.Errorf("%w: nullifier proof required", types.ErrInvalidProof)
		}
		return nil
	}
	if m.backend == nil {
		return fmt.Errorf("%w: no backend to verify nullifier proofs", types.ErrProverUnavailable)
	}
	ok, err := req.Nullifier.Verify(ctx, m.backend, req.ClaimID, mb.IdentityCommitment)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: nullifier proof", types.ErrInvalidProof)
	}
	return nil
}

// HasVoted reports whether a vote was cast on the claim, by nullifier when
// one is given and by public key otherwise. The nullifier of the stored
// vote is returned when found by public key.
func (m *Manager) HasVoted(ctx context.Context, claimID string, nullifierValue, pubkey *types.BigInt) (bool, *types.BigInt, error) {
	if claimID == "" {
		return false, nil, fmt.Errorf("%w: missing claim", types.ErrMalformedInput)
	}
	if nullifierValue != nil {
		voted, err := m.nullifiers.HasVoted(ctx, &nullifier.Proven{Value: nullifierValue}, claimID)
		if err != nil {
			return false, nil, err
		}
		return voted, nullifierValue, nil
	}
	if pubkey == nil {
		return false, nil, fmt.Errorf("%w: nullifier or public key required", types.ErrMalformedInput)
	}
	vote, err := m.store.VoteByVoter(ctx, claimID, pubkey)
	if errors.Is(err, types.ErrNotFound) {
		return false, nil, nil
	}
	if err != nil {
		return false, nil, err
	}
	return true, vote.Nullifier, nil
}

// ListVotes returns the votes of an existing claim, oldest first.
func (m *Manager) ListVotes(ctx context.Context, claimID string) ([]*types.Vote, error) {
	if _, err := m.store.Claim(ctx, claimID); err != nil {
		return nil, err
	}
	return m.store.Votes(ctx, claimID)
}
