package storage

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/vocdoni/anonclaims/types"
)

// Claim returns a claim by id.
func (s *Storage) Claim(_ context.Context, id string) (*types.Claim, error) {
	c := &types.Claim{}
	if err := s.getRecord(claimPrefix, []byte(id), c); err != nil {
		return nil, err
	}
	return c, nil
}

// SetClaim stores a new claim. Ids are never reused.
func (s *Storage) SetClaim(ctx context.Context, c *types.Claim) error {
	if c == nil || c.ID == "" {
		return fmt.Errorf("%w: claim without id", types.ErrMalformedInput)
	}
	s.globalLock.Lock()
	defer s.globalLock.Unlock()
	found, err := s.exists(claimPrefix, []byte(c.ID))
	if err != nil {
		return err
	}
	if found {
		return fmt.Errorf("%w: claim %s already exists", types.ErrMalformedInput, c.ID)
	}
	return s.setRecord(ctx, claimPrefix, []byte(c.ID), c)
}

// UpdateClaimStatus moves a claim from expected to next. It returns false,
// without error, when the claim is no longer in the expected status.
func (s *Storage) UpdateClaimStatus(ctx context.Context, id string, expected, next types.ClaimStatus) (bool, error) {
	s.globalLock.Lock()
	defer s.globalLock.Unlock()
	c := &types.Claim{}
	if err := s.getRecord(claimPrefix, []byte(id), c); err != nil {
		return false, err
	}
	if c.Status != expected {
		return false, nil
	}
	c.Status = next
	if err := s.setRecord(ctx, claimPrefix, []byte(id), c); err != nil {
		return false, err
	}
	return true, nil
}

// ResolveClaim reads the tally of a claim in the expected status and moves
// it to the status decide returns for that tally, as one step under the
// lock votes are written with. An empty status from decide, or a claim no
// longer in the expected status, leaves it untouched and returns "".
func (s *Storage) ResolveClaim(ctx context.Context, id string, expected types.ClaimStatus,
	decide func(types.Tally) types.ClaimStatus,
) (types.ClaimStatus, types.Tally, error) {
	s.globalLock.Lock()
	defer s.globalLock.Unlock()
	c := &types.Claim{}
	if err := s.getRecord(claimPrefix, []byte(id), c); err != nil {
		return "", types.Tally{}, err
	}
	if c.Status != expected {
		return "", types.Tally{}, nil
	}
	tally, err := s.Tally(ctx, id)
	if err != nil {
		return "", types.Tally{}, err
	}
	next := decide(tally)
	if next == "" {
		return "", tally, nil
	}
	c.Status = next
	if err := s.setRecord(ctx, claimPrefix, []byte(id), c); err != nil {
		return "", tally, err
	}
	return next, tally, nil
}

// ExpiredClaims returns the pending or active claims whose vote deadline is
// not after now.
func (s *Storage) ExpiredClaims(ctx context.Context, now time.Time) ([]*types.Claim, error) {
	var expired []*types.Claim
	err := iterate(s, claimPrefix, nil, func(c *types.Claim) bool {
		if (c.Status == types.ClaimPending || c.Status == types.ClaimActive) && !c.VoteDeadline.After(now) {
			expired = append(expired, c)
		}
		return ctx.Err() == nil
	})
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return expired, nil
}

// Claims lists the claims matching the filter with their tallies, newest or
// most voted first.
func (s *Storage) Claims(ctx context.Context, filter types.ClaimFilter) ([]*types.ClaimWithTally, error) {
	var list []*types.ClaimWithTally
	var tallyErr error
	err := iterate(s, claimPrefix, nil, func(c *types.Claim) bool {
		if !filter.Match(c) {
			return true
		}
		tally, err := s.Tally(ctx, c.ID)
		if err != nil {
			tallyErr = err
			return false
		}
		list = append(list, &types.ClaimWithTally{Claim: c, Votes: tally})
		return true
	})
	if err != nil {
		return nil, err
	}
	if tallyErr != nil {
		return nil, tallyErr
	}
	SortClaims(list, filter.SortBy)
	if filter.Limit > 0 && len(list) > filter.Limit {
		list = list[:filter.Limit]
	}
	return list, nil
}

// SortClaims orders a listing, descending by creation time or by vote count
// (ties broken by creation time).
func SortClaims(list []*types.ClaimWithTally, by types.ClaimSort) {
	sort.SliceStable(list, func(i, j int) bool {
		if by == types.SortByVoteCount {
			if ti, tj := list[i].Votes.Total(), list[j].Votes.Total(); ti != tj {
				return ti > tj
			}
		}
		if !list[i].Timestamp.Equal(list[j].Timestamp) {
			return list[i].Timestamp.After(list[j].Timestamp)
		}
		return list[i].ID > list[j].ID
	})
}
