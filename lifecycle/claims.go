package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/vocdoni/anonclaims/config"
	"github.com/vocdoni/anonclaims/log"
	"github.com/vocdoni/anonclaims/types"
	"github.com/vocdoni/anonclaims/verifier"
	"golang.org/x/sync/errgroup"
)

// CreateClaim stores a claim signed by a curator. The server assigns the
// status and both deadlines; whatever the request carries for them is
// overwritten.
func (m *Manager) CreateClaim(ctx context.Context, claim *types.Claim) (*types.Claim, error) {
	if claim == nil || claim.ID == "" {
		return nil, fmt.Errorf("%w: claim without id", types.ErrMalformedInput)
	}
	now := m.Now()
	mb, err := m.author(ctx, claim.Signed(), now)
	if err != nil {
		return nil, err
	}
	if mb.Role != types.RoleCurator {
		return nil, fmt.Errorf("%w: only curators can create claims", types.ErrUnauthorized)
	}
	if claim.AnonGroupID != mb.GroupID || claim.AnonGroupProvider != mb.Provider {
		return nil, fmt.Errorf("%w: claim group %s does not match the curator membership", types.ErrUnauthorized, claim.AnonGroupID)
	}
	ok, err := m.codec.VerifyAt(claim, now)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: claim %s", types.ErrInvalidSignature, claim.ID)
	}

	stored := *claim
	stored.Status = types.ClaimPending
	stored.Likes = 0
	stored.VoteDeadline = now.Add(m.opts.VoteWindow)
	stored.ExpiresAt = now.Add(m.opts.ClaimTTL)
	if err := m.store.SetClaim(ctx, &stored); err != nil {
		return nil, err
	}
	log.Infow("claim created", "claimID", stored.ID, "group", stored.AnonGroupID,
		"voteDeadline", stored.VoteDeadline.String())
	return &stored, nil
}

// GetClaim returns a claim with its tally. Internal claims are only visible
// to members of the claim group.
func (m *Manager) GetClaim(ctx context.Context, id string, caller *types.BigInt) (*types.ClaimWithTally, error) {
	c, err := m.store.Claim(ctx, id)
	if err != nil {
		return nil, err
	}
	if c.Internal {
		mb, err := m.membership(ctx, caller)
		if err != nil {
			return nil, err
		}
		if mb.GroupID != c.AnonGroupID {
			return nil, fmt.Errorf("%w: internal claim of another group", types.ErrUnauthorized)
		}
	}
	tally, err := m.store.Tally(ctx, id)
	if err != nil {
		return nil, err
	}
	return &types.ClaimWithTally{Claim: c, Votes: tally}, nil
}

// ListClaims lists the claims matching the filter. The internal claims of
// the caller group are included when the caller is registered.
func (m *Manager) ListClaims(ctx context.Context, filter types.ClaimFilter, caller *types.BigInt) ([]*types.ClaimWithTally, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, fmt.Errorf("%w: status %q", types.ErrMalformedInput, filter.Status)
	}
	switch filter.SortBy {
	case "", types.SortByCreatedAt, types.SortByVoteCount:
	default:
		return nil, fmt.Errorf("%w: sort %q", types.ErrMalformedInput, filter.SortBy)
	}
	filter.InternalGroup = ""
	if caller != nil {
		mb, err := m.membership(ctx, caller)
		switch {
		case err == nil:
			filter.InternalGroup = mb.GroupID
		case !errors.Is(err, types.ErrUnauthorized):
			return nil, err
		}
	}
	return m.store.Claims(ctx, filter)
}

// VerifyClaim runs the verification pipeline over a stored claim and the
// membership of its author.
func (m *Manager) VerifyClaim(ctx context.Context, id string) (*verifier.Result, error) {
	c, err := m.store.Claim(ctx, id)
	if err != nil {
		return nil, err
	}
	author, err := m.store.Membership(ctx, c.EphemeralPubkey)
	if err != nil {
		return nil, fmt.Errorf("author of claim %s: %w", id, err)
	}
	return m.pipeline.VerifyAt(ctx, c, author, m.Now()), nil
}

// ResolveResult summarizes a resolution sweep.
type ResolveResult struct {
	Processed int `json:"processed"`
	Closed    int `json:"closed"`
	Rejected  int `json:"rejected"`
	// Skipped counts the claims resolved meanwhile by another sweep and the
	// ties held pending.
	Skipped int `json:"skipped"`
	Errors  int `json:"errors"`
}

// ResolveExpired resolves every pending claim whose vote deadline has
// passed: closed with more up than down votes, rejected otherwise. Each
// claim moves with a compare-and-set on its status so concurrent sweeps
// resolve it once. A failing claim is counted and does not stop the sweep.
func (m *Manager) ResolveExpired(ctx context.Context) (*ResolveResult, error) {
	now := m.Now()
	expired, err := m.store.ExpiredClaims(ctx, now)
	if err != nil {
		return nil, fmt.Errorf("list expired claims: %w", err)
	}

	var mu sync.Mutex
	res := &ResolveResult{}
	count := func(fn func(r *ResolveResult)) {
		mu.Lock()
		fn(res)
		mu.Unlock()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.opts.Workers)
	for _, c := range expired {
		g.Go(func() error {
			next, err := m.resolve(gctx, c, now)
			count(func(r *ResolveResult) {
				r.Processed++
				switch {
				case err != nil:
					r.Errors++
				case next == types.ClaimClosed:
					r.Closed++
				case next == types.ClaimRejected:
					r.Rejected++
				default:
					r.Skipped++
				}
			})
			if err != nil {
				log.Warnw("cannot resolve claim", "claimID", c.ID, "error", err.Error())
			}
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return res, err
	}
	if res.Processed > 0 {
		log.Infow("resolved expired claims", "processed", res.Processed, "closed", res.Closed,
			"rejected", res.Rejected, "skipped", res.Skipped, "errors", res.Errors)
	}
	return res, nil
}

// resolve moves one claim and returns its new status, empty if it was left
// untouched.
func (m *Manager) resolve(ctx context.Context, c *types.Claim, now time.Time) (types.ClaimStatus, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	next, tally, err := m.store.ResolveClaim(ctx, c.ID, c.Status, func(t types.Tally) types.ClaimStatus {
		return m.outcome(c, t, now)
	})
	if err != nil {
		return "", err
	}
	if next == "" {
		return "", nil
	}
	log.Debugw("claim resolved", "claimID", c.ID, "status", string(next), "up", tally.Up, "down", tally.Down)
	return next, nil
}

// outcome is the transition function of an expired claim.
func (m *Manager) outcome(c *types.Claim, tally types.Tally, now time.Time) types.ClaimStatus {
	switch {
	case tally.Up > tally.Down:
		return types.ClaimClosed
	case tally.Up < tally.Down:
		return types.ClaimRejected
	case m.opts.TiePolicy == config.TiePolicyHold && now.Before(c.ExpiresAt):
		return ""
	default:
		return types.ClaimRejected
	}
}
