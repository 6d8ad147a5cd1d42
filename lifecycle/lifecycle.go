// Package lifecycle owns the state of claims: who may create them, who may
// vote on them and how they resolve once the voting window closes. Every
// privileged operation re-derives the role of the caller from the store.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/vocdoni/anonclaims/codec"
	"github.com/vocdoni/anonclaims/config"
	"github.com/vocdoni/anonclaims/nullifier"
	"github.com/vocdoni/anonclaims/prover"
	"github.com/vocdoni/anonclaims/provider"
	"github.com/vocdoni/anonclaims/types"
	"github.com/vocdoni/anonclaims/verifier"
)

// Store is the persistence the lifecycle needs. Both the key-value storage
// and the sqlite store implement it.
type Store interface {
	nullifier.Store

	Membership(ctx context.Context, pubkey *types.BigInt) (*types.Membership, error)
	SetMembership(ctx context.Context, m *types.Membership) error
	UpdateRole(ctx context.Context, pubkey *types.BigInt, role types.Role) (bool, error)

	Claim(ctx context.Context, id string) (*types.Claim, error)
	SetClaim(ctx context.Context, c *types.Claim) error
	// ResolveClaim is the compare-and-set of a resolution: the tally is read
	// and the status moved with no vote committed in between.
	ResolveClaim(ctx context.Context, id string, expected types.ClaimStatus,
		decide func(types.Tally) types.ClaimStatus) (types.ClaimStatus, types.Tally, error)
	ExpiredClaims(ctx context.Context, now time.Time) ([]*types.Claim, error)
	Claims(ctx context.Context, filter types.ClaimFilter) ([]*types.ClaimWithTally, error)

	Tally(ctx context.Context, claimID string) (types.Tally, error)
	Votes(ctx context.Context, claimID string) ([]*types.Vote, error)
	VoteByVoter(ctx context.Context, claimID string, pubkey *types.BigInt) (*types.Vote, error)

	ToggleLike(ctx context.Context, target types.LikeTarget, id string, pubkey *types.BigInt) (bool, error)
	HasLiked(ctx context.Context, target types.LikeTarget, id string, pubkey *types.BigInt) (bool, error)

	Message(ctx context.Context, id string) (*types.Message, error)
	SetMessage(ctx context.Context, m *types.Message) error
	Messages(ctx context.Context, groupID string, internal bool, limit int) ([]*types.Message, error)

	SetGroupAllowed(ctx context.Context, groupID string, allowed bool) error
	IsGroupAllowed(ctx context.Context, groupID string) (bool, error)
	AllowedGroups(ctx context.Context) ([]string, error)
}

// Options tune the lifecycle. Zero values select the defaults.
type Options struct {
	VoteWindow time.Duration
	ClaimTTL   time.Duration
	// TiePolicy is config.TiePolicyReject or config.TiePolicyHold.
	TiePolicy string
	// RequireNullifierProof rejects votes whose nullifier comes without a
	// proof of derivation from the voter identity commitment.
	RequireNullifierProof bool
	// Workers bounds the claims resolved in parallel by a sweep.
	Workers int
}

// OptionsFromConfig maps the lifecycle section of the daemon configuration.
func OptionsFromConfig(c *config.Config) Options {
	return Options{
		VoteWindow:            c.Lifecycle.VoteWindow,
		ClaimTTL:              c.Lifecycle.ClaimTTL,
		TiePolicy:             c.Lifecycle.TiePolicy,
		RequireNullifierProof: c.NullifierProofRequired(),
		Workers:               c.Lifecycle.ResolveWorkers,
	}
}

func (o *Options) setDefaults() {
	if o.VoteWindow <= 0 {
		o.VoteWindow = config.DefaultVoteWindow
	}
	if o.ClaimTTL <= 0 {
		o.ClaimTTL = config.DefaultClaimTTL
	}
	if o.TiePolicy == "" {
		o.TiePolicy = config.TiePolicyReject
	}
	if o.Workers <= 0 {
		o.Workers = 1
	}
}

// Manager runs the claim lifecycle.
type Manager struct {
	store      Store
	nullifiers *nullifier.Registry
	providers  *provider.Registry
	codec      *codec.Codec
	pipeline   *verifier.Pipeline
	backend    prover.Backend
	opts       Options

	// Now is the clock of every transition. Each operation reads it once.
	Now func() time.Time
}

// New returns a lifecycle manager. The backend verifies nullifier proofs;
// it may be nil when they are not required.
func New(store Store, providers *provider.Registry, cdc *codec.Codec, backend prover.Backend, opts Options) (*Manager, error) {
	if store == nil || providers == nil || cdc == nil {
		return nil, fmt.Errorf("lifecycle: store, providers and codec are required")
	}
	opts.setDefaults()
	if opts.ClaimTTL < opts.VoteWindow {
		return nil, fmt.Errorf("lifecycle: claim ttl %s shorter than vote window %s", opts.ClaimTTL, opts.VoteWindow)
	}
	if opts.TiePolicy != config.TiePolicyReject && opts.TiePolicy != config.TiePolicyHold {
		return nil, fmt.Errorf("lifecycle: unknown tie policy %q", opts.TiePolicy)
	}
	if opts.RequireNullifierProof && backend == nil {
		return nil, fmt.Errorf("lifecycle: nullifier proofs required without a proving backend")
	}
	return &Manager{
		store:      store,
		nullifiers: nullifier.NewRegistry(store),
		providers:  providers,
		codec:      cdc,
		pipeline:   verifier.New(cdc, providers),
		backend:    backend,
		opts:       opts,
		Now:        time.Now,
	}, nil
}

// Store returns the underlying store.
func (m *Manager) Store() Store {
	return m.store
}

// Providers returns the provider registry.
func (m *Manager) Providers() *provider.Registry {
	return m.providers
}

// membership loads the membership of a caller. A caller without one is
// unauthorized.
func (m *Manager) membership(ctx context.Context, pubkey *types.BigInt) (*types.Membership, error) {
	if pubkey == nil {
		return nil, fmt.Errorf("%w: missing public key", types.ErrUnauthorized)
	}
	mb, err := m.store.Membership(ctx, pubkey)
	if errors.Is(err, types.ErrNotFound) {
		return nil, fmt.Errorf("%w: public key is not registered", types.ErrUnauthorized)
	}
	return mb, err
}

// author loads the membership of the key that signed a payload. The expiry
// a payload carries is not covered by its signature, so it must be the one
// the membership was proven with, and that one must not have passed.
func (m *Manager) author(ctx context.Context, sig *types.PayloadSignature, now time.Time) (*types.Membership, error) {
	mb, err := m.membership(ctx, sig.EphemeralPubkey)
	if err != nil {
		return nil, err
	}
	if !now.Before(mb.PubkeyExpiry) {
		return nil, fmt.Errorf("%w: public key expired at %s", types.ErrExpiredIdentity, mb.PubkeyExpiry)
	}
	if !sig.EphemeralPubkeyExpiry.Equal(mb.PubkeyExpiry) {
		return nil, fmt.Errorf("%w: key expiry %s differs from the registered %s", types.ErrUnauthorized,
			sig.EphemeralPubkeyExpiry, mb.PubkeyExpiry)
	}
	return mb, nil
}
