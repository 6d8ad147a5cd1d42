package nullifier

import (
	"context"

	"github.com/vocdoni/anonclaims/types"
)

// Store persists reserved nullifiers. ReserveNullifier must be atomic: the
// nullifier and the vote, when given, are written in one transaction, and a
// second reservation of the same (scope, nullifier) fails with
// ErrDuplicateVote.
type Store interface {
	ReserveNullifier(ctx context.Context, scope string, nullifier *types.BigInt, vote *types.Vote) error
	HasNullifier(ctx context.Context, scope string, nullifier *types.BigInt) (bool, error)
}

// Registry reserves nullifiers.
type Registry struct {
	store Store
}

func NewRegistry(store Store) *Registry {
	return &Registry{store: store}
}

// CheckAndReserve reserves the nullifier of ic for scope.
func (r *Registry) CheckAndReserve(ctx context.Context, ic IdentityContext, scope string) (*types.BigInt, error) {
	return r.Reserve(ctx, ic, scope, nil)
}

// Reserve reserves the nullifier of ic for scope together with the vote,
// whose Nullifier field is set.
func (r *Registry) Reserve(ctx context.Context, ic IdentityContext, scope string, vote *types.Vote) (*types.BigInt, error) {
	n, err := ic.Nullifier(ctx, scope)
	if err != nil {
		return nil, err
	}
	if vote != nil {
		vote.Nullifier = n
	}
	if err := r.store.ReserveNullifier(ctx, scope, n, vote); err != nil {
		return nil, err
	}
	return n, nil
}

// HasVoted reports whether the nullifier of ic for scope is reserved.
func (r *Registry) HasVoted(ctx context.Context, ic IdentityContext, scope string) (bool, error) {
	n, err := ic.Nullifier(ctx, scope)
	if err != nil {
		return false, err
	}
	return r.store.HasNullifier(ctx, scope, n)
}
