package lifecycle

import (
	"context"
	"errors"
	"fmt"

	"github.com/vocdoni/anonclaims/log"
	"github.com/vocdoni/anonclaims/types"
)

// RegisterMembership verifies the membership proof of a public key with
// its provider and stores the membership with the curator role. The role
// and creation time of the request are ignored.
func (m *Manager) RegisterMembership(ctx context.Context, req *types.Membership) (*types.Membership, error) {
	if req == nil || req.Pubkey == nil || req.GroupID == "" {
		return nil, fmt.Errorf("%w: membership needs a public key and a group", types.ErrMalformedInput)
	}
	now := m.Now()
	if !now.Before(req.PubkeyExpiry) {
		return nil, fmt.Errorf("%w: public key expired at %s", types.ErrExpiredIdentity, req.PubkeyExpiry)
	}
	prov, err := m.providers.Get(req.Provider)
	if err != nil {
		return nil, err
	}
	// the provider spelling of the group is the one claims and the
	// allow-list are matched against
	group, err := prov.GetAnonGroup(req.GroupID)
	if err != nil {
		return nil, fmt.Errorf("group %s: %w", req.GroupID, err)
	}
	ok, err := prov.VerifyProof(ctx, req.Proof, group.ID, req.Pubkey, req.PubkeyExpiry, req.ProofArgs)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: group %s", types.ErrInvalidProof, group.ID)
	}
	// a canceled registration must not be stored
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	mb := &types.Membership{
		Pubkey:             req.Pubkey,
		GroupID:            group.ID,
		Provider:           prov.Slug(),
		Proof:              req.Proof,
		ProofArgs:          req.ProofArgs,
		Role:               types.RoleCurator,
		PubkeyExpiry:       req.PubkeyExpiry,
		IdentityCommitment: req.IdentityCommitment,
		CreatedAt:          now,
	}
	if err := m.store.SetMembership(ctx, mb); err != nil {
		return nil, err
	}
	log.Infow("membership registered", "group", mb.GroupID, "provider", mb.Provider)
	return mb, nil
}

// Membership returns the membership of a public key.
func (m *Manager) Membership(ctx context.Context, pubkey *types.BigInt) (*types.Membership, error) {
	return m.store.Membership(ctx, pubkey)
}

// HasRole reports whether the public key holds exactly role. An unknown
// key holds no role.
func (m *Manager) HasRole(ctx context.Context, pubkey *types.BigInt, role types.Role) (bool, error) {
	if !role.Valid() {
		return false, fmt.Errorf("%w: role %q", types.ErrMalformedInput, role)
	}
	mb, err := m.membership(ctx, pubkey)
	if err != nil {
		if errors.Is(err, types.ErrUnauthorized) {
			return false, nil
		}
		return false, err
	}
	return mb.Role == role, nil
}

// PromoteToValidator upgrades a curator to validator when its group is on
// the allow-list. The promotion is one way: a validator stays a validator
// even if its group is later removed from the list.
func (m *Manager) PromoteToValidator(ctx context.Context, pubkey *types.BigInt) (bool, error) {
	mb, err := m.membership(ctx, pubkey)
	if err != nil {
		return false, err
	}
	if mb.Role == types.RoleValidator {
		return true, nil
	}
	allowed, err := m.store.IsGroupAllowed(ctx, mb.GroupID)
	if err != nil {
		return false, err
	}
	if !allowed {
		return false, fmt.Errorf("%w: group %s is not eligible for the validator role", types.ErrUnauthorized, mb.GroupID)
	}
	changed, err := m.store.UpdateRole(ctx, pubkey, types.RoleValidator)
	if err != nil {
		return false, err
	}
	if changed {
		log.Infow("membership promoted to validator", "group", mb.GroupID)
	}
	return true, nil
}

// AllowGroup adds or removes a group from the validator allow-list.
func (m *Manager) AllowGroup(ctx context.Context, groupID string, allowed bool) error {
	if groupID == "" {
		return fmt.Errorf("%w: empty group", types.ErrMalformedInput)
	}
	return m.store.SetGroupAllowed(ctx, groupID, allowed)
}

// AllowedGroups lists the groups on the validator allow-list.
func (m *Manager) AllowedGroups(ctx context.Context) ([]string, error) {
	return m.store.AllowedGroups(ctx)
}
