package storage

import (
	"context"
	"fmt"

	"github.com/vocdoni/anonclaims/types"
)

func pubkeyKey(pubkey *types.BigInt) []byte {
	return []byte(pubkey.String())
}

// Membership returns the membership of a public key, ErrNotFound if none.
func (s *Storage) Membership(_ context.Context, pubkey *types.BigInt) (*types.Membership, error) {
	m := &types.Membership{}
	if err := s.getRecord(membershipPrefix, pubkeyKey(pubkey), m); err != nil {
		return nil, err
	}
	return m, nil
}

// SetMembership stores a new membership. A public key has at most one,
// ErrMembershipExists otherwise.
func (s *Storage) SetMembership(ctx context.Context, m *types.Membership) error {
	if m == nil || m.Pubkey == nil {
		return fmt.Errorf("%w: nil membership", types.ErrMalformedInput)
	}
	s.globalLock.Lock()
	defer s.globalLock.Unlock()
	found, err := s.exists(membershipPrefix, pubkeyKey(m.Pubkey))
	if err != nil {
		return err
	}
	if found {
		return types.ErrMembershipExists
	}
	return s.setRecord(ctx, membershipPrefix, pubkeyKey(m.Pubkey), m)
}

// UpdateRole sets the role of a membership. It returns false if the role was
// already set.
func (s *Storage) UpdateRole(ctx context.Context, pubkey *types.BigInt, role types.Role) (bool, error) {
	if !role.Valid() {
		return false, fmt.Errorf("%w: role %q", types.ErrMalformedInput, role)
	}
	s.globalLock.Lock()
	defer s.globalLock.Unlock()
	m := &types.Membership{}
	if err := s.getRecord(membershipPrefix, pubkeyKey(pubkey), m); err != nil {
		return false, err
	}
	if m.Role == role {
		return false, nil
	}
	m.Role = role
	if err := s.setRecord(ctx, membershipPrefix, pubkeyKey(pubkey), m); err != nil {
		return false, err
	}
	return true, nil
}
