// Package census is the provider whose anonymity sets are merkle trees of
// identity commitments kept in the local anonset database. Eligibility is
// the inclusion of the member key in the set of the group.
package census

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/vocdoni/anonclaims/crypto/ephemeral"
	"github.com/vocdoni/anonclaims/nullifier"
	"github.com/vocdoni/anonclaims/provider"
	"github.com/vocdoni/anonclaims/prover"
	"github.com/vocdoni/anonclaims/storage/anonset"
	"github.com/vocdoni/anonclaims/types"
	"github.com/vocdoni/arbo"
)

const (
	DefaultSlug = "census"

	// RootArg is the proof argument carrying the set root the proof was
	// made against.
	RootArg = "root"
)

// Member is the credential of a set member: the group, its id in the set
// and the secret behind its identity commitment.
type Member struct {
	GroupID string
	ID      []byte
	Secret  *nullifier.Secret
}

// Provider proves membership of anonymity sets stored in the anonset
// database.
type Provider struct {
	slug   string
	sets   *anonset.DB
	member *Member
	pr     *provider.Prover
}

var _ provider.Provider = (*Provider)(nil)

func New(slug string, sets *anonset.DB, backend prover.Backend) *Provider {
	if slug == "" {
		slug = DefaultSlug
	}
	return &Provider{
		slug: slug,
		sets: sets,
		pr:   &provider.Prover{Backend: backend},
	}
}

// WithMember returns a copy able to generate proofs for member.
func (p *Provider) WithMember(member *Member) *Provider {
	cp := *p
	cp.member = member
	return &cp
}

// SetNow replaces the clock used for the expiry checks.
func (p *Provider) SetNow(now func() time.Time) {
	p.pr.Now = now
}

func (p *Provider) Slug() string {
	return p.slug
}

// CreateGroup creates the empty anonymity set of a group.
func (p *Provider) CreateGroup(groupID, title string) (*types.AnonGroup, error) {
	ref, err := p.sets.New(uuid.New(), groupID, title)
	if err != nil {
		return nil, err
	}
	return p.group(ref), nil
}

// AddMember adds a member with its identity commitment to a group.
func (p *Provider) AddMember(groupID string, memberID []byte, commitment *types.BigInt) error {
	ref, err := p.sets.ByGroup(groupID)
	if err != nil {
		return fmt.Errorf("%w: %v", types.ErrNotFound, err)
	}
	return ref.Insert(anonset.MemberKey(memberID), anonset.CommitmentValue(commitment.MathBigInt()))
}

// AddMembers adds a batch of members to a group and returns how many could
// not be inserted.
func (p *Provider) AddMembers(groupID string, memberIDs [][]byte, commitments []*types.BigInt) (int, error) {
	if len(memberIDs) != len(commitments) {
		return 0, fmt.Errorf("%w: %d members with %d commitments", types.ErrMalformedInput, len(memberIDs), len(commitments))
	}
	ref, err := p.sets.ByGroup(groupID)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", types.ErrNotFound, err)
	}
	keys := make([][]byte, len(memberIDs))
	values := make([][]byte, len(memberIDs))
	for i := range memberIDs {
		if commitments[i] == nil {
			return 0, fmt.Errorf("%w: member %d without commitment", types.ErrMalformedInput, i)
		}
		keys[i] = anonset.MemberKey(memberIDs[i])
		values[i] = anonset.CommitmentValue(commitments[i].MathBigInt())
	}
	invalid, err := ref.InsertBatch(keys, values)
	if err != nil {
		return 0, err
	}
	return len(invalid), nil
}

// SetInfo returns the current root and size of the set of a group.
func (p *Provider) SetInfo(groupID string) (types.HexBytes, int, error) {
	ref, err := p.sets.ByGroup(groupID)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", types.ErrNotFound, err)
	}
	return ref.Root(), ref.Size(), nil
}

// MemberProof returns the inclusion proof of a member in the set whose
// current root is root, for members that prove on their own device.
func (p *Provider) MemberProof(root types.HexBytes, memberID []byte) (*anonset.MembershipProof, error) {
	proof, err := p.sets.ProofByRoot(root, anonset.MemberKey(memberID))
	if err != nil {
		if errors.Is(err, anonset.ErrSetNotFound) || errors.Is(err, anonset.ErrMemberNotFound) {
			return nil, fmt.Errorf("%w: %v", types.ErrNotFound, err)
		}
		return nil, err
	}
	return proof, nil
}

func (p *Provider) group(ref *anonset.SetRef) *types.AnonGroup {
	title := ref.Title
	if title == "" {
		title = ref.GroupID
	}
	return &types.AnonGroup{ID: ref.GroupID, Provider: p.slug, Title: title}
}

func (p *Provider) GetAnonGroup(groupID string) (*types.AnonGroup, error) {
	ref, err := p.sets.ByGroup(groupID)
	if err != nil {
		if errors.Is(err, anonset.ErrSetNotFound) {
			return nil, fmt.Errorf("%w: %v", types.ErrNotFound, err)
		}
		return nil, err
	}
	return p.group(ref), nil
}

// GenerateProof proves that the member key is in the set of its group and
// that the member knows the secret of the stored commitment. The merkle
// path and the secret are private inputs, the root is public.
func (p *Provider) GenerateProof(ctx context.Context, id *ephemeral.Identity) (*provider.Result, error) {
	if p.member == nil || p.member.Secret == nil {
		return nil, fmt.Errorf("%w: no member credential", types.ErrProofGeneration)
	}
	ref, err := p.sets.ByGroup(p.member.GroupID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrProofGeneration, err)
	}
	proof, err := ref.Proof(anonset.MemberKey(p.member.ID))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrProofGeneration, err)
	}
	commitment, err := p.member.Secret.Commitment()
	if err != nil {
		return nil, err
	}
	if arbo.BytesToBigInt(proof.Value).Cmp(commitment.MathBigInt()) != 0 {
		return nil, fmt.Errorf("%w: secret does not match the registered commitment", types.ErrProofGeneration)
	}
	siblings, err := arbo.UnpackSiblings(arbo.HashFunctionPoseidon, proof.Siblings)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrProofGeneration, err)
	}
	path := make([]string, 0, len(siblings))
	for _, s := range siblings {
		path = append(path, arbo.BytesToBigInt(s).String())
	}
	private := map[string]any{
		"key":      arbo.BytesToBigInt(proof.Key).String(),
		"secret":   p.member.Secret.BigInt().String(),
		"siblings": path,
	}
	args := types.ProofArgs{RootArg: proof.Root.String()}
	return p.pr.Prove(ctx, p.group(ref), id, args, private)
}

// VerifyProof checks that the root in the arguments is a root the set of
// the group had, then verifies the proof.
func (p *Provider) VerifyProof(ctx context.Context, proof types.HexBytes, groupID string,
	pubkey *types.BigInt, pubkeyExpiry time.Time, args types.ProofArgs,
) (bool, error) {
	if err := p.pr.CheckExpiry(pubkeyExpiry); err != nil {
		return false, err
	}
	root, err := types.HexStringToHexBytes(args[RootArg])
	if err != nil || len(root) == 0 {
		return false, fmt.Errorf("%w: missing or invalid set root", types.ErrMalformedInput)
	}
	ref, err := p.sets.ByGroup(groupID)
	if err != nil {
		if errors.Is(err, anonset.ErrSetNotFound) {
			return false, nil
		}
		return false, err
	}
	if !p.sets.KnownRoot(ref.ID, root) {
		return false, nil
	}
	return p.pr.Verify(ctx, proof, groupID, pubkey, pubkeyExpiry, args)
}
