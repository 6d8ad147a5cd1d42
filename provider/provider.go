// Package provider defines the anonymity set providers. A provider mints
// membership proofs binding an ephemeral public key to an anonymity set and
// verifies them later. Variants only differ in how eligibility is
// established upstream; the statement and the proving backend are shared.
package provider

import (
	"context"
	"fmt"
	"math/big"
	"sort"
	"sync"
	"time"

	"github.com/vocdoni/anonclaims/config"
	"github.com/vocdoni/anonclaims/crypto/ephemeral"
	"github.com/vocdoni/anonclaims/crypto/hash/poseidon"
	"github.com/vocdoni/anonclaims/prover"
	"github.com/vocdoni/anonclaims/types"
	"github.com/vocdoni/anonclaims/util"
)

// Result is the output of a proof generation.
type Result struct {
	AnonGroup *types.AnonGroup `json:"anonGroup"`
	Proof     types.HexBytes   `json:"proof"`
	ProofArgs types.ProofArgs  `json:"proofArgs,omitempty"`
}

// Provider is an anonymity set provider.
type Provider interface {
	// Slug is the provider name stored next to groups and memberships.
	Slug() string
	// GenerateProof proves that the holder of id belongs to an anonymity
	// set. It fails with ErrProofGeneration when eligibility can not be
	// established and ErrProverUnavailable when the backend is down.
	GenerateProof(ctx context.Context, id *ephemeral.Identity) (*Result, error)
	// VerifyProof returns false for a well formed proof that does not hold.
	// Errors are reserved to malformed input, expired keys and an
	// unavailable backend.
	VerifyProof(ctx context.Context, proof types.HexBytes, groupID string,
		pubkey *types.BigInt, pubkeyExpiry time.Time, args types.ProofArgs) (bool, error)
	// GetAnonGroup resolves a group id, ErrNotFound if unknown.
	GetAnonGroup(groupID string) (*types.AnonGroup, error)
}

// Statement is the public input of a membership proof. It binds the group,
// the ephemeral key, its expiry and the provider arguments (sorted by key).
func Statement(groupID string, pubkey *types.BigInt, expiry time.Time, args types.ProofArgs) (*big.Int, error) {
	if pubkey == nil {
		return nil, fmt.Errorf("%w: missing public key", types.ErrMalformedInput)
	}
	inputs := []*big.Int{
		util.StringToField(groupID),
		util.BigToFF(pubkey.MathBigInt()),
		big.NewInt(expiry.UnixMilli()),
	}
	keys := make([]string, 0, len(args))
	for k := range args {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		inputs = append(inputs, util.StringToField(k), util.StringToField(args[k]))
	}
	return poseidon.MultiPoseidon(inputs...)
}

// Prover is the proving half shared by every provider variant.
type Prover struct {
	Backend prover.Backend
	// Now is used to check key expiry, time.Now if nil.
	Now func() time.Time
}

func (p *Prover) now() time.Time {
	if p.Now != nil {
		return p.Now()
	}
	return time.Now()
}

// Prove builds the statement of id and asks the backend for a membership
// proof with the given private inputs.
func (p *Prover) Prove(ctx context.Context, group *types.AnonGroup, id *ephemeral.Identity,
	args types.ProofArgs, private map[string]any,
) (*Result, error) {
	if id == nil {
		return nil, fmt.Errorf("%w: missing identity", types.ErrMalformedInput)
	}
	if id.Expired(p.now()) {
		return nil, fmt.Errorf("%w: identity expired at %s", types.ErrExpiredIdentity, id.Expiry)
	}
	statement, err := Statement(group.ID, id.PublicKey, id.Expiry, args)
	if err != nil {
		return nil, err
	}
	proof, err := p.Backend.Prove(ctx, config.MembershipCircuitID, private, []*big.Int{statement})
	if err != nil {
		return nil, fmt.Errorf("membership proof for group %s: %w", group.ID, err)
	}
	return &Result{AnonGroup: group, Proof: proof, ProofArgs: args}, nil
}

// Verify checks the expiry of the key and then the proof of its statement.
func (p *Prover) Verify(ctx context.Context, proof types.HexBytes, groupID string,
	pubkey *types.BigInt, pubkeyExpiry time.Time, args types.ProofArgs,
) (bool, error) {
	if err := p.CheckExpiry(pubkeyExpiry); err != nil {
		return false, err
	}
	if len(proof) == 0 {
		return false, fmt.Errorf("%w: empty proof", types.ErrMalformedInput)
	}
	statement, err := Statement(groupID, pubkey, pubkeyExpiry, args)
	if err != nil {
		return false, err
	}
	return p.Backend.Verify(ctx, config.MembershipCircuitID, proof, []*big.Int{statement})
}

// CheckExpiry fails with ErrExpiredIdentity once expiry is reached.
func (p *Prover) CheckExpiry(expiry time.Time) error {
	if !p.now().Before(expiry) {
		return fmt.Errorf("%w: public key expired at %s", types.ErrExpiredIdentity, expiry)
	}
	return nil
}

// Registry indexes providers by slug.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]Provider
}

// NewRegistry returns a registry with the given providers.
func NewRegistry(providers ...Provider) *Registry {
	r := &Registry{providers: make(map[string]Provider)}
	for _, p := range providers {
		r.Register(p)
	}
	return r
}

// Register adds or replaces a provider.
func (r *Registry) Register(p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[p.Slug()] = p
}

// Get returns the provider with the given slug or ErrUnknownProvider.
func (r *Registry) Get(slug string) (Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.providers[slug]
	if !ok {
		return nil, fmt.Errorf("%w: %q", types.ErrUnknownProvider, slug)
	}
	return p, nil
}

// Slugs returns the registered slugs, sorted.
func (r *Registry) Slugs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	slugs := make([]string, 0, len(r.providers))
	for s := range r.providers {
		slugs = append(slugs, s)
	}
	sort.Strings(slugs)
	return slugs
}
