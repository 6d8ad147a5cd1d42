// Package nullifier enforces one vote per identity and scope. A nullifier is
// Poseidon(secret, field(scope)): deterministic for a given voter and claim,
// unlinkable across claims and not invertible to the secret.
package nullifier

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"

	"github.com/iden3/go-iden3-crypto/poseidon"
	"github.com/vocdoni/anonclaims/config"
	"github.com/vocdoni/anonclaims/prover"
	"github.com/vocdoni/anonclaims/types"
	"github.com/vocdoni/anonclaims/util"
)

// ScopeField maps a scope (a claim id) to the field.
func ScopeField(scope string) *big.Int {
	return util.StringToField(scope)
}

// Derive computes the nullifier of secret for scope.
func Derive(secret *big.Int, scope string) (*types.BigInt, error) {
	if secret == nil {
		return nil, fmt.Errorf("%w: missing secret", types.ErrMalformedInput)
	}
	h, err := poseidon.Hash([]*big.Int{util.BigToFF(secret), ScopeField(scope)})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrMalformedInput, err)
	}
	return new(types.BigInt).SetBigInt(h), nil
}

// Commitment is the public commitment to a secret registered with a
// membership.
func Commitment(secret *big.Int) (*types.BigInt, error) {
	if secret == nil {
		return nil, fmt.Errorf("%w: missing secret", types.ErrMalformedInput)
	}
	h, err := poseidon.Hash([]*big.Int{util.BigToFF(secret)})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrMalformedInput, err)
	}
	return new(types.BigInt).SetBigInt(h), nil
}

// IdentityContext yields the nullifier of a voter for a scope.
type IdentityContext interface {
	Nullifier(ctx context.Context, scope string) (*types.BigInt, error)
}

// Secret is the voter side identity. It is kept by its owner only.
type Secret struct {
	secret *big.Int
}

var _ IdentityContext = (*Secret)(nil)

// NewSecret draws a random field element.
func NewSecret() (*Secret, error) {
	s, err := rand.Int(rand.Reader, util.ScalarField())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrKeyGeneration, err)
	}
	return &Secret{secret: s}, nil
}

// SecretFromBigInt wraps a known secret.
func SecretFromBigInt(s *big.Int) *Secret {
	return &Secret{secret: util.BigToFF(s)}
}

func (s *Secret) Nullifier(_ context.Context, scope string) (*types.BigInt, error) {
	return Derive(s.secret, scope)
}

func (s *Secret) Commitment() (*types.BigInt, error) {
	return Commitment(s.secret)
}

// BigInt exposes the secret to code that must feed it to a prover.
func (s *Secret) BigInt() *big.Int {
	return new(big.Int).Set(s.secret)
}

// Prove derives the nullifier of scope and proves it was derived from the
// secret behind the commitment.
func (s *Secret) Prove(ctx context.Context, backend prover.Backend, scope string) (*Proven, error) {
	nullifier, err := s.Nullifier(ctx, scope)
	if err != nil {
		return nil, err
	}
	commitment, err := s.Commitment()
	if err != nil {
		return nil, err
	}
	proof, err := backend.Prove(ctx, config.NullifierCircuitID,
		map[string]any{"secret": s.secret.String()},
		publicInputs(nullifier, scope, commitment))
	if err != nil {
		return nil, fmt.Errorf("nullifier proof: %w", err)
	}
	return &Proven{Value: nullifier, Proof: proof}, nil
}

// Proven is the nullifier as received from a voter, optionally with a proof
// of its derivation.
type Proven struct {
	Value *types.BigInt  `json:"nullifier"`
	Proof types.HexBytes `json:"proof,omitempty"`
}

var _ IdentityContext = (*Proven)(nil)

func (p *Proven) Nullifier(context.Context, string) (*types.BigInt, error) {
	if p == nil || p.Value == nil {
		return nil, fmt.Errorf("%w: missing nullifier", types.ErrMalformedInput)
	}
	if p.Value.MathBigInt().Cmp(util.ScalarField()) >= 0 || p.Value.MathBigInt().Sign() < 0 {
		return nil, fmt.Errorf("%w: nullifier out of field", types.ErrMalformedInput)
	}
	return p.Value, nil
}

// Verify checks the derivation proof against the commitment registered for
// the voter.
func (p *Proven) Verify(ctx context.Context, backend prover.Backend, scope string, commitment *types.BigInt) (bool, error) {
	if len(p.Proof) == 0 {
		return false, nil
	}
	if commitment == nil {
		return false, fmt.Errorf("%w: voter has no identity commitment", types.ErrUnauthorized)
	}
	return backend.Verify(ctx, config.NullifierCircuitID, p.Proof, publicInputs(p.Value, scope, commitment))
}

func publicInputs(nullifier *types.BigInt, scope string, commitment *types.BigInt) []*big.Int {
	return []*big.Int{nullifier.MathBigInt(), ScopeField(scope), commitment.MathBigInt()}
}
