// Package mock is a deterministic proving backend for tests and local
// development. A proof is a keyed hash of the circuit id and the public
// signals: it verifies exactly when the same signals are presented again.
// It proves nothing about the private inputs.
package mock

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"fmt"
	"math/big"
	"sync"
	"sync/atomic"

	"github.com/vocdoni/anonclaims/crypto"
	"github.com/vocdoni/anonclaims/prover"
	"github.com/vocdoni/anonclaims/util"
)

// Backend implements prover.Backend.
type Backend struct {
	key []byte

	mu          sync.RWMutex
	unavailable bool
	// failures makes the next n calls fail as unavailable
	failures int

	proofs        atomic.Int64
	verifications atomic.Int64
}

var _ prover.Backend = (*Backend)(nil)

// New returns a mock backend with a random key.
func New() *Backend {
	return NewWithKey(util.RandomBytes(32))
}

// NewWithKey returns a mock backend with a fixed key, so several instances
// accept each other's proofs.
func NewWithKey(key []byte) *Backend {
	return &Backend{key: key}
}

// SetUnavailable switches the backend on or off.
func (b *Backend) SetUnavailable(unavailable bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.unavailable = unavailable
}

// FailNext makes the next n calls fail as unavailable.
func (b *Backend) FailNext(n int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures = n
}

// Proofs returns the number of proofs generated.
func (b *Backend) Proofs() int64 { return b.proofs.Load() }

// Verifications returns the number of verifications performed.
func (b *Backend) Verifications() int64 { return b.verifications.Load() }

func (b *Backend) available() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.unavailable {
		return prover.Unavailable(fmt.Errorf("mock prover switched off"))
	}
	if b.failures > 0 {
		b.failures--
		return prover.Unavailable(fmt.Errorf("mock prover transient failure"))
	}
	return nil
}

func (b *Backend) Prove(ctx context.Context, circuitID string, _ map[string]any, public []*big.Int) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := b.available(); err != nil {
		return nil, err
	}
	b.proofs.Add(1)
	return b.mac(circuitID, public), nil
}

func (b *Backend) Verify(ctx context.Context, circuitID string, proof []byte, public []*big.Int) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if err := b.available(); err != nil {
		return false, err
	}
	b.verifications.Add(1)
	return hmac.Equal(proof, b.mac(circuitID, public)), nil
}

func (b *Backend) mac(circuitID string, public []*big.Int) []byte {
	h := hmac.New(sha256.New, b.key)
	h.Write([]byte(circuitID))
	h.Write([]byte{0})
	for _, p := range public {
		h.Write(crypto.FieldBytes(p, util.ScalarField()))
	}
	return h.Sum(nil)
}
