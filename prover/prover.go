// Package prover defines the zero-knowledge proving capability consumed by
// the anonymous group providers and the nullifier registry. Backends are
// opaque: callers name a circuit, hand over inputs and get proof bytes back.
//
// Backends report an unreachable or failing prover by wrapping
// types.ErrProverUnavailable, never by returning an invalid proof result.
package prover

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"
	"math/big"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/sethvargo/go-retry"
	"github.com/vocdoni/anonclaims/crypto"
	"github.com/vocdoni/anonclaims/log"
	"github.com/vocdoni/anonclaims/types"
	"github.com/vocdoni/anonclaims/util"
)

// Backend is a zero-knowledge proving backend.
type Backend interface {
	// Prove generates a proof for circuitID. public are the public signals
	// in circuit order, private the remaining named inputs.
	Prove(ctx context.Context, circuitID string, private map[string]any, public []*big.Int) ([]byte, error)
	// Verify checks proof against the public signals. It returns false for
	// a well formed proof that does not verify.
	Verify(ctx context.Context, circuitID string, proof []byte, public []*big.Int) (bool, error)
}

// Unavailable wraps err as a prover availability failure.
func Unavailable(err error) error {
	return fmt.Errorf("%w: %v", types.ErrProverUnavailable, err)
}

// DefaultCacheSize is the number of verification outcomes kept by Cached.
const DefaultCacheSize = 1024

// Cached memoizes verification outcomes. Groth16 verification is a pure
// function of (circuit, proof, public signals), so both true and false are
// cached; errors are not.
type Cached struct {
	Backend
	cache *lru.Cache[[sha256.Size]byte, bool]
}

// NewCached wraps backend with a verification cache of the given size.
func NewCached(backend Backend, size int) (*Cached, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	cache, err := lru.New[[sha256.Size]byte, bool](size)
	if err != nil {
		return nil, fmt.Errorf("create verification cache: %w", err)
	}
	return &Cached{Backend: backend, cache: cache}, nil
}

func (c *Cached) Verify(ctx context.Context, circuitID string, proof []byte, public []*big.Int) (bool, error) {
	key := verificationKey(circuitID, proof, public)
	if ok, found := c.cache.Get(key); found {
		return ok, nil
	}
	ok, err := c.Backend.Verify(ctx, circuitID, proof, public)
	if err != nil {
		return false, err
	}
	c.cache.Add(key, ok)
	return ok, nil
}

func verificationKey(circuitID string, proof []byte, public []*big.Int) [sha256.Size]byte {
	h := sha256.New()
	var l [8]byte
	binary.BigEndian.PutUint64(l[:], uint64(len(circuitID)))
	h.Write(l[:])
	h.Write([]byte(circuitID))
	binary.BigEndian.PutUint64(l[:], uint64(len(proof)))
	h.Write(l[:])
	h.Write(proof)
	for _, p := range public {
		h.Write(crypto.FieldBytes(p, util.ScalarField()))
	}
	var key [sha256.Size]byte
	copy(key[:], h.Sum(nil))
	return key
}

// Retrying retries calls that fail with ErrProverUnavailable using an
// exponential backoff. Any other result is returned as is.
type Retrying struct {
	Backend
	retries uint64
	base    time.Duration
}

// NewRetrying wraps backend, retrying up to retries times starting at base.
func NewRetrying(backend Backend, retries int, base time.Duration) *Retrying {
	if retries < 0 {
		retries = 0
	}
	if base <= 0 {
		base = 200 * time.Millisecond
	}
	return &Retrying{Backend: backend, retries: uint64(retries), base: base}
}

func (r *Retrying) backoff() retry.Backoff {
	return retry.WithMaxRetries(r.retries, retry.NewExponential(r.base))
}

func (r *Retrying) Prove(ctx context.Context, circuitID string, private map[string]any, public []*big.Int) ([]byte, error) {
	var proof []byte
	err := retry.Do(ctx, r.backoff(), func(ctx context.Context) error {
		var err error
		proof, err = r.Backend.Prove(ctx, circuitID, private, public)
		return retryable(err, "prove", circuitID)
	})
	return proof, err
}

func (r *Retrying) Verify(ctx context.Context, circuitID string, proof []byte, public []*big.Int) (bool, error) {
	var ok bool
	err := retry.Do(ctx, r.backoff(), func(ctx context.Context) error {
		var err error
		ok, err = r.Backend.Verify(ctx, circuitID, proof, public)
		return retryable(err, "verify", circuitID)
	})
	return ok, err
}

func retryable(err error, op, circuitID string) error {
	if err != nil && errors.Is(err, types.ErrProverUnavailable) {
		log.Warnw("prover unavailable, retrying", "op", op, "circuit", circuitID, "error", err.Error())
		return retry.RetryableError(err)
	}
	return err
}
