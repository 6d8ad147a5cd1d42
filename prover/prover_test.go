package prover_test

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"
	"github.com/vocdoni/anonclaims/prover"
	"github.com/vocdoni/anonclaims/prover/mock"
	"github.com/vocdoni/anonclaims/types"
)

func TestMockBackend(t *testing.T) {
	c := qt.New(t)
	ctx := context.Background()
	b := mock.New()

	public := []*big.Int{big.NewInt(1), big.NewInt(2)}
	proof, err := b.Prove(ctx, "membership", nil, public)
	c.Assert(err, qt.IsNil)

	ok, err := b.Verify(ctx, "membership", proof, public)
	c.Assert(err, qt.IsNil)
	c.Assert(ok, qt.IsTrue)

	ok, err = b.Verify(ctx, "membership", proof, []*big.Int{big.NewInt(1), big.NewInt(3)})
	c.Assert(err, qt.IsNil)
	c.Assert(ok, qt.IsFalse)

	ok, err = b.Verify(ctx, "nullifier", proof, public)
	c.Assert(err, qt.IsNil)
	c.Assert(ok, qt.IsFalse)

	// a backend with another key rejects the proof
	ok, err = mock.New().Verify(ctx, "membership", proof, public)
	c.Assert(err, qt.IsNil)
	c.Assert(ok, qt.IsFalse)

	b.SetUnavailable(true)
	_, err = b.Verify(ctx, "membership", proof, public)
	c.Assert(errors.Is(err, types.ErrProverUnavailable), qt.IsTrue)
}

func TestCached(t *testing.T) {
	c := qt.New(t)
	ctx := context.Background()
	b := mock.New()
	cached, err := prover.NewCached(b, 16)
	c.Assert(err, qt.IsNil)

	public := []*big.Int{big.NewInt(10)}
	proof, err := cached.Prove(ctx, "membership", nil, public)
	c.Assert(err, qt.IsNil)

	for i := 0; i < 3; i++ {
		ok, err := cached.Verify(ctx, "membership", proof, public)
		c.Assert(err, qt.IsNil)
		c.Assert(ok, qt.IsTrue)
	}
	c.Assert(b.Verifications(), qt.Equals, int64(1))

	// errors are not cached
	b.SetUnavailable(true)
	_, err = cached.Verify(ctx, "membership", proof, []*big.Int{big.NewInt(11)})
	c.Assert(errors.Is(err, types.ErrProverUnavailable), qt.IsTrue)
	b.SetUnavailable(false)
	ok, err := cached.Verify(ctx, "membership", proof, []*big.Int{big.NewInt(11)})
	c.Assert(err, qt.IsNil)
	c.Assert(ok, qt.IsFalse)
	c.Assert(b.Verifications(), qt.Equals, int64(2))
}

func TestRetrying(t *testing.T) {
	c := qt.New(t)
	ctx := context.Background()
	b := mock.New()
	r := prover.NewRetrying(b, 3, time.Millisecond)

	public := []*big.Int{big.NewInt(5)}
	b.FailNext(2)
	proof, err := r.Prove(ctx, "membership", nil, public)
	c.Assert(err, qt.IsNil)

	b.FailNext(2)
	ok, err := r.Verify(ctx, "membership", proof, public)
	c.Assert(err, qt.IsNil)
	c.Assert(ok, qt.IsTrue)

	// out of retries, the availability error is kept
	b.SetUnavailable(true)
	_, err = r.Verify(ctx, "membership", proof, public)
	c.Assert(errors.Is(err, types.ErrProverUnavailable), qt.IsTrue)

	// an invalid proof is not retried
	b.SetUnavailable(false)
	before := b.Verifications()
	ok, err = r.Verify(ctx, "membership", []byte("garbage"), public)
	c.Assert(err, qt.IsNil)
	c.Assert(ok, qt.IsFalse)
	c.Assert(b.Verifications()-before, qt.Equals, int64(1))
}

func TestCanceledContext(t *testing.T) {
	c := qt.New(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := mock.New().Prove(ctx, "membership", nil, nil)
	c.Assert(errors.Is(err, context.Canceled), qt.IsTrue)
}
