package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/vocdoni/anonclaims/lifecycle"
	"github.com/vocdoni/anonclaims/log"
)

// Resolver is the part of the lifecycle manager the resolver drives.
type Resolver interface {
	ResolveExpired(ctx context.Context) (*lifecycle.ResolveResult, error)
}

// ClaimResolver represents a service that periodically resolves the claims
// whose voting window is over.
type ClaimResolver struct {
	lc       Resolver
	interval time.Duration
	mu       sync.Mutex
	cancel   context.CancelFunc
	done     chan struct{}
}

// NewClaimResolver creates a new ClaimResolver service.
func NewClaimResolver(lc Resolver, interval time.Duration) *ClaimResolver {
	return &ClaimResolver{
		lc:       lc,
		interval: interval,
	}
}

// Start begins the periodic resolution, with a first sweep right away. It
// returns an error if the service is already running.
func (cr *ClaimResolver) Start(ctx context.Context) error {
	cr.mu.Lock()
	defer cr.mu.Unlock()

	if cr.cancel != nil {
		return fmt.Errorf("service already running")
	}
	if cr.interval <= 0 {
		return fmt.Errorf("invalid resolve interval %s", cr.interval)
	}
	ctx, cr.cancel = context.WithCancel(ctx)
	cr.done = make(chan struct{})
	go cr.run(ctx, cr.done)
	return nil
}

// Stop halts the service and waits for the running sweep, if any.
func (cr *ClaimResolver) Stop() {
	cr.mu.Lock()
	defer cr.mu.Unlock()

	if cr.cancel != nil {
		cr.cancel()
		<-cr.done
		cr.cancel = nil
	}
}

func (cr *ClaimResolver) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(cr.interval)
	defer ticker.Stop()
	for {
		cr.sweep(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (cr *ClaimResolver) sweep(ctx context.Context) {
	start := time.Now()
	res, err := cr.lc.ResolveExpired(ctx)
	if err != nil {
		if ctx.Err() == nil {
			log.Warnw("claim resolution failed", "error", err.Error())
		}
		return
	}
	if res.Processed > 0 || res.Errors > 0 {
		log.Infow("claims resolved",
			"processed", res.Processed,
			"closed", res.Closed,
			"rejected", res.Rejected,
			"skipped", res.Skipped,
			"errors", res.Errors,
			"tookMs", log.Since(start))
	}
}
