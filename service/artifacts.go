package service

import (
	"context"
	"fmt"
	"time"

	"github.com/vocdoni/anonclaims/config"
	"golang.org/x/sync/errgroup"
)

// DownloadArtifacts downloads the artifacts of all the circuits
// concurrently.
func DownloadArtifacts(timeout time.Duration, sources map[string]config.CircuitSource) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)
	for id, src := range sources {
		artifacts, err := src.Artifacts()
		if err != nil {
			return fmt.Errorf("circuit %s: %w", id, err)
		}
		g.Go(func() error {
			if err := artifacts.DownloadAll(ctx); err != nil {
				return fmt.Errorf("circuit %s: %w", id, err)
			}
			return nil
		})
	}
	return g.Wait()
}
