package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/vocdoni/anonclaims/api"
	"github.com/vocdoni/anonclaims/lifecycle"
	"github.com/vocdoni/anonclaims/log"
	"github.com/vocdoni/anonclaims/provider/census"
)

// shutdownTimeout bounds the graceful stop of the HTTP server.
const shutdownTimeout = 10 * time.Second

// APIService represents a service that manages the HTTP API server.
type APIService struct {
	lc     *lifecycle.Manager
	census *census.Provider
	api    *api.API
	mu     sync.Mutex
	cancel context.CancelFunc
	host   string
	port   int
}

// NewAPI creates a new APIService instance. census may be nil, then the
// census management endpoints are not served.
func NewAPI(lc *lifecycle.Manager, cens *census.Provider, host string, port int) *APIService {
	return &APIService{
		lc:     lc,
		census: cens,
		host:   host,
		port:   port,
	}
}

// Start begins the API server. It returns an error if the service
// is already running or if it fails to start.
func (as *APIService) Start(ctx context.Context) error {
	as.mu.Lock()
	defer as.mu.Unlock()

	if as.cancel != nil {
		return fmt.Errorf("service already running")
	}

	_, as.cancel = context.WithCancel(ctx)

	var err error
	as.api, err = api.New(&api.APIConfig{
		Host:      as.host,
		Port:      as.port,
		Lifecycle: as.lc,
		Census:    as.census,
	})
	if err != nil {
		as.cancel()
		as.cancel = nil
		return fmt.Errorf("failed to start API server: %w", err)
	}
	return nil
}

// Stop halts the API server.
func (as *APIService) Stop() {
	as.mu.Lock()
	defer as.mu.Unlock()

	if as.cancel == nil {
		return
	}
	as.cancel()
	as.cancel = nil
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := as.api.Shutdown(ctx); err != nil {
		log.Warnw("API server shutdown", "error", err.Error())
	}
	as.api = nil
}

// HostPort returns the host and port of the API server.
func (as *APIService) HostPort() (string, int) {
	return as.host, as.port
}

// Addr returns the address the server listens on, empty if stopped.
func (as *APIService) Addr() string {
	as.mu.Lock()
	defer as.mu.Unlock()
	if as.api == nil {
		return ""
	}
	return as.api.Addr()
}
