package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/vocdoni/anonclaims/lifecycle"
	"github.com/vocdoni/anonclaims/log"
	"github.com/vocdoni/anonclaims/provider/census"
)

// APIConfig type represents the configuration for the API HTTP server.
type APIConfig struct {
	Host      string
	Port      int
	Lifecycle *lifecycle.Manager
	// Census enables the anonymity set management endpoints. Optional.
	Census *census.Provider
}

// API type represents the API HTTP server. Callers identify themselves with
// their ephemeral public key as bearer token.
type API struct {
	router *chi.Mux
	lc     *lifecycle.Manager
	census *census.Provider
	server *http.Server
	addr   net.Addr
}

// New creates a new API instance with the given configuration and starts
// serving it in the background.
func New(conf *APIConfig) (*API, error) {
	a, err := newAPI(conf)
	if err != nil {
		return nil, err
	}
	ln, err := net.Listen("tcp", fmt.Sprintf("%s:%d", conf.Host, conf.Port))
	if err != nil {
		return nil, fmt.Errorf("listen: %w", err)
	}
	a.addr = ln.Addr()
	a.server = &http.Server{
		Handler:           a.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Infow("starting API server", "address", a.addr.String())
		if err := a.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Errorw(err, "API server stopped")
		}
	}()
	return a, nil
}

func newAPI(conf *APIConfig) (*API, error) {
	if conf == nil {
		return nil, fmt.Errorf("missing API configuration")
	}
	if conf.Lifecycle == nil {
		return nil, fmt.Errorf("missing lifecycle manager")
	}
	a := &API{
		lc:     conf.Lifecycle,
		census: conf.Census,
	}
	a.initRouter()
	return a, nil
}

// Router returns the chi router for testing purposes
func (a *API) Router() *chi.Mux {
	return a.router
}

// Addr returns the address the server listens on.
func (a *API) Addr() string {
	if a.addr == nil {
		return ""
	}
	return a.addr.String()
}

// Shutdown stops the server gracefully.
func (a *API) Shutdown(ctx context.Context) error {
	if a.server == nil {
		return nil
	}
	return a.server.Shutdown(ctx)
}

// registerHandlers registers all the API handlers.
func (a *API) registerHandlers() {
	routes := []struct {
		method, endpoint string
		handler          http.HandlerFunc
	}{
		{http.MethodGet, PingEndpoint, func(w http.ResponseWriter, r *http.Request) { httpWriteOK(w) }},

		{http.MethodPost, MembershipsEndpoint, a.newMembership},
		{http.MethodPost, ValidatorRoleEndpoint, a.claimValidatorRole},
		{http.MethodGet, MembershipRoleEndpoint, a.hasRole},
		{http.MethodGet, AllowedGroupsEndpoint, a.allowedGroups},

		{http.MethodGet, ClaimsEndpoint, a.claims},
		{http.MethodPost, ClaimsEndpoint, a.newClaim},
		{http.MethodPost, CloseClaimsEndpoint, a.closeClaims},
		{http.MethodGet, ClaimEndpoint, a.claim},
		{http.MethodGet, ClaimVerifyEndpoint, a.verifyClaim},
		{http.MethodGet, ClaimVotesEndpoint, a.claimVotes},
		{http.MethodPost, ClaimVotesEndpoint, a.newVote},
		{http.MethodGet, ClaimVotedEndpoint, a.voted},

		{http.MethodPost, LikesEndpoint, a.toggleLike},

		{http.MethodGet, MessagesEndpoint, a.messages},
		{http.MethodPost, MessagesEndpoint, a.newMessage},
		{http.MethodGet, MessageEndpoint, a.message},
		{http.MethodGet, MessageVerifyEndpoint, a.verifyMessage},

		{http.MethodGet, ProvidersEndpoint, a.providers},
		{http.MethodGet, ProviderGroupEndpoint, a.anonGroup},
	}
	if a.census != nil {
		routes = append(routes, []struct {
			method, endpoint string
			handler          http.HandlerFunc
		}{
			{http.MethodPost, CensusGroupsEndpoint, a.newCensusGroup},
			{http.MethodGet, CensusGroupEndpoint, a.censusGroup},
			{http.MethodPost, CensusMembersEndpoint, a.addCensusMembers},
			{http.MethodGet, CensusProofEndpoint, a.censusProof},
		}...)
	}
	for _, rt := range routes {
		log.Debugw("register handler", "endpoint", rt.endpoint, "method", rt.method)
		a.router.Method(rt.method, rt.endpoint, rt.handler)
	}
}

// initRouter creates the router with all the routes and middleware.
func (a *API) initRouter() {
	a.router = chi.NewRouter()
	a.router.Use(cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		AllowCredentials: true,
		MaxAge:           300, // Maximum value not ignored by any of major browsers
	}).Handler)
	a.router.Use(middleware.Logger)
	a.router.Use(middleware.Recoverer)
	a.router.Use(middleware.Throttle(100))
	a.router.Use(middleware.ThrottleBacklog(5000, 40000, 60*time.Second))
	a.router.Use(middleware.Timeout(45 * time.Second))

	a.registerHandlers()
}
