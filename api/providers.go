package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// providers lists the registered anonymity set providers
// GET /providers
func (a *API) providers(w http.ResponseWriter, r *http.Request) {
	httpWriteJSON(w, &ProvidersResponse{Providers: a.lc.Providers().Slugs()})
}

// anonGroup resolves a group of a provider
// GET /providers/{provider}/groups/{groupId}
func (a *API) anonGroup(w http.ResponseWriter, r *http.Request) {
	p, err := a.lc.Providers().Get(chi.URLParam(r, ProviderURLParam))
	if err != nil {
		apiError(err).Write(w)
		return
	}
	group, err := p.GetAnonGroup(chi.URLParam(r, GroupURLParam))
	if err != nil {
		apiError(err).Write(w)
		return
	}
	httpWriteJSON(w, group)
}
