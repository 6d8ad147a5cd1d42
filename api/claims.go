package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/vocdoni/anonclaims/types"
)

// claims lists the claims, newest or most voted first
// GET /claims?status=pending&sortBy=vote_count&groupId=...&limit=...
func (a *API) claims(w http.ResponseWriter, r *http.Request) {
	caller, ok := optionalBearer(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	filter := types.ClaimFilter{
		GroupID: q.Get("groupId"),
		SortBy:  types.ClaimSort(q.Get("sortBy")),
	}
	if s := q.Get("status"); s != "" {
		status, err := types.ParseClaimStatus(s)
		if err != nil {
			ErrMalformedParam.WithErr(err).Write(w)
			return
		}
		filter.Status = status
	}
	if filter.Limit, ok = queryLimit(w, r); !ok {
		return
	}
	list, err := a.lc.ListClaims(r.Context(), filter, caller)
	if err != nil {
		apiError(err).Write(w)
		return
	}
	if list == nil {
		list = []*types.ClaimWithTally{}
	}
	httpWriteJSON(w, &ClaimsResponse{Claims: list})
}

// newClaim stores a claim signed by a curator
// POST /claims
func (a *API) newClaim(w http.ResponseWriter, r *http.Request) {
	claim := &types.Claim{}
	if !decodeBody(w, r, claim) {
		return
	}
	if claim.Signature == nil || claim.EphemeralPubkey == nil {
		ErrMalformedBody.With("signature and ephemeralPubkey are required").Write(w)
		return
	}
	created, err := a.lc.CreateClaim(r.Context(), claim)
	if err != nil {
		apiError(err).Write(w)
		return
	}
	httpWriteJSON(w, created)
}

// claim returns a claim with its tally
// GET /claims/{claimId}
func (a *API) claim(w http.ResponseWriter, r *http.Request) {
	caller, ok := optionalBearer(w, r)
	if !ok {
		return
	}
	c, err := a.lc.GetClaim(r.Context(), chi.URLParam(r, ClaimURLParam), caller)
	if err != nil {
		apiError(err).Write(w)
		return
	}
	httpWriteJSON(w, c)
}

// verifyClaim checks the signature and the author membership of a claim
// GET /claims/{claimId}/verify
func (a *API) verifyClaim(w http.ResponseWriter, r *http.Request) {
	res, err := a.lc.VerifyClaim(r.Context(), chi.URLParam(r, ClaimURLParam))
	if err != nil {
		apiError(err).Write(w)
		return
	}
	httpWriteJSON(w, res)
}

// closeClaims resolves the claims whose voting window is over
// POST /claims/close
func (a *API) closeClaims(w http.ResponseWriter, r *http.Request) {
	res, err := a.lc.ResolveExpired(r.Context())
	if err != nil {
		apiError(err).Write(w)
		return
	}
	httpWriteJSON(w, res)
}
