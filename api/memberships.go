package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/vocdoni/anonclaims/log"
	"github.com/vocdoni/anonclaims/types"
)

// newMembership registers an ephemeral key with its membership proof
// POST /memberships
func (a *API) newMembership(w http.ResponseWriter, r *http.Request) {
	req := &MembershipRequest{}
	if !decodeBody(w, r, req) {
		return
	}
	if req.Pubkey == nil || req.GroupID == "" || req.Provider == "" || len(req.Proof) == 0 {
		ErrMalformedBody.With("pubkey, groupId, provider and proof are required").Write(w)
		return
	}
	mb, err := a.lc.RegisterMembership(r.Context(), &types.Membership{
		Pubkey:             req.Pubkey,
		GroupID:            req.GroupID,
		Provider:           req.Provider,
		Proof:              req.Proof,
		ProofArgs:          req.ProofArgs,
		PubkeyExpiry:       req.PubkeyExpiry,
		IdentityCommitment: req.IdentityCommitment,
	})
	if err != nil {
		apiError(err).Write(w)
		return
	}
	httpWriteJSON(w, mb)
}

// hasRole tells whether the bearer holds the role of the path
// GET /memberships/{role}
func (a *API) hasRole(w http.ResponseWriter, r *http.Request) {
	pk, ok := requireBearer(w, r)
	if !ok {
		return
	}
	role := types.Role(chi.URLParam(r, RoleURLParam))
	if !role.Valid() {
		ErrMalformedParam.Withf("invalid role %q, must be curator or validator", role).Write(w)
		return
	}
	has, err := a.lc.HasRole(r.Context(), pk, role)
	if err != nil {
		apiError(err).Write(w)
		return
	}
	httpWriteJSON(w, &HasRoleResponse{HasRole: has})
}

// claimValidatorRole promotes the bearer to validator if its group is on
// the allow-list
// POST /memberships/validator
func (a *API) claimValidatorRole(w http.ResponseWriter, r *http.Request) {
	pk, ok := requireBearer(w, r)
	if !ok {
		return
	}
	has, err := a.lc.PromoteToValidator(r.Context(), pk)
	if err != nil {
		apiError(err).Write(w)
		return
	}
	log.Debugw("validator role claimed", "hasRole", has)
	httpWriteJSON(w, &HasRoleResponse{HasRole: has})
}

// allowedGroups lists the groups eligible for the validator role
// GET /memberships/validator/groups
func (a *API) allowedGroups(w http.ResponseWriter, r *http.Request) {
	groups, err := a.lc.AllowedGroups(r.Context())
	if err != nil {
		apiError(err).Write(w)
		return
	}
	httpWriteJSON(w, &GroupsResponse{Groups: groups})
}
