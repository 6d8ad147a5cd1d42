package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/vocdoni/anonclaims/log"
	"github.com/vocdoni/anonclaims/storage/anonset"
	"github.com/vocdoni/anonclaims/types"
)

// newCensusGroup creates the empty anonymity set of a group
// POST /census/groups
func (a *API) newCensusGroup(w http.ResponseWriter, r *http.Request) {
	req := &NewCensusGroup{}
	if !decodeBody(w, r, req) {
		return
	}
	if req.GroupID == "" {
		ErrMalformedBody.With("groupId is required").Write(w)
		return
	}
	group, err := a.census.CreateGroup(req.GroupID, req.Title)
	if err != nil {
		if errors.Is(err, anonset.ErrSetAlreadyExists) {
			ErrCensusGroupExists.Write(w)
			return
		}
		apiError(err).Write(w)
		return
	}
	a.writeCensusGroup(w, group)
}

// censusGroup returns the group with its current root and size
// GET /census/groups/{groupId}
func (a *API) censusGroup(w http.ResponseWriter, r *http.Request) {
	group, err := a.census.GetAnonGroup(chi.URLParam(r, GroupURLParam))
	if err != nil {
		apiError(err).Write(w)
		return
	}
	a.writeCensusGroup(w, group)
}

func (a *API) writeCensusGroup(w http.ResponseWriter, group *types.AnonGroup) {
	root, size, err := a.census.SetInfo(group.ID)
	if err != nil {
		apiError(err).Write(w)
		return
	}
	httpWriteJSON(w, &CensusGroup{AnonGroup: group, Root: root, Size: size})
}

// addCensusMembers adds a batch of members to the set of a group
// POST /census/groups/{groupId}/members
func (a *API) addCensusMembers(w http.ResponseWriter, r *http.Request) {
	req := &CensusMembers{}
	if !decodeBody(w, r, req) {
		return
	}
	if len(req.Members) == 0 {
		ErrMalformedBody.With("no members provided").Write(w)
		return
	}
	ids := make([][]byte, len(req.Members))
	commitments := make([]*types.BigInt, len(req.Members))
	for i, m := range req.Members {
		if m == nil || len(m.ID) == 0 || m.Commitment == nil {
			ErrMalformedBody.Withf("member %d needs id and commitment", i).Write(w)
			return
		}
		ids[i] = m.ID
		commitments[i] = m.Commitment
	}
	groupID := chi.URLParam(r, GroupURLParam)
	invalid, err := a.census.AddMembers(groupID, ids, commitments)
	if err != nil {
		apiError(err).Write(w)
		return
	}
	log.Infow("census members added", "groupID", groupID, "added", len(ids)-invalid, "invalid", invalid)
	httpWriteJSON(w, &CensusMembersResponse{Added: len(ids) - invalid, Invalid: invalid})
}

// censusProof returns the inclusion proof of a member, for members that
// prove on their own device
// GET /census/proof?root=<hex>&member=<hex>
func (a *API) censusProof(w http.ResponseWriter, r *http.Request) {
	root, err := types.HexStringToHexBytes(r.URL.Query().Get("root"))
	if err != nil || len(root) == 0 {
		ErrMalformedParam.With("invalid root").Write(w)
		return
	}
	member, err := types.HexStringToHexBytes(r.URL.Query().Get("member"))
	if err != nil || len(member) == 0 {
		ErrMalformedParam.With("invalid member").Write(w)
		return
	}
	proof, err := a.census.MemberProof(root, member)
	if err != nil {
		apiError(err).Write(w)
		return
	}
	httpWriteJSON(w, proof)
}
