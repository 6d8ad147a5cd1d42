package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/vocdoni/anonclaims/lifecycle"
	"github.com/vocdoni/anonclaims/nullifier"
	"github.com/vocdoni/anonclaims/types"
)

// newVote casts the vote of the bearer on a claim
// POST /claims/{claimId}/votes
func (a *API) newVote(w http.ResponseWriter, r *http.Request) {
	voter, ok := requireBearer(w, r)
	if !ok {
		return
	}
	req := &VoteRequest{}
	if !decodeBody(w, r, req) {
		return
	}
	if req.Nullifier == nil {
		ErrMalformedBody.With("nullifier is required").Write(w)
		return
	}
	vote, err := a.lc.CastVote(r.Context(), &lifecycle.VoteRequest{
		ClaimID:     chi.URLParam(r, ClaimURLParam),
		VoterPubkey: voter,
		Choice:      req.Vote,
		Nullifier:   &nullifier.Proven{Value: req.Nullifier, Proof: req.NullifierProof},
	})
	if err != nil {
		apiError(err).Write(w)
		return
	}
	httpWriteJSON(w, vote)
}

// claimVotes lists the votes of a claim
// GET /claims/{claimId}/votes
func (a *API) claimVotes(w http.ResponseWriter, r *http.Request) {
	votes, err := a.lc.ListVotes(r.Context(), chi.URLParam(r, ClaimURLParam))
	if err != nil {
		apiError(err).Write(w)
		return
	}
	if votes == nil {
		votes = []*types.Vote{}
	}
	httpWriteJSON(w, &VotesResponse{Votes: votes})
}

// voted tells whether a vote was cast on a claim, by nullifier or by the
// bearer public key
// GET /claims/{claimId}/voted?nullifier=...
func (a *API) voted(w http.ResponseWriter, r *http.Request) {
	var n *types.BigInt
	if s := r.URL.Query().Get("nullifier"); s != "" {
		var err error
		if n, err = types.BigIntFromString(s); err != nil {
			ErrMalformedParam.WithErr(err).Write(w)
			return
		}
	}
	var caller *types.BigInt
	if n == nil {
		var ok bool
		if caller, ok = requireBearer(w, r); !ok {
			return
		}
	}
	voted, nv, err := a.lc.HasVoted(r.Context(), chi.URLParam(r, ClaimURLParam), n, caller)
	if err != nil {
		apiError(err).Write(w)
		return
	}
	httpWriteJSON(w, &VotedResponse{Voted: voted, Nullifier: nv})
}
