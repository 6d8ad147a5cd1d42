package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/vocdoni/anonclaims/types"
)

// toggleLike likes or unlikes a claim or a message as the bearer
// POST /likes
func (a *API) toggleLike(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireBearer(w, r)
	if !ok {
		return
	}
	req := &LikeRequest{}
	if !decodeBody(w, r, req) {
		return
	}
	if !req.Target.Valid() || req.ID == "" {
		ErrMalformedBody.Withf("invalid like target %q", req.Target).Write(w)
		return
	}
	liked, err := a.lc.ToggleLike(r.Context(), req.Target, req.ID, caller)
	if err != nil {
		apiError(err).Write(w)
		return
	}
	httpWriteJSON(w, &LikeResponse{Liked: liked})
}

// messages lists the newest messages of a group
// GET /messages?groupId=...&limit=...
func (a *API) messages(w http.ResponseWriter, r *http.Request) {
	caller, ok := optionalBearer(w, r)
	if !ok {
		return
	}
	limit, ok := queryLimit(w, r)
	if !ok {
		return
	}
	list, err := a.lc.ListMessages(r.Context(), r.URL.Query().Get("groupId"), caller, limit)
	if err != nil {
		apiError(err).Write(w)
		return
	}
	if list == nil {
		list = []*types.Message{}
	}
	httpWriteJSON(w, &MessagesResponse{Messages: list})
}

// newMessage stores a message signed by a registered member
// POST /messages
func (a *API) newMessage(w http.ResponseWriter, r *http.Request) {
	msg := &types.Message{}
	if !decodeBody(w, r, msg) {
		return
	}
	if msg.Signature == nil || msg.EphemeralPubkey == nil {
		ErrMalformedBody.With("signature and ephemeralPubkey are required").Write(w)
		return
	}
	posted, err := a.lc.PostMessage(r.Context(), msg)
	if err != nil {
		apiError(err).Write(w)
		return
	}
	httpWriteJSON(w, posted)
}

// GET /messages/{messageId}
func (a *API) message(w http.ResponseWriter, r *http.Request) {
	caller, ok := optionalBearer(w, r)
	if !ok {
		return
	}
	msg, err := a.lc.GetMessage(r.Context(), chi.URLParam(r, MessageURLParam), caller)
	if err != nil {
		apiError(err).Write(w)
		return
	}
	httpWriteJSON(w, msg)
}

// GET /messages/{messageId}/verify
func (a *API) verifyMessage(w http.ResponseWriter, r *http.Request) {
	res, err := a.lc.VerifyMessage(r.Context(), chi.URLParam(r, MessageURLParam))
	if err != nil {
		apiError(err).Write(w)
		return
	}
	httpWriteJSON(w, res)
}
