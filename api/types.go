package api

import (
	"time"

	"github.com/vocdoni/anonclaims/types"
)

// MembershipRequest registers an ephemeral public key. The proof comes
// from the provider of the group.
type MembershipRequest struct {
	Pubkey             *types.BigInt   `json:"pubkey"`
	GroupID            string          `json:"groupId"`
	Provider           string          `json:"provider"`
	Proof              types.HexBytes  `json:"proof"`
	ProofArgs          types.ProofArgs `json:"proofArgs,omitempty"`
	PubkeyExpiry       time.Time       `json:"pubkeyExpiry"`
	IdentityCommitment *types.BigInt   `json:"identityCommitment,omitempty"`
}

// HasRoleResponse tells whether the bearer holds a role.
type HasRoleResponse struct {
	HasRole bool `json:"hasRole"`
}

// GroupsResponse is a list of group ids.
type GroupsResponse struct {
	Groups []string `json:"groups"`
}

// ClaimsResponse is a claim listing.
type ClaimsResponse struct {
	Claims []*types.ClaimWithTally `json:"claims"`
}

// VoteRequest is a vote of the bearer on the claim of the path. The
// nullifier is derived by the voter from its secret and the claim id.
type VoteRequest struct {
	Vote           types.VoteChoice `json:"vote"`
	Nullifier      *types.BigInt    `json:"nullifier"`
	NullifierProof types.HexBytes   `json:"nullifierProof,omitempty"`
}

// VotesResponse lists the votes of a claim.
type VotesResponse struct {
	Votes []*types.Vote `json:"votes"`
}

// VotedResponse tells whether a vote was cast on a claim.
type VotedResponse struct {
	Voted     bool          `json:"voted"`
	Nullifier *types.BigInt `json:"nullifier,omitempty"`
}

// LikeRequest toggles the like of the bearer on a claim or a message.
type LikeRequest struct {
	Target types.LikeTarget `json:"target"`
	ID     string           `json:"id"`
}

// LikeResponse tells whether the target is liked after the toggle.
type LikeResponse struct {
	Liked bool `json:"liked"`
}

// MessagesResponse is a message listing.
type MessagesResponse struct {
	Messages []*types.Message `json:"messages"`
}

// ProvidersResponse lists the provider slugs.
type ProvidersResponse struct {
	Providers []string `json:"providers"`
}

// NewCensusGroup creates the anonymity set of a group.
type NewCensusGroup struct {
	GroupID string `json:"groupId"`
	Title   string `json:"title,omitempty"`
}

// CensusMember is a member of an anonymity set with its identity
// commitment.
type CensusMember struct {
	ID         types.HexBytes `json:"id"`
	Commitment *types.BigInt  `json:"commitment"`
}

// CensusMembers is a batch of members.
type CensusMembers struct {
	Members []*CensusMember `json:"members"`
}

// CensusMembersResponse reports the members not inserted.
type CensusMembersResponse struct {
	Added   int `json:"added"`
	Invalid int `json:"invalid"`
}

// CensusGroup is the state of an anonymity set.
type CensusGroup struct {
	*types.AnonGroup
	Root types.HexBytes `json:"root"`
	Size int            `json:"size"`
}
