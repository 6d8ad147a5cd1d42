package types

import "time"

// AnonGroup is an anonymity set as published by its provider.
type AnonGroup struct {
	ID       string `json:"id"`
	Provider string `json:"provider"`
	Title    string `json:"title"`
	LogoURL  string `json:"logoUrl,omitempty"`
}

// ProofArgs are the public arguments a provider needs, besides the group,
// public key and expiry, to rebuild the statement of a membership proof.
type ProofArgs map[string]string

// PayloadSignature is the part of a signed payload that is not covered by
// the signature itself.
type PayloadSignature struct {
	Signature             *BigInt   `json:"signature,omitempty"`
	EphemeralPubkey       *BigInt   `json:"ephemeralPubkey,omitempty"`
	EphemeralPubkeyExpiry time.Time `json:"ephemeralPubkeyExpiry"`
}

// SignedPayload is implemented by the payloads that can be signed with an
// ephemeral identity.
type SignedPayload interface {
	Signed() *PayloadSignature
	PayloadTime() time.Time
}

// Claim is a statement posted by a curator and voted by validators.
type Claim struct {
	ID                string      `json:"id"`
	Title             string      `json:"title"`
	Description       string      `json:"description"`
	SourceURL         string      `json:"sourceUrl"`
	Timestamp         time.Time   `json:"timestamp"`
	AnonGroupID       string      `json:"anonGroupId"`
	AnonGroupProvider string      `json:"anonGroupProvider"`
	Internal          bool        `json:"internal"`
	Likes             uint64      `json:"likes"`
	Status            ClaimStatus `json:"status"`
	ExpiresAt         time.Time   `json:"expiresAt"`
	VoteDeadline      time.Time   `json:"voteDeadline"`
	PayloadSignature
}

func (c *Claim) Signed() *PayloadSignature { return &c.PayloadSignature }

func (c *Claim) PayloadTime() time.Time { return c.Timestamp }

// Message is a free text post signed by any registered member.
type Message struct {
	ID                string    `json:"id"`
	AnonGroupID       string    `json:"anonGroupId"`
	AnonGroupProvider string    `json:"anonGroupProvider"`
	Text              string    `json:"text"`
	Timestamp         time.Time `json:"timestamp"`
	Internal          bool      `json:"internal"`
	Likes             uint64    `json:"likes"`
	PayloadSignature
}

func (m *Message) Signed() *PayloadSignature { return &m.PayloadSignature }

func (m *Message) PayloadTime() time.Time { return m.Timestamp }

// Membership binds an ephemeral public key to an anonymity set through a
// membership proof.
type Membership struct {
	Pubkey             *BigInt   `json:"pubkey"`
	GroupID            string    `json:"groupId"`
	Provider           string    `json:"provider"`
	Proof              HexBytes  `json:"proof"`
	ProofArgs          ProofArgs `json:"proofArgs,omitempty"`
	Role               Role      `json:"role"`
	PubkeyExpiry       time.Time `json:"pubkeyExpiry"`
	IdentityCommitment *BigInt   `json:"identityCommitment,omitempty"`
	CreatedAt          time.Time `json:"createdAt"`
}

// Vote is a validator vote on a claim. The nullifier ties it to the voter
// secret without revealing it.
type Vote struct {
	ID          string     `json:"id"`
	ClaimID     string     `json:"claimId"`
	VoterPubkey *BigInt    `json:"voterPubkey"`
	Role        Role       `json:"role"`
	Choice      VoteChoice `json:"vote"`
	Nullifier   *BigInt    `json:"nullifier"`
	CreatedAt   time.Time  `json:"createdAt"`
}

// Tally is the vote count of a claim.
type Tally struct {
	Up   uint64 `json:"up"`
	Down uint64 `json:"down"`
}

// Total returns the number of votes.
func (t Tally) Total() uint64 {
	return t.Up + t.Down
}

// ClaimWithTally is a claim as listed, with its current vote count.
type ClaimWithTally struct {
	*Claim
	Votes Tally `json:"votes"`
}

// LikeTarget tells which kind of record a like refers to.
type LikeTarget string

const (
	LikeTargetClaim   LikeTarget = "claim"
	LikeTargetMessage LikeTarget = "message"
)

// Valid reports whether t is a known target.
func (t LikeTarget) Valid() bool {
	return t == LikeTargetClaim || t == LikeTargetMessage
}

// ClaimSort is the order of a claim listing, always descending.
type ClaimSort string

const (
	SortByCreatedAt ClaimSort = "created_at"
	SortByVoteCount ClaimSort = "vote_count"
)

// ClaimFilter selects the claims of a listing. Internal claims are only
// listed when they belong to InternalGroup.
type ClaimFilter struct {
	Status        ClaimStatus
	GroupID       string
	InternalGroup string
	SortBy        ClaimSort
	Limit         int
}

// Match reports whether c passes the filter, ignoring sort and limit.
func (f ClaimFilter) Match(c *Claim) bool {
	if f.Status != "" && c.Status != f.Status {
		return false
	}
	if f.GroupID != "" && c.AnonGroupID != f.GroupID {
		return false
	}
	if c.Internal && (f.InternalGroup == "" || c.AnonGroupID != f.InternalGroup) {
		return false
	}
	return true
}
