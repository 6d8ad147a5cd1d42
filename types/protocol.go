package types

import "fmt"

// ClaimStatus is the lifecycle state of a claim.
type ClaimStatus string

const (
	ClaimPending ClaimStatus = "pending"
	// ClaimActive is declared for a future quorum rule, nothing moves a claim
	// into it yet.
	ClaimActive   ClaimStatus = "active"
	ClaimClosed   ClaimStatus = "closed"
	ClaimRejected ClaimStatus = "rejected"
)

// Valid reports whether s is one of the known statuses.
func (s ClaimStatus) Valid() bool {
	switch s {
	case ClaimPending, ClaimActive, ClaimClosed, ClaimRejected:
		return true
	}
	return false
}

// Terminal reports whether no further transition is allowed from s.
func (s ClaimStatus) Terminal() bool {
	return s == ClaimClosed || s == ClaimRejected
}

// ParseClaimStatus returns the status for s or an error if unknown.
func ParseClaimStatus(s string) (ClaimStatus, error) {
	st := ClaimStatus(s)
	if !st.Valid() {
		return "", fmt.Errorf("unknown claim status %q", s)
	}
	return st, nil
}

// Role is the membership role of an ephemeral identity.
type Role string

const (
	RoleCurator   Role = "curator"
	RoleValidator Role = "validator"
)

func (r Role) Valid() bool {
	return r == RoleCurator || r == RoleValidator
}

// VoteChoice is the value of a vote on a claim.
type VoteChoice string

const (
	VoteUp   VoteChoice = "up"
	VoteDown VoteChoice = "down"
)

func (v VoteChoice) Valid() bool {
	return v == VoteUp || v == VoteDown
}
