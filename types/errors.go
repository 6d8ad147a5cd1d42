package types

import "errors"

// Protocol errors. Callers wrap them with context and match them with
// errors.Is, the transport maps each one to a distinct API error.
var (
	ErrKeyGeneration      = errors.New("ephemeral key generation failed")
	ErrProofGeneration    = errors.New("membership proof generation failed")
	ErrProverUnavailable  = errors.New("proving backend unavailable")
	ErrInvalidSignature   = errors.New("invalid signature")
	ErrInvalidProof       = errors.New("invalid membership proof")
	ErrProtocolVersion    = errors.New("payload predates the verifiable protocol epoch")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrDuplicateVote      = errors.New("nullifier already used")
	ErrExpiredIdentity    = errors.New("ephemeral public key expired")
	ErrNotFound           = errors.New("not found")
	ErrVotingClosed       = errors.New("voting is closed for this claim")
	ErrMalformedInput     = errors.New("malformed input")
	ErrMembershipExists   = errors.New("membership already registered")
	ErrUnknownProvider    = errors.New("unknown anonymous group provider")
	ErrStatusPrecondition = errors.New("claim status precondition failed")
)
