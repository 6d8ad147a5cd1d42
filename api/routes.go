package api

const (
	// PingEndpoint is the endpoint for checking the API status
	PingEndpoint = "/ping"

	// MembershipsEndpoint registers an ephemeral key with its membership
	// proof.
	MembershipsEndpoint = "/memberships"
	// MembershipRoleEndpoint tells whether the bearer holds a role.
	RoleURLParam           = "role"
	MembershipRoleEndpoint = "/memberships/{" + RoleURLParam + "}"
	// ValidatorRoleEndpoint promotes the bearer to validator.
	ValidatorRoleEndpoint = "/memberships/validator"
	// AllowedGroupsEndpoint lists the groups eligible for the validator role.
	AllowedGroupsEndpoint = "/memberships/validator/groups"

	ClaimURLParam  = "claimId"
	ClaimsEndpoint = "/claims"
	ClaimEndpoint  = "/claims/{" + ClaimURLParam + "}"
	// CloseClaimsEndpoint triggers the resolution of expired claims.
	CloseClaimsEndpoint = "/claims/close"
	ClaimVotesEndpoint  = "/claims/{" + ClaimURLParam + "}/votes"
	ClaimVotedEndpoint  = "/claims/{" + ClaimURLParam + "}/voted"
	ClaimVerifyEndpoint = "/claims/{" + ClaimURLParam + "}/verify"

	LikesEndpoint = "/likes"

	MessageURLParam       = "messageId"
	MessagesEndpoint      = "/messages"
	MessageEndpoint       = "/messages/{" + MessageURLParam + "}"
	MessageVerifyEndpoint = "/messages/{" + MessageURLParam + "}/verify"

	ProviderURLParam      = "provider"
	GroupURLParam         = "groupId"
	ProvidersEndpoint     = "/providers"
	ProviderGroupEndpoint = "/providers/{" + ProviderURLParam + "}/groups/{" + GroupURLParam + "}"

	CensusGroupsEndpoint  = "/census/groups"
	CensusGroupEndpoint   = "/census/groups/{" + GroupURLParam + "}"
	CensusMembersEndpoint = "/census/groups/{" + GroupURLParam + "}/members"
	CensusProofEndpoint   = "/census/proof"
)
