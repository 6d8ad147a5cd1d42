//nolint:lll
package api

import (
	"fmt"
	"net/http"
)

// Error codes in the 40001-49999 range are the user's fault and return a
// 4xx HTTP status; codes 50001-59999 are the server's fault and return a
// 5xx status. Codes are never changed nor reused, new errors are appended
// after the last one of their range. There is no correlation between Code
// and HTTP status.
var (
	ErrResourceNotFound   = Error{Code: 40001, HTTPstatus: http.StatusNotFound, Err: fmt.Errorf("resource not found")}
	ErrMalformedBody      = Error{Code: 40004, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("malformed JSON body")}
	ErrInvalidSignature   = Error{Code: 40005, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("invalid signature")}
	ErrMalformedParam     = Error{Code: 40006, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("malformed parameter")}
	ErrMissingBearer      = Error{Code: 40007, HTTPstatus: http.StatusUnauthorized, Err: fmt.Errorf("missing or malformed bearer public key")}
	ErrForbidden          = Error{Code: 40008, HTTPstatus: http.StatusForbidden, Err: fmt.Errorf("operation not allowed for this public key")}
	ErrExpiredIdentity    = Error{Code: 40009, HTTPstatus: http.StatusUnauthorized, Err: fmt.Errorf("ephemeral public key expired")}
	ErrDuplicateVote      = Error{Code: 40010, HTTPstatus: http.StatusConflict, Err: fmt.Errorf("already voted")}
	ErrVotingClosed       = Error{Code: 40011, HTTPstatus: http.StatusConflict, Err: fmt.Errorf("voting is closed")}
	ErrProtocolVersion    = Error{Code: 40012, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("unsupported protocol version")}
	ErrInvalidProof       = Error{Code: 40013, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("invalid proof")}
	ErrMembershipExists   = Error{Code: 40014, HTTPstatus: http.StatusConflict, Err: fmt.Errorf("membership already registered")}
	ErrUnknownProvider    = Error{Code: 40015, HTTPstatus: http.StatusNotFound, Err: fmt.Errorf("unknown provider")}
	ErrStatusPrecondition = Error{Code: 40016, HTTPstatus: http.StatusConflict, Err: fmt.Errorf("claim status changed")}
	ErrProofGeneration    = Error{Code: 40017, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("membership could not be proven")}
	ErrCensusGroupExists  = Error{Code: 40018, HTTPstatus: http.StatusConflict, Err: fmt.Errorf("anonymity set already exists")}

	ErrMarshalingServerJSONFailed = Error{Code: 50001, HTTPstatus: http.StatusInternalServerError, Err: fmt.Errorf("marshaling (server-side) JSON failed")}
	ErrGenericInternalServerError = Error{Code: 50002, HTTPstatus: http.StatusInternalServerError, Err: fmt.Errorf("internal server error")}
	ErrProverUnavailable          = Error{Code: 50003, HTTPstatus: http.StatusServiceUnavailable, Err: fmt.Errorf("proving backend unavailable, retry later")}
	ErrKeyGeneration              = Error{Code: 50004, HTTPstatus: http.StatusInternalServerError, Err: fmt.Errorf("key generation failed")}
	ErrRequestCanceled            = Error{Code: 50005, HTTPstatus: http.StatusServiceUnavailable, Err: fmt.Errorf("request canceled or timed out")}
)
