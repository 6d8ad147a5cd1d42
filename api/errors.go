package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/vocdoni/anonclaims/log"
	"github.com/vocdoni/anonclaims/types"
)

// Error is used by handler functions to wrap errors, assigning a unique error code
// and also specifying which HTTP Status should be used.
type Error struct {
	Err        error
	Code       int
	HTTPstatus int
}

// MarshalJSON returns a JSON containing Err.Error() and Code. Field HTTPstatus is ignored.
//
// Example output: {"error":"nullifier already used","code":40010}
func (e Error) MarshalJSON() ([]byte, error) {
	return json.Marshal(
		struct {
			Err  string `json:"error"`
			Code int    `json:"code"`
		}{
			Err:  e.Err.Error(),
			Code: e.Code,
		})
}

func (e Error) Error() string {
	return e.Err.Error()
}

// Write serializes the error as JSON with its HTTP status.
func (e Error) Write(w http.ResponseWriter) {
	msg, err := json.Marshal(e)
	if err != nil {
		log.Warn(err)
		http.Error(w, "marshal failed", http.StatusInternalServerError)
		return
	}
	if log.Level() == log.LogLevelDebug {
		log.Debugw("API error response", "error", e.Error(), "code", e.Code, "httpStatus", e.HTTPstatus)
	}
	w.Header().Set("Content-Type", "application/json")
	http.Error(w, string(msg), e.HTTPstatus)
}

// Withf returns a copy of Error with the Sprintf formatted string appended at the end of e.Err
func (e Error) Withf(format string, args ...any) Error {
	return Error{
		Err:        fmt.Errorf("%w: %v", e.Err, fmt.Sprintf(format, args...)),
		Code:       e.Code,
		HTTPstatus: e.HTTPstatus,
	}
}

// With returns a copy of Error with the string appended at the end of e.Err
func (e Error) With(s string) Error {
	return Error{
		Err:        fmt.Errorf("%w: %v", e.Err, s),
		Code:       e.Code,
		HTTPstatus: e.HTTPstatus,
	}
}

// WithErr returns a copy of Error with err.Error() appended at the end of e.Err
func (e Error) WithErr(err error) Error {
	return Error{
		Err:        fmt.Errorf("%w: %v", e.Err, err.Error()),
		Code:       e.Code,
		HTTPstatus: e.HTTPstatus,
	}
}

// protocolErrors maps the protocol errors to their API error, first match
// wins.
var protocolErrors = []struct {
	err error
	api Error
}{
	{types.ErrDuplicateVote, ErrDuplicateVote},
	{types.ErrVotingClosed, ErrVotingClosed},
	{types.ErrExpiredIdentity, ErrExpiredIdentity},
	{types.ErrProtocolVersion, ErrProtocolVersion},
	{types.ErrInvalidSignature, ErrInvalidSignature},
	{types.ErrProverUnavailable, ErrProverUnavailable},
	{types.ErrInvalidProof, ErrInvalidProof},
	{types.ErrProofGeneration, ErrProofGeneration},
	{types.ErrUnauthorized, ErrForbidden},
	{types.ErrMembershipExists, ErrMembershipExists},
	{types.ErrUnknownProvider, ErrUnknownProvider},
	{types.ErrStatusPrecondition, ErrStatusPrecondition},
	{types.ErrNotFound, ErrResourceNotFound},
	{types.ErrMalformedInput, ErrMalformedParam},
	{types.ErrKeyGeneration, ErrKeyGeneration},
}

// apiError returns the API error of err.
func apiError(err error) Error {
	var apiErr Error
	if errors.As(err, &apiErr) {
		return apiErr
	}
	for _, pe := range protocolErrors {
		if errors.Is(err, pe.err) {
			return pe.api.WithErr(err)
		}
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return ErrRequestCanceled.WithErr(err)
	}
	return ErrGenericInternalServerError.WithErr(err)
}
