package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/vocdoni/anonclaims/log"
	"github.com/vocdoni/anonclaims/types"
)

// maxBodySize bounds the request bodies.
const maxBodySize = 1 << 20

// httpWriteJSON helper function allows to write a JSON response.
func httpWriteJSON(w http.ResponseWriter, data any) {
	jdata, err := json.Marshal(data)
	if err != nil {
		ErrMarshalingServerJSONFailed.WithErr(err).Write(w)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	n, err := w.Write(jdata)
	if err != nil {
		log.Warnw("failed to write http response", "error", err)
	}
	if _, err := w.Write([]byte("\n")); err != nil {
		log.Warnw("failed to write on response", "error", err)
	}
	log.Debugw("api response", "bytes", n, "data", strings.ReplaceAll(string(jdata), "\"", ""))
}

// httpWriteOK helper function allows to write an OK response.
func httpWriteOK(w http.ResponseWriter) {
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("\n")); err != nil {
		log.Warnw("failed to write on response", "error", err)
	}
}

// decodeBody decodes the JSON body of r into v, writing the error response
// on failure.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize)).Decode(v); err != nil {
		ErrMalformedBody.Withf("could not decode request body: %v", err).Write(w)
		return false
	}
	return true
}

// bearerPubkey returns the public key of the Authorization header, nil if
// there is none.
func bearerPubkey(r *http.Request) (*types.BigInt, error) {
	auth := r.Header.Get("Authorization")
	if auth == "" {
		return nil, nil
	}
	token, ok := strings.CutPrefix(auth, "Bearer ")
	if !ok {
		return nil, ErrMissingBearer.With("authorization is not a bearer token")
	}
	pk, err := types.BigIntFromString(strings.TrimSpace(token))
	if err != nil || pk.MathBigInt().Sign() <= 0 {
		return nil, ErrMissingBearer.With("bearer token is not a public key")
	}
	return pk, nil
}

// optionalBearer returns the bearer public key if any, writing the error
// response when the header is malformed.
func optionalBearer(w http.ResponseWriter, r *http.Request) (*types.BigInt, bool) {
	pk, err := bearerPubkey(r)
	if err != nil {
		apiError(err).Write(w)
		return nil, false
	}
	return pk, true
}

// requireBearer is optionalBearer for endpoints that need a caller.
func requireBearer(w http.ResponseWriter, r *http.Request) (*types.BigInt, bool) {
	pk, ok := optionalBearer(w, r)
	if !ok {
		return nil, false
	}
	if pk == nil {
		ErrMissingBearer.Write(w)
		return nil, false
	}
	return pk, true
}

// queryLimit parses the limit query parameter, zero if absent.
func queryLimit(w http.ResponseWriter, r *http.Request) (int, bool) {
	s := r.URL.Query().Get("limit")
	if s == "" {
		return 0, true
	}
	limit, err := strconv.Atoi(s)
	if err != nil || limit < 0 {
		ErrMalformedParam.Withf("invalid limit %q", s).Write(w)
		return 0, false
	}
	return limit, true
}
