package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"time"

	"github.com/sethvargo/go-retry"
	"github.com/vocdoni/anonclaims/api"
	"github.com/vocdoni/anonclaims/lifecycle"
	"github.com/vocdoni/anonclaims/log"
	"github.com/vocdoni/anonclaims/types"
)

const (
	// HTTPGET is the method string used for calling Request()
	HTTPGET = http.MethodGet
	// HTTPPOST is the method string used for calling Request()
	HTTPPOST = http.MethodPost

	errCodeNot200 = "API error"

	// DefaultRetries this enables Request() to handle the situation where the server connection fails
	DefaultRetries = 3
	// DefaultRetryDelay is the wait between two attempts.
	DefaultRetryDelay = 500 * time.Millisecond
	// DefaultTimeout is the default timeout for the HTTP client
	DefaultTimeout = 10 * time.Second
)

// HTTPclient is the API HTTP client. Requests are authenticated with the
// ephemeral public key set with SetBearer.
type HTTPclient struct {
	c       *http.Client
	host    *url.URL
	bearer  *types.BigInt
	retries uint64
}

// APIError is a non 200 response of the API.
type APIError struct {
	Status  int
	Code    int    `json:"code"`
	Message string `json:"error"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %d (code %d: %s)", errCodeNot200, e.Status, e.Code, e.Message)
}

// New connects to the API host and returns the handle
func New(host string) (*HTTPclient, error) {
	hostURL, err := url.Parse(host)
	if err != nil {
		return nil, err
	}

	tr := &http.Transport{
		IdleConnTimeout:    DefaultTimeout,
		DisableCompression: false,
		WriteBufferSize:    1 * 1024 * 1024, // 1 MiB
		ReadBufferSize:     1 * 1024 * 1024, // 1 MiB
	}
	c := &HTTPclient{
		c:       &http.Client{Transport: tr, Timeout: DefaultTimeout},
		host:    hostURL,
		retries: DefaultRetries,
	}
	log.Debugw("http client created", "host", hostURL.String())
	if err := c.ping(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *HTTPclient) ping() error {
	data, status, err := c.Request(HTTPGET, nil, nil, api.PingEndpoint)
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return fmt.Errorf("%s: %d (%s)", errCodeNot200, status, data)
	}
	return nil
}

// SetHostAddr configures the host address of the API server.
func (c *HTTPclient) SetHostAddr(host *url.URL) error {
	c.host = host
	return c.ping()
}

// SetBearer sets the public key sent as bearer token, nil to send none.
func (c *HTTPclient) SetBearer(pubkey *types.BigInt) {
	c.bearer = pubkey
}

// SetRetries configures the number of retries for the HTTP client.
func (c *HTTPclient) SetRetries(n uint64) {
	c.retries = n
}

// SetTimeout configures the timeout for the HTTP client.
func (c *HTTPclient) SetTimeout(d time.Duration) {
	c.c.Timeout = d
	if tr, ok := c.c.Transport.(*http.Transport); ok {
		tr.ResponseHeaderTimeout = d
	}
}

// Request performs a `method` type raw request to the endpoint specified in urlPath parameter.
// Method is either GET or POST. If POST, a JSON struct should be attached.  Returns the response,
// the status code and an error.
//
// Supports query parameters via `params` slice. If the slice is not empty, it should contain pairs of strings;
// the first element of each pair is the key, and the second element is the value.
func (c *HTTPclient) Request(method string, jsonBody any, params []string, urlPath ...string) ([]byte, int, error) {
	var (
		body []byte
		err  error
	)
	if jsonBody != nil {
		body, err = json.Marshal(jsonBody)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to marshal JSON: %w", err)
		}
	}

	u, err := url.Parse(c.host.String())
	if err != nil {
		return nil, 0, fmt.Errorf("failed to parse host URL: %w", err)
	}
	u.Path = path.Join(u.Path, path.Join(urlPath...))

	// params is [key1, val1, key2, val2, ...], an odd last key is ignored
	if len(params) > 0 {
		values := url.Values{}
		for i := 0; i < len(params)-1; i += 2 {
			values.Set(params[i], params[i+1])
		}
		u.RawQuery = values.Encode()
	}

	headers := http.Header{}
	if jsonBody != nil {
		headers.Set("Content-Type", "application/json")
		headers.Set("Accept", "application/json")
	}
	if c.bearer != nil {
		headers.Set("Authorization", "Bearer "+c.bearer.String())
	}

	log.Debugw("http client request",
		"type", method,
		"url", u.String(),
		"body", func() string {
			if len(body) > 512 {
				return string(body[:512]) + "..."
			}
			return string(body)
		}(),
	)

	var resp *http.Response
	attempt := 0
	backoff := retry.WithMaxRetries(c.retries, retry.NewConstant(DefaultRetryDelay))
	err = retry.Do(context.Background(), backoff, func(ctx context.Context) error {
		attempt++
		// a fresh request each attempt
		var reqBody io.Reader
		if body != nil {
			reqBody = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, u.String(), reqBody)
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}
		req.Header = headers
		resp, err = c.c.Do(req)
		if err != nil {
			log.Warnw("http request failed", "error", err.Error(), "attempt", attempt, "retries", c.retries)
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		return nil, 0, fmt.Errorf("http request ultimately failed after retries: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("failed to read response body: %w", err)
	}
	return data, resp.StatusCode, nil
}

// call performs a request and decodes a 200 response into out, an
// *APIError otherwise.
func (c *HTTPclient) call(method string, body, out any, params []string, urlPath ...string) error {
	data, status, err := c.Request(method, body, params, urlPath...)
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		apiErr := &APIError{Status: status}
		if err := json.Unmarshal(data, apiErr); err != nil {
			apiErr.Message = string(data)
		}
		return apiErr
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("could not decode response: %w", err)
	}
	return nil
}

// Register registers a membership.
func (c *HTTPclient) Register(req *api.MembershipRequest) (*types.Membership, error) {
	mb := &types.Membership{}
	return mb, c.call(HTTPPOST, req, mb, nil, api.MembershipsEndpoint)
}

// HasRole tells whether the bearer holds role.
func (c *HTTPclient) HasRole(role types.Role) (bool, error) {
	res := &api.HasRoleResponse{}
	err := c.call(HTTPGET, nil, res, nil, "memberships", string(role))
	return res.HasRole, err
}

// ClaimValidatorRole asks for the promotion of the bearer to validator.
func (c *HTTPclient) ClaimValidatorRole() (bool, error) {
	res := &api.HasRoleResponse{}
	err := c.call(HTTPPOST, nil, res, nil, api.ValidatorRoleEndpoint)
	return res.HasRole, err
}

// CreateClaim posts a signed claim.
func (c *HTTPclient) CreateClaim(claim *types.Claim) (*types.Claim, error) {
	created := &types.Claim{}
	return created, c.call(HTTPPOST, claim, created, nil, api.ClaimsEndpoint)
}

// Claim returns a claim with its tally.
func (c *HTTPclient) Claim(id string) (*types.ClaimWithTally, error) {
	claim := &types.ClaimWithTally{}
	return claim, c.call(HTTPGET, nil, claim, nil, "claims", id)
}

// Claims lists claims; params are query key/value pairs.
func (c *HTTPclient) Claims(params ...string) ([]*types.ClaimWithTally, error) {
	res := &api.ClaimsResponse{}
	err := c.call(HTTPGET, nil, res, params, api.ClaimsEndpoint)
	return res.Claims, err
}

// Vote casts the vote of the bearer on a claim.
func (c *HTTPclient) Vote(claimID string, req *api.VoteRequest) (*types.Vote, error) {
	vote := &types.Vote{}
	return vote, c.call(HTTPPOST, req, vote, nil, "claims", claimID, "votes")
}

// Voted tells whether the bearer voted on a claim.
func (c *HTTPclient) Voted(claimID string) (*api.VotedResponse, error) {
	res := &api.VotedResponse{}
	return res, c.call(HTTPGET, nil, res, nil, "claims", claimID, "voted")
}

// CloseClaims triggers the resolution of the expired claims.
func (c *HTTPclient) CloseClaims() (*lifecycle.ResolveResult, error) {
	res := &lifecycle.ResolveResult{}
	return res, c.call(HTTPPOST, nil, res, nil, api.CloseClaimsEndpoint)
}

// PostMessage posts a signed message.
func (c *HTTPclient) PostMessage(msg *types.Message) (*types.Message, error) {
	posted := &types.Message{}
	return posted, c.call(HTTPPOST, msg, posted, nil, api.MessagesEndpoint)
}

// ToggleLike likes or unlikes a claim or a message as the bearer.
func (c *HTTPclient) ToggleLike(target types.LikeTarget, id string) (bool, error) {
	res := &api.LikeResponse{}
	err := c.call(HTTPPOST, &api.LikeRequest{Target: target, ID: id}, res, nil, api.LikesEndpoint)
	return res.Liked, err
}
