// Package oauth is the provider whose anonymity sets are e-mail domains. The
// OAuth handshake happens elsewhere: this package only consumes its output,
// a verified e-mail address.
package oauth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/vocdoni/anonclaims/crypto/ephemeral"
	"github.com/vocdoni/anonclaims/provider"
	"github.com/vocdoni/anonclaims/prover"
	"github.com/vocdoni/anonclaims/types"
	"github.com/vocdoni/anonclaims/util"
)

const DefaultSlug = "google-oauth"

// Authenticator returns the verified e-mail address of the current OAuth
// session.
type Authenticator interface {
	VerifiedEmail(ctx context.Context) (string, error)
}

// StaticEmail is an Authenticator for an already verified address.
type StaticEmail string

func (s StaticEmail) VerifiedEmail(context.Context) (string, error) {
	return string(s), nil
}

// Provider groups members by the domain of their e-mail address.
type Provider struct {
	slug    string
	logoURL string
	auth    Authenticator
	pr      *provider.Prover
}

var _ provider.Provider = (*Provider)(nil)

// New returns a verifying provider. logoURL is a template where %s is the
// domain, may be empty.
func New(slug, logoURL string, backend prover.Backend) *Provider {
	if slug == "" {
		slug = DefaultSlug
	}
	return &Provider{
		slug:    slug,
		logoURL: logoURL,
		pr:      &provider.Prover{Backend: backend},
	}
}

// WithAuthenticator returns a copy able to generate proofs for the session
// behind auth.
func (p *Provider) WithAuthenticator(auth Authenticator) *Provider {
	cp := *p
	cp.auth = auth
	return &cp
}

// SetNow replaces the clock used for the expiry checks.
func (p *Provider) SetNow(now func() time.Time) {
	p.pr.Now = now
}

func (p *Provider) Slug() string {
	return p.slug
}

// GetAnonGroup accepts any syntactically valid domain.
func (p *Provider) GetAnonGroup(groupID string) (*types.AnonGroup, error) {
	domain := strings.ToLower(strings.TrimSpace(groupID))
	if !validDomain(domain) {
		return nil, fmt.Errorf("%w: invalid domain %q", types.ErrNotFound, groupID)
	}
	group := &types.AnonGroup{
		ID:       domain,
		Provider: p.slug,
		Title:    domain,
	}
	if p.logoURL != "" {
		group.LogoURL = fmt.Sprintf(p.logoURL, domain)
	}
	return group, nil
}

// GenerateProof proves that the session e-mail belongs to its domain. The
// e-mail itself is a private input.
func (p *Provider) GenerateProof(ctx context.Context, id *ephemeral.Identity) (*provider.Result, error) {
	if p.auth == nil {
		return nil, fmt.Errorf("%w: no oauth session", types.ErrProofGeneration)
	}
	email, err := p.auth.VerifiedEmail(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", types.ErrProofGeneration, err)
	}
	domain, err := Domain(email)
	if err != nil {
		return nil, err
	}
	group, err := p.GetAnonGroup(domain)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrProofGeneration, err)
	}
	private := map[string]any{
		"email": util.StringToField(strings.ToLower(email)).String(),
	}
	return p.pr.Prove(ctx, group, id, nil, private)
}

func (p *Provider) VerifyProof(ctx context.Context, proof types.HexBytes, groupID string,
	pubkey *types.BigInt, pubkeyExpiry time.Time, args types.ProofArgs,
) (bool, error) {
	group, err := p.GetAnonGroup(groupID)
	if err != nil {
		return false, fmt.Errorf("%w: %v", types.ErrMalformedInput, err)
	}
	return p.pr.Verify(ctx, proof, group.ID, pubkey, pubkeyExpiry, args)
}

// Domain returns the lower case domain of an e-mail address.
func Domain(email string) (string, error) {
	at := strings.LastIndexByte(email, '@')
	if at <= 0 || at == len(email)-1 {
		return "", fmt.Errorf("%w: invalid e-mail address", types.ErrProofGeneration)
	}
	domain := strings.ToLower(email[at+1:])
	if !validDomain(domain) {
		return "", fmt.Errorf("%w: invalid e-mail domain %q", types.ErrProofGeneration, domain)
	}
	return domain, nil
}

func validDomain(d string) bool {
	if len(d) < 3 || len(d) > 253 || !strings.Contains(d, ".") {
		return false
	}
	for _, label := range strings.Split(d, ".") {
		if label == "" || len(label) > 63 || label[0] == '-' || label[len(label)-1] == '-' {
			return false
		}
		for _, r := range label {
			if !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r == '-') {
				return false
			}
		}
	}
	return true
}
