// Package config holds the daemon configuration, its defaults and the YAML
// loader.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/vocdoni/anonclaims/types"
	"gopkg.in/yaml.v3"
)

const (
	StorageTypePebble = "pebble"
	StorageTypeSQLite = "sqlite"

	ProverBackendMock   = "mock"
	ProverBackendCircom = "circom"

	// TiePolicyReject resolves a tied claim as rejected.
	TiePolicyReject = "reject"
	// TiePolicyHold keeps a tied claim pending until it expires, then
	// rejects it.
	TiePolicyHold = "hold"
)

var (
	DefaultIdentityLifetime = 24 * time.Hour
	DefaultVoteWindow       = 24 * time.Hour
	DefaultClaimTTL         = 48 * time.Hour
	DefaultResolveInterval  = time.Minute
	DefaultEpochCutover     = time.Date(2025, time.February, 23, 0, 0, 0, 0, time.UTC)
)

// Config is the daemon configuration.
type Config struct {
	Log       LogConfig       `yaml:"log"`
	API       APIConfig       `yaml:"api"`
	Storage   StorageConfig   `yaml:"storage"`
	Prover    ProverConfig    `yaml:"prover"`
	Protocol  ProtocolConfig  `yaml:"protocol"`
	Lifecycle LifecycleConfig `yaml:"lifecycle"`
	Providers ProvidersConfig `yaml:"providers"`
	// AllowedGroups seeds the validator allow-list (anon group ids, i.e.
	// e-mail domains for the oauth provider).
	AllowedGroups []string `yaml:"allowedGroups"`
}

type LogConfig struct {
	Level       string `yaml:"level"`
	Output      string `yaml:"output"`
	ErrorOutput string `yaml:"errorOutput"`
}

type APIConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

type StorageConfig struct {
	Type string `yaml:"type"`
	Dir  string `yaml:"dir"`
}

type ProverConfig struct {
	Backend    string                   `yaml:"backend"`
	Retries    uint64                   `yaml:"retries"`
	RetryDelay time.Duration            `yaml:"retryDelay"`
	CacheSize  int                      `yaml:"cacheSize"`
	Circuits   map[string]CircuitSource `yaml:"circuits"`
}

type ProtocolConfig struct {
	IdentityLifetime time.Duration `yaml:"identityLifetime"`
	// EpochCutover is a date (YYYY-MM-DD) or RFC3339 time.
	EpochCutover string `yaml:"epochCutover"`
}

type LifecycleConfig struct {
	VoteWindow            time.Duration `yaml:"voteWindow"`
	ClaimTTL              time.Duration `yaml:"claimTTL"`
	ResolveInterval       time.Duration `yaml:"resolveInterval"`
	ResolveWorkers        int           `yaml:"resolveWorkers"`
	TiePolicy             string        `yaml:"tiePolicy"`
	// RequireNullifierProof unset follows the prover backend: required with
	// circom, optional with the mock.
	RequireNullifierProof *bool `yaml:"requireNullifierProof"`
}

type ProvidersConfig struct {
	OAuth  OAuthProviderConfig  `yaml:"oauth"`
	Census CensusProviderConfig `yaml:"census"`
}

type OAuthProviderConfig struct {
	Enabled bool   `yaml:"enabled"`
	Slug    string `yaml:"slug"`
	// LogoURL is a template, %s is replaced by the group id.
	LogoURL string `yaml:"logoURL"`
}

type CensusProviderConfig struct {
	Enabled bool   `yaml:"enabled"`
	Slug    string `yaml:"slug"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	home, err := os.UserHomeDir()
	if err != nil {
		home = os.TempDir()
	}
	return &Config{
		Log: LogConfig{Level: "info", Output: "stdout"},
		API: APIConfig{Host: "0.0.0.0", Port: 8080},
		Storage: StorageConfig{
			Type: StorageTypePebble,
			Dir:  filepath.Join(home, ".anonclaims"),
		},
		Prover: ProverConfig{
			Backend:    ProverBackendMock,
			Retries:    3,
			RetryDelay: 500 * time.Millisecond,
			CacheSize:  1024,
			Circuits:   DefaultCircuits(),
		},
		Protocol: ProtocolConfig{
			IdentityLifetime: DefaultIdentityLifetime,
			EpochCutover:     DefaultEpochCutover.Format(time.DateOnly),
		},
		Lifecycle: LifecycleConfig{
			VoteWindow:      DefaultVoteWindow,
			ClaimTTL:        DefaultClaimTTL,
			ResolveInterval: DefaultResolveInterval,
			ResolveWorkers:  8,
			TiePolicy:       TiePolicyReject,
		},
		Providers: ProvidersConfig{
			OAuth: OAuthProviderConfig{
				Enabled: true,
				Slug:    "google-oauth",
				LogoURL: "https://img.logo.dev/%s?size=64",
			},
			Census: CensusProviderConfig{Enabled: true, Slug: "census"},
		},
	}
}

// Load reads a YAML file on top of the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("decode config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the values that have no sensible fallback.
func (c *Config) Validate() error {
	switch c.Storage.Type {
	case StorageTypePebble, StorageTypeSQLite:
	default:
		return fmt.Errorf("%w: unknown storage type %q", types.ErrMalformedInput, c.Storage.Type)
	}
	switch c.Prover.Backend {
	case ProverBackendMock, ProverBackendCircom:
	default:
		return fmt.Errorf("%w: unknown prover backend %q", types.ErrMalformedInput, c.Prover.Backend)
	}
	switch c.Lifecycle.TiePolicy {
	case TiePolicyReject, TiePolicyHold:
	default:
		return fmt.Errorf("%w: unknown tie policy %q", types.ErrMalformedInput, c.Lifecycle.TiePolicy)
	}
	if c.Lifecycle.VoteWindow <= 0 || c.Lifecycle.ClaimTTL < c.Lifecycle.VoteWindow {
		return fmt.Errorf("%w: vote window must be positive and not longer than the claim ttl",
			types.ErrMalformedInput)
	}
	if c.Protocol.IdentityLifetime <= 0 {
		return fmt.Errorf("%w: identity lifetime must be positive", types.ErrMalformedInput)
	}
	if _, err := c.Cutover(); err != nil {
		return err
	}
	return nil
}

// NullifierProofRequired tells whether votes must prove their nullifier.
// Without proofs the nullifier is whatever the voter sends, and one vote per
// claim rests on the public key index alone.
func (c *Config) NullifierProofRequired() bool {
	if c.Lifecycle.RequireNullifierProof != nil {
		return *c.Lifecycle.RequireNullifierProof
	}
	return c.Prover.Backend == ProverBackendCircom
}

// Cutover parses the protocol epoch cutover.
func (c *Config) Cutover() (time.Time, error) {
	if c.Protocol.EpochCutover == "" {
		return DefaultEpochCutover, nil
	}
	if t, err := time.Parse(time.DateOnly, c.Protocol.EpochCutover); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse(time.RFC3339, c.Protocol.EpochCutover)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: epoch cutover %q", types.ErrMalformedInput, c.Protocol.EpochCutover)
	}
	return t.UTC(), nil
}
