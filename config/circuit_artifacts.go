package config

import (
	"fmt"

	"github.com/vocdoni/anonclaims/circuits"
)

const (
	// MembershipCircuitID proves that an ephemeral key belongs to an
	// anonymity set. Public inputs: statement.
	MembershipCircuitID = "membership"
	// NullifierCircuitID proves that a nullifier was derived from the secret
	// behind a registered identity commitment. Public inputs: nullifier,
	// scope, commitment.
	NullifierCircuitID = "nullifier"
)

const (
	// circom membership circuit
	MembershipCircuitURL          = "https://circuits.ams3.cdn.digitaloceanspaces.com/anonclaims/dev/membership.wasm"
	MembershipCircuitHash         = "6f1c7d1b52a1e1dd4a2f0f1b3d5a3cde2d1a1a8a3b84c2d7a2b2f1a9c5e41d07"
	MembershipProvingKeyURL       = "https://circuits.ams3.cdn.digitaloceanspaces.com/anonclaims/dev/membership_pkey.zkey"
	MembershipProvingKeyHash      = "0d0a4e6c7e2b8e50a6f1a2d9e7f6c3b1a4d5e8f9c2b3a6d7e0f1c4b5a8d9e2f3"
	MembershipVerificationKeyURL  = "https://circuits.ams3.cdn.digitaloceanspaces.com/anonclaims/dev/membership_vkey.json"
	MembershipVerificationKeyHash = "b2d7c1f0e9a8b3c4d5e6f7a8091a2b3c4d5e6f708192a3b4c5d6e7f8091a2b3c"
	// circom nullifier circuit
	NullifierCircuitURL          = "https://circuits.ams3.cdn.digitaloceanspaces.com/anonclaims/dev/nullifier.wasm"
	NullifierCircuitHash         = "4c3b2a19f8e7d6c5b4a3928170f6e5d4c3b2a1908f7e6d5c4b3a29180f7e6d5c"
	NullifierProvingKeyURL       = "https://circuits.ams3.cdn.digitaloceanspaces.com/anonclaims/dev/nullifier_pkey.zkey"
	NullifierProvingKeyHash      = "9e8d7c6b5a4f3e2d1c0b9a8f7e6d5c4b3a2f1e0d9c8b7a6f5e4d3c2b1a0f9e8d"
	NullifierVerificationKeyURL  = "https://circuits.ams3.cdn.digitaloceanspaces.com/anonclaims/dev/nullifier_vkey.json"
	NullifierVerificationKeyHash = "1a2b3c4d5e6f708192a3b4c5d6e7f8091a2b3c4d5e6f708192a3b4c5d6e7f809"
)

// ArtifactSource locates one artifact file of a circuit.
type ArtifactSource struct {
	URL  string `yaml:"url"`
	Hash string `yaml:"hash"`
}

// CircuitSource locates the three artifacts of a circom circuit. Any of them
// can be left empty: a circuit without proving artifacts can only verify.
type CircuitSource struct {
	Wasm         ArtifactSource `yaml:"wasm"`
	ProvingKey   ArtifactSource `yaml:"provingKey"`
	VerifyingKey ArtifactSource `yaml:"verifyingKey"`
	// PublicInputs names the public signals in circuit order.
	PublicInputs []string `yaml:"publicInputs"`
}

// DefaultCircuits returns the published artifacts of the known circuits.
func DefaultCircuits() map[string]CircuitSource {
	return map[string]CircuitSource{
		MembershipCircuitID: {
			Wasm:         ArtifactSource{MembershipCircuitURL, MembershipCircuitHash},
			ProvingKey:   ArtifactSource{MembershipProvingKeyURL, MembershipProvingKeyHash},
			VerifyingKey: ArtifactSource{MembershipVerificationKeyURL, MembershipVerificationKeyHash},
			PublicInputs: []string{"statement"},
		},
		NullifierCircuitID: {
			Wasm:         ArtifactSource{NullifierCircuitURL, NullifierCircuitHash},
			ProvingKey:   ArtifactSource{NullifierProvingKeyURL, NullifierProvingKeyHash},
			VerifyingKey: ArtifactSource{NullifierVerificationKeyURL, NullifierVerificationKeyHash},
			PublicInputs: []string{"nullifier", "scope", "commitment"},
		},
	}
}

func (a ArtifactSource) artifact() (*circuits.Artifact, error) {
	if a.URL == "" && a.Hash == "" {
		return nil, nil
	}
	return circuits.NewArtifact(a.URL, a.Hash)
}

// Artifacts builds the circuit artifacts described by the source. Content is
// not loaded.
func (cs CircuitSource) Artifacts() (*circuits.CircuitArtifacts, error) {
	wasm, err := cs.Wasm.artifact()
	if err != nil {
		return nil, fmt.Errorf("wasm: %w", err)
	}
	pk, err := cs.ProvingKey.artifact()
	if err != nil {
		return nil, fmt.Errorf("proving key: %w", err)
	}
	vk, err := cs.VerifyingKey.artifact()
	if err != nil {
		return nil, fmt.Errorf("verifying key: %w", err)
	}
	return circuits.NewCircuitArtifacts(wasm, pk, vk), nil
}
