// Package circom is the production proving backend: witnesses are computed
// with the circom wasm witness calculator, proofs are generated with
// rapidsnark (groth16 over BN254) and verified with gnark through
// circom2gnark.
package circom

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"time"

	"github.com/consensys/gnark/logger"
	rapidsnark "github.com/iden3/go-rapidsnark/prover"
	"github.com/iden3/go-rapidsnark/witness"
	"github.com/vocdoni/anonclaims/circuits"
	"github.com/vocdoni/anonclaims/log"
	"github.com/vocdoni/anonclaims/prover"
	"github.com/vocdoni/anonclaims/types"
	"github.com/vocdoni/circom2gnark/parser"
)

// Circuit describes a circom circuit known to the backend.
type Circuit struct {
	ID string
	// PublicInputs are the names of the public signals in the circuit input
	// json, in the order the circuit exposes them.
	PublicInputs []string
	Artifacts    *circuits.CircuitArtifacts
}

type loadedCircuit struct {
	*Circuit
	vk *parser.CircomVerificationKey
}

// Backend implements prover.Backend for a fixed set of circuits.
type Backend struct {
	circuits map[string]*loadedCircuit
}

var _ prover.Backend = (*Backend)(nil)

// New loads the artifacts of every circuit, downloading the missing ones,
// and parses their verification keys.
func New(ctx context.Context, defs ...*Circuit) (*Backend, error) {
	logger.Set(log.Logger().With().Str("module", "gnark").Logger())
	b := &Backend{circuits: make(map[string]*loadedCircuit, len(defs))}
	for _, def := range defs {
		if def.Artifacts == nil {
			return nil, fmt.Errorf("circuit %s has no artifacts", def.ID)
		}
		if err := def.Artifacts.LoadAll(ctx); err != nil {
			return nil, fmt.Errorf("load circuit %s: %w", def.ID, err)
		}
		lc := &loadedCircuit{Circuit: def}
		if vkey := def.Artifacts.VerifyingKey(); vkey != nil {
			vk, err := circuits.ParseVerificationKey(vkey)
			if err != nil {
				return nil, fmt.Errorf("circuit %s: %w", def.ID, err)
			}
			lc.vk = vk
		}
		b.circuits[def.ID] = lc
		log.Infow("circuit loaded", "circuit", def.ID, "canProve", def.Artifacts.ProvingKey() != nil)
	}
	return b, nil
}

func (b *Backend) circuit(id string) (*loadedCircuit, error) {
	c, ok := b.circuits[id]
	if !ok {
		return nil, fmt.Errorf("%w: unknown circuit %q", types.ErrMalformedInput, id)
	}
	return c, nil
}

// Prove computes the witness and the groth16 proof. Proving can not be
// interrupted; on cancellation the call returns and the result is dropped.
func (b *Backend) Prove(ctx context.Context, circuitID string, private map[string]any, public []*big.Int) ([]byte, error) {
	c, err := b.circuit(circuitID)
	if err != nil {
		return nil, err
	}
	if c.Artifacts.CircuitDefinition() == nil || c.Artifacts.ProvingKey() == nil {
		return nil, prover.Unavailable(fmt.Errorf("circuit %s has no proving artifacts", circuitID))
	}
	if len(public) != len(c.PublicInputs) {
		return nil, fmt.Errorf("%w: circuit %s expects %d public inputs, got %d",
			types.ErrMalformedInput, circuitID, len(c.PublicInputs), len(public))
	}
	inputs := make(map[string]any, len(private)+len(public))
	for k, v := range private {
		inputs[k] = v
	}
	for i, name := range c.PublicInputs {
		inputs[name] = public[i].String()
	}
	rawInputs, err := json.Marshal(inputs)
	if err != nil {
		return nil, fmt.Errorf("%w: encode inputs: %v", types.ErrMalformedInput, err)
	}

	type result struct {
		proof []byte
		err   error
	}
	done := make(chan result, 1)
	go func() {
		start := time.Now()
		proof, err := b.prove(c, rawInputs)
		log.Debugw("proof generated", "circuit", circuitID, "took", time.Since(start).String())
		done <- result{proof, err}
	}()
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-done:
		return r.proof, r.err
	}
}

func (b *Backend) prove(c *loadedCircuit, rawInputs []byte) ([]byte, error) {
	inputs, err := witness.ParseInputs(rawInputs)
	if err != nil {
		return nil, fmt.Errorf("%w: circom inputs: %v", types.ErrMalformedInput, err)
	}
	calc, err := witness.NewCircom2WitnessCalculator(c.Artifacts.CircuitDefinition(), true)
	if err != nil {
		return nil, prover.Unavailable(fmt.Errorf("instance witness calculator: %w", err))
	}
	wtns, err := calc.CalculateWTNSBin(inputs, true)
	if err != nil {
		// the constraints do not hold for these inputs
		return nil, fmt.Errorf("%w: calculate witness: %v", types.ErrProofGeneration, err)
	}
	proof, _, err := rapidsnark.Groth16ProverRaw(c.Artifacts.ProvingKey(), wtns)
	if err != nil {
		return nil, prover.Unavailable(fmt.Errorf("groth16 prover: %w", err))
	}
	return []byte(proof), nil
}

// Verify checks a rapidsnark proof (json) against the public signals.
func (b *Backend) Verify(ctx context.Context, circuitID string, proof []byte, public []*big.Int) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	c, err := b.circuit(circuitID)
	if err != nil {
		return false, err
	}
	if c.vk == nil {
		return false, prover.Unavailable(fmt.Errorf("circuit %s has no verification key", circuitID))
	}
	signals := make([]string, len(public))
	for i, p := range public {
		signals[i] = p.String()
	}
	ok, err := circuits.VerifyCircomProof(c.vk, proof, signals)
	if err != nil {
		return false, fmt.Errorf("%w: %v", types.ErrMalformedInput, err)
	}
	return ok, nil
}
