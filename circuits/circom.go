package circuits

import (
	"fmt"

	"github.com/vocdoni/anonclaims/log"
	"github.com/vocdoni/circom2gnark/parser"
)

// ParseVerificationKey parses a snarkjs verification key (json).
func ParseVerificationKey(vkey []byte) (*parser.CircomVerificationKey, error) {
	vk, err := parser.UnmarshalCircomVerificationKeyJSON(vkey)
	if err != nil {
		return nil, fmt.Errorf("parse verification key: %w", err)
	}
	return vk, nil
}

// VerifyCircomProof converts a snarkjs/rapidsnark groth16 proof and its
// public signals to the gnark representation and verifies it against vk.
// A proof that parses but does not verify returns false and no error.
func VerifyCircomProof(vk *parser.CircomVerificationKey, proofJSON []byte, pubSignals []string) (bool, error) {
	proof, err := parser.UnmarshalCircomProofJSON(proofJSON)
	if err != nil {
		return false, fmt.Errorf("parse proof: %w", err)
	}
	gnarkProof, err := parser.ConvertCircomToGnark(proof, vk, pubSignals)
	if err != nil {
		return false, fmt.Errorf("convert proof: %w", err)
	}
	ok, err := parser.VerifyProof(gnarkProof)
	if err != nil {
		log.Debugw("groth16 verification failed", "error", err.Error())
		return false, nil
	}
	return ok, nil
}
