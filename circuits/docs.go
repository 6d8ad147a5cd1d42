// Package circuits manages the circom artifacts the proving backend needs
// (witness calculator, proving key and verification key) and the glue to
// verify circom groth16 proofs with gnark. Circuit definitions are produced
// elsewhere; this package only fetches them by hash, caches them locally and
// checks their integrity.
package circuits
