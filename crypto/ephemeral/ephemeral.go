// Package ephemeral implements the short lived BabyJubJub identities used to
// sign claims and messages. An identity is a session key: its public key is
// the bearer token of its holder and its expiry bounds every signature and
// membership proof made with it.
package ephemeral

import (
	"crypto/rand"
	"fmt"
	"io"
	"math/big"
	"time"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/iden3/go-iden3-crypto/babyjub"
	"github.com/vocdoni/anonclaims/types"
	"github.com/vocdoni/anonclaims/util"
)

const (
	// DefaultLifetime is the validity of a new identity if none is configured.
	DefaultLifetime = 24 * time.Hour

	pubKeySize    = 32
	signatureSize = 64
)

// Identity is an ephemeral keypair. The private key never leaves the value
// and is never serialized.
type Identity struct {
	privateKey babyjub.PrivateKey
	PublicKey  *types.BigInt
	Expiry     time.Time
}

// Generator creates identities. Entropy and Now are replaceable for tests.
type Generator struct {
	Entropy  io.Reader
	Lifetime time.Duration
	Now      func() time.Time
}

// NewGenerator returns a generator backed by crypto/rand. A zero lifetime
// means DefaultLifetime.
func NewGenerator(lifetime time.Duration) *Generator {
	if lifetime <= 0 {
		lifetime = DefaultLifetime
	}
	return &Generator{
		Entropy:  rand.Reader,
		Lifetime: lifetime,
		Now:      time.Now,
	}
}

// Generate returns a fresh identity expiring Lifetime from now.
func (g *Generator) Generate() (*Identity, error) {
	var sk babyjub.PrivateKey
	if _, err := io.ReadFull(g.Entropy, sk[:]); err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrKeyGeneration, err)
	}
	comp := sk.Public().Compress()
	return &Identity{
		privateKey: sk,
		PublicKey:  new(types.BigInt).SetBytes(comp[:]),
		// the expiry travels as unix millis, drop the rest
		Expiry: g.Now().Add(g.Lifetime).Truncate(time.Millisecond),
	}, nil
}

// Generate creates an identity with the default generator.
func Generate(lifetime time.Duration) (*Identity, error) {
	return NewGenerator(lifetime).Generate()
}

// Expired reports whether the identity is no longer valid at t.
func (id *Identity) Expired(t time.Time) bool {
	return !t.Before(id.Expiry)
}

// Sign signs the digest of msg with EdDSA-Poseidon and returns the
// compressed signature as an integer. Signing does not look at the expiry,
// verifiers do.
func (id *Identity) Sign(msg []byte) *types.BigInt {
	sig := id.privateKey.SignPoseidon(Digest(msg))
	comp := sig.Compress()
	return new(types.BigInt).SetBytes(comp[:])
}

// Digest maps msg to the field element that is actually signed: keccak256
// of the bytes reduced modulo the BN254 scalar field.
func Digest(msg []byte) *big.Int {
	return util.BigToFF(new(big.Int).SetBytes(ethcrypto.Keccak256(msg)))
}

// DecodePublicKey decompresses a public key in its integer form.
func DecodePublicKey(pubKey *types.BigInt) (*babyjub.PublicKey, error) {
	if pubKey == nil || pubKey.MathBigInt().Sign() < 0 || len(pubKey.Bytes()) > pubKeySize {
		return nil, fmt.Errorf("%w: public key out of range", types.ErrMalformedInput)
	}
	var comp babyjub.PublicKeyComp
	pubKey.MathBigInt().FillBytes(comp[:])
	pk, err := comp.Decompress()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrMalformedInput, err)
	}
	return pk, nil
}

// Verify checks sig over msg against the public key. A malformed public key
// is an error, a signature that does not decode or does not match is just
// false.
func Verify(pubKey *types.BigInt, msg []byte, sig *types.BigInt) (bool, error) {
	pk, err := DecodePublicKey(pubKey)
	if err != nil {
		return false, err
	}
	if sig == nil || sig.MathBigInt().Sign() < 0 || len(sig.Bytes()) > signatureSize {
		return false, nil
	}
	var comp babyjub.SignatureComp
	sig.MathBigInt().FillBytes(comp[:])
	signature, err := comp.Decompress()
	if err != nil {
		return false, nil
	}
	return pk.VerifyPoseidon(Digest(msg), signature), nil
}
