package circuits

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	qt "github.com/frankban/quicktest"
)

func readTestdata(c *qt.C, name string) []byte {
	data, err := os.ReadFile(filepath.Join("testdata", name))
	c.Assert(err, qt.IsNil)
	return data
}

func TestVerifyCircomProof(t *testing.T) {
	c := qt.New(t)
	vk, err := ParseVerificationKey(readTestdata(c, "vkey.json"))
	c.Assert(err, qt.IsNil)
	proof := readTestdata(c, "proof.json")
	var signals []string
	c.Assert(json.Unmarshal(readTestdata(c, "public_signals.json"), &signals), qt.IsNil)

	ok, err := VerifyCircomProof(vk, proof, signals)
	c.Assert(err, qt.IsNil)
	c.Assert(ok, qt.IsTrue)

	// another public input is a well formed statement the proof does not prove
	ok, err = VerifyCircomProof(vk, proof, []string{"1"})
	c.Assert(err, qt.IsNil)
	c.Assert(ok, qt.IsFalse)

	_, err = VerifyCircomProof(vk, []byte("{"), signals)
	c.Assert(err, qt.ErrorMatches, "parse proof: .*")
	_, err = ParseVerificationKey([]byte("not json"))
	c.Assert(err, qt.ErrorMatches, "parse verification key: .*")
}
