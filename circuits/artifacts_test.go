package circuits

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"
)

var (
	dummyPath       = "membership.zkey"
	dummyKeyContent = []byte("dummy proving key content")
)

func testDummyKeyServer() *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.ServeContent(w, r, dummyPath, time.Now(), bytes.NewReader(dummyKeyContent))
	}))
}

func TestMain(m *testing.M) {
	dir, err := os.MkdirTemp("", "anonclaims-artifacts-test")
	if err != nil {
		panic(err)
	}
	BaseDir = dir
	code := m.Run()
	if err := os.RemoveAll(BaseDir); err != nil {
		panic(err)
	}
	os.Exit(code)
}

func TestLoadArtifact(t *testing.T) {
	c := qt.New(t)
	server := testDummyKeyServer()
	defer server.Close()

	expectedHash := sha256.Sum256(dummyKeyContent)
	remoteURL, err := url.JoinPath(server.URL, dummyPath)
	c.Assert(err, qt.IsNil)
	artifact, err := NewArtifact(remoteURL, hex.EncodeToString(expectedHash[:]))
	c.Assert(err, qt.IsNil)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	// cache miss, downloaded
	c.Assert(artifact.Load(ctx), qt.IsNil)
	c.Assert([]byte(artifact.Content), qt.DeepEquals, dummyKeyContent)
	// cache hit
	artifact.Content = nil
	artifact.RemoteURL = ""
	c.Assert(artifact.Load(ctx), qt.IsNil)
	c.Assert([]byte(artifact.Content), qt.DeepEquals, dummyKeyContent)
	// wrong hash
	artifact.Content = nil
	artifact.RemoteURL = remoteURL
	artifact.Hash = []byte("wrong hash")
	c.Assert(artifact.Load(ctx), qt.IsNotNil)
}

func TestNewArtifactInvalidHash(t *testing.T) {
	c := qt.New(t)
	_, err := NewArtifact("https://example.org/a.wasm", "zz")
	c.Assert(err, qt.IsNotNil)
	_, err = NewArtifact("https://example.org/a.wasm", "abcd")
	c.Assert(err, qt.ErrorMatches, ".*want 32 bytes")
}

func TestCircuitArtifacts(t *testing.T) {
	c := qt.New(t)
	server := testDummyKeyServer()
	defer server.Close()

	expectedHash := sha256.Sum256(dummyKeyContent)
	remoteURL, err := url.JoinPath(server.URL, dummyPath)
	c.Assert(err, qt.IsNil)
	vkey, err := NewArtifact(remoteURL, hex.EncodeToString(expectedHash[:]))
	c.Assert(err, qt.IsNil)

	ca := NewCircuitArtifacts(nil, nil, vkey)
	c.Assert(ca.LoadAll(context.Background()), qt.IsNil)
	c.Assert(ca.CircuitDefinition(), qt.IsNil)
	c.Assert(ca.ProvingKey(), qt.IsNil)
	c.Assert([]byte(ca.VerifyingKey()), qt.DeepEquals, dummyKeyContent)
}
