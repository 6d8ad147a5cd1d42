package circuits

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/sethvargo/go-retry"
	"github.com/vocdoni/anonclaims/log"
	"github.com/vocdoni/anonclaims/types"
)

const (
	downloadRetries  = 3
	progressInterval = 10 * time.Second
)

// CheckHashes tells whether the sha256 of every artifact is checked when it
// is loaded from the cache or downloaded. ANONCLAIMS_CHECK_HASHES=false (or 0)
// disables it.
var CheckHashes = os.Getenv("ANONCLAIMS_CHECK_HASHES") != "0" &&
	!strings.EqualFold(os.Getenv("ANONCLAIMS_CHECK_HASHES"), "false")

// BaseDir is the local artifact cache, created on first use. Artifacts
// missing there are downloaded into it. Defaults to ANONCLAIMS_ARTIFACTS_DIR
// or ~/.cache/anonclaims-artifacts.
var BaseDir = defaultBaseDir()

func defaultBaseDir() string {
	if dir := os.Getenv("ANONCLAIMS_ARTIFACTS_DIR"); dir != "" {
		return dir
	}
	if cache, err := os.UserCacheDir(); err == nil && cache != "" {
		return filepath.Join(cache, "anonclaims-artifacts")
	}
	return filepath.Join(os.TempDir(), "anonclaims-artifacts")
}

// Artifact is a remote file pinned by its sha256 hash, with its content once
// loaded.
type Artifact struct {
	RemoteURL string
	Hash      []byte
	Content   []byte
}

// NewArtifact builds an artifact from its URL and hex encoded sha256.
func NewArtifact(remoteURL, hexHash string) (*Artifact, error) {
	hash, err := types.HexStringToHexBytes(hexHash)
	if err != nil {
		return nil, fmt.Errorf("invalid artifact hash %q: %w", hexHash, err)
	}
	if len(hash) != sha256.Size {
		return nil, fmt.Errorf("invalid artifact hash %q: want %d bytes", hexHash, sha256.Size)
	}
	return &Artifact{RemoteURL: remoteURL, Hash: hash}, nil
}

// Load fills the artifact content. It is a no-op if the content is already
// in memory; otherwise it reads the local cache by hash and, on a cache miss,
// downloads the artifact from RemoteURL. The hash is checked in both paths.
func (k *Artifact) Load(ctx context.Context) error {
	if len(k.Content) != 0 {
		return nil
	}
	if len(k.Hash) == 0 {
		return fmt.Errorf("artifact hash not provided")
	}
	content, err := load(k.Hash)
	if err != nil {
		return err
	}
	if content == nil {
		if err := k.Download(ctx); err != nil {
			return err
		}
		if content, err = load(k.Hash); err != nil {
			return err
		}
		if content == nil {
			return fmt.Errorf("artifact %x not found after download", k.Hash)
		}
	}
	k.Content = content
	return nil
}

// Download fetches the artifact from RemoteURL into the local cache,
// resuming a previous partial download. Network failures and 5xx responses
// are retried with an exponential backoff.
func (k *Artifact) Download(ctx context.Context) error {
	if k.RemoteURL == "" {
		return fmt.Errorf("artifact %x not cached and no remote url", k.Hash)
	}
	if _, err := url.Parse(k.RemoteURL); err != nil {
		return fmt.Errorf("invalid artifact url: %w", err)
	}
	backoff := retry.WithMaxRetries(downloadRetries, retry.NewExponential(time.Second))
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := download(ctx, k.Hash, k.RemoteURL)
		var re *retryableDownload
		if errors.As(err, &re) {
			log.Warnw("artifact download failed, retrying", "url", k.RemoteURL, "error", re.err.Error())
			return retry.RetryableError(re.err)
		}
		return err
	})
}

// CircuitArtifacts groups the three artifacts of a circom circuit: the
// witness calculator (wasm), the groth16 proving key (zkey) and the
// verification key (json). Any of them may be nil, a verifier only needs the
// verification key.
type CircuitArtifacts struct {
	circuitDefinition *Artifact
	provingKey        *Artifact
	verifyingKey      *Artifact
}

// NewCircuitArtifacts creates a new CircuitArtifacts struct with the circuit
// artifacts provided. It returns the struct with the artifacts set.
func NewCircuitArtifacts(circuit, provingKey, verifyingKey *Artifact) *CircuitArtifacts {
	return &CircuitArtifacts{
		circuitDefinition: circuit,
		provingKey:        provingKey,
		verifyingKey:      verifyingKey,
	}
}

// LoadAll loads every artifact present, downloading the missing ones.
func (ca *CircuitArtifacts) LoadAll(ctx context.Context) error {
	if ca.circuitDefinition != nil {
		if err := ca.circuitDefinition.Load(ctx); err != nil {
			return fmt.Errorf("error loading circuit definition: %w", err)
		}
	}
	if ca.provingKey != nil {
		if err := ca.provingKey.Load(ctx); err != nil {
			return fmt.Errorf("error loading proving key: %w", err)
		}
	}
	if ca.verifyingKey != nil {
		if err := ca.verifyingKey.Load(ctx); err != nil {
			return fmt.Errorf("error loading verifying key: %w", err)
		}
	}
	return nil
}

// DownloadAll downloads every artifact present into the local cache.
func (ca *CircuitArtifacts) DownloadAll(ctx context.Context) error {
	for name, a := range map[string]*Artifact{
		"circuit definition": ca.circuitDefinition,
		"proving key":        ca.provingKey,
		"verifying key":      ca.verifyingKey,
	} {
		if a == nil {
			continue
		}
		if err := a.Download(ctx); err != nil {
			return fmt.Errorf("error downloading %s: %w", name, err)
		}
	}
	return nil
}

// CircuitDefinition returns the content of the circuit definition as
// types.HexBytes. If the circuit definition is not loaded, it returns nil.
func (ca *CircuitArtifacts) CircuitDefinition() types.HexBytes {
	if ca.circuitDefinition == nil {
		return nil
	}
	return ca.circuitDefinition.Content
}

// ProvingKey returns the content of the proving key as types.HexBytes. If the
// proving key is not loaded, it returns nil.
func (ca *CircuitArtifacts) ProvingKey() types.HexBytes {
	if ca.provingKey == nil {
		return nil
	}
	return ca.provingKey.Content
}

// VerifyingKey returns the content of the verifying key as types.HexBytes. If the
// verifying key is not loaded, it returns nil.
func (ca *CircuitArtifacts) VerifyingKey() types.HexBytes {
	if ca.verifyingKey == nil {
		return nil
	}
	return ca.verifyingKey.Content
}

func cachePath(hash []byte) string {
	return filepath.Join(BaseDir, hex.EncodeToString(hash))
}

// load returns the cached content of hash, nil if it is not cached.
func load(hash []byte) ([]byte, error) {
	if err := os.MkdirAll(BaseDir, 0o755); err != nil {
		return nil, fmt.Errorf("create artifacts dir: %w", err)
	}
	content, err := os.ReadFile(cachePath(hash))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read artifact %x: %w", hash, err)
	}
	if CheckHashes {
		if sum := sha256.Sum256(content); !bytes.Equal(sum[:], hash) {
			return nil, fmt.Errorf("cached artifact %x is corrupted, got hash %x", hash, sum)
		}
	}
	return content, nil
}

// retryableDownload marks a transient download failure.
type retryableDownload struct {
	err error
}

func (e *retryableDownload) Error() string { return e.err.Error() }

// countingReader counts the bytes read so far.
type countingReader struct {
	r io.Reader
	n atomic.Int64
}

func (cr *countingReader) Read(p []byte) (int, error) {
	n, err := cr.r.Read(p)
	cr.n.Add(int64(n))
	return n, err
}

// download stores the content of fileURL in the cache under its hash. The
// data goes to a .partial file first and is renamed once complete and, if
// CheckHashes is set, once its hash matches.
func download(ctx context.Context, hash []byte, fileURL string) error {
	dst := cachePath(hash)
	partial := dst + ".partial"

	var offset int64
	if info, err := os.Stat(partial); err == nil {
		offset = info.Size()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fileURL, nil)
	if err != nil {
		return fmt.Errorf("create artifact request: %w", err)
	}
	if offset > 0 {
		req.Header.Set("Range", fmt.Sprintf("bytes=%d-", offset))
	}
	res, err := http.DefaultClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return err
		}
		return &retryableDownload{err}
	}
	defer res.Body.Close()

	flags := os.O_CREATE | os.O_WRONLY | os.O_TRUNC
	switch {
	case res.StatusCode == http.StatusPartialContent && offset > 0:
		flags = os.O_APPEND | os.O_WRONLY
	case res.StatusCode == http.StatusOK:
		offset = 0
	case res.StatusCode >= http.StatusInternalServerError:
		return &retryableDownload{fmt.Errorf("download %s: http status %d", fileURL, res.StatusCode)}
	default:
		return fmt.Errorf("download %s: http status %d", fileURL, res.StatusCode)
	}
	fd, err := os.OpenFile(partial, flags, 0o644)
	if err != nil {
		return fmt.Errorf("open artifact file: %w", err)
	}
	defer fd.Close()

	hasher := sha256.New()
	if offset > 0 {
		existing, err := os.ReadFile(partial)
		if err != nil {
			return fmt.Errorf("read partial artifact: %w", err)
		}
		hasher.Write(existing)
	}

	body := &countingReader{r: res.Body}
	done := make(chan error, 1)
	go func() {
		_, err := io.Copy(io.MultiWriter(fd, hasher), body)
		done <- err
	}()
	ticker := time.NewTicker(progressInterval)
	defer ticker.Stop()
	for copying := true; copying; {
		select {
		case err := <-done:
			if err != nil {
				if ctx.Err() != nil {
					return err
				}
				return &retryableDownload{fmt.Errorf("copy artifact: %w", err)}
			}
			copying = false
		case <-ticker.C:
			got := body.n.Load() + offset
			progress := "unknown"
			if res.ContentLength > 0 {
				progress = fmt.Sprintf("%.1f%%", float64(got)*100/float64(res.ContentLength+offset))
			}
			log.Debugw("downloading artifact", "url", fileURL,
				"downloaded", fmt.Sprintf("%.2fMiB", float64(got)/(1<<20)), "progress", progress)
		}
	}

	if CheckHashes {
		if sum := hasher.Sum(nil); !bytes.Equal(sum, hash) {
			_ = os.Remove(partial)
			return fmt.Errorf("artifact hash mismatch: expected %x, got %x", hash, sum)
		}
	}
	if err := os.Rename(partial, dst); err != nil {
		return fmt.Errorf("store artifact: %w", err)
	}
	log.Infow("artifact downloaded", "url", fileURL, "hash", hex.EncodeToString(hash))
	return nil
}
