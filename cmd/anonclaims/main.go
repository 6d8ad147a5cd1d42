package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/vocdoni/anonclaims/circuits"
	"github.com/vocdoni/anonclaims/codec"
	"github.com/vocdoni/anonclaims/config"
	"github.com/vocdoni/anonclaims/lifecycle"
	"github.com/vocdoni/anonclaims/log"
	"github.com/vocdoni/anonclaims/provider"
	"github.com/vocdoni/anonclaims/provider/census"
	"github.com/vocdoni/anonclaims/provider/oauth"
	"github.com/vocdoni/anonclaims/prover"
	"github.com/vocdoni/anonclaims/prover/circom"
	"github.com/vocdoni/anonclaims/prover/mock"
	"github.com/vocdoni/anonclaims/service"
	"github.com/vocdoni/anonclaims/storage"
	"github.com/vocdoni/anonclaims/storage/anonset"
	"github.com/vocdoni/anonclaims/storage/db/metadb"
	"github.com/vocdoni/anonclaims/storage/sqlite"
	"go.vocdoni.io/dvote/db"
	"go.vocdoni.io/dvote/db/prefixeddb"
)

const artifactsTimeout = 20 * time.Minute

var anonsetPrefix = []byte("as/")

func main() {
	configPath := flag.String("config", "", "path to the YAML configuration file")
	download := flag.Bool("download-artifacts", false, "download the circuit artifacts and exit")
	dbType := flag.String("db", "", "key-value database for the pebble storage and the anonymity sets (pebble or memory)")
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		var err error
		if cfg, err = config.Load(*configPath); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	}
	var errOut io.Writer
	if cfg.Log.ErrorOutput != "" {
		f, err := os.OpenFile(cfg.Log.ErrorOutput, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		defer f.Close()
		errOut = f
	}
	log.Init(cfg.Log.Level, cfg.Log.Output, errOut)
	circuits.BaseDir = filepath.Join(cfg.Storage.Dir, "artifacts")
	if err := os.MkdirAll(circuits.BaseDir, 0o755); err != nil {
		log.Fatal(err)
	}

	if *download {
		if err := service.DownloadArtifacts(artifactsTimeout, cfg.Prover.Circuits); err != nil {
			log.Fatalf("failed to download artifacts: %v", err)
		}
		log.Info("circuit artifacts downloaded")
		return
	}
	if err := run(cfg, *dbType); err != nil {
		log.Fatal(err)
	}
}

func run(cfg *config.Config, dbType string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if dbType == "" {
		dbType = db.TypePebble
	}
	kv, err := metadb.New(dbType, filepath.Join(cfg.Storage.Dir, "db"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer kv.Close()

	var store lifecycle.Store
	switch cfg.Storage.Type {
	case config.StorageTypeSQLite:
		s, err := sqlite.Open(cfg.Storage.Dir)
		if err != nil {
			return err
		}
		defer s.Close()
		store = s
	default:
		store = storage.New(prefixeddb.NewPrefixedDatabase(kv, []byte("st/")))
	}

	backend, err := newBackend(ctx, cfg.Prover)
	if err != nil {
		return err
	}

	registry := provider.NewRegistry()
	if cfg.Providers.OAuth.Enabled {
		registry.Register(oauth.New(cfg.Providers.OAuth.Slug, cfg.Providers.OAuth.LogoURL, backend))
	}
	var cens *census.Provider
	if cfg.Providers.Census.Enabled {
		cens = census.New(cfg.Providers.Census.Slug, anonset.New(prefixeddb.NewPrefixedDatabase(kv, anonsetPrefix)), backend)
		registry.Register(cens)
	}
	if len(registry.Slugs()) == 0 {
		return fmt.Errorf("no anonymity set provider enabled")
	}

	cutover, err := cfg.Cutover()
	if err != nil {
		return err
	}
	lc, err := lifecycle.New(store, registry, codec.New(cutover), backend, lifecycle.OptionsFromConfig(cfg))
	if err != nil {
		return err
	}
	for _, group := range cfg.AllowedGroups {
		if err := lc.AllowGroup(ctx, group, true); err != nil {
			return fmt.Errorf("allow group %s: %w", group, err)
		}
	}

	resolver := service.NewClaimResolver(lc, cfg.Lifecycle.ResolveInterval)
	if err := resolver.Start(ctx); err != nil {
		return err
	}
	defer resolver.Stop()

	apiService := service.NewAPI(lc, cens, cfg.API.Host, cfg.API.Port)
	if err := apiService.Start(ctx); err != nil {
		return err
	}
	defer apiService.Stop()

	log.Infow("anonclaims running",
		"providers", registry.Slugs(),
		"storage", cfg.Storage.Type,
		"prover", cfg.Prover.Backend,
		"api", apiService.Addr())
	<-ctx.Done()
	log.Info("shutting down")
	return nil
}

func newBackend(ctx context.Context, cfg config.ProverConfig) (prover.Backend, error) {
	var backend prover.Backend
	switch cfg.Backend {
	case config.ProverBackendCircom:
		defs := make([]*circom.Circuit, 0, len(cfg.Circuits))
		for id, src := range cfg.Circuits {
			artifacts, err := src.Artifacts()
			if err != nil {
				return nil, fmt.Errorf("circuit %s: %w", id, err)
			}
			defs = append(defs, &circom.Circuit{ID: id, PublicInputs: src.PublicInputs, Artifacts: artifacts})
		}
		b, err := circom.New(ctx, defs...)
		if err != nil {
			return nil, err
		}
		backend = b
	default:
		log.Warn("using the mock prover, proofs are not zero knowledge")
		backend = mock.New()
	}
	cached, err := prover.NewCached(backend, cfg.CacheSize)
	if err != nil {
		return nil, err
	}
	return prover.NewRetrying(cached, int(cfg.Retries), cfg.RetryDelay), nil
}
