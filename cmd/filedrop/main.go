package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"golang.org/x/sync/errgroup"

	"filedrop/internal/catalog"
	"filedrop/internal/server"
	"filedrop/internal/storage"
)

const shutdownTimeout = 5 * time.Second

// appConfig is everything main needs, read from the environment.
type appConfig struct {
	Server  server.Config
	Catalog catalog.Config
	Mirror  storage.MirrorConfig
	Sweep   server.SweepConfig
}

func main() {
	if err := run(); err != nil {
		server.Error("service_failed", map[string]any{"service": "filedrop"}, err)
		os.Exit(1)
	}
}

func run() error {
	if err := server.ValidateAllConfiguration(); err != nil {
		return err
	}
	server.WarnOnOptionalMissingConfig()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cat, err := catalog.Open(ctx, cfg.Catalog)
	switch {
	case errors.Is(err, catalog.ErrDisabled):
		server.Info("catalog_disabled", nil)
	case err != nil:
		return fmt.Errorf("open catalog: %w", err)
	default:
		defer func() { _ = cat.Close() }()
		cfg.Server.Catalog = cat
		server.Info("catalog_ready", map[string]any{"kind": string(cfg.Catalog.Kind)})
	}

	if cfg.Mirror.Configured() {
		mirror, err := storage.NewMirror(ctx, cfg.Mirror)
		if err != nil {
			return fmt.Errorf("connect mirror: %w", err)
		}
		cfg.Server.Mirror = mirror
		server.Info("mirror_ready", map[string]any{"bucket": mirror.Bucket()})
	}

	srv := server.New(cfg.Server)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		server.Info("starting", map[string]any{
			"addr":       srv.Addr(),
			"upload_dir": cfg.Server.UploadDir,
			"store_mode": string(cfg.Server.StoreMode),
			"max_upload": humanize.IBytes(uint64(cfg.Server.MaxUploadBytes)),
			"version":    cfg.Server.Build.Version,
			"commit":     cfg.Server.Build.Commit,
		})
		return srv.Start()
	})
	g.Go(func() error {
		return server.StartSweepJob(gctx, cfg.Sweep)
	})
	g.Go(func() error {
		<-gctx.Done()
		server.Info("shutting_down", nil)
		// Give in-flight uploads a moment to finish.
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(sctx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		server.Info("shutdown_complete", nil)
		return nil
	})

	return g.Wait()
}

// loadConfig assembles the configuration from FD_* variables. Values have
// already passed ValidateAllConfiguration; parse errors are still returned.
func loadConfig() (appConfig, error) {
	var cfg appConfig

	maxUpload, err := humanize.ParseBytes(getenvDefault("FD_MAX_UPLOAD_BYTES", "32MiB"))
	if err != nil {
		return cfg, fmt.Errorf("FD_MAX_UPLOAD_BYTES: %w", err)
	}
	readTimeout, err := time.ParseDuration(getenvDefault("FD_READ_TIMEOUT", "2m"))
	if err != nil {
		return cfg, fmt.Errorf("FD_READ_TIMEOUT: %w", err)
	}
	storeMode, err := server.ParseStoreMode(getenvDefault("FD_STORE_MODE", string(server.StoreModePayload)))
	if err != nil {
		return cfg, fmt.Errorf("FD_STORE_MODE: %w", err)
	}
	rate, err := strconv.Atoi(getenvDefault("FD_UPLOAD_RATE", "0"))
	if err != nil {
		return cfg, fmt.Errorf("FD_UPLOAD_RATE: %w", err)
	}
	sweepInterval, err := time.ParseDuration(getenvDefault("FD_SWEEP_INTERVAL", "10m"))
	if err != nil {
		return cfg, fmt.Errorf("FD_SWEEP_INTERVAL: %w", err)
	}
	sweepMaxAge, err := time.ParseDuration(getenvDefault("FD_SWEEP_MAX_AGE", "1h"))
	if err != nil {
		return cfg, fmt.Errorf("FD_SWEEP_MAX_AGE: %w", err)
	}
	kind, err := catalog.ParseKind(getenvDefault("FD_CATALOG", string(catalog.KindNone)))
	if err != nil {
		return cfg, fmt.Errorf("FD_CATALOG: %w", err)
	}

	uploadDir := getenvDefault("FD_UPLOAD_DIR", server.DefaultUploadDir)

	cfg.Server = server.Config{
		Addr:           getenvDefault("FD_ADDR", server.DefaultAddr),
		UploadDir:      uploadDir,
		StaticRoot:     getenvDefault("FD_STATIC_ROOT", server.DefaultStaticRoot),
		IndexPath:      getenvDefault("FD_INDEX_PATH", server.DefaultIndexPath),
		StaticPrefixes: splitList(getenvDefault("FD_STATIC_PREFIXES", strings.Join(server.DefaultStaticPrefixes, ","))),
		MaxUploadBytes: int64(maxUpload),
		ReadTimeout:    readTimeout,
		StoreMode:      storeMode,
		UploadRate:     rate,

		TrustProxyHeaders: getenvDefault("FD_TRUST_PROXY", "false") == "true",
		Build: server.BuildInfo{
			Version: getenvDefault("FD_VERSION", "dev"),
			Commit:  getenvDefault("FD_COMMIT", "unknown"),
		},
	}
	cfg.Catalog = catalog.Config{
		Kind:        kind,
		BadgerDir:   getenvDefault("FD_BADGER_DIR", "filedrop-catalog"),
		DatabaseURL: getenvDefault("DATABASE_URL", ""),
	}
	cfg.Mirror = storage.MirrorConfig{
		Endpoint:  getenvDefault("FD_S3_ENDPOINT", ""),
		AccessKey: getenvDefault("FD_S3_ACCESS_KEY", ""),
		SecretKey: getenvDefault("FD_S3_SECRET_KEY", ""),
		Bucket:    getenvDefault("FD_BUCKET", ""),
		Prefix:    getenvDefault("FD_S3_PREFIX", ""),
	}
	cfg.Sweep = server.SweepConfig{
		Dir:      uploadDir,
		Interval: sweepInterval,
		MaxAge:   sweepMaxAge,
	}
	return cfg, nil
}

// splitList splits a comma-separated list, dropping empty items.
func splitList(s string) []string {
	var out []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// getenvDefault reads an environment variable and returns a default value if not set.
func getenvDefault(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}
