// Command smpd runs the SMP server.
//
// Usage:
//
//	smpd -config /etc/smp/config.yaml
//
// The manager set is wired here once and handed to the HTTP server;
// nothing else in the process reaches the store or the SML directly.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirosfoundation/go-smp/internal/auth"
	"github.com/sirosfoundation/go-smp/internal/config"
	"github.com/sirosfoundation/go-smp/internal/metrics"
	"github.com/sirosfoundation/go-smp/internal/server"
	"github.com/sirosfoundation/go-smp/internal/sml"
	"github.com/sirosfoundation/go-smp/internal/smp"
	"github.com/sirosfoundation/go-smp/internal/storage"
	"github.com/sirosfoundation/go-smp/internal/storage/memory"
	"github.com/sirosfoundation/go-smp/internal/storage/mongodb"
	"github.com/sirosfoundation/go-smp/pkg/identifier"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the configuration file")
	logJSON := flag.Bool("log-json", false, "emit JSON logs")
	flag.Parse()

	if err := run(*configPath, *logJSON); err != nil {
		fmt.Fprintln(os.Stderr, "smpd:", err)
		os.Exit(1)
	}
}

func run(configPath string, logJSON bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	var handler slog.Handler
	logLevel := slog.LevelInfo
	if cfg.Server.Debug {
		logLevel = slog.LevelDebug
	}
	if logJSON {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})
	} else {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})
	}
	logger := slog.New(handler)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}

	ids := identifier.NewFactory()

	var smlHook sml.Hook = sml.NoopHook{}
	var verifier *sml.Verifier
	if cfg.SML.Enabled {
		smlHook = sml.NewClient(sml.ClientConfig{
			ManagementURL: cfg.SML.ManagementURL,
			SMPID:         cfg.SML.SMPID,
			HTTPClient:    &http.Client{Timeout: cfg.SML.Timeout},
		})
		if cfg.SML.DNSZone != "" {
			verifier = &sml.Verifier{
				Zone:      cfg.SML.DNSZone,
				DNSServer: cfg.SML.DNSServer,
				Timeout:   cfg.SML.Timeout,
			}
		}
		logger.Info("SML integration enabled", "url", cfg.SML.ManagementURL, "smp_id", cfg.SML.SMPID)
	} else {
		logger.Warn("SML integration disabled - participants will not be registered in the network locator")
	}

	groups := smp.NewServiceGroupManager(smp.ServiceGroupManagerConfig{
		Store:    store,
		SMLHook:  smlHook,
		IDs:      ids,
		Logger:   logger,
		CacheTTL: cfg.Server.CacheTTL,
	})
	services := smp.NewServiceInformationManager(store, ids, logger)
	redirects := smp.NewRedirectManager(store, logger)
	cards := smp.NewBusinessCardManager(store, logger)

	authenticator := auth.NewAuthenticator(store, auth.BearerConfig{
		Secret:   []byte(cfg.Auth.BearerSecret),
		Issuer:   cfg.Auth.Issuer,
		Audience: cfg.Auth.Audience,
	}, logger)

	srv := server.New(server.Deps{
		Config:        cfg,
		Store:         store,
		IDs:           ids,
		Groups:        groups,
		Services:      services,
		Redirects:     redirects,
		Cards:         cards,
		Authenticator: authenticator,
		Metrics:       metrics.New(),
		Verifier:      verifier,
		Logger:        logger,
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start(fmt.Sprintf(":%d", cfg.Server.Port))
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutting down: %w", err)
		}
	}
	return nil
}

func openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (storage.Store, error) {
	switch cfg.Storage.Type {
	case config.StorageMemory:
		logger.Warn("using in-memory storage - data will not survive a restart")
		return memory.NewStore(), nil
	default:
		store, err := mongodb.NewStore(ctx, &mongodb.Config{
			URI:      cfg.Storage.MongoDB.URI,
			Database: cfg.Storage.MongoDB.Database,
		})
		if err != nil {
			return nil, fmt.Errorf("connecting to MongoDB: %w", err)
		}
		logger.Info("connected to MongoDB", "database", cfg.Storage.MongoDB.Database)
		return store, nil
	}
}
