package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/cuemby/sentryd/pkg/adminshell"
	"github.com/cuemby/sentryd/pkg/api"
	"github.com/cuemby/sentryd/pkg/apierr"
	"github.com/cuemby/sentryd/pkg/backup"
	"github.com/cuemby/sentryd/pkg/config"
	"github.com/cuemby/sentryd/pkg/events"
	"github.com/cuemby/sentryd/pkg/lifecycle"
	"github.com/cuemby/sentryd/pkg/log"
	"github.com/cuemby/sentryd/pkg/metrics"
	"github.com/cuemby/sentryd/pkg/objectstore"
	"github.com/cuemby/sentryd/pkg/pgpcrypto"
	"github.com/cuemby/sentryd/pkg/prosody"
	"github.com/cuemby/sentryd/pkg/secrets"
)

var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "sentryd",
	Short:   "sentryd is a control plane and backup engine for a Prosody XMPP server",
	Version: Version,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"sentryd version %s\nCommit: %s\nBuilt: %s\n", Version, Commit, BuildTime,
	))

	rootCmd.PersistentFlags().String("config", "", "Path to sentryd.toml (defaults baked in if omitted)")
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Output logs in JSON format")

	cobra.OnInitialize(initLogging)

	rootCmd.AddCommand(serveCmd)
}

func initLogging() {
	level, _ := rootCmd.PersistentFlags().GetString("log-level")
	jsonOutput, _ := rootCmd.PersistentFlags().GetBool("log-json")
	log.Init(log.Config{Level: log.Level(level), JSONOutput: jsonOutput, Output: os.Stdout})
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the sentryd daemon: lifecycle supervisor, backup engine and admin API",
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath, _ := cmd.Flags().GetString("config")
		return serve(cmd.Context(), configPath)
	},
}

func serve(ctx context.Context, configPath string) error {
	logger := log.WithComponent("main")

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	metrics.SetVersion(Version)

	store, err := buildObjectStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("building object store: %w", err)
	}

	signingCert, encryptionCert, decryptionCerts, err := buildCertificates(cfg)
	if err != nil {
		return fmt.Errorf("loading PGP certificates: %w", err)
	}

	broker := events.NewBroker()
	broker.Start()
	defer broker.Stop()

	shell := adminshell.New(cfg.AdminShell)
	defer shell.Close()

	backendSup := prosody.NewSupervisor(cfg.Prosody, func(crashErr error) {
		metrics.BackendCrashesTotal.Inc()
		logger.Error().Err(crashErr).Msg("backend crashed")
		message := ""
		if crashErr != nil {
			message = crashErr.Error()
		}
		broker.Publish(&events.Event{Type: events.EventBackendCrashed, Timestamp: time.Now(), Message: message})
	})

	var sup *lifecycle.Supervisor
	hooks := lifecycle.Hooks{
		Bootstrap: func(ctx context.Context) error {
			return bootstrapServiceAccounts(ctx, shell, cfg)
		},
		ReloadFrontendConfig: func(ctx context.Context) error {
			reloaded, err := config.Load(configPath)
			if err != nil {
				return err
			}
			cfg = reloaded
			return nil
		},
		EmptyDataDirectories: func(ctx context.Context) error {
			return emptyArchiveDirectories(cfg)
		},
	}

	sup, err = lifecycle.New(cfg.Lifecycle, backendSup, hooks)
	if err != nil {
		return fmt.Errorf("building lifecycle supervisor: %w", err)
	}
	defer func() { _ = sup.Shutdown() }()

	backups := backup.NewService(cfg, store, sup, signingCert, encryptionCert, decryptionCerts)

	tokens := secrets.NewTokenCache()
	purgeCtx, cancelPurge := context.WithCancel(ctx)
	defer cancelPurge()
	go tokens.RunPurgeLoop(purgeCtx, cfg.Auth.TokenTTL.Std())

	collector := metrics.NewCollector(sup)
	collector.Start()
	defer collector.Stop()

	metrics.RegisterComponent("lifecycle", false, "not initialized")
	metrics.RegisterComponent("backend", false, "not started")
	metrics.RegisterComponent("api", true, "")

	server := api.NewServerFromConfig(cfg, sup, backups, tokens)

	if err := sup.Bootstrap(ctx); err != nil {
		logger.Error().Err(err).Msg("initial bootstrap failed, starting in degraded state")
	}

	addr := fmt.Sprintf(":%d", cfg.Server.HTTPPort)
	errCh := make(chan error, 1)
	go func() { errCh <- server.Run(addr) }()
	logger.Info().Str("addr", addr).Msg("sentryd admin API listening")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-sigCh:
		logger.Info().Str("signal", sig.String()).Msg("shutting down")
	}

	_ = backendSup.Stop()
	return nil
}

func buildObjectStore(ctx context.Context, cfg *config.Config) (objectstore.Store, error) {
	switch cfg.Backups.Backend {
	case "s3":
		return objectstore.NewS3Store(ctx, objectstore.S3Config{
			Bucket:          cfg.Backups.S3.Bucket,
			Region:          cfg.Backups.S3.Region,
			Endpoint:        cfg.Backups.S3.Endpoint,
			AccessKeyID:     cfg.Backups.S3.AccessKeyID,
			SecretAccessKey: cfg.Backups.S3.SecretAccessKey,
			ForcePathStyle:  cfg.Backups.S3.ForcePathStyle,
		})
	default:
		return objectstore.NewFsStore(cfg.Backups.Fs.Directory)
	}
}

func buildCertificates(cfg *config.Config) (signing, encryption *pgpcrypto.Certificate, decryption []*pgpcrypto.Certificate, err error) {
	if cfg.Signing.Enabled && cfg.Signing.Pgp != nil && cfg.Signing.Pgp.Enabled {
		signing, err = pgpcrypto.LoadCertificateFile(cfg.Signing.Pgp.Key)
		if err != nil {
			return nil, nil, nil, err
		}
	}

	if cfg.Encryption.Enabled && cfg.Encryption.Pgp != nil {
		encryption, err = pgpcrypto.LoadCertificateFile(cfg.Encryption.Pgp.Key)
		if err != nil {
			return nil, nil, nil, err
		}
		decryption = append(decryption, encryption)
		for _, keyPath := range cfg.Encryption.Pgp.AdditionalDecryptionKeys {
			cert, err := pgpcrypto.LoadCertificateFile(keyPath)
			if err != nil {
				return nil, nil, nil, err
			}
			decryption = append(decryption, cert)
		}
	}

	return signing, encryption, decryption, nil
}

// bootstrapServiceAccounts orchestrates spec.md's "bootstrap of service
// accounts and access groups": it only confirms the configured virtual
// host exists on the backend. It creates no accounts; pkg/adminshell
// exports account operations, but no admin API route calls them.
func bootstrapServiceAccounts(ctx context.Context, shell *adminshell.Proxy, cfg *config.Config) error {
	exists, err := shell.HostExists(ctx, cfg.Server.Domain)
	if err != nil {
		return err
	}
	if !exists {
		return apierr.New(apierr.CodeConfigError, fmt.Sprintf("virtual host %q is not configured on the backend", cfg.Server.Domain))
	}
	return nil
}

func emptyArchiveDirectories(cfg *config.Config) error {
	for _, p := range cfg.Archiving.Paths {
		if p.LocalPath == "" || p.LocalPath == "/" {
			continue
		}
		entries, err := os.ReadDir(p.LocalPath)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return apierr.Wrap(apierr.CodeInternalError, "reading directory to empty", err)
		}
		for _, entry := range entries {
			if err := os.RemoveAll(filepath.Join(p.LocalPath, entry.Name())); err != nil {
				return apierr.Wrap(apierr.CodeInternalError, "emptying data directory", err)
			}
		}
	}
	return nil
}
