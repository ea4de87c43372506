// Package cmd defines and implements the CLI commands for the harvester executable.
package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/codecatalog/harvester/internal/archive"
	"github.com/codecatalog/harvester/internal/config"
	"github.com/codecatalog/harvester/internal/harvester"
	"github.com/codecatalog/harvester/internal/leetcode"
	"github.com/codecatalog/harvester/internal/logging"
	"github.com/codecatalog/harvester/internal/metrics"
	"github.com/codecatalog/harvester/internal/notify"
	"github.com/codecatalog/harvester/internal/store/postgres"
)

var cfgFile string

// newRootCmd creates and configures the root command.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "harvester",
		Short: "Harvests programming-problem metadata into the catalog database.",
		Long: `harvester pulls problem summaries and details from a LeetCode-compatible
GraphQL endpoint, normalizes them, and upserts them into PostgreSQL together
with their topic tags.`,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file path")

	cmd.AddCommand(newHarvestCmd())
	cmd.AddCommand(newServeCmd())

	return cmd
}

// Execute is the main entry point.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// setup loads configuration and builds the shared logger.
func setup() (config.Config, *zap.Logger, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return config.Config{}, nil, err
	}
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("build logger: %w", err)
	}
	metrics.Init()
	return cfg, logger, nil
}

// services holds the long-lived collaborators built for one command run.
type services struct {
	store     *postgres.ProblemStore
	harvester *harvester.Harvester
	closers   []func()
}

// Close releases every resource in reverse construction order.
func (s *services) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

// buildServices wires the client, store, archive and notifier into a
// Harvester per the loaded configuration. It fails fast if any critical
// collaborator cannot be initialized.
func buildServices(ctx context.Context, cfg config.Config, logger *zap.Logger) (*services, error) {
	if cfg.DB.DSN == "" {
		return nil, fmt.Errorf("db.dsn is required")
	}
	store, err := postgres.NewProblemStore(ctx, postgres.ProblemStoreConfig{
		DSN:             cfg.DB.DSN,
		MaxConns:        cfg.DB.MaxConns,
		MinConns:        cfg.DB.MinConns,
		MaxConnLifetime: cfg.DB.ConnLifetime(),
	})
	if err != nil {
		return nil, fmt.Errorf("initialize problem store: %w", err)
	}
	svc := &services{store: store}
	svc.closers = append(svc.closers, store.Close)

	archiveStore, err := buildArchive(ctx, cfg, logger, svc)
	if err != nil {
		svc.Close()
		return nil, err
	}

	notifier, err := buildNotifier(ctx, cfg, logger, svc)
	if err != nil {
		svc.Close()
		return nil, err
	}

	client := leetcode.NewClient(leetcode.Config{
		Endpoint:       cfg.LeetCode.Endpoint,
		UserAgent:      cfg.LeetCode.UserAgent,
		Origin:         cfg.LeetCode.Origin,
		Referer:        cfg.LeetCode.Referer,
		AcceptLanguage: cfg.LeetCode.AcceptLanguage,
		Timeout:        cfg.LeetCode.ClientTimeout(),
		MaxRetries:     cfg.LeetCode.MaxRetries,
		RetryDelay:     cfg.LeetCode.RetryDelay(),
	}, logger)

	svc.harvester = harvester.New(
		client,
		store,
		archiveStore,
		notifier,
		harvester.Config{ArchivePrefix: cfg.Archive.Prefix},
		logger,
	)
	return svc, nil
}

func buildArchive(ctx context.Context, cfg config.Config, logger *zap.Logger, svc *services) (archive.Store, error) {
	switch cfg.Archive.Provider {
	case "fs":
		logger.Info("using filesystem archive", zap.String("dir", cfg.Archive.Dir))
		return archive.NewFS(cfg.Archive.Dir)
	case "gcs":
		logger.Info("using GCS archive", zap.String("bucket", cfg.Archive.GCSBucket))
		gcs, err := archive.NewGCS(ctx, cfg.Archive.GCSBucket, logger)
		if err != nil {
			return nil, fmt.Errorf("initialize gcs archive: %w", err)
		}
		svc.closers = append(svc.closers, func() {
			if cerr := gcs.Close(); cerr != nil {
				logger.Warn("close gcs archive failed", zap.Error(cerr))
			}
		})
		return gcs, nil
	case "memory":
		return archive.NewMemory(), nil
	default:
		return nil, nil
	}
}

func buildNotifier(ctx context.Context, cfg config.Config, logger *zap.Logger, svc *services) (notify.Publisher, error) {
	switch cfg.Notify.Provider {
	case "pubsub":
		logger.Info("using pubsub notifier",
			zap.String("project", cfg.Notify.ProjectID),
			zap.String("topic", cfg.Notify.TopicID),
		)
		ps, err := notify.NewPubSub(ctx, cfg.Notify.ProjectID, cfg.Notify.TopicID, logger)
		if err != nil {
			return nil, fmt.Errorf("initialize pubsub notifier: %w", err)
		}
		svc.closers = append(svc.closers, func() {
			if cerr := ps.Close(); cerr != nil {
				logger.Warn("close pubsub notifier failed", zap.Error(cerr))
			}
		})
		return ps, nil
	case "memory":
		return notify.NewMemory(), nil
	default:
		return nil, nil
	}
}
