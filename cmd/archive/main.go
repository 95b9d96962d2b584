package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/timmy/crudgate/internal/config"
	"github.com/timmy/crudgate/internal/correlation"
	"github.com/timmy/crudgate/internal/logger"
	"github.com/timmy/crudgate/internal/masking"
	"github.com/timmy/crudgate/internal/metrics"
	"github.com/timmy/crudgate/internal/repository"
	"github.com/timmy/crudgate/internal/service"
	"github.com/timmy/crudgate/internal/sink"
	"github.com/timmy/crudgate/internal/storage"
	"github.com/urfave/cli/v2"
)

var errMemoryArchive = errors.New("archive.type memory keeps nothing after exit; use it only with --dry-run")

func main() {
	app := NewApp()
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func NewApp() *cli.App {
	return &cli.App{
		Name:  "crudgate-archive",
		Usage: "move old log records to object storage",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				EnvVars: []string{"CONFIG_PATH"},
				Usage:   "path to config file",
			},
		},
		Commands: []*cli.Command{
			runCommand(),
			listCommand(),
		},
	}
}

func runCommand() *cli.Command {
	return &cli.Command{
		Name:  "run",
		Usage: "export and purge records older than the cutoff",
		Flags: []cli.Flag{
			&cli.DurationFlag{
				Name:  "before",
				Value: 30 * 24 * time.Hour,
				Usage: "archive records older than this age",
			},
			&cli.IntFlag{
				Name:  "limit",
				Value: 10000,
				Usage: "maximum number of records per run (0 for all)",
			},
			&cli.BoolFlag{
				Name:  "dry-run",
				Usage: "encode and count without uploading or deleting",
			},
		},
		Action: func(c *cli.Context) error {
			if c.Duration("before") <= 0 {
				return fmt.Errorf("--before must be positive")
			}
			return runArchive(c.Context, c.String("config"), c.Duration("before"), c.Int("limit"), c.Bool("dry-run"))
		},
	}
}

func listCommand() *cli.Command {
	return &cli.Command{
		Name:  "list",
		Usage: "list archived objects",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "prefix",
				Usage: "key prefix (default: archive.prefix)",
			},
		},
		Action: func(c *cli.Context) error {
			return runList(c.Context, c.String("config"), c.String("prefix"))
		},
	}
}

func runArchive(parent context.Context, configPath string, before time.Duration, limit int, dryRun bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	appLogger := logger.NewFromEnv(cfg.Logging.EnvConfig())
	logger.SetDefaultLogger(appLogger)
	defer logger.Sync()

	db, err := repository.InitDB(&cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	if sqlDB, err := db.DB(); err == nil {
		defer sqlDB.Close()
	}
	logRepo := repository.NewLogRepository(db)

	objectStorage, err := newObjectStorage(parent, &cfg.Archive, dryRun)
	if err != nil {
		return err
	}

	factory := correlation.NewFactory()
	logService := service.NewLogService(
		masking.New(cfg.Masking.Options()),
		sink.NewMulti(sink.NewLoggerSink(appLogger), sink.NewDBSink(logRepo)),
		factory,
		metrics.New(),
		appLogger,
		&service.LogServiceConfig{Layer: "archive"},
	)
	archiver := service.NewArchiveService(logRepo, objectStorage, logService, appLogger, &service.ArchiveConfig{
		Prefix: cfg.Archive.Prefix,
	})

	ctx, cancel := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cc := factory.New()
	ctx = correlation.NewContext(ctx, cc)
	ctx = logger.WithCorrelation(ctx, cc)

	cutoff := time.Now().Add(-before)
	logger.CtxInfo(ctx, "Archiving log records older than %s (limit %d, dry run %t)",
		cutoff.UTC().Format(time.RFC3339), limit, dryRun)
	stats, err := archiver.Run(ctx, cutoff, limit, dryRun)
	if err != nil {
		return err
	}

	logger.With(logger.Fields{
		logger.FieldCount: stats.Exported,
		logger.FieldSize:  stats.Bytes,
		"deleted":         stats.Deleted,
		"key":             stats.ObjectKey,
		"dry_run":         stats.DryRun,
	}).Info(ctx, "Archive completed")
	return nil
}

func runList(ctx context.Context, configPath, prefix string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	objectStorage, err := newObjectStorage(ctx, &cfg.Archive, false)
	if err != nil {
		return err
	}
	if prefix == "" {
		prefix = cfg.Archive.Prefix
	}

	objects, err := objectStorage.List(ctx, prefix)
	if err != nil {
		return fmt.Errorf("failed to list archive: %w", err)
	}
	for _, obj := range objects {
		fmt.Printf("%s\t%d\t%s\n", obj.LastModified.UTC().Format(time.RFC3339), obj.Size, obj.Key)
	}
	return nil
}

// newObjectStorage opens the archive bucket. The in-process memory backend
// holds nothing after exit, so it is only accepted when nothing is uploaded
// or purged.
func newObjectStorage(ctx context.Context, ac *config.ArchiveConfig, allowMemory bool) (storage.ObjectStorage, error) {
	if storage.StorageType(ac.Type) == storage.StorageTypeMemory && !allowMemory {
		return nil, errMemoryArchive
	}

	objectStorage, err := storage.NewStorage(&storage.S3Config{
		Type:      storage.StorageType(ac.Type),
		Endpoint:  ac.Endpoint,
		AccessKey: ac.AccessKey,
		SecretKey: ac.SecretKey,
		UseSSL:    ac.UseSSL,
		Bucket:    ac.Bucket,
		Region:    ac.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	if err := objectStorage.EnsureBucket(ctx); err != nil {
		return nil, fmt.Errorf("failed to ensure storage bucket: %w", err)
	}
	return objectStorage, nil
}
