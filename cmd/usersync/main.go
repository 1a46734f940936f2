package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/pflag"

	"github.com/gogotex/gogotex/backend/user-sync/internal/config"
	"github.com/gogotex/gogotex/backend/user-sync/internal/directory"
	"github.com/gogotex/gogotex/backend/user-sync/internal/runlock"
	"github.com/gogotex/gogotex/backend/user-sync/internal/runs"
	"github.com/gogotex/gogotex/backend/user-sync/internal/storage"
	"github.com/gogotex/gogotex/backend/user-sync/internal/syncjob"
	"github.com/gogotex/gogotex/backend/user-sync/internal/users"
	"github.com/gogotex/gogotex/backend/user-sync/pkg/logger"
	"github.com/gogotex/gogotex/backend/user-sync/pkg/metrics"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := config.Flags()
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return 0
		}
		fmt.Fprintln(os.Stderr, err)
		return 2
	}

	cfg, err := config.LoadConfig(fs)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		return 2
	}
	logger.Init(cfg.Log.Level)
	logger.SetFormat(cfg.Log.Format)
	logger.Debugf("startup: LOG_LEVEL=%s write_mode=%s search_failure=%s", logger.LevelString(), cfg.Sync.WriteMode, cfg.LDAP.SearchFailure)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Sync.ShowRun != "" {
		return showRun(ctx, cfg)
	}

	reg := prometheus.NewRegistry()
	metrics.RegisterCollectors(reg)

	job := &syncjob.Job{
		Reader: directory.NewReader(cfg.LDAP, nil),
		OpenStore: func(ctx context.Context) (syncjob.UserWriter, func(context.Context) error, error) {
			store, err := users.OpenStore(ctx, cfg.MongoDB)
			if err != nil {
				return nil, nil, err
			}
			return users.NewService(store.Repo, cfg.Sync.WriteMode), store.Close, nil
		},
		In:  os.Stdin,
		Out: os.Stdout,
		Options: syncjob.Options{
			AssumeYes: cfg.Sync.AssumeYes,
			DryRun:    cfg.Sync.DryRun,
			WriteMode: cfg.Sync.WriteMode,
			BaseDN:    cfg.LDAP.BaseDN,
		},
	}

	if cfg.Redis.Host != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Host + ":" + cfg.Redis.Port,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()
		job.Lock = runlock.NewLocker(rdb, cfg.Redis.LockKey, cfg.Redis.LockTTL)
		logger.Infof("run lock enabled (%s:%s key=%s)", cfg.Redis.Host, cfg.Redis.Port, cfg.Redis.LockKey)
	}

	if cfg.MinIO.Enabled() {
		archive, err := storage.NewMinIOStorage(ctx, cfg.MinIO)
		if err != nil {
			logger.Warnf("snapshot archive disabled: %v", err)
		} else {
			job.Archive = archive
		}
	}

	if cfg.Sync.RecordRuns {
		job.Recorder = runStore(cfg)
	}

	_, runErr := job.Run(ctx)

	if err := metrics.WriteTextfile(cfg.Metrics.TextfilePath, reg); err != nil {
		logger.Warnf("write metrics textfile: %v", err)
	}

	if runErr != nil {
		return 1
	}
	if ctx.Err() != nil {
		return 130
	}
	return 0
}

func runStore(cfg *config.Config) *runs.Store {
	return &runs.Store{
		MongoURI:   cfg.MongoDB.URI,
		Database:   cfg.MongoDB.Database,
		Collection: cfg.MongoDB.RunsCollection,
		Timeout:    cfg.MongoDB.Timeout,
	}
}

// showRun prints a recorded run and its snapshot, when the archive is configured.
func showRun(ctx context.Context, cfg *config.Config) int {
	var snapshots syncjob.SnapshotLoader
	if cfg.MinIO.Enabled() {
		archive, err := storage.NewMinIOStorage(ctx, cfg.MinIO)
		if err != nil {
			logger.Warnf("snapshot archive unavailable: %v", err)
		} else {
			snapshots = archive
		}
	}
	if err := syncjob.ShowRun(ctx, os.Stdout, cfg.Sync.ShowRun, runStore(cfg), snapshots); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}
