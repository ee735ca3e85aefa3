package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/foldershare/sharer/application/engine"
	"github.com/foldershare/sharer/application/matcher"
	"github.com/foldershare/sharer/domain/model"
	"github.com/foldershare/sharer/domain/port"
	"github.com/foldershare/sharer/infrastructure/eventstream"
	"github.com/foldershare/sharer/infrastructure/googledrive"
	"github.com/foldershare/sharer/infrastructure/history"
	"github.com/foldershare/sharer/infrastructure/lifecycle"
	"github.com/foldershare/sharer/infrastructure/localstore"
	"github.com/foldershare/sharer/infrastructure/postgres"
	"github.com/foldershare/sharer/infrastructure/redislock"
	"github.com/foldershare/sharer/infrastructure/runrepo"
	"github.com/foldershare/sharer/infrastructure/worker"
	"github.com/foldershare/sharer/interfaces/control"
	"github.com/foldershare/sharer/pkg/config"
	"github.com/foldershare/sharer/pkg/logger"
	"github.com/foldershare/sharer/pkg/scheduler"
)

func main() {
	folderMapPath := flag.String("folder-map", "", "path to the folder-map JSON input artifact")
	recipientsPath := flag.String("recipients", "", "path to the recipient-cache JSON input artifact")
	resultsPath := flag.String("results", "results.json", "path to write the final results JSON file")
	ttyDashboard := flag.Bool("tty-dashboard", false, "request richer console rendering; only logged, output stays line-delimited events")
	flag.Parse()

	if err := logger.Init("logs", true); err != nil {
		fmt.Fprintf(os.Stderr, "warning: failed to initialize logger: %v\n", err)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.StartupError("config_invalid", "configuration failed validation", err, nil)
		os.Exit(1)
	}

	if cfg.Worker.ScheduleCron != "" {
		if err := scheduler.ValidateCronExpression(cfg.Worker.ScheduleCron); err != nil {
			logger.StartupError("schedule_cron_invalid", "SCHEDULE_CRON failed to parse", err, nil)
			os.Exit(1)
		}
	}

	if *ttyDashboard {
		logger.Startup("tty_dashboard_requested", "tty dashboard rendering requested; falling back to line-delimited events", nil)
	}

	ctx := context.Background()
	remote, err := googledrive.New(ctx, cfg.Drive)
	if err != nil {
		logger.StartupError("drive_client_init_failed", "failed to build remote client", err, nil)
		os.Exit(1)
	}

	runRepo, closeDB := buildRunRepository(cfg.Postgres)
	if closeDB != nil {
		defer closeDB()
	}

	redisClient := buildRedisClient(cfg.Redis)
	lock := redislock.New(redisClient, cfg.Redis.LockKey, cfg.Redis.LockTTL)

	switch {
	case cfg.Control.Addr != "":
		runControlPlane(cfg, remote, runRepo, redisClient, lock)
	case cfg.Worker.ScheduleCron != "":
		runScheduled(cfg, remote, runRepo, lock, *folderMapPath, *recipientsPath, *resultsPath)
	default:
		os.Exit(runOnce(cfg, remote, runRepo, redisClient, lock, *folderMapPath, *recipientsPath, *resultsPath))
	}
}

func buildRunRepository(cfg config.PostgresConfig) (port.RunRepository, func()) {
	if cfg.DSN == "" {
		return runrepo.NoOp{}, nil
	}
	db, err := postgres.NewDatabase(cfg.DSN)
	if err != nil {
		logger.StartupError("postgres_init_failed", "failed to connect to postgres, falling back to no-op run history", err, nil)
		return runrepo.NoOp{}, nil
	}
	if err := postgres.Migrate(db); err != nil {
		logger.StartupError("postgres_migrate_failed", "failed to migrate run_records table", err, nil)
		return runrepo.NoOp{}, nil
	}
	sqlDB, _ := db.DB()
	return postgres.NewRunRepository(db), func() {
		if sqlDB != nil {
			sqlDB.Close()
		}
	}
}

func buildRedisClient(cfg config.RedisConfig) *goredis.Client {
	if cfg.Addr == "" {
		return nil
	}
	return goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
}

// buildEngine wires the fixed collaborators (remote client, run repository)
// with a fresh matcher, pool, history store, and emitter — the per-run
// components the Engine owns for exactly one lifecycle.
func buildEngine(cfg *config.Config, remote port.RemoteClient, runRepo port.RunRepository, folders model.FolderMap, historyPath string, sink port.Sink) *engine.Engine {
	m := matcher.New(folders)
	pool := worker.New(remote, worker.Config{
		Size:           cfg.Worker.PoolSize,
		InitTimeout:    cfg.Worker.InitTimeout,
		CallTimeout:    cfg.Worker.CallTimeout,
		RateLimitSleep: cfg.Worker.RateLimitSleep,
	})
	store := history.New(historyPath)
	emitter := eventstream.New(sink)

	return engine.New(m, pool, remote, store, emitter, runRepo, engine.Config{
		DocumentID:      cfg.Sheet.DocumentID,
		SheetTitle:      cfg.Sheet.SheetTitle,
		CheckpointEvery: cfg.Worker.HistoryBatchSize,
	})
}

// lockRefreshInterval derives a KeepAlive cadence from the configured TTL —
// a third of the TTL leaves two missed refreshes of slack before the lock
// would actually expire out from under a still-running process.
func lockRefreshInterval(ttl time.Duration) time.Duration {
	interval := ttl / 3
	if interval < 5*time.Second {
		interval = 5 * time.Second
	}
	return interval
}

func buildSink(cfg config.RedisConfig, redisClient *goredis.Client) port.Sink {
	stdout := eventstream.NewStdoutSink(os.Stdout)
	if redisClient == nil {
		return stdout
	}
	return eventstream.NewRedisRelaySink(stdout, redisClient, cfg.EventChannel)
}

func runOnce(cfg *config.Config, remote port.RemoteClient, runRepo port.RunRepository, redisClient *goredis.Client, lock *redislock.Lock, folderMapPath, recipientsPath, resultsPath string) int {
	if folderMapPath == "" || recipientsPath == "" {
		logger.StartupError("missing_input_flags", "--folder-map and --recipients are required for a direct run", nil, nil)
		return 1
	}

	folders, err := localstore.LoadFolderMap(folderMapPath)
	if err != nil {
		logger.StartupError("folder_map_load_failed", "failed to load folder map", err, nil)
		return 1
	}
	recipients, err := localstore.LoadRecipients(recipientsPath)
	if err != nil {
		logger.StartupError("recipients_load_failed", "failed to load recipient cache", err, nil)
		return 1
	}

	ctx, stop := lifecycle.WithSignalCancel(context.Background())
	defer stop()

	if err := lock.Acquire(ctx); err != nil {
		logger.StartupError("run_lock_failed", "could not acquire distributed run lock", err, nil)
		return 1
	}
	defer lock.Release(context.Background())
	go lock.KeepAlive(ctx, lockRefreshInterval(cfg.Redis.LockTTL))

	e := buildEngine(cfg, remote, runRepo, folders, cfg.Worker.HistoryFilePath, buildSink(cfg.Redis, redisClient))

	result, runErr := e.Run(ctx, recipients)

	if err := localstore.WriteResults(resultsPath, result.ShareResults, result.ErrorLog, result.Counters, cfg.Worker.PoolSize, cfg.Worker.HistoryBatchSize, result.StartTime, result.EndTime); err != nil {
		logger.StartupError("results_write_failed", "failed to write results file", err, nil)
		return 1
	}

	if runErr != nil {
		logger.StartupError("run_failed", "run ended in fatal error", runErr, nil)
		return 1
	}
	if !result.Completed {
		logger.Startup("run_interrupted", "run was interrupted before completion; history preserved for resume", nil)
		return 1
	}

	logger.Startup("run_completed", "run completed cleanly", map[string]interface{}{
		"processed":  result.Counters.Processed,
		"successful": result.Counters.Successful,
		"failed":     result.Counters.Failed,
		"errors":     result.Counters.Errors,
	})
	return 0
}

func runScheduled(cfg *config.Config, remote port.RemoteClient, runRepo port.RunRepository, lock *redislock.Lock, folderMapPath, recipientsPath, resultsPath string) {
	sched := scheduler.NewEventScheduler()
	err := sched.AddJob("folder-share-run", cfg.Worker.ScheduleCron, func() {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		if err := lock.Acquire(ctx); err != nil {
			logger.Startup("scheduled_run_skipped", "skipping scheduled run, another run holds the lock", map[string]interface{}{"error": err.Error()})
			return
		}
		defer lock.Release(context.Background())
		go lock.KeepAlive(ctx, lockRefreshInterval(cfg.Redis.LockTTL))

		redisClient := buildRedisClient(cfg.Redis)
		folders, loadErr := localstore.LoadFolderMap(folderMapPath)
		if loadErr != nil {
			logger.StartupError("scheduled_folder_map_failed", "failed to load folder map for scheduled run", loadErr, nil)
			return
		}
		recipients, loadErr := localstore.LoadRecipients(recipientsPath)
		if loadErr != nil {
			logger.StartupError("scheduled_recipients_failed", "failed to load recipient cache for scheduled run", loadErr, nil)
			return
		}

		e := buildEngine(cfg, remote, runRepo, folders, cfg.Worker.HistoryFilePath, buildSink(cfg.Redis, redisClient))
		result, runErr := e.Run(ctx, recipients)
		if writeErr := localstore.WriteResults(resultsPath, result.ShareResults, result.ErrorLog, result.Counters, cfg.Worker.PoolSize, cfg.Worker.HistoryBatchSize, result.StartTime, result.EndTime); writeErr != nil {
			logger.StartupError("scheduled_results_write_failed", "failed to write results file for scheduled run", writeErr, nil)
		}
		if runErr != nil {
			logger.StartupError("scheduled_run_failed", "scheduled run ended in fatal error", runErr, nil)
		}
	})
	if err != nil {
		logger.StartupError("schedule_job_failed", "failed to register scheduled job", err, nil)
		os.Exit(1)
	}

	sched.Start()
	logger.Startup("scheduler_running", "scheduled runs active, waiting for cron cadence", map[string]interface{}{"cron": cfg.Worker.ScheduleCron})

	ctx, stop := lifecycle.WithSignalCancel(context.Background())
	defer stop()
	<-ctx.Done()
	sched.Stop()
}

func runControlPlane(cfg *config.Config, remote port.RemoteClient, runRepo port.RunRepository, redisClient *goredis.Client, lock *redislock.Lock) {
	var runs *control.RunManager
	runs = control.NewRunManager(func(runID string, folders model.FolderMap) (*engine.Engine, func(), error) {
		if err := lock.Acquire(context.Background()); err != nil {
			return nil, nil, err
		}
		keepAliveCtx, stopKeepAlive := context.WithCancel(context.Background())
		go lock.KeepAlive(keepAliveCtx, lockRefreshInterval(cfg.Redis.LockTTL))
		release := func() {
			stopKeepAlive()
			lock.Release(context.Background())
		}

		sink := control.NewObserverSink(buildSink(cfg.Redis, redisClient), runs, runID)
		return buildEngine(cfg, remote, runRepo, folders, cfg.Worker.HistoryFilePath+"."+runID, sink), release, nil
	})

	app := control.NewServer(cfg.JWT, runs, redisClient, cfg.Redis.EventChannel)

	logger.Startup("control_plane_starting", "control-plane http surface starting", map[string]interface{}{"addr": cfg.Control.Addr})
	if err := app.Listen(cfg.Control.Addr); err != nil {
		logger.StartupError("control_plane_failed", "control-plane server exited", err, nil)
		os.Exit(1)
	}
}
