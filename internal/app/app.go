// Package app wires every sagacore component into a single process:
// New() builds the dependency graph once, Start() launches background
// workers, Run() blocks serving the admin API, Close() tears everything
// down.
package app

import (
	"context"
	"fmt"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	goredis "github.com/redis/go-redis/v9"

	"github.com/yungbote/sagacore/internal/batch"
	"github.com/yungbote/sagacore/internal/batch/budget"
	"github.com/yungbote/sagacore/internal/engine"
	"github.com/yungbote/sagacore/internal/engine/inmem"
	"github.com/yungbote/sagacore/internal/engine/redisstream"
	"github.com/yungbote/sagacore/internal/engine/temporalengine"
	"github.com/yungbote/sagacore/internal/finalizer"
	"github.com/yungbote/sagacore/internal/httpapi"
	"github.com/yungbote/sagacore/internal/httpapi/handlers"
	"github.com/yungbote/sagacore/internal/httpapi/middleware"
	"github.com/yungbote/sagacore/internal/notify"
	"github.com/yungbote/sagacore/internal/orchestrator"
	"github.com/yungbote/sagacore/internal/platform/config"
	"github.com/yungbote/sagacore/internal/platform/lock"
	"github.com/yungbote/sagacore/internal/platform/logger"
	"github.com/yungbote/sagacore/internal/provider"
	"github.com/yungbote/sagacore/internal/retrier"
	"github.com/yungbote/sagacore/internal/runtime"
	"github.com/yungbote/sagacore/internal/sagatypes"
	"github.com/yungbote/sagacore/internal/stepexec"
	"github.com/yungbote/sagacore/internal/stepexec/examples"
)

// App holds every long-lived dependency the process (admin API plus saga
// workers) shares.
type App struct {
	Log   *logger.Logger
	Env   config.Env
	Struc config.Structural

	Provider provider.Provider
	Registry *stepexec.Registry
	Retrier  *retrier.Retrier
	Locker   *lock.AdvisoryLocker
	Notify   runtime.Notifier

	MainEngine  engine.Engine
	RetryEngine engine.Engine
	inmemEngine *inmem.Engine

	Batch *batch.BatchOrchestrator

	temporalRunner *temporalengine.Runner

	Server *httpapi.Server

	rdb     *goredis.Client
	pgxPool *pgxpool.Pool

	cancel context.CancelFunc
}

// New builds the full dependency graph in phase order: logger, config,
// storage, domain registry, engine selection, then the HTTP layer last
// since it depends on everything before it.
func New() (*App, error) {
	logMode := os.Getenv("SAGACORE_LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		return nil, fmt.Errorf("app: init logger: %w", err)
	}

	log.Info("Loading configuration...")
	env := config.LoadEnv(log)
	struc, err := config.LoadStructural(os.Getenv("SAGACORE_STRUCTURAL_CONFIG"), log)
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("app: load structural config: %w", err)
	}

	db, err := openDB(env.DatabaseDSN, env.SQLiteDSN, log)
	if err != nil {
		log.Sync()
		return nil, err
	}

	rdb, err := openRedis(env.RedisAddr, log)
	if err != nil {
		log.Warn("Redis unavailable; redisstream Engine and RedisNotifier disabled", "error", err)
		rdb = nil
	}

	pgxPool, err := openPGXPool(env.DatabaseDSN)
	if err != nil {
		log.Warn("Postgres advisory lock pool unavailable; running without cross-process locking", "error", err)
		pgxPool = nil
	}

	prov := provider.New(db, log, nil)

	registry := stepexec.NewRegistry()
	if err := examples.Register(registry); err != nil {
		log.Sync()
		return nil, fmt.Errorf("app: register demo steps: %w", err)
	}

	backoff := retrier.BackoffPolicy{
		MinBackoff: struc.BackoffMin,
		MaxBackoff: struc.BackoffMax,
		JitterFrac: struc.BackoffJitterFraction,
	}
	retr := retrier.New(struc.RetryMaxAttempts, backoff)

	var locker *lock.AdvisoryLocker
	if pgxPool != nil {
		locker = lock.NewAdvisoryLocker(pgxPool)
	}

	var notifier runtime.Notifier
	if rdb != nil {
		notifier = notify.NewRedisNotifier(rdb, "", log)
	} else {
		notifier = notify.LogNotifier{Log: log}
	}

	mainEngine, retryEngine, inmemEngine, temporalRunner, err := wireEngines(env, rdb, prov, registry, retr, notifier, log)
	if err != nil {
		log.Sync()
		return nil, err
	}

	ceilings := budget.Ceilings{
		MaxQueries:   10000,
		MaxMutations: 5000,
		MaxCPUTime:   struc.CPUBudgetCeiling,
		MaxHeapBytes: uint64(struc.HeapBudgetCeilingMB) * 1024 * 1024,
	}

	bo := &batch.BatchOrchestrator{
		Provider:    prov,
		MainEngine:  mainEngine,
		RetryEngine: retryEngine,
		Registry:    registry,
		Retrier:     retr,
		Locker:      locker,
		Notify:      notifier,
		Ceilings:    ceilings,
		Log:         log,
	}

	auth := middleware.NewAuthMiddleware(log, env.JWTSigningKey)
	server := httpapi.NewServer(httpapi.RouterConfig{
		Log:           log,
		Auth:          auth,
		HealthHandler: &handlers.HealthHandler{},
		JobHandler:    handlers.NewJobHandler(prov, retryEngine, log),
	})

	return &App{
		Log:            log,
		Env:            env,
		Struc:          struc,
		Provider:       prov,
		Registry:       registry,
		Retrier:        retr,
		Locker:         locker,
		Notify:         notifier,
		MainEngine:     mainEngine,
		RetryEngine:    retryEngine,
		inmemEngine:    inmemEngine,
		Batch:          bo,
		temporalRunner: temporalRunner,
		Server:         server,
		rdb:            rdb,
		pgxPool:        pgxPool,
	}, nil
}

// wireEngines picks a single Engine implementation for both the
// MainEngine and RetryEngine slots (they are the same interface injected
// twice), preferring Temporal when configured, then Redis Streams,
// falling back to the in-process demo Engine.
func wireEngines(
	env config.Env,
	rdb *goredis.Client,
	prov provider.Provider,
	registry *stepexec.Registry,
	retr *retrier.Retrier,
	notifier runtime.Notifier,
	log *logger.Logger,
) (engine.Engine, engine.Engine, *inmem.Engine, *temporalengine.Runner, error) {
	if env.TemporalAddress != "" {
		tc, err := temporalengine.NewClient(log)
		if err != nil {
			return nil, nil, nil, nil, fmt.Errorf("app: temporal client: %w", err)
		}
		if tc != nil {
			if err := temporalengine.EnsureNamespace(context.Background(), tc, env.TemporalNamespace, log); err != nil {
				log.Warn("Temporal namespace check failed", "error", err)
			}
			orch := orchestrator.New(registry, retr, finalizer.NewGuard(finalizer.NoOp{}, log), log)
			runner, err := temporalengine.NewRunner(log, tc, prov, orch, notifier, 10)
			if err != nil {
				return nil, nil, nil, nil, fmt.Errorf("app: temporal runner: %w", err)
			}
			eng := temporalengine.New(tc, env.TemporalTaskQueue)
			return eng, eng, nil, runner, nil
		}
	}

	if rdb != nil {
		eng := redisstream.New(rdb, "sagacore:jobs:")
		return eng, eng, nil, nil, nil
	}

	demo := inmem.New(64)
	return demo, demo, demo, nil, nil
}

// Start launches background workers: the in-process demo consumption
// loop (inmem Engine only) and the Temporal worker process (Temporal
// Engine only). redisstream has no background loop here, and nothing in
// this module calls its Consume side.
func (a *App) Start(ctx context.Context) {
	if a == nil || a.cancel != nil {
		return
	}
	runCtx, cancel := context.WithCancel(ctx)
	a.cancel = cancel

	if a.inmemEngine != nil {
		go a.runInmemWorker(runCtx)
	}
	if a.temporalRunner != nil {
		go func() {
			if err := a.temporalRunner.Start(runCtx); err != nil && runCtx.Err() == nil {
				a.Log.Error("Temporal worker stopped", "error", err)
			}
		}()
	}
}

// runInmemWorker drains the demo Engine's channel and hands each
// delivered job to the batch orchestrator one at a time, the simplest
// possible consumption loop for the non-durable demo transport.
func (a *App) runInmemWorker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case job, ok := <-a.inmemEngine.Jobs():
			if !ok {
				return
			}
			if job == nil {
				continue
			}
			if _, err := a.Batch.RunBatch(ctx, []*sagatypes.Job{job}, a.Struc.SafetyFactor); err != nil {
				a.Log.Error("Batch run failed", "job_id", job.ID, "error", err)
			}
		}
	}
}

// Run blocks serving the admin API on the port in Env.AdminPort (default 8080).
func (a *App) Run() error {
	if a == nil || a.Server == nil {
		return fmt.Errorf("app: not initialized")
	}
	addr := a.Env.AdminPort
	if addr == "" {
		addr = "8080"
	}
	if addr[0] != ':' {
		addr = ":" + addr
	}
	return a.Server.Run(addr)
}

// Close stops background workers and flushes logs.
func (a *App) Close() {
	if a == nil {
		return
	}
	if a.cancel != nil {
		a.cancel()
		a.cancel = nil
	}
	if a.rdb != nil {
		_ = a.rdb.Close()
	}
	if a.pgxPool != nil {
		a.pgxPool.Close()
	}
	if a.Log != nil {
		a.Log.Sync()
	}
}
