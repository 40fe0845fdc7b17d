package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	job_scheduler "github.com/TimeWtr/job_scheduler"
	"github.com/TimeWtr/job_scheduler/admin"
	"github.com/TimeWtr/job_scheduler/config"
	"github.com/TimeWtr/job_scheduler/jobs"
	"github.com/TimeWtr/job_scheduler/metrics"
	"github.com/TimeWtr/job_scheduler/repository/cache"
	"github.com/TimeWtr/job_scheduler/repository/dao"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

const (
	statsRetention  = 7 * 24 * time.Hour
	lockTTL         = 30 * time.Minute
	shutdownTimeout = 30 * time.Second
)

// clusterStore 集群协调存储同时提供Coordinator与Locker
type clusterStore interface {
	job_scheduler.Coordinator
	job_scheduler.Locker
}

func serveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the engine, schedule jobs and serve the admin API",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx)
		},
	}
}

func newZap() (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func openDB(cfg config.DatabaseConfig) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.Driver {
	case "sqlite":
		dialector = sqlite.Open(cfg.DSN)
	case "mysql":
		dialector = mysql.Open(cfg.DSN)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
	return gorm.Open(dialector, &gorm.Config{})
}

func openClusterStore(cfg *config.Config, db *gorm.DB) (clusterStore, error) {
	if cfg.Coordinator == config.CoordinatorRedis {
		client, err := cache.NewClient(cfg.Redis)
		if err != nil {
			return nil, err
		}
		return cache.NewCoordinator(client), nil
	}
	return dao.NewLockDAO(db), nil
}

func serve(ctx context.Context) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}

	zl, err := newZap()
	if err != nil {
		return err
	}
	defer func() { _ = zl.Sync() }()
	logger := job_scheduler.NewZapLogger(zl)

	if cfg.GeneratedInstanceID {
		logger.Warn("engine.instance_id is not configured, start jitter will change on restart",
			job_scheduler.String("instance_id", cfg.Engine.InstanceID))
	}

	tp, err := newTracerProvider(cfg.Tracing, cfg.Engine.InstanceID, os.Stdout)
	if err != nil {
		return err
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if serr := tp.Shutdown(sctx); serr != nil {
			logger.Warn("tracer provider shutdown", job_scheduler.Error(serr))
		}
	}()
	tracer := tp.Tracer(job_scheduler.TracerName)

	db, err := openDB(cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	if err = dao.AutoMigrate(db); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}

	store, err := openClusterStore(cfg, db)
	if err != nil {
		return err
	}

	params := cfg.Parameters()
	if cfgFile != "" {
		params.Watch(func() {
			logger.Info("parameters reloaded")
		})
	}

	host := job_scheduler.NewHost(cfg.Engine.Name, cfg.Engine.InstanceID)
	host.SetRegistered(cfg.Engine.Registered)

	registry := prometheus.NewRegistry()
	statsDAO := dao.NewStatsDAO(db, cfg.Engine.InstanceID)
	sink := job_scheduler.MultiSink{metrics.NewSink(registry), statsDAO}

	pool := job_scheduler.NewPoolScheduler(job_scheduler.WithSchedulerLogger(logger))
	manager := job_scheduler.NewJobManager(logger)
	registry.MustRegister(metrics.NewJobCollector(manager))

	purge := jobs.NewPurge(statsDAO, statsRetention, logger)
	heartbeat := jobs.NewHeartbeat(dao.NewHostDAO(db), host)
	bodies := map[job_scheduler.Executor]job_scheduler.Body{
		// 清理只需要集群中的一个节点执行
		purge:     job_scheduler.WithClusterLock(store, purge.Name(), cfg.Engine.InstanceID, lockTTL, purge.Execute),
		heartbeat: heartbeat.Execute,
	}
	for exec, body := range bodies {
		job, err := job_scheduler.NewJob(cfg.Definition(exec.Name(), exec.Defaults()), body, host, store, pool, params,
			job_scheduler.WithLogger(logger), job_scheduler.WithStatisticSink(sink), job_scheduler.WithTracer(tracer))
		if err != nil {
			return err
		}
		if err = manager.Register(job); err != nil {
			return err
		}
	}

	host.SetStarted(true)
	if err = manager.StartJobs(ctx); err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              cfg.HTTP.Address,
		Handler:           admin.NewRouter(admin.NewManagerService(manager), registry, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Info("admin api listening", job_scheduler.String("addr", cfg.HTTP.Address))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
	case err = <-errCh:
		logger.Error("admin api failed", job_scheduler.Error(err))
	}

	logger.Info("shutting down")
	host.SetStarted(false)
	manager.StopJobs()

	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if serr := srv.Shutdown(sctx); serr != nil {
		logger.Warn("admin api shutdown", job_scheduler.Error(serr))
	}
	if serr := pool.Shutdown(sctx); serr != nil {
		logger.Warn("scheduler pool shutdown", job_scheduler.Error(serr))
	}
	return err
}
