package main

import (
	"context"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/careslot/schedule-engine/internal/config"
	"github.com/careslot/schedule-engine/internal/db"
	"github.com/careslot/schedule-engine/internal/logging"
	"github.com/careslot/schedule-engine/internal/queue"
	redisclient "github.com/careslot/schedule-engine/internal/redis"
	"github.com/careslot/schedule-engine/internal/schedule"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLog := logging.New("dev", "slot-worker")
		bootLog.Fatal().Err(err).Msg("config load error")
	}

	log := logging.New(cfg.Env, "slot-worker")
	log.Info().
		Str("env", cfg.Env).
		Int("concurrency", cfg.WorkerConcurrency).
		Int("horizon_days", cfg.HorizonDays).
		Msg("slot-worker starting up")

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Connect Postgres
	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN)
	cancelPg()
	if err != nil {
		log.Fatal().Err(err).Msg("postgres connection error")
	}
	defer pgPool.Close()
	log.Info().Msg("connected to Postgres")

	rdb, err := redisclient.Connect(cfg.RedisAddr, cfg.RedisUsername, cfg.RedisPassword)
	if err != nil {
		log.Fatal().Err(err).Msg("redis connection error")
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			log.Error().Err(err).Msg("error closing redis")
		}
	}()
	log.Info().Msg("connected to Redis")

	backfillLoc, err := time.LoadLocation(cfg.HospitalTZ)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid hospital timezone")
	}

	repo := schedule.NewPgRepository(pgPool)
	q := queue.New(rdb, "engine")
	locker := redisclient.NewRedisLocker(rdb, cfg.JobLockTTL)

	qw := queue.NewWorker(q, locker, queue.WorkerConfig{
		Concurrency:  cfg.WorkerConcurrency,
		PollInterval: cfg.PollInterval,
		JobTimeout:   cfg.JobTimeout,
		MaxAttempts:  cfg.MaxJobAttempts,
		RetryBackoff: cfg.RetryBackoff,
	}, log)

	gen := schedule.NewGenerationWorker(repo, q, cfg.HorizonDays, log)
	gen.Register(qw)

	trigger, err := schedule.NewBackfillTrigger(repo, q, cfg.BackfillAt, backfillLoc, cfg.BackfillDedupDaily, log)
	if err != nil {
		log.Fatal().Err(err).Msg("backfill trigger config error")
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		qw.Run(rootCtx)
	}()
	go func() {
		defer wg.Done()
		trigger.Run(rootCtx)
	}()

	<-rootCtx.Done()
	log.Info().Msg("shutdown signal received")
	wg.Wait()
	log.Info().Msg("slot-worker stopped")
}
