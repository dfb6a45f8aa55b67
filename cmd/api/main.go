package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
	"github.com/riverqueue/river/rivermigrate"
	"github.com/rs/cors"

	"github.com/credittasks/backend/internal/account"
	"github.com/credittasks/backend/internal/auth"
	"github.com/credittasks/backend/internal/config"
	"github.com/credittasks/backend/internal/execution"
	"github.com/credittasks/backend/internal/logger"
	"github.com/credittasks/backend/internal/repository"
	"github.com/credittasks/backend/internal/router"
	"github.com/credittasks/backend/internal/store"
	"github.com/credittasks/backend/internal/store/memstore"
	"github.com/credittasks/backend/internal/tasks"
	"github.com/credittasks/backend/migrations"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}
	log := logger.Setup(cfg.Server.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	retrier := store.NewRetrier(log, store.WithMaxAttempts(cfg.Execution.MaxAttempts))
	engineOpts := []execution.Option{
		execution.WithRetrier(retrier),
		execution.WithFinalizeGrace(cfg.Execution.FinalizeGrace),
	}

	var (
		st          store.Store
		riverClient *river.Client[pgx.Tx]
		engine      *execution.Engine
	)

	if cfg.Database.URL == "" {
		log.Warn("No database URL configured; using the in-memory store")
		st = memstore.New()
		engine = execution.NewEngine(st, log, engineOpts...)
	} else {
		pool, err := openPool(ctx, cfg.Database)
		if err != nil {
			log.Error("Cannot reach PostgreSQL", "error", err)
			os.Exit(1)
		}
		defer pool.Close()
		log.Info("Connected to PostgreSQL database successfully!")

		db := stdlib.OpenDBFromPool(pool)
		if err := migrations.Up(ctx, db, log); err != nil {
			log.Error("Schema migration failed", "error", err)
			os.Exit(1)
		}
		_ = db.Close()

		migrator, err := rivermigrate.New(riverpgxv5.New(pool), nil)
		if err != nil {
			log.Error("Failed to create River migrator", "error", err)
			os.Exit(1)
		}
		if _, err := migrator.Migrate(ctx, rivermigrate.DirectionUp, nil); err != nil {
			log.Error("River migrate up failed", "error", err)
			os.Exit(1)
		}
		log.Info("River migrations applied")

		st = repository.NewStore(pool)

		// The insert func is set after the River client is created (breaks init cycle).
		var insertMu sync.Mutex
		var insertFn execution.InsertFinalizeTxFunc
		scheduler := execution.NewRiverScheduler(func(ctx context.Context, tx pgx.Tx, args execution.FinalizeTaskArgs, opts *river.InsertOpts) error {
			insertMu.Lock()
			fn := insertFn
			insertMu.Unlock()
			if fn == nil {
				return errors.New("river insert not wired")
			}
			return fn(ctx, tx, args, opts)
		})
		engine = execution.NewEngine(st, log, append(engineOpts, execution.WithScheduler(scheduler))...)

		workers := river.NewWorkers()
		river.AddWorker(workers, execution.NewFinalizeTaskWorker(engine))
		riverClient, err = river.NewClient(riverpgxv5.New(pool), &river.Config{
			Queues: map[string]river.QueueConfig{
				river.QueueDefault: {MaxWorkers: cfg.Execution.MaxWorkers},
			},
			Workers: workers,
			Logger:  log,
		})
		if err != nil {
			log.Error("Failed to create River client", "error", err)
			os.Exit(1)
		}

		insertMu.Lock()
		insertFn = func(ctx context.Context, tx pgx.Tx, args execution.FinalizeTaskArgs, opts *river.InsertOpts) error {
			_, err := riverClient.InsertTx(ctx, tx, args, opts)
			return err
		}
		insertMu.Unlock()

		if err := riverClient.Start(ctx); err != nil {
			log.Error("Failed to start River client", "error", err)
			os.Exit(1)
		}
	}

	go engine.RunRecovery(ctx, cfg.Execution.RecoveryInterval)

	authSvc := auth.NewService(st, auth.Config{
		Secret:   []byte(cfg.Auth.JWTSecret),
		TokenTTL: cfg.Auth.TokenTTL,
		Issuer:   cfg.Auth.Issuer,
		Audience: cfg.Auth.Audience,
	})
	apiRouter := router.New(router.Handlers{
		Auth:    auth.NewHandler(authSvc, log),
		Account: account.NewHandler(account.NewService(st, retrier), log),
		Tasks:   tasks.NewHandler(tasks.NewService(st, engine), log),
	}, authSvc)

	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   cfg.Server.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}).Handler(apiRouter)

	srv := &http.Server{
		Addr:              "0.0.0.0:" + strconv.Itoa(cfg.Server.Port),
		Handler:           corsHandler,
		ReadHeaderTimeout: 10 * time.Second,
		// Execute holds the request open for up to 40 simulated seconds.
		WriteTimeout: 2 * time.Minute,
		IdleTimeout:  2 * time.Minute,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("HTTP shutdown failed", "error", err)
		}
		if riverClient != nil {
			if err := riverClient.Stop(shutdownCtx); err != nil {
				log.Error("River client stop failed", "error", err)
			}
		}
	}()

	log.Info("Starting HTTP server", "addr", srv.Addr, "in_memory", cfg.Database.URL == "")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error("HTTP server failed", "error", err)
		os.Exit(1)
	}
}

func openPool(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, err
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, err
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}
