// Package main is the entry point of the bulletin engine CLI.
//
// Subcommands:
//   - migrate:  apply (or roll back) the database schema
//   - generate: run a batch bulletin generation for one year/term
//   - publish:  publish one bulletin to the student and guardians
//
// The CLI runs with admin rights; interactive surfaces (teacher or guardian
// access) sit in front of the application layer, not here.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/ecole-hub/ecole-bulletins/config"
	"github.com/ecole-hub/ecole-bulletins/internal/application/command"
	"github.com/ecole-hub/ecole-bulletins/internal/domain/ranking"
	"github.com/ecole-hub/ecole-bulletins/internal/domain/shared"
	"github.com/ecole-hub/ecole-bulletins/internal/infrastructure/audit"
	"github.com/ecole-hub/ecole-bulletins/internal/infrastructure/messaging"
	"github.com/ecole-hub/ecole-bulletins/internal/infrastructure/persistence/postgres"
	"github.com/ecole-hub/ecole-bulletins/internal/infrastructure/persistence/redis"
	"github.com/ecole-hub/ecole-bulletins/pkg/academic"
	"github.com/ecole-hub/ecole-bulletins/pkg/logger"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	// .env is a development convenience, absence is fine.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log := setupLogger(cfg)

	if len(args) == 0 {
		printUsage()
		return fmt.Errorf("missing subcommand")
	}

	switch args[0] {
	case "migrate":
		return runMigrate(ctx, cfg, log, args[1:])
	case "generate":
		return runGenerate(ctx, cfg, log, args[1:])
	case "publish":
		return runPublish(ctx, cfg, log, args[1:])
	default:
		printUsage()
		return fmt.Errorf("unknown subcommand %q", args[0])
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, `usage: bulletins <subcommand> [flags]

subcommands:
  migrate   apply the database schema (--down rolls back one migration)
  generate  generate bulletins for a school year and term
  publish   publish one bulletin by ID`)
}

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATE
// ══════════════════════════════════════════════════════════════════════════════

func runMigrate(ctx context.Context, cfg *config.Config, log *logger.Logger, args []string) error {
	fs := flag.NewFlagSet("migrate", flag.ExitOnError)
	down := fs.Bool("down", false, "roll back the most recent migration")
	if err := fs.Parse(args); err != nil {
		return err
	}

	conn, err := connectDatabase(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer conn.Close()

	migrator := postgres.NewMigrator(conn)
	if *down {
		log.Info("rolling back last migration")
		if err := migrator.Rollback(ctx); err != nil {
			return fmt.Errorf("rollback failed: %w", err)
		}
		log.Info("rollback completed")
		return nil
	}

	log.Info("applying migrations")
	if err := migrator.Migrate(ctx); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	log.Info("database schema is up to date")
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// GENERATE
// ══════════════════════════════════════════════════════════════════════════════

func runGenerate(ctx context.Context, cfg *config.Config, log *logger.Logger, args []string) error {
	fs := flag.NewFlagSet("generate", flag.ExitOnError)
	year := fs.String("year", academic.CurrentSchoolYear(), `school year, e.g. "2025-2026"`)
	term := fs.Int("term", academic.CurrentTerm(), "trimester, 1 to 3")
	classroom := fs.String("classroom", "", "restrict the run to one classroom by name")
	force := fs.Bool("force", false, "generate even when evaluation data is incomplete")
	actorID := fs.String("actor", "cli", "user ID recorded in the audit trail")
	if err := fs.Parse(args); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, cfg.Generation.RunTimeout)
	defer cancel()

	conn, err := connectDatabase(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer conn.Close()

	log.Info("checking database migrations")
	if err := postgres.NewMigrator(conn).Migrate(ctx); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	// Redis is optional: without it rankings are still persisted, only the
	// read cache and the cross-process run lock are lost.
	var rankingCache ranking.Cache = ranking.NopCache{}
	var genLock *redis.GenerationLock
	if !cfg.Redis.Disabled {
		cache, err := connectRedis(cfg, log)
		if err != nil {
			log.Warn("redis unavailable, continuing without cache", logger.Err(err))
		} else {
			defer cache.Close()
			if cfg.Features.IsEnabled(config.FeatureRankingCache, nil) {
				rankingCache = redis.NewRankingCache(cache)
			}
			if cfg.Features.IsEnabled(config.FeatureGenerationLock, nil) {
				genLock = redis.NewGenerationLock(cache)
			}
		}
	}

	schoolYear, err := shared.NewSchoolYear(*year)
	if err != nil {
		return err
	}
	trimester, err := shared.NewTerm(*term)
	if err != nil {
		return err
	}

	if genLock != nil {
		acquired, err := genLock.Acquire(ctx, schoolYear, trimester, *actorID)
		if err != nil {
			log.Warn("failed to acquire generation lock, continuing unlocked", logger.Err(err))
		} else if !acquired {
			return fmt.Errorf("another generation run for %s T%d is already in progress", schoolYear, trimester.Int())
		} else {
			defer func() {
				if err := genLock.Release(context.WithoutCancel(ctx), schoolYear, trimester); err != nil {
					log.Warn("failed to release generation lock", logger.Err(err))
				}
			}()
		}
	}

	bulletins := postgres.NewBulletinRepository(conn)
	scores := postgres.NewScoreStore(conn)

	// Events flow through the bus; the breaker-wrapped audit store is one
	// subscriber. Close drains pending handlers before the process exits.
	auditSink := audit.NewSink(postgres.NewAuditStore(conn), log)
	busCfg := messaging.DefaultConfig()
	busCfg.Logger = log
	bus := messaging.NewEventBus(busCfg)
	defer bus.Close()
	_ = bus.SubscribeAll(func(ctx context.Context, event shared.Event) error {
		auditSink.Record(ctx, event)
		return nil
	})

	handler := command.NewGenerateBulletinsHandler(bulletins, scores, rankingCache, bus, log, command.GenerateBulletinsHandlerConfig{
		MaxAttempts:   cfg.Generation.MaxAttempts,
		AutoSubmit:    cfg.Features.IsEnabled(config.FeatureGenerationAutoSubmit, nil),
		CarryComments: cfg.Features.IsEnabled(config.FeatureBulletinCarryComments, nil),
		AutoComment:   cfg.Features.IsEnabled(config.FeatureBulletinAutoComment, nil),
	})

	summary, err := handler.Handle(ctx, command.GenerateBulletinsCommand{
		SchoolYear:    schoolYear.String(),
		Term:          trimester.Int(),
		ClassroomName: *classroom,
		Force:         *force,
		Actor:         shared.NewAdminActor(shared.UserID(*actorID)),
	})
	if err != nil {
		return fmt.Errorf("generation run failed: %w", err)
	}

	log.Info("generation run completed",
		logger.SchoolYear(schoolYear.String()),
		logger.Term(trimester.Int()),
		logger.Int("classrooms", summary.Classrooms),
		logger.Int("created", summary.Created),
		logger.Int("updated", summary.Updated),
		logger.Int("skipped", summary.Skipped),
		logger.Int("errors", len(summary.Errors)),
		logger.Duration("duration", summary.Duration),
	)

	// Per-student failures are part of the summary, not a run failure: the
	// operator fixes the data and re-runs for the affected students.
	for _, genErr := range summary.Errors {
		log.Error("generation unit failed",
			logger.ClassroomID(genErr.ClassroomID),
			logger.StudentID(genErr.StudentID),
			logger.String("reason", genErr.Reason),
		)
	}
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// PUBLISH
// ══════════════════════════════════════════════════════════════════════════════

func runPublish(ctx context.Context, cfg *config.Config, log *logger.Logger, args []string) error {
	fs := flag.NewFlagSet("publish", flag.ExitOnError)
	bulletinID := fs.String("bulletin", "", "ID of the bulletin to publish")
	actorID := fs.String("actor", "cli", "user ID recorded in the audit trail")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *bulletinID == "" {
		return fmt.Errorf("--bulletin is required")
	}

	conn, err := connectDatabase(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer conn.Close()

	bulletins := postgres.NewBulletinRepository(conn)
	auditSink := audit.NewSink(postgres.NewAuditStore(conn), log)

	handler := command.NewPublishBulletinHandler(bulletins, auditSink, command.PublishBulletinHandlerConfig{
		RequireValidation: cfg.Workflow.RequireValidation,
	})

	result, err := handler.Handle(ctx, command.PublishBulletinCommand{
		BulletinID: *bulletinID,
		Actor:      shared.NewAdminActor(shared.UserID(*actorID)),
	})
	if err != nil {
		return fmt.Errorf("publish failed: %w", err)
	}

	log.Info("bulletin published",
		logger.String("bulletin_id", result.BulletinID),
		logger.String("status", result.Status),
	)
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// WIRING HELPERS
// ══════════════════════════════════════════════════════════════════════════════

func setupLogger(cfg *config.Config) *logger.Logger {
	opts := logger.DefaultOptions()
	opts.Level = logger.ParseLevel(cfg.Observability.LogLevel)
	if cfg.App.Debug {
		opts.Level = logger.LevelDebug
	}
	return logger.New(opts).With(logger.String("app", cfg.App.Name))
}

func connectDatabase(ctx context.Context, cfg *config.Config, log *logger.Logger) (*postgres.Connection, error) {
	log.Info("connecting to database")

	ctx, cancel := context.WithTimeout(ctx, cfg.Database.ConnectTimeout)
	defer cancel()

	if cfg.Database.URL != "" {
		conn, err := postgres.NewConnectionFromURL(ctx, cfg.Database.URL, postgres.PoolSettings{
			MaxConns:        int32(cfg.Database.MaxConns),
			MinConns:        int32(cfg.Database.MinConns),
			MaxConnLifetime: cfg.Database.ConnMaxLifetime,
			MaxConnIdleTime: cfg.Database.ConnMaxIdleTime,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		return conn, nil
	}

	dbCfg := postgres.DefaultConfig()
	dbCfg.MaxConns = int32(cfg.Database.MaxConns)
	dbCfg.MinConns = int32(cfg.Database.MinConns)
	dbCfg.MaxConnLifetime = cfg.Database.ConnMaxLifetime
	dbCfg.MaxConnIdleTime = cfg.Database.ConnMaxIdleTime
	dbCfg.ConnectTimeout = cfg.Database.ConnectTimeout

	conn, err := postgres.NewConnection(ctx, dbCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return conn, nil
}

func connectRedis(cfg *config.Config, log *logger.Logger) (*redis.Cache, error) {
	log.Info("connecting to redis")

	redisCfg := redis.DefaultConfig()
	redisCfg.Host = cfg.Redis.Host
	redisCfg.Port = cfg.Redis.Port
	redisCfg.Password = cfg.Redis.Password
	redisCfg.DB = cfg.Redis.DB
	redisCfg.PoolSize = cfg.Redis.PoolSize
	redisCfg.MinIdleConns = cfg.Redis.MinIdleConns
	redisCfg.DialTimeout = cfg.Redis.DialTimeout
	redisCfg.ReadTimeout = cfg.Redis.ReadTimeout
	redisCfg.WriteTimeout = cfg.Redis.WriteTimeout

	return redis.NewCache(redisCfg)
}
