package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/segyhp/servicing-engine/internal/cache"
	"github.com/segyhp/servicing-engine/internal/config"
	"github.com/segyhp/servicing-engine/internal/repository"
	"github.com/segyhp/servicing-engine/internal/service"
	"github.com/segyhp/servicing-engine/pkg/logger"
)

// reprocessTimeout bounds a single batch run
const reprocessTimeout = 30 * time.Minute

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	zapLogger, err := logger.New(cfg.LoggerConfig())
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer zapLogger.Sync()
	zap.ReplaceGlobals(zapLogger)

	location, err := time.LoadLocation(cfg.Scheduler.Timezone)
	if err != nil {
		zapLogger.Fatal("invalid scheduler timezone", zap.String("timezone", cfg.Scheduler.Timezone), zap.Error(err))
	}

	db, err := sqlx.Connect("postgres", cfg.Database.DSN())
	if err != nil {
		zapLogger.Fatal("failed to initialize database", zap.Error(err))
	}
	defer db.Close()
	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.Database.ConnMaxLifetime)

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()

	servicingService, err := service.NewServicingService(
		repository.NewLoanRepository(db),
		repository.NewTransactionRepository(db),
		cache.NewOutstandingCache(redisClient, cfg.Business.OutstandingCacheTTL),
		cache.NewLocker(redisClient, cfg.Business.LoanLockTTL),
		cfg,
		zapLogger,
	)
	if err != nil {
		zapLogger.Fatal("failed to initialize servicing service", zap.Error(err))
	}

	cronLog := cronLogger{sugar: zapLogger.Sugar()}
	c := cron.New(
		cron.WithParser(config.CronParser()),
		cron.WithLocation(location),
		cron.WithLogger(cronLog),
		cron.WithChain(cron.Recover(cronLog), cron.SkipIfStillRunning(cronLog)),
	)

	if _, err := c.AddFunc(cfg.Scheduler.ReprocessSpec, func() {
		reprocessActiveLoans(servicingService, zapLogger)
	}); err != nil {
		zapLogger.Fatal("failed to schedule reprocess job", zap.String("spec", cfg.Scheduler.ReprocessSpec), zap.Error(err))
	}

	c.Start()
	zapLogger.Info("scheduler started",
		zap.String("reprocess_spec", cfg.Scheduler.ReprocessSpec),
		zap.String("timezone", location.String()),
	)

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zapLogger.Info("shutting down scheduler")
	<-c.Stop().Done()
	zapLogger.Info("scheduler stopped")
}

// reprocessActiveLoans brings every active loan up to date and reports delinquent ones
func reprocessActiveLoans(svc *service.ServicingService, logger *zap.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), reprocessTimeout)
	defer cancel()

	start := time.Now()
	summary, err := svc.ReprocessActiveLoans(ctx)
	if err != nil {
		logger.Error("reprocess job failed", zap.Error(err))
		return
	}

	for _, loanID := range summary.Delinquent {
		logger.Warn("loan is delinquent", zap.String("loan_id", loanID))
	}

	logger.Info("reprocess job finished",
		zap.Int("processed", summary.Processed),
		zap.Int("failed", summary.Failed),
		zap.Int("delinquent", len(summary.Delinquent)),
		zap.Duration("duration", time.Since(start)),
	)
}

// cronLogger routes cron's own logging through zap
type cronLogger struct {
	sugar *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.sugar.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.sugar.Errorw(msg, append(keysAndValues, "error", err)...)
}
