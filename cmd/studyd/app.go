package main

import (
	"context"
	"fmt"
	"time"

	"github.com/MarkoPoloResearchLab/studyledger/internal/httpapi"
	"github.com/MarkoPoloResearchLab/studyledger/internal/notify"
	"github.com/MarkoPoloResearchLab/studyledger/internal/oplog"
	"github.com/MarkoPoloResearchLab/studyledger/internal/store/gormstore"
	"github.com/MarkoPoloResearchLab/studyledger/internal/store/pgstore"
	"github.com/MarkoPoloResearchLab/studyledger/pkg/ledger"
	"github.com/MarkoPoloResearchLab/studyledger/pkg/rewards"
	"github.com/MarkoPoloResearchLab/studyledger/pkg/study"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// sessionClock keeps the monotonic reading; UTC conversion happens only where
// timestamps are persisted or bucketed into days and months.
var sessionClock = time.Now

type application struct {
	logger   *zap.Logger
	driver   string
	services httpapi.Services
	closers  []func() error
}

func (app *application) Close() {
	for index := len(app.closers) - 1; index >= 0; index-- {
		if err := app.closers[index](); err != nil {
			app.logger.Warn("shutdown cleanup failed", zap.Error(err))
		}
	}
	_ = app.logger.Sync()
}

// openApplication connects storage and sinks and wires the domain services.
func openApplication(ctx context.Context, cfg *runtimeConfig, forceMigrate bool) (app *application, err error) {
	logger, err := zap.NewProduction()
	if err != nil {
		return nil, fmt.Errorf("logger init: %w", err)
	}
	app = &application{logger: logger}
	defer func() {
		if err != nil {
			app.Close()
			app = nil
		}
	}()

	gormDB, cleanup, driver, err := openDatabase(ctx, cfg.DatabaseURL)
	if err != nil {
		return app, fmt.Errorf("database open: %w", err)
	}
	app.closers = append(app.closers, cleanup)
	app.driver = driver

	store := gormstore.New(gormDB)
	if err := prepareSchema(ctx, store, driver, forceMigrate); err != nil {
		return app, err
	}

	var coinStore ledger.Store = store.Ledger()
	if driver == driverPostgres {
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return app, fmt.Errorf("pgx pool: %w", err)
		}
		app.closers = append(app.closers, func() error { pool.Close(); return nil })
		coinStore = pgstore.New(pool)
	}

	operationLogger := oplog.New(logger)
	unixClock := func() int64 { return sessionClock().Unix() }
	ledgerService, err := ledger.NewService(coinStore, unixClock, ledger.WithOperationLogger(operationLogger.Ledger()))
	if err != nil {
		return app, fmt.Errorf("ledger service init: %w", err)
	}
	rewardService, err := rewards.NewService(store.Rewards(), ledgerService, unixClock, rewards.WithOperationLogger(operationLogger.Rewards()))
	if err != nil {
		return app, fmt.Errorf("reward service init: %w", err)
	}

	notifier, err := buildNotifier(ctx, cfg, app)
	if err != nil {
		return app, err
	}
	engine, err := study.NewEngine(store.Study(), ledgerService, rewardService, notifier, sessionClock,
		study.WithCoinsPerMinute(ledger.Coins(cfg.CoinsPerMinute)),
		study.WithOperationLogger(operationLogger.Study()),
	)
	if err != nil {
		return app, fmt.Errorf("settlement engine init: %w", err)
	}
	tracker, err := study.NewTracker(study.NewChannelPolicy(cfg.ExcludedChannels), engine, sessionClock)
	if err != nil {
		return app, fmt.Errorf("tracker init: %w", err)
	}

	app.services = httpapi.Services{
		Tracker: tracker,
		Engine:  engine,
		Ledger:  ledgerService,
		Rewards: rewardService,
	}
	return app, nil
}

func buildNotifier(ctx context.Context, cfg *runtimeConfig, app *application) (study.Notifier, error) {
	sinks := notify.Fanout{notify.NewLogNotifier(app.logger)}
	if cfg.RedisAddr == "" {
		return sinks, nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	app.closers = append(app.closers, client.Close)
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	redisNotifier, err := notify.NewRedisNotifier(client, cfg.RedisChannel)
	if err != nil {
		return nil, err
	}
	app.logger.Info("publishing results to redis", zap.String("addr", cfg.RedisAddr), zap.String("channel", cfg.RedisChannel))
	return append(sinks, redisNotifier), nil
}
