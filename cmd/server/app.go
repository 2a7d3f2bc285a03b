package main

import (
	"context"
	"fmt"
	"time"

	"github.com/web3-frozen/energy-monitor/internal/analytics"
	"github.com/web3-frozen/energy-monitor/internal/indexer"
	"github.com/web3-frozen/energy-monitor/internal/kv"
	"github.com/web3-frozen/energy-monitor/internal/monitor"
	"github.com/web3-frozen/energy-monitor/internal/store"
)

// app holds the wired components shared by the commands.
type app struct {
	kv        *kv.Store
	db        *store.Store
	registry  *kv.Registry
	service   *analytics.Service
	processor *monitor.Processor
}

func (a *app) Close() {
	if a.db != nil {
		a.db.Close()
	}
	if a.kv != nil {
		_ = a.kv.Close()
	}
}

// connectRedis retries for up to 30s while secrets sync.
func connectRedis() (*kv.Store, error) {
	var (
		s   *kv.Store
		err error
	)
	for i := 0; i < 6; i++ {
		s, err = kv.New(cfg.RedisURL, cfg.RedisPassword)
		if err == nil {
			return s, nil
		}
		logger.Warn("redis not ready, retrying...", "attempt", i+1, "error", err)
		time.Sleep(5 * time.Second)
	}
	return nil, fmt.Errorf("connect to redis after retries: %w", err)
}

func newApp(ctx context.Context, publisher analytics.Publisher) (*app, error) {
	a := &app{}

	s, err := connectRedis()
	if err != nil {
		return nil, err
	}
	a.kv = s
	logger.Info("redis connected")

	if cfg.DatabaseURL != "" {
		db, err := store.New(ctx, cfg.DatabaseURL)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("connect to database: %w", err)
		}
		if err := db.Migrate(ctx); err != nil {
			db.Close()
			a.Close()
			return nil, fmt.Errorf("run migrations: %w", err)
		}
		a.db = db
		logger.Info("database connected and migrated")
	} else {
		logger.Info("DATABASE_URL not set, run ledger and snapshot archive disabled")
	}

	client := indexer.New(cfg.IndexerURL, cfg.IndexerTimeout,
		indexer.WithAPIKey(cfg.IndexerAPIKey),
		indexer.WithPaging(cfg.IndexerPageSize, cfg.IndexerMaxPages),
	)

	var svcOpts []analytics.Option
	if publisher != nil {
		svcOpts = append(svcOpts, analytics.WithPublisher(publisher))
	}
	procOpts := []monitor.Option{
		monitor.WithInterval(cfg.CronInterval),
		monitor.WithParallelism(cfg.CronParallelism),
	}
	if a.db != nil {
		svcOpts = append(svcOpts, analytics.WithArchiver(a.db))
		procOpts = append(procOpts, monitor.WithLedger(a.db))
	}

	a.registry = kv.NewRegistry(s, cfg.DefaultContracts)
	a.service = analytics.NewService(client, s, kv.NewHistoryStore(s, logger), cfg.Production(), logger, svcOpts...)
	a.processor = monitor.NewProcessor(a.service, a.registry, s, logger, procOpts...)
	return a, nil
}
