package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	kpub "github.com/radieske/sports-bet-settlement/internal/settlement-service/producer"
	"github.com/radieske/sports-bet-settlement/internal/settlement-worker/scheduler"
	"github.com/radieske/sports-bet-settlement/internal/settlement/bootstrap"
	"github.com/radieske/sports-bet-settlement/internal/shared/cache"
	"github.com/radieske/sports-bet-settlement/internal/shared/config"
	"github.com/radieske/sports-bet-settlement/internal/shared/db"
	"github.com/radieske/sports-bet-settlement/internal/shared/kafka"
	"github.com/radieske/sports-bet-settlement/internal/shared/logger"
	"github.com/radieske/sports-bet-settlement/internal/shared/metrics"
)

func main() {
	cfg := config.Load()
	log, err := logger.New(cfg.ServiceName, cfg.Env, cfg.LogLevel)
	if err != nil {
		panic(fmt.Errorf("logger init: %w", err))
	}
	defer log.Sync()

	if err := cfg.LoadSettlementFile(cfg.SettlementFile); err != nil {
		log.Fatal("settlement config", zap.Error(err))
	}
	if err := cfg.Settlement.Validate(); err != nil {
		log.Fatal("settlement config", zap.Error(err))
	}

	pg, err := db.ConnectPostgres(cfg.PostgresDSN)
	if err != nil {
		log.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	rdb, err := cache.ConnectRedis(cfg.Redis())
	if err != nil {
		log.Fatal("failed to connect redis", zap.Error(err))
	}
	defer rdb.Close()

	publ := kpub.NewKafkaPublisher(
		kafka.NewWriter(cfg.KafkaBrokers, cfg.TopicBetPlaced),
		kafka.NewWriter(cfg.KafkaBrokers, cfg.TopicBetSettled),
	)
	defer publ.Close()

	m := metrics.NewSettlement(prometheus.DefaultRegisterer)
	app := bootstrap.Build(bootstrap.Deps{
		Log:       log,
		DB:        pg,
		Redis:     rdb,
		Publisher: publ,
		Metrics:   m,
		Settings:  cfg.Settlement,
	})

	metricsSrv := metrics.StartMetricsServer(cfg.MetricsPort, log,
		metrics.HealthCheck{Name: "postgres", Check: pg.PingContext},
		metrics.HealthCheck{Name: "redis", Check: func(ctx context.Context) error { return rdb.Ping(ctx).Err() }},
	)

	// SIGINT/SIGTERM encerram o loop; a passada em curso termina pelo ctx
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	sched := &scheduler.Scheduler{
		Log:       log,
		Runner:    app.Service,
		Interval:  cfg.Settlement.Interval,
		Timeout:   cfg.Settlement.LockTTL, // a passada não pode durar mais que o lock
		OnSkipped: m.PassSkipped.Inc,
	}
	sched.Run(ctx)

	shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
	defer stop()
	_ = metricsSrv.Shutdown(shutdownCtx)
}
