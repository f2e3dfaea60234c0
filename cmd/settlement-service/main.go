package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	shttp "github.com/radieske/sports-bet-settlement/internal/settlement-service/http"
	kpub "github.com/radieske/sports-bet-settlement/internal/settlement-service/producer"
	"github.com/radieske/sports-bet-settlement/internal/settlement/bootstrap"
	"github.com/radieske/sports-bet-settlement/internal/settlement/placement"
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

	// Postgres
	pg, err := db.ConnectPostgres(cfg.PostgresDSN)
	if err != nil {
		log.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()
	if cfg.RunMigrations {
		if err := db.Migrate(pg); err != nil {
			log.Fatal("migrations failed", zap.Error(err))
		}
		log.Info("migrations applied")
	}
	if cfg.SeedDemo {
		if err := db.Seed(pg); err != nil {
			log.Fatal("demo seed failed", zap.Error(err))
		}
		log.Info("demo data seeded", zap.String("env", cfg.Env))
	}

	// Redis
	rdb, err := cache.ConnectRedis(cfg.Redis())
	if err != nil {
		log.Fatal("failed to connect redis", zap.Error(err))
	}
	defer rdb.Close()

	// Kafka writers (bet_placed, bet_settled)
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

	api := &shttp.API{
		Log:        log,
		Settlement: app.Service,
		Placement:  placement.New(log, app.Matches, app.Ledger, publ, cfg.Settlement.GraceWindow),
		Matches:    app.Matches,
		Bets:       app.Bets,
		Profiles:   app.Profiles,
		Cache:      app.Cache,
	}

	metricsSrv := metrics.StartMetricsServer(cfg.MetricsPort, log,
		metrics.HealthCheck{Name: "postgres", Check: pg.PingContext},
		metrics.HealthCheck{Name: "redis", Check: func(ctx context.Context) error { return rdb.Ping(ctx).Err() }},
	)

	apiSrv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           api.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	go func() {
		log.Info("settlement-service listening", zap.String("addr", apiSrv.Addr))
		if err := apiSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("api", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
	defer stop()
	_ = apiSrv.Shutdown(shutdownCtx)
	_ = metricsSrv.Shutdown(shutdownCtx)
}
