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

	"github.com/radieske/sports-bet-settlement/internal/shared/cache"
	"github.com/radieske/sports-bet-settlement/internal/shared/config"
	"github.com/radieske/sports-bet-settlement/internal/shared/kafka"
	"github.com/radieske/sports-bet-settlement/internal/shared/logger"
	"github.com/radieske/sports-bet-settlement/internal/shared/metrics"
	"github.com/radieske/sports-bet-settlement/internal/win-notifier/consumer"
	"github.com/radieske/sports-bet-settlement/internal/win-notifier/pubsub"
	"github.com/radieske/sports-bet-settlement/internal/win-notifier/ws"
)

func main() {
	cfg := config.Load()
	log, err := logger.New(cfg.ServiceName, cfg.Env, cfg.LogLevel)
	if err != nil {
		panic(fmt.Errorf("logger init: %w", err))
	}
	defer log.Sync()

	rdb, err := cache.ConnectRedis(cfg.Redis())
	if err != nil {
		log.Fatal("failed to connect redis", zap.Error(err))
	}
	defer rdb.Close()

	// consumer group win-notifier; DLQ recebe o que não chegou ao Pub/Sub
	reader := kafka.NewReader(cfg.KafkaBrokers, cfg.TopicBetSettled, "win-notifier")
	defer reader.Close()
	dlq := kafka.NewWriter(cfg.KafkaBrokers, cfg.TopicBetSettledDLQ)
	defer dlq.Close()

	consumed := prometheus.NewCounter(prometheus.CounterOpts{Name: "win_notifier_messages_consumed_total", Help: "mensagens bet_settled consumidas"})
	forwarded := prometheus.NewCounter(prometheus.CounterOpts{Name: "win_notifier_wins_forwarded_total", Help: "vitórias repassadas ao Pub/Sub"})
	errorsBy := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "win_notifier_errors_total", Help: "erros por estágio"}, []string{"stage"})
	prometheus.MustRegister(consumed, forwarded, errorsBy)

	// Hub WebSocket alimentado pelo canal Redis (permite várias réplicas do notifier)
	hub := ws.NewHub(log, func(r *http.Request) bool { return true })
	prometheus.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "win_notifier_ws_connections",
		Help: "conexões WebSocket abertas",
	}, func() float64 { return float64(hub.Connections()) }))

	proc := &consumer.Processor{
		Log:         log,
		Reader:      reader,
		Broadcaster: pubsub.NewRedisBroadcaster(rdb),
		Channel:     cfg.RedisWinsChannel,
		DLQ:         dlq,
		OnConsumed:  consumed.Inc,
		OnForwarded: forwarded.Inc,
		OnError:     func(stage string) { errorsBy.WithLabelValues(stage).Inc() },
	}

	metricsSrv := metrics.StartMetricsServer(cfg.MetricsPort, log,
		metrics.HealthCheck{Name: "redis", Check: func(ctx context.Context) error { return rdb.Ping(ctx).Err() }},
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	ws.StartRedisSubscriber(ctx, rdb, cfg.RedisWinsChannel, hub, log)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", hub.HandleWS)
	srv := &http.Server{Addr: ":" + cfg.HTTPPort, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		log.Info("win-notifier ws listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("ws server", zap.Error(err))
		}
	}()

	log.Info("win-notifier started", zap.String("topic", cfg.TopicBetSettled))
	if err := proc.Run(ctx); err != nil && ctx.Err() == nil {
		log.Fatal("processor stopped with error", zap.Error(err))
	}

	shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
	defer stop()
	_ = srv.Shutdown(shutdownCtx)
	_ = metricsSrv.Shutdown(shutdownCtx)
	log.Info("win-notifier stopped")
}
