package main

import (
	"fmt"
	"net/http"
	"net/http/httputil"
	"net/url"
	"time"

	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/radieske/sports-bet-settlement/internal/shared/config"
	"github.com/radieske/sports-bet-settlement/internal/shared/logger"
)

func rp(to string) (*httputil.ReverseProxy, error) {
	u, err := url.Parse(to)
	if err != nil {
		return nil, fmt.Errorf("parse upstream %q: %w", to, err)
	}
	return httputil.NewSingleHostReverseProxy(u), nil
}

func main() {
	cfg := config.Load()
	log, err := logger.New(cfg.ServiceName, cfg.Env, cfg.LogLevel)
	if err != nil {
		panic(fmt.Errorf("logger init: %w", err))
	}
	defer log.Sync()

	settlement, err := rp(cfg.SettlementURL)
	if err != nil {
		log.Fatal("settlement upstream", zap.Error(err))
	}
	notifier, err := rp(cfg.NotifierURL)
	if err != nil {
		log.Fatal("notifier upstream", zap.Error(err))
	}

	mux := http.NewServeMux()

	// /api/settlement/* -> settlement-service (ex.: /api/settlement/v1/bets)
	mux.Handle("/api/settlement/", http.StripPrefix("/api/settlement", settlement))

	// /api/notify/* -> win-notifier (ex.: /api/notify/ws)
	mux.Handle("/api/notify/", http.StripPrefix("/api/notify", notifier))

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	handler := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
	}).Handler(mux)

	srv := &http.Server{Addr: ":" + cfg.HTTPPort, Handler: handler, ReadHeaderTimeout: 5 * time.Second}
	log.Info("api-gateway listening",
		zap.String("addr", srv.Addr),
		zap.String("settlement", cfg.SettlementURL),
		zap.String("notifier", cfg.NotifierURL),
	)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal("gateway failed", zap.Error(err))
	}
}
