// Package bootstrap monta a pilha de liquidação sobre Postgres/Redis.
// settlement-service e settlement-worker usam a mesma montagem.
package bootstrap

import (
	"database/sql"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	matchcache "github.com/radieske/sports-bet-settlement/internal/settlement-service/cache"
	"github.com/radieske/sports-bet-settlement/internal/settlement/payout"
	"github.com/radieske/sports-bet-settlement/internal/settlement/postgres"
	"github.com/radieske/sports-bet-settlement/internal/settlement/resolver"
	"github.com/radieske/sports-bet-settlement/internal/settlement/service"
	"github.com/radieske/sports-bet-settlement/internal/settlement/status"
	"github.com/radieske/sports-bet-settlement/internal/shared/cache"
	"github.com/radieske/sports-bet-settlement/internal/shared/config"
	"github.com/radieske/sports-bet-settlement/internal/shared/metrics"
)

// LockKey é a chave do lock de passada no Redis
const LockKey = "settlement:pass"

type Deps struct {
	Log       *zap.Logger
	DB        *sql.DB
	Redis     *redis.Client
	Publisher resolver.Publisher // opcional
	Metrics   *metrics.Settlement
	Settings  config.Settlement
}

type Components struct {
	Matches  *postgres.MatchRepo
	Bets     *postgres.BetRepo
	Profiles *postgres.ProfileRepo
	Ledger   *postgres.Ledger
	Cache    *matchcache.MatchList
	Resolver *resolver.Resolver
	Service  *service.Service
}

func Build(d Deps) *Components {
	calc := payout.NewCalculator(decimal.NewFromFloat(d.Settings.BonusRate))

	c := &Components{
		Matches:  postgres.NewMatchRepo(d.DB),
		Bets:     postgres.NewBetRepo(d.DB),
		Profiles: postgres.NewProfileRepo(d.DB),
		Ledger:   postgres.NewLedger(d.DB),
		Cache:    matchcache.New(d.Redis, d.Settings.MatchListTTL),
	}

	c.Resolver = &resolver.Resolver{
		Log:        d.Log,
		Bets:       c.Bets,
		Combos:     c.Bets,
		Ledger:     c.Ledger,
		Publisher:  d.Publisher,
		Payout:     &calc,
		OnResolved: d.Metrics.ObserveResolved,
		OnError:    d.Metrics.ObserveError,
	}

	c.Service = &service.Service{
		Log:         d.Log,
		Matches:     c.Matches,
		Engine:      status.NewEngine(c.Matches, d.Settings.GraceWindow, d.Log),
		Resolver:    c.Resolver,
		Concurrency: d.Settings.Concurrency,
		Lock:        cache.NewLock(d.Redis, LockKey, d.Settings.LockTTL),
		Cache:       c.Cache,
		OnPass: func(_ service.PassReport, took time.Duration) {
			d.Metrics.ObservePass(took)
		},
	}
	return c
}
