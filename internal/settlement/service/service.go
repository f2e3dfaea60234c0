// Package service orquestra a liquidação: gatilho interativo (Settle) e passada agendada (RunPass).
// Os dois caminhos usam o mesmo engine de status e o mesmo resolver.
package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/radieske/sports-bet-settlement/internal/settlement/domain"
	"github.com/radieske/sports-bet-settlement/internal/settlement/resolver"
	"github.com/radieske/sports-bet-settlement/internal/settlement/status"
	"github.com/radieske/sports-bet-settlement/internal/shared/cache"
)

// ErrPassInProgress indica que outra réplica está rodando a passada
var ErrPassInProgress = errors.New("settlement pass already in progress")

// MatchStore é o que o serviço precisa do repositório de partidas
type MatchStore interface {
	status.Store
	FindByID(ctx context.Context, id string) (*domain.Match, error)
	// ListFinishedWithResult lista partidas encerradas, com resultado e apostas pendentes
	ListFinishedWithResult(ctx context.Context) ([]domain.Match, error)
	// SetResult grava status finished + resultado só se result ainda for nulo;
	// caso contrário devolve domain.ErrAlreadySettled
	SetResult(ctx context.Context, id string, result domain.Outcome) error
}

// Locker garante uma passada por vez entre réplicas; ocupado = cache.ErrLockHeld
type Locker interface {
	Acquire(ctx context.Context) (release func(context.Context) error, err error)
}

// Invalidator descarta caches derivados das partidas
type Invalidator interface {
	Invalidate(ctx context.Context) error
}

type Service struct {
	Log      *zap.Logger
	Matches  MatchStore
	Engine   *status.Engine
	Resolver *resolver.Resolver

	Concurrency int         // partidas em paralelo na passada; <= 0 vira 1
	Lock        Locker      // opcional
	Cache       Invalidator // opcional

	Random func() float64   // fonte para simulação; default math/rand/v2
	Now    func() time.Time // default time.Now
	OnPass func(PassReport, time.Duration)
}

// SettleRequest pede a liquidação de uma partida.
// Result tem precedência; sem Result, Simulate sorteia pelo inverso das odds.
type SettleRequest struct {
	MatchID  string
	Result   *domain.Outcome
	Simulate bool
}

type SettleResult struct {
	Processed      int            `json:"processed"`
	Failed         int            `json:"failed"`
	ComboProcessed int            `json:"comboProcessed"`
	Result         domain.Outcome `json:"result"`
	Message        string         `json:"message"`
}

// Settle encerra a partida com o resultado e liquida as apostas dela e as combinadas prontas
func (s *Service) Settle(ctx context.Context, req SettleRequest) (SettleResult, error) {
	var out SettleResult

	if req.MatchID == "" {
		return out, fmt.Errorf("%w: matchId is required", domain.ErrInvalidInput)
	}
	if req.Result == nil && !req.Simulate {
		return out, fmt.Errorf("%w: result or simulate is required", domain.ErrInvalidInput)
	}
	if req.Result != nil && !req.Result.Valid() {
		return out, fmt.Errorf("%w: invalid result %q", domain.ErrInvalidInput, *req.Result)
	}

	m, err := s.Matches.FindByID(ctx, req.MatchID)
	if err != nil {
		return out, err
	}
	if m.Result != nil {
		return out, fmt.Errorf("match %s: %w", m.ID, domain.ErrAlreadySettled)
	}

	var result domain.Outcome
	if req.Result != nil {
		result = *req.Result
	} else {
		result = SimulateOutcome(m.Odds, s.random())
	}

	if err := s.Matches.SetResult(ctx, m.ID, result); err != nil {
		return out, fmt.Errorf("set result %s: %w", m.ID, err)
	}
	s.invalidate(ctx)

	sum, err := s.Resolver.ResolveMatch(ctx, m.ID, result)
	if err != nil {
		return out, fmt.Errorf("resolve match %s: %w", m.ID, err)
	}
	out.Processed, out.Failed, out.Result = sum.Processed, sum.Failed, result

	// a partida pode ter completado combinadas
	combos, err := s.Resolver.ResolveCombos(ctx)
	if err != nil {
		s.Log.Warn("combo resolution after settle failed", zap.String("matchId", m.ID), zap.Error(err))
	}
	out.ComboProcessed = combos.Processed
	out.Failed += combos.Failed

	out.Message = fmt.Sprintf("match %s settled as %s: %d bets resolved", m.ID, result, out.Processed)
	s.Log.Info("match settled",
		zap.String("matchId", m.ID),
		zap.String("result", string(result)),
		zap.Bool("simulated", req.Result == nil),
		zap.Int("processed", out.Processed),
		zap.Int("comboProcessed", out.ComboProcessed),
		zap.Int("failed", out.Failed),
	)
	return out, nil
}

// PassReport resume uma passada agendada
type PassReport struct {
	Resolved      int                `json:"resolved"`
	ComboResolved int                `json:"comboResolved"`
	Failed        int                `json:"failed"`
	ComboFailed   int                `json:"comboFailed"`
	Transitions   status.Transitions `json:"transitions"`
}

// RunPass roda transições, apostas simples por partida e por fim combinadas.
// Store indisponível encerra a passada com as contagens parciais e o erro.
func (s *Service) RunPass(ctx context.Context) (PassReport, error) {
	var rep PassReport
	started := time.Now()

	if s.Lock != nil {
		release, err := s.Lock.Acquire(ctx)
		if err != nil {
			if errors.Is(err, cache.ErrLockHeld) {
				return rep, ErrPassInProgress
			}
			return rep, fmt.Errorf("acquire pass lock: %w", err)
		}
		defer func() {
			// contexto próprio: a liberação precisa rodar mesmo com ctx cancelado
			rctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if err := release(rctx); err != nil {
				s.Log.Warn("release pass lock failed", zap.Error(err))
			}
		}()
	}

	tr, err := s.Engine.Advance(ctx, s.now())
	rep.Transitions = tr
	if err != nil {
		// lotes parciais ainda permitem liquidar o que já terminou
		s.Log.Error("status transitions failed", zap.Error(err))
	}
	if tr.Live > 0 || tr.Finished > 0 {
		s.invalidate(ctx)
	}

	matches, err := s.Matches.ListFinishedWithResult(ctx)
	if err != nil {
		return rep, fmt.Errorf("list finished matches: %w", err)
	}

	sums := make([]resolver.Summary, len(matches))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(s.Concurrency, 1))
	for i := range matches {
		m := matches[i]
		g.Go(func() error {
			sum, err := s.Resolver.ResolveMatch(gctx, m.ID, *m.Result)
			if err != nil {
				return fmt.Errorf("resolve match %s: %w", m.ID, err)
			}
			sums[i] = sum
			return nil
		})
	}
	gerr := g.Wait()
	for _, sum := range sums {
		rep.Resolved += sum.Processed
		rep.Failed += sum.Failed
	}
	if gerr != nil {
		return rep, gerr
	}

	combos, err := s.Resolver.ResolveCombos(ctx)
	rep.ComboResolved, rep.ComboFailed = combos.Processed, combos.Failed
	if err != nil {
		return rep, fmt.Errorf("resolve combos: %w", err)
	}

	took := time.Since(started)
	s.Log.Info("settlement pass done",
		zap.Int("matches", len(matches)),
		zap.Int("resolved", rep.Resolved),
		zap.Int("comboResolved", rep.ComboResolved),
		zap.Int("failed", rep.Failed+rep.ComboFailed),
		zap.Duration("took", took),
	)
	if s.OnPass != nil {
		s.OnPass(rep, took)
	}
	return rep, nil
}

// AdvanceStatuses roda só as transições (usado na leitura da lista de partidas)
func (s *Service) AdvanceStatuses(ctx context.Context) (status.Transitions, error) {
	tr, err := s.Engine.Advance(ctx, s.now())
	if tr.Live > 0 || tr.Finished > 0 {
		s.invalidate(ctx)
	}
	return tr, err
}

// SimulateOutcome sorteia o resultado com P(o) proporcional a 1/odds(o).
// r deve estar em [0,1). Odds não positivas são ignoradas.
func SimulateOutcome(odds domain.Odds, r float64) domain.Outcome {
	weights := make([]float64, len(domain.Outcomes))
	var total float64
	for i, o := range domain.Outcomes {
		if v := odds.For(o).InexactFloat64(); v > 0 {
			weights[i] = 1 / v
			total += weights[i]
		}
	}
	if total == 0 {
		return domain.Outcomes[int(r*float64(len(domain.Outcomes)))%len(domain.Outcomes)]
	}

	target := r * total
	for i, w := range weights {
		if target < w {
			return domain.Outcomes[i]
		}
		target -= w
	}
	// arredondamento de ponto flutuante: cai no último com peso
	for i := len(weights) - 1; i >= 0; i-- {
		if weights[i] > 0 {
			return domain.Outcomes[i]
		}
	}
	return domain.Outcomes[len(domain.Outcomes)-1]
}

func (s *Service) random() float64 {
	if s.Random != nil {
		return s.Random()
	}
	return rand.Float64()
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *Service) invalidate(ctx context.Context) {
	if s.Cache == nil {
		return
	}
	if err := s.Cache.Invalidate(ctx); err != nil {
		s.Log.Warn("match cache invalidation failed", zap.Error(err))
	}
}
