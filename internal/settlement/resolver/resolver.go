package resolver

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/radieske/sports-bet-settlement/internal/settlement/domain"
	"github.com/radieske/sports-bet-settlement/internal/settlement/payout"
	"github.com/radieske/sports-bet-settlement/pkg/contracts/events"
)

// BetStore lista apostas simples pendentes (is_win IS NULL)
type BetStore interface {
	ListPendingByMatch(ctx context.Context, matchID string) ([]domain.SimpleBet, error)
}

// ComboStore lista combinadas pendentes já com status/resultado de cada perna
type ComboStore interface {
	ListPendingWithLegStatus(ctx context.Context) ([]domain.ComboBet, error)
}

// Ledger grava o desfecho e credita o perfil na mesma transação.
// Deve fazer compare-and-swap em is_win IS NULL e devolver domain.ErrAlreadyResolved
// quando outro processo liquidou antes; nesse caso nada é creditado.
type Ledger interface {
	SettleBet(ctx context.Context, bet *domain.SimpleBet, res domain.Resolution) error
	SettleCombo(ctx context.Context, combo *domain.ComboBet, res domain.Resolution) error
}

// Publisher publica bet_settled (best effort)
type Publisher interface {
	PublishBetSettled(ctx context.Context, e events.BetSettled) error
}

// Summary conta o que aconteceu em uma execução
type Summary struct {
	Processed int `json:"processed"` // won + lost
	Won       int `json:"won"`
	Lost      int `json:"lost"`
	Skipped   int `json:"skipped"` // liquidadas por outro processo ou combinadas aguardando pernas
	Failed    int `json:"failed"`
}

func (s *Summary) Add(o Summary) {
	s.Processed += o.Processed
	s.Won += o.Won
	s.Lost += o.Lost
	s.Skipped += o.Skipped
	s.Failed += o.Failed
}

// DefaultPublishTimeout limita a publicação de bet_settled de um lote
const DefaultPublishTimeout = 3 * time.Second

// Resolver liquida apostas simples e combinadas.
// Falha em uma aposta é logada e contada; as demais seguem.
// Eventos são publicados depois que o lote inteiro foi gravado, com contexto
// próprio: broker lento não consome o prazo de quem liquida.
type Resolver struct {
	Log       *zap.Logger
	Bets      BetStore
	Combos    ComboStore
	Ledger    Ledger
	Publisher Publisher // opcional

	Payout         *payout.Calculator // nil usa payout.DefaultBonusRate
	PublishTimeout time.Duration      // 0 usa DefaultPublishTimeout

	OnResolved func(kind string, won bool) // métricas
	OnError    func(kind string)           // métricas
}

// ResolveMatch liquida as apostas simples pendentes da partida.
// Erro só é devolvido quando a listagem falha (store indisponível).
func (r *Resolver) ResolveMatch(ctx context.Context, matchID string, result domain.Outcome) (Summary, error) {
	var sum Summary

	bets, err := r.Bets.ListPendingByMatch(ctx, matchID)
	if err != nil {
		return sum, err
	}

	var settled []events.BetSettled

	for i := range bets {
		bet := &bets[i]
		if !bet.Pending() {
			sum.Skipped++
			continue
		}

		won := bet.Choice == result
		res := r.calc().Resolve(bet.Ticket(), won)

		if err := r.Ledger.SettleBet(ctx, bet, res); err != nil {
			if errors.Is(err, domain.ErrAlreadyResolved) {
				r.Log.Debug("bet already resolved", zap.String("betId", bet.ID))
				sum.Skipped++
				continue
			}
			r.Log.Error("settle bet failed",
				zap.String("betId", bet.ID),
				zap.String("matchId", matchID),
				zap.Error(err),
			)
			sum.Failed++
			r.onError(events.KindSimple)
			continue
		}

		sum.Processed++
		if won {
			sum.Won++
		} else {
			sum.Lost++
		}
		r.onResolved(events.KindSimple, won)
		settled = append(settled, events.BetSettled{
			BetID:       bet.ID,
			Kind:        events.KindSimple,
			UserID:      bet.UserID,
			MatchID:     matchID,
			IsWin:       res.IsWin,
			TokensWon:   res.TokensWon,
			DiamondsWon: res.DiamondsWon,
			Ts:          time.Now().UTC(),
		})
	}
	r.publish(ctx, settled)

	r.Log.Info("match bets resolved",
		zap.String("matchId", matchID),
		zap.String("result", string(result)),
		zap.Int("processed", sum.Processed),
		zap.Int("failed", sum.Failed),
	)
	return sum, nil
}

// ResolveCombos liquida combinadas cujas pernas estão todas encerradas.
// Combinadas com alguma perna em aberto ficam pendentes (contadas em Skipped).
func (r *Resolver) ResolveCombos(ctx context.Context) (Summary, error) {
	var sum Summary

	combos, err := r.Combos.ListPendingWithLegStatus(ctx)
	if err != nil {
		return sum, err
	}

	var settled []events.BetSettled

	for i := range combos {
		combo := &combos[i]
		if !combo.Pending() || !combo.Ready() {
			sum.Skipped++
			continue
		}

		won := combo.AllWon()
		res := r.calc().Resolve(combo.Ticket(), won)

		if err := r.Ledger.SettleCombo(ctx, combo, res); err != nil {
			if errors.Is(err, domain.ErrAlreadyResolved) {
				sum.Skipped++
				continue
			}
			r.Log.Error("settle combo failed", zap.String("comboId", combo.ID), zap.Error(err))
			sum.Failed++
			r.onError(events.KindCombo)
			continue
		}

		sum.Processed++
		if won {
			sum.Won++
		} else {
			sum.Lost++
		}
		r.onResolved(events.KindCombo, won)
		settled = append(settled, events.BetSettled{
			BetID:       combo.ID,
			Kind:        events.KindCombo,
			UserID:      combo.UserID,
			IsWin:       res.IsWin,
			TokensWon:   res.TokensWon,
			DiamondsWon: res.DiamondsWon,
			Ts:          time.Now().UTC(),
		})
	}
	r.publish(ctx, settled)

	if sum.Processed > 0 || sum.Failed > 0 {
		r.Log.Info("combo bets resolved",
			zap.Int("processed", sum.Processed),
			zap.Int("pending", sum.Skipped),
			zap.Int("failed", sum.Failed),
		)
	}
	return sum, nil
}

// publish envia os eventos do lote sem herdar o cancelamento de ctx
func (r *Resolver) publish(ctx context.Context, evts []events.BetSettled) {
	if r.Publisher == nil || len(evts) == 0 {
		return
	}
	timeout := r.PublishTimeout
	if timeout <= 0 {
		timeout = DefaultPublishTimeout
	}
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()

	for _, e := range evts {
		if err := r.Publisher.PublishBetSettled(pctx, e); err != nil {
			// a aposta já está liquidada; a notificação é só informativa
			r.Log.Warn("publish bet_settled failed", zap.String("betId", e.BetID), zap.Error(err))
		}
	}
}

func (r *Resolver) calc() payout.Calculator {
	if r.Payout != nil {
		return *r.Payout
	}
	return payout.NewCalculator(payout.DefaultBonusRate)
}

func (r *Resolver) onResolved(kind string, won bool) {
	if r.OnResolved != nil {
		r.OnResolved(kind, won)
	}
}

func (r *Resolver) onError(kind string) {
	if r.OnError != nil {
		r.OnError(kind)
	}
}
