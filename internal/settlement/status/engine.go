package status

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/radieske/sports-bet-settlement/internal/settlement/domain"
)

// Store é o subconjunto do repositório de partidas usado pelo engine
type Store interface {
	ListUnfinished(ctx context.Context) ([]domain.Match, error)
	// UpdateStatus só altera partidas cujo status atual está em from (garante monotonicidade)
	UpdateStatus(ctx context.Context, ids []string, from []domain.MatchStatus, to domain.MatchStatus) (int64, error)
}

// Transitions conta quantas partidas mudaram em uma execução
type Transitions struct {
	Live     int64 `json:"live"`
	Finished int64 `json:"finished"`
}

// Engine avança partidas upcoming -> live -> finished pelo relógio.
// Regra única: end_time quando existe, senão start_time + Grace.
type Engine struct {
	Store Store
	Grace time.Duration
	Log   *zap.Logger
}

func NewEngine(store Store, grace time.Duration, log *zap.Logger) *Engine {
	return &Engine{Store: store, Grace: grace, Log: log}
}

// Advance é idempotente: rodar duas vezes com o mesmo now gera o mesmo estado.
// Cada lote (live, finished) é independente; falha de um não impede o outro.
func (e *Engine) Advance(ctx context.Context, now time.Time) (Transitions, error) {
	var out Transitions

	matches, err := e.Store.ListUnfinished(ctx)
	if err != nil {
		return out, fmt.Errorf("list unfinished matches: %w", err)
	}

	var toLive, toFinished []string
	for i := range matches {
		m := &matches[i]
		switch next := m.NextStatus(now, e.Grace); {
		case next == m.Status:
		case next == domain.StatusFinished:
			toFinished = append(toFinished, m.ID)
		case next == domain.StatusLive:
			toLive = append(toLive, m.ID)
		}
	}

	var errs []error
	if len(toFinished) > 0 {
		n, err := e.Store.UpdateStatus(ctx, toFinished,
			[]domain.MatchStatus{domain.StatusUpcoming, domain.StatusLive}, domain.StatusFinished)
		if err != nil {
			e.Log.Error("finish batch failed", zap.Int("matches", len(toFinished)), zap.Error(err))
			errs = append(errs, fmt.Errorf("finish batch: %w", err))
		}
		out.Finished = n
	}
	if len(toLive) > 0 {
		n, err := e.Store.UpdateStatus(ctx, toLive,
			[]domain.MatchStatus{domain.StatusUpcoming}, domain.StatusLive)
		if err != nil {
			e.Log.Error("live batch failed", zap.Int("matches", len(toLive)), zap.Error(err))
			errs = append(errs, fmt.Errorf("live batch: %w", err))
		}
		out.Live = n
	}

	if out.Live > 0 || out.Finished > 0 {
		e.Log.Info("match statuses advanced",
			zap.Int64("live", out.Live),
			zap.Int64("finished", out.Finished),
		)
	}
	return out, errors.Join(errs...)
}
