package scheduler

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/radieske/sports-bet-settlement/internal/settlement/service"
)

type PassRunner interface {
	RunPass(ctx context.Context) (service.PassReport, error)
}

// Scheduler roda a passada de liquidação uma vez na partida e depois a cada Interval
type Scheduler struct {
	Log      *zap.Logger
	Runner   PassRunner
	Interval time.Duration
	Timeout  time.Duration // limite por passada; 0 = sem limite

	OnSkipped func() // outra réplica estava com o lock
}

// Run bloqueia até ctx ser cancelado
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()
	s.Log.Info("settlement scheduler started", zap.Duration("interval", s.Interval))

	s.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			s.Log.Info("settlement scheduler stopped")
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	if s.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.Timeout)
		defer cancel()
	}

	rep, err := s.Runner.RunPass(ctx)
	switch {
	case errors.Is(err, service.ErrPassInProgress):
		s.Log.Debug("settlement pass skipped: lock held elsewhere")
		if s.OnSkipped != nil {
			s.OnSkipped()
		}
	case err != nil:
		s.Log.Error("settlement pass failed",
			zap.Int("resolved", rep.Resolved),
			zap.Int("comboResolved", rep.ComboResolved),
			zap.Error(err),
		)
	}
}
