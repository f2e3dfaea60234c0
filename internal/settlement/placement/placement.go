// Package placement aceita apostas simples e combinadas.
// Débito do saldo e gravação da aposta acontecem na mesma transação (Ledger).
package placement

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/radieske/sports-bet-settlement/internal/settlement/domain"
	"github.com/radieske/sports-bet-settlement/pkg/contracts/events"
)

type MatchReader interface {
	FindByID(ctx context.Context, id string) (*domain.Match, error)
}

// Ledger debita o perfil (saldo >= stake, senão domain.ErrInsufficientFunds),
// incrementa total_bets e grava a aposta; tudo ou nada.
type Ledger interface {
	PlaceBet(ctx context.Context, bet *domain.SimpleBet) error
	PlaceCombo(ctx context.Context, combo *domain.ComboBet) error
}

type Publisher interface {
	PublishBetPlaced(ctx context.Context, e events.BetPlaced) error
}

type Service struct {
	Log       *zap.Logger
	Matches   MatchReader
	Ledger    Ledger
	Publisher Publisher // opcional
	NewID     func() string

	// Grace é a mesma janela do status engine; Now é injetável nos testes
	Grace time.Duration
	Now   func() time.Time
}

func New(log *zap.Logger, m MatchReader, l Ledger, p Publisher, grace time.Duration) *Service {
	return &Service{Log: log, Matches: m, Ledger: l, Publisher: p, NewID: uuid.NewString, Grace: grace, Now: time.Now}
}

// BetRequest: ExpectedOdds é a odd que o cliente viu; se divergir da atual a aposta é recusada
type BetRequest struct {
	UserID       string
	MatchID      string
	Stake        int64
	Currency     domain.Currency
	Choice       domain.Outcome
	ExpectedOdds *decimal.Decimal
}

type SelectionRequest struct {
	MatchID string
	Choice  domain.Outcome
}

type ComboRequest struct {
	UserID     string
	Stake      int64
	Currency   domain.Currency
	Selections []SelectionRequest
}

func (s *Service) PlaceBet(ctx context.Context, req BetRequest) (*domain.SimpleBet, error) {
	if err := validateTicket(req.UserID, req.Stake, req.Currency); err != nil {
		return nil, err
	}
	if !req.Choice.Valid() {
		return nil, fmt.Errorf("%w: choice %q", domain.ErrInvalidInput, req.Choice)
	}

	m, err := s.openMatch(ctx, req.MatchID)
	if err != nil {
		return nil, err
	}
	odds, err := snapshot(m, req.Choice)
	if err != nil {
		return nil, err
	}
	if req.ExpectedOdds != nil && !req.ExpectedOdds.Equal(odds) {
		return nil, fmt.Errorf("%w: current=%s", domain.ErrOddsChanged, odds)
	}

	bet := &domain.SimpleBet{
		ID:       s.NewID(),
		UserID:   req.UserID,
		MatchID:  m.ID,
		Stake:    req.Stake,
		Currency: req.Currency,
		Choice:   req.Choice,
		Odds:     odds,
	}
	if err := s.Ledger.PlaceBet(ctx, bet); err != nil {
		return nil, fmt.Errorf("place bet: %w", err)
	}

	s.Log.Info("bet placed",
		zap.String("betId", bet.ID),
		zap.String("userId", bet.UserID),
		zap.String("matchId", bet.MatchID),
		zap.Int64("stake", bet.Stake),
		zap.String("currency", string(bet.Currency)),
	)
	s.publish(ctx, events.BetPlaced{
		BetID:    bet.ID,
		Kind:     events.KindSimple,
		UserID:   bet.UserID,
		MatchIDs: []string{bet.MatchID},
		Stake:    bet.Stake,
		Currency: string(bet.Currency),
		Odds:     bet.Odds.String(),
	})
	return bet, nil
}

func (s *Service) PlaceCombo(ctx context.Context, req ComboRequest) (*domain.ComboBet, error) {
	if err := validateTicket(req.UserID, req.Stake, req.Currency); err != nil {
		return nil, err
	}
	if len(req.Selections) < domain.MinSelections {
		return nil, fmt.Errorf("%w: combo needs at least %d selections", domain.ErrInvalidInput, domain.MinSelections)
	}

	seen := make(map[string]bool, len(req.Selections))
	legs := make([]domain.Selection, 0, len(req.Selections))
	ids := make([]string, 0, len(req.Selections))
	for _, sel := range req.Selections {
		if !sel.Choice.Valid() {
			return nil, fmt.Errorf("%w: choice %q", domain.ErrInvalidInput, sel.Choice)
		}
		if seen[sel.MatchID] {
			return nil, fmt.Errorf("%w: match %s selected twice", domain.ErrInvalidInput, sel.MatchID)
		}
		seen[sel.MatchID] = true

		m, err := s.openMatch(ctx, sel.MatchID)
		if err != nil {
			return nil, err
		}
		odds, err := snapshot(m, sel.Choice)
		if err != nil {
			return nil, err
		}
		legs = append(legs, domain.Selection{MatchID: m.ID, Choice: sel.Choice, Odds: odds})
		ids = append(ids, m.ID)
	}

	combo := &domain.ComboBet{
		ID:         s.NewID(),
		UserID:     req.UserID,
		Stake:      req.Stake,
		Currency:   req.Currency,
		TotalOdds:  domain.CombinedOdds(legs),
		Selections: legs,
	}
	if err := s.Ledger.PlaceCombo(ctx, combo); err != nil {
		return nil, fmt.Errorf("place combo: %w", err)
	}

	s.Log.Info("combo placed",
		zap.String("comboId", combo.ID),
		zap.String("userId", combo.UserID),
		zap.Int("legs", len(legs)),
		zap.String("totalOdds", combo.TotalOdds.String()),
	)
	s.publish(ctx, events.BetPlaced{
		BetID:    combo.ID,
		Kind:     events.KindCombo,
		UserID:   combo.UserID,
		MatchIDs: ids,
		Stake:    combo.Stake,
		Currency: string(combo.Currency),
		Odds:     combo.TotalOdds.String(),
	})
	return combo, nil
}

func validateTicket(userID string, stake int64, c domain.Currency) error {
	if userID == "" {
		return fmt.Errorf("%w: userId is required", domain.ErrInvalidInput)
	}
	if stake <= 0 {
		return fmt.Errorf("%w: stake must be positive", domain.ErrInvalidInput)
	}
	if c != domain.Tokens && c != domain.Diamonds {
		return fmt.Errorf("%w: currency %q", domain.ErrInvalidInput, c)
	}
	return nil
}

// openMatch só aceita partidas que ainda não começaram.
// O status gravado pode estar atrasado em relação ao relógio (só avança na passada
// ou na listagem), então vale o status devido agora.
func (s *Service) openMatch(ctx context.Context, id string) (*domain.Match, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: matchId is required", domain.ErrInvalidInput)
	}
	m, err := s.Matches.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if st := m.NextStatus(s.now(), s.Grace); st != domain.StatusUpcoming {
		return nil, fmt.Errorf("match %s is %s: %w", m.ID, st, domain.ErrMatchNotOpen)
	}
	return m, nil
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func snapshot(m *domain.Match, choice domain.Outcome) (decimal.Decimal, error) {
	odds := m.Odds.For(choice)
	if odds.LessThan(decimal.NewFromInt(1)) {
		return decimal.Zero, fmt.Errorf("match %s has no valid %s odds: %w", m.ID, choice, domain.ErrMatchNotOpen)
	}
	return odds, nil
}

func (s *Service) publish(ctx context.Context, e events.BetPlaced) {
	if s.Publisher == nil {
		return
	}
	e.TsUnixMs = time.Now().UnixMilli()
	if err := s.Publisher.PublishBetPlaced(ctx, e); err != nil {
		s.Log.Warn("publish bet_placed failed", zap.String("betId", e.BetID), zap.Error(err))
	}
}
