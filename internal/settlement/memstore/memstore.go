// Package memstore implementa os stores de liquidação em memória.
// Mesma semântica do Postgres (CAS em is_win, crédito atômico); usado só nos testes.
package memstore

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/radieske/sports-bet-settlement/internal/settlement/domain"
)

type Store struct {
	mu       sync.Mutex
	profiles map[string]*domain.Profile
	matches  map[string]*domain.Match
	bets     map[string]*domain.SimpleBet
	combos   map[string]*domain.ComboBet
	betOrder []string
	combOrd  []string

	// SettleHook permite injetar falha por aposta/combinada (id) antes da gravação
	SettleHook func(id string) error
}

func New() *Store {
	return &Store{
		profiles: make(map[string]*domain.Profile),
		matches:  make(map[string]*domain.Match),
		bets:     make(map[string]*domain.SimpleBet),
		combos:   make(map[string]*domain.ComboBet),
	}
}

func (s *Store) AddProfile(p domain.Profile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles[p.UserID] = &p
}

func (s *Store) AddMatch(m domain.Match) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.matches[m.ID] = &m
}

// AddBet insere a aposta sem mexer no saldo (como se já tivesse sido debitada)
func (s *Store) AddBet(b domain.SimpleBet) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bets[b.ID] = &b
	s.betOrder = append(s.betOrder, b.ID)
}

func (s *Store) AddCombo(c domain.ComboBet) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c.Selections = slices.Clone(c.Selections)
	s.combos[c.ID] = &c
	s.combOrd = append(s.combOrd, c.ID)
}

// ---- partidas

func (s *Store) FindByID(_ context.Context, id string) (*domain.Match, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.matches[id]
	if !ok {
		return nil, domain.ErrMatchNotFound
	}
	cp := *m
	return &cp, nil
}

func (s *Store) List(_ context.Context, status *domain.MatchStatus) ([]domain.Match, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Match
	for _, m := range s.matches {
		if status == nil || m.Status == *status {
			out = append(out, *m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.Before(out[j].StartTime) })
	return out, nil
}

func (s *Store) ListUnfinished(ctx context.Context) ([]domain.Match, error) {
	all, _ := s.List(ctx, nil)
	out := all[:0]
	for _, m := range all {
		if m.Status != domain.StatusFinished {
			out = append(out, m)
		}
	}
	return out, nil
}

func (s *Store) UpdateStatus(_ context.Context, ids []string, from []domain.MatchStatus, to domain.MatchStatus) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, id := range ids {
		if m, ok := s.matches[id]; ok && slices.Contains(from, m.Status) {
			m.Status = to
			n++
		}
	}
	return n, nil
}

// ListFinishedWithResult devolve partidas encerradas com resultado e apostas pendentes
func (s *Store) ListFinishedWithResult(_ context.Context) ([]domain.Match, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	pending := make(map[string]bool)
	for _, b := range s.bets {
		if b.Pending() {
			pending[b.MatchID] = true
		}
	}
	var out []domain.Match
	for _, m := range s.matches {
		if m.Settled() && pending[m.ID] {
			out = append(out, *m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) SetResult(_ context.Context, id string, result domain.Outcome) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.matches[id]
	if !ok {
		return domain.ErrMatchNotFound
	}
	if m.Result != nil {
		return domain.ErrAlreadySettled
	}
	m.Status = domain.StatusFinished
	m.Result = &result
	return nil
}

// ---- apostas

func (s *Store) ListPendingByMatch(_ context.Context, matchID string) ([]domain.SimpleBet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.SimpleBet
	for _, id := range s.betOrder {
		if b := s.bets[id]; b.MatchID == matchID && b.Pending() {
			out = append(out, *b)
		}
	}
	return out, nil
}

func (s *Store) GetBet(_ context.Context, id string) (*domain.SimpleBet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bets[id]
	if !ok {
		return nil, domain.ErrBetNotFound
	}
	cp := *b
	return &cp, nil
}

func (s *Store) ListPendingWithLegStatus(_ context.Context) ([]domain.ComboBet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.ComboBet
	for _, id := range s.combOrd {
		c := s.combos[id]
		if !c.Pending() {
			continue
		}
		out = append(out, s.joinLegs(c))
	}
	return out, nil
}

func (s *Store) GetCombo(_ context.Context, id string) (*domain.ComboBet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.combos[id]
	if !ok {
		return nil, domain.ErrBetNotFound
	}
	cp := s.joinLegs(c)
	return &cp, nil
}

func (s *Store) joinLegs(c *domain.ComboBet) domain.ComboBet {
	cp := *c
	cp.Selections = slices.Clone(c.Selections)
	for i := range cp.Selections {
		if m, ok := s.matches[cp.Selections[i].MatchID]; ok {
			cp.Selections[i].MatchStatus = m.Status
			cp.Selections[i].MatchResult = m.Result
		}
	}
	return cp
}

// ---- ledger

func (s *Store) SettleBet(_ context.Context, bet *domain.SimpleBet, res domain.Resolution) error {
	if s.SettleHook != nil {
		if err := s.SettleHook(bet.ID); err != nil {
			return err
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bets[bet.ID]
	if !ok {
		return domain.ErrBetNotFound
	}
	if !b.Pending() {
		return domain.ErrAlreadyResolved
	}
	if err := s.credit(b.UserID, res); err != nil {
		return err
	}
	now := time.Now()
	b.IsWin = &res.IsWin
	b.TokensWon, b.DiamondsWon = res.TokensWon, res.DiamondsWon
	b.ResolvedAt = &now
	return nil
}

func (s *Store) SettleCombo(_ context.Context, combo *domain.ComboBet, res domain.Resolution) error {
	if s.SettleHook != nil {
		if err := s.SettleHook(combo.ID); err != nil {
			return err
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.combos[combo.ID]
	if !ok {
		return domain.ErrBetNotFound
	}
	if !c.Pending() {
		return domain.ErrAlreadyResolved
	}
	if err := s.credit(c.UserID, res); err != nil {
		return err
	}
	now := time.Now()
	c.IsWin = &res.IsWin
	c.TokensWon, c.DiamondsWon = res.TokensWon, res.DiamondsWon
	c.ResolvedAt = &now
	return nil
}

func (s *Store) credit(userID string, res domain.Resolution) error {
	if !res.IsWin {
		return nil
	}
	p, ok := s.profiles[userID]
	if !ok {
		return domain.ErrProfileNotFound
	}
	p.Tokens += res.TokensWon
	p.Diamonds += res.DiamondsWon
	p.WonBets++
	return nil
}

func (s *Store) PlaceBet(_ context.Context, bet *domain.SimpleBet) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.debit(bet.UserID, bet.Currency, bet.Stake); err != nil {
		return err
	}
	bet.CreatedAt = time.Now()
	cp := *bet
	s.bets[bet.ID] = &cp
	s.betOrder = append(s.betOrder, bet.ID)
	return nil
}

func (s *Store) PlaceCombo(_ context.Context, combo *domain.ComboBet) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.debit(combo.UserID, combo.Currency, combo.Stake); err != nil {
		return err
	}
	combo.CreatedAt = time.Now()
	cp := *combo
	cp.Selections = slices.Clone(combo.Selections)
	s.combos[combo.ID] = &cp
	s.combOrd = append(s.combOrd, combo.ID)
	return nil
}

func (s *Store) debit(userID string, c domain.Currency, amount int64) error {
	p, ok := s.profiles[userID]
	if !ok {
		return domain.ErrProfileNotFound
	}
	if p.Balance(c) < amount {
		return domain.ErrInsufficientFunds
	}
	if c == domain.Diamonds {
		p.Diamonds -= amount
	} else {
		p.Tokens -= amount
	}
	p.TotalBets++
	return nil
}

// ---- perfis

func (s *Store) GetProfile(_ context.Context, userID string) (*domain.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.profiles[userID]
	if !ok {
		return nil, domain.ErrProfileNotFound
	}
	cp := *p
	return &cp, nil
}

func (s *Store) Leaderboard(_ context.Context, limit int) ([]domain.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Profile, 0, len(s.profiles))
	for _, p := range s.profiles {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Diamonds != out[j].Diamonds {
			return out[i].Diamonds > out[j].Diamonds
		}
		return out[i].UserID < out[j].UserID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
