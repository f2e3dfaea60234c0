package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/radieske/sports-bet-settlement/internal/settlement/domain"
	"github.com/radieske/sports-bet-settlement/internal/settlement/memstore"
	"github.com/radieske/sports-bet-settlement/internal/settlement/resolver"
	"github.com/radieske/sports-bet-settlement/internal/settlement/status"
	"github.com/radieske/sports-bet-settlement/internal/shared/cache"
)

var now = time.Date(2025, 6, 1, 18, 0, 0, 0, time.UTC)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func odds(h, dr, a string) domain.Odds {
	return domain.Odds{Home: d(h), Draw: d(dr), Away: d(a)}
}

func newService(st *memstore.Store) *Service {
	log := zap.NewNop()
	return &Service{
		Log:         log,
		Matches:     st,
		Engine:      status.NewEngine(st, 2*time.Hour, log),
		Resolver:    &resolver.Resolver{Log: log, Bets: st, Combos: st, Ledger: st},
		Concurrency: 2,
		Now:         func() time.Time { return now },
	}
}

func seed() *memstore.Store {
	st := memstore.New()
	st.AddProfile(domain.Profile{UserID: "u1", Tokens: 1000})
	st.AddMatch(domain.Match{ID: "M", Odds: odds("2.0", "3.2", "3.8"), Status: domain.StatusLive, StartTime: now.Add(-time.Hour)})
	st.AddBet(domain.SimpleBet{ID: "B1", UserID: "u1", MatchID: "M", Stake: 100, Currency: domain.Tokens, Choice: domain.Home, Odds: d("2.0")})
	st.AddBet(domain.SimpleBet{ID: "B2", UserID: "u1", MatchID: "M", Stake: 50, Currency: domain.Tokens, Choice: domain.Away, Odds: d("3.8")})
	return st
}

func outcome(o domain.Outcome) *domain.Outcome { return &o }

func TestSettle(t *testing.T) {
	st := seed()
	svc := newService(st)
	ctx := context.Background()

	res, err := svc.Settle(ctx, SettleRequest{MatchID: "M", Result: outcome(domain.Home)})
	if err != nil {
		t.Fatalf("Settle: %v", err)
	}
	if res.Processed != 2 || res.Failed != 0 || res.Result != domain.Home || res.Message == "" {
		t.Errorf("result = %+v", res)
	}
	m, _ := st.FindByID(ctx, "M")
	if !m.Settled() || *m.Result != domain.Home {
		t.Errorf("match = %+v", m)
	}
	p, _ := st.GetProfile(ctx, "u1")
	if p.Tokens != 1200 || p.Diamonds != 1 {
		t.Errorf("profile = %+v", p)
	}
}

func TestSettle_AlreadySettled(t *testing.T) {
	st := seed()
	svc := newService(st)
	ctx := context.Background()

	if _, err := svc.Settle(ctx, SettleRequest{MatchID: "M", Result: outcome(domain.Home)}); err != nil {
		t.Fatal(err)
	}
	before, _ := st.GetProfile(ctx, "u1")

	_, err := svc.Settle(ctx, SettleRequest{MatchID: "M", Result: outcome(domain.Away)})
	if !errors.Is(err, domain.ErrAlreadySettled) {
		t.Fatalf("err = %v, want ErrAlreadySettled", err)
	}
	after, _ := st.GetProfile(ctx, "u1")
	if *before != *after {
		t.Errorf("balance changed: %+v -> %+v", before, after)
	}
	m, _ := st.FindByID(ctx, "M")
	if *m.Result != domain.Home {
		t.Errorf("result overwritten: %s", *m.Result)
	}
}

func TestSettle_Validation(t *testing.T) {
	st := seed()
	svc := newService(st)
	bad := domain.Outcome("over")

	tests := []struct {
		name string
		req  SettleRequest
		want error
	}{
		{"missing match id", SettleRequest{Result: outcome(domain.Home)}, domain.ErrInvalidInput},
		{"no result nor simulate", SettleRequest{MatchID: "M"}, domain.ErrInvalidInput},
		{"invalid result", SettleRequest{MatchID: "M", Result: &bad}, domain.ErrInvalidInput},
		{"unknown match", SettleRequest{MatchID: "nope", Simulate: true}, domain.ErrMatchNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Settle(context.Background(), tt.req)
			if !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestSettle_Simulate(t *testing.T) {
	st := seed()
	svc := newService(st)
	svc.Random = func() float64 { return 0.99 }

	res, err := svc.Settle(context.Background(), SettleRequest{MatchID: "M", Simulate: true})
	if err != nil {
		t.Fatal(err)
	}
	if res.Result != domain.Away {
		t.Errorf("result = %s, want away for r=0.99", res.Result)
	}
}

func TestSimulateOutcome(t *testing.T) {
	o := odds("2.0", "4.0", "4.0") // pesos 0.5, 0.25, 0.25
	tests := []struct {
		r    float64
		want domain.Outcome
	}{
		{0, domain.Home},
		{0.49, domain.Home},
		{0.5, domain.Draw},
		{0.74, domain.Draw},
		{0.75, domain.Away},
		{0.9999, domain.Away},
	}
	for _, tt := range tests {
		if got := SimulateOutcome(o, tt.r); got != tt.want {
			t.Errorf("SimulateOutcome(r=%v) = %s, want %s", tt.r, got, tt.want)
		}
	}

	// odds inválidas nunca são sorteadas
	zeroDraw := odds("2.0", "0", "2.0")
	for _, r := range []float64{0, 0.3, 0.5, 0.7, 0.99} {
		if got := SimulateOutcome(zeroDraw, r); got == domain.Draw {
			t.Errorf("r=%v picked outcome with zero odds", r)
		}
	}
}

func TestRunPass(t *testing.T) {
	st := memstore.New()
	st.AddProfile(domain.Profile{UserID: "u1", Tokens: 1000})
	// M1 já tem resultado; M2 começou agora; M3 terminou pelo end_time e aguarda resultado
	end := now.Add(-time.Minute)
	st.AddMatch(domain.Match{ID: "M1", Status: domain.StatusFinished, Result: outcome(domain.Draw), StartTime: now.Add(-3 * time.Hour)})
	st.AddMatch(domain.Match{ID: "M2", Status: domain.StatusUpcoming, StartTime: now.Add(-time.Minute)})
	st.AddMatch(domain.Match{ID: "M3", Status: domain.StatusLive, StartTime: now.Add(-time.Hour), EndTime: &end})
	st.AddBet(domain.SimpleBet{ID: "B1", UserID: "u1", MatchID: "M1", Stake: 10, Currency: domain.Tokens, Choice: domain.Draw, Odds: d("3.0")})
	st.AddBet(domain.SimpleBet{ID: "B2", UserID: "u1", MatchID: "M1", Stake: 10, Currency: domain.Tokens, Choice: domain.Home, Odds: d("2.0")})
	st.AddCombo(domain.ComboBet{
		ID: "C1", UserID: "u1", Stake: 20, Currency: domain.Tokens, TotalOdds: d("6.0"),
		Selections: []domain.Selection{
			{MatchID: "M1", Choice: domain.Draw, Odds: d("3.0")},
			{MatchID: "M2", Choice: domain.Home, Odds: d("2.0")},
		},
	})

	svc := newService(st)
	var reported bool
	svc.OnPass = func(PassReport, time.Duration) { reported = true }
	ctx := context.Background()

	rep, err := svc.RunPass(ctx)
	if err != nil {
		t.Fatalf("RunPass: %v", err)
	}
	if rep.Resolved != 2 || rep.Failed != 0 || rep.ComboResolved != 0 {
		t.Errorf("report = %+v", rep)
	}
	if rep.Transitions.Live != 1 || rep.Transitions.Finished != 1 {
		t.Errorf("transitions = %+v", rep.Transitions)
	}
	if !reported {
		t.Error("OnPass not called")
	}

	// segunda passada não credita de novo
	p1, _ := st.GetProfile(ctx, "u1")
	rep, err = svc.RunPass(ctx)
	if err != nil {
		t.Fatal(err)
	}
	p2, _ := st.GetProfile(ctx, "u1")
	if rep.Resolved != 0 || p1.Tokens != p2.Tokens {
		t.Errorf("second pass: report=%+v tokens %d -> %d", rep, p1.Tokens, p2.Tokens)
	}

	// resultado de M2 chega; a combinada fecha na próxima passada
	if err := st.SetResult(ctx, "M2", domain.Home); err != nil {
		t.Fatal(err)
	}
	rep, err = svc.RunPass(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if rep.ComboResolved != 1 {
		t.Errorf("report = %+v, want comboResolved=1", rep)
	}
	c, _ := st.GetCombo(ctx, "C1")
	if c.TokensWon != 120 || c.DiamondsWon != 1 {
		t.Errorf("combo = %+v", c)
	}
}

type heldLock struct{}

func (heldLock) Acquire(context.Context) (func(context.Context) error, error) {
	return nil, cache.ErrLockHeld
}

type countingLock struct{ acquired, released int }

func (l *countingLock) Acquire(context.Context) (func(context.Context) error, error) {
	l.acquired++
	return func(context.Context) error { l.released++; return nil }, nil
}

func TestRunPass_Lock(t *testing.T) {
	svc := newService(seed())
	svc.Lock = heldLock{}
	if _, err := svc.RunPass(context.Background()); !errors.Is(err, ErrPassInProgress) {
		t.Fatalf("err = %v, want ErrPassInProgress", err)
	}

	l := &countingLock{}
	svc.Lock = l
	if _, err := svc.RunPass(context.Background()); err != nil {
		t.Fatal(err)
	}
	if l.acquired != 1 || l.released != 1 {
		t.Errorf("lock acquired=%d released=%d", l.acquired, l.released)
	}
}

type countingCache struct{ n int }

func (c *countingCache) Invalidate(context.Context) error { c.n++; return nil }

func TestSettle_InvalidatesCache(t *testing.T) {
	svc := newService(seed())
	c := &countingCache{}
	svc.Cache = c
	if _, err := svc.Settle(context.Background(), SettleRequest{MatchID: "M", Result: outcome(domain.Draw)}); err != nil {
		t.Fatal(err)
	}
	if c.n == 0 {
		t.Error("cache not invalidated")
	}
}
