package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/radieske/sports-bet-settlement/internal/settlement-service/dto"
	"github.com/radieske/sports-bet-settlement/internal/settlement/domain"
	"github.com/radieske/sports-bet-settlement/internal/settlement/memstore"
	"github.com/radieske/sports-bet-settlement/internal/settlement/placement"
	"github.com/radieske/sports-bet-settlement/internal/settlement/resolver"
	"github.com/radieske/sports-bet-settlement/internal/settlement/service"
	"github.com/radieske/sports-bet-settlement/internal/settlement/status"
)

type memCache struct {
	lists map[string][]domain.Match
	sets  int
}

func key(s *domain.MatchStatus) string {
	if s == nil {
		return "all"
	}
	return string(*s)
}

func (c *memCache) Get(_ context.Context, s *domain.MatchStatus) ([]domain.Match, bool, error) {
	ms, ok := c.lists[key(s)]
	return ms, ok, nil
}

func (c *memCache) Set(_ context.Context, s *domain.MatchStatus, ms []domain.Match) error {
	c.lists[key(s)] = ms
	c.sets++
	return nil
}

func (c *memCache) Invalidate(context.Context) error {
	clear(c.lists)
	return nil
}

func newTestAPI(t *testing.T) (*memstore.Store, *memCache, http.Handler) {
	t.Helper()
	log := zap.NewNop()
	st := memstore.New()
	st.AddProfile(domain.Profile{UserID: "u1", Username: "ana", Tokens: 1000, Diamonds: 3})
	st.AddProfile(domain.Profile{UserID: "u2", Username: "bia", Tokens: 10, Diamonds: 7})
	future := time.Now().Add(48 * time.Hour)
	odds := domain.Odds{Home: decimal.RequireFromString("2.0"), Draw: decimal.RequireFromString("3.0"), Away: decimal.RequireFromString("4.0")}
	st.AddMatch(domain.Match{ID: "M1", HomeTeam: "Flamengo", AwayTeam: "Palmeiras", Odds: odds, Status: domain.StatusUpcoming, StartTime: future})
	st.AddMatch(domain.Match{ID: "M2", HomeTeam: "Santos", AwayTeam: "Grêmio", Odds: odds, Status: domain.StatusUpcoming, StartTime: future.Add(time.Hour)})

	c := &memCache{lists: map[string][]domain.Match{}}
	svc := &service.Service{
		Log:      log,
		Matches:  st,
		Engine:   status.NewEngine(st, 2*time.Hour, log),
		Resolver: &resolver.Resolver{Log: log, Bets: st, Combos: st, Ledger: st},
		Cache:    c,
	}
	api := &API{
		Log:        log,
		Settlement: svc,
		Placement:  placement.New(log, st, st, nil, 2*time.Hour),
		Matches:    st,
		Bets:       st,
		Profiles:   st,
		Cache:      c,
	}
	return st, c, api.Router()
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestPlaceAndSettleFlow(t *testing.T) {
	st, _, h := newTestAPI(t)

	rec := do(t, h, http.MethodPost, "/v1/bets", `{"userId":"u1","matchId":"M1","stake":100,"choice":"Home"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("place bet: %d %s", rec.Code, rec.Body)
	}
	var bet domain.SimpleBet
	if err := json.Unmarshal(rec.Body.Bytes(), &bet); err != nil {
		t.Fatal(err)
	}
	if bet.Currency != domain.Tokens || !bet.Odds.Equal(decimal.RequireFromString("2.0")) {
		t.Errorf("bet = %+v", bet)
	}

	rec = do(t, h, http.MethodPost, "/v1/settle", `{"matchId":"M1","result":"home"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("settle: %d %s", rec.Code, rec.Body)
	}
	var res service.SettleResult
	_ = json.Unmarshal(rec.Body.Bytes(), &res)
	if res.Processed != 1 || res.Result != domain.Home {
		t.Errorf("settle result = %+v", res)
	}

	rec = do(t, h, http.MethodGet, "/v1/bets/"+bet.ID, "")
	var got domain.SimpleBet
	_ = json.Unmarshal(rec.Body.Bytes(), &got)
	if got.IsWin == nil || !*got.IsWin || got.TokensWon != 200 || got.DiamondsWon != 1 {
		t.Errorf("resolved bet = %+v", got)
	}

	p, _ := st.GetProfile(context.Background(), "u1")
	if p.Tokens != 1100 || p.Diamonds != 4 {
		t.Errorf("profile = %+v, want tokens=1100 diamonds=4", p)
	}

	// segunda liquidação da mesma partida
	rec = do(t, h, http.MethodPost, "/v1/settle", `{"matchId":"M1","result":"away"}`)
	if rec.Code != http.StatusConflict {
		t.Errorf("second settle: %d, want 409", rec.Code)
	}
}

func TestErrorMapping(t *testing.T) {
	_, _, h := newTestAPI(t)
	tests := []struct {
		name   string
		method string
		path   string
		body   string
		want   int
	}{
		{"bad json", http.MethodPost, "/v1/settle", `{`, http.StatusBadRequest},
		{"unknown field", http.MethodPost, "/v1/settle", `{"matchId":"M1","winner":"home"}`, http.StatusBadRequest},
		{"missing match id", http.MethodPost, "/v1/settle", `{"result":"home"}`, http.StatusBadRequest},
		{"invalid outcome", http.MethodPost, "/v1/settle", `{"matchId":"M1","result":"over"}`, http.StatusBadRequest},
		{"no result nor simulate", http.MethodPost, "/v1/settle", `{"matchId":"M1"}`, http.StatusBadRequest},
		{"unknown match", http.MethodPost, "/v1/settle", `{"matchId":"X","simulate":true}`, http.StatusNotFound},
		{"zero stake", http.MethodPost, "/v1/bets", `{"userId":"u1","matchId":"M1","stake":0,"choice":"home"}`, http.StatusBadRequest},
		{"bad currency", http.MethodPost, "/v1/bets", `{"userId":"u1","matchId":"M1","stake":5,"currency":"gold","choice":"home"}`, http.StatusBadRequest},
		{"insufficient funds", http.MethodPost, "/v1/bets", `{"userId":"u2","matchId":"M1","stake":50,"choice":"home"}`, http.StatusConflict},
		{"odds changed", http.MethodPost, "/v1/bets", `{"userId":"u1","matchId":"M1","stake":5,"choice":"home","odds":"1.9"}`, http.StatusConflict},
		{"combo one leg", http.MethodPost, "/v1/combos", `{"userId":"u1","stake":5,"selections":[{"matchId":"M1","choice":"home"}]}`, http.StatusBadRequest},
		{"bet not found", http.MethodGet, "/v1/bets/nope", "", http.StatusNotFound},
		{"profile not found", http.MethodGet, "/v1/profiles/nope", "", http.StatusNotFound},
		{"bad status filter", http.MethodGet, "/v1/matches?status=paused", "", http.StatusBadRequest},
		{"bad limit", http.MethodGet, "/v1/leaderboard?limit=-1", "", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, tt.method, tt.path, tt.body)
			if rec.Code != tt.want {
				t.Fatalf("status = %d, want %d (%s)", rec.Code, tt.want, rec.Body)
			}
			var e dto.ErrorResponse
			if err := json.Unmarshal(rec.Body.Bytes(), &e); err != nil || e.Error == "" {
				t.Errorf("body = %s", rec.Body)
			}
		})
	}
}

func TestPlaceCombo(t *testing.T) {
	st, _, h := newTestAPI(t)
	rec := do(t, h, http.MethodPost, "/v1/combos",
		`{"userId":"u1","stake":10,"currency":"tokens","selections":[{"matchId":"M1","choice":"home"},{"matchId":"M2","choice":"draw"}]}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("place combo: %d %s", rec.Code, rec.Body)
	}
	var c domain.ComboBet
	_ = json.Unmarshal(rec.Body.Bytes(), &c)
	if !c.TotalOdds.Equal(decimal.RequireFromString("6.0")) {
		t.Errorf("total odds = %s", c.TotalOdds)
	}
	if rec := do(t, h, http.MethodGet, "/v1/combos/"+c.ID, ""); rec.Code != http.StatusOK {
		t.Errorf("get combo: %d", rec.Code)
	}
	if p, _ := st.GetProfile(context.Background(), "u1"); p.Tokens != 990 {
		t.Errorf("tokens = %d", p.Tokens)
	}
}

func TestListMatches_Cache(t *testing.T) {
	_, c, h := newTestAPI(t)

	rec := do(t, h, http.MethodGet, "/v1/matches?status=upcoming", "")
	var first dto.MatchListResponse
	_ = json.Unmarshal(rec.Body.Bytes(), &first)
	if rec.Code != http.StatusOK || len(first.Matches) != 2 || first.Cached {
		t.Fatalf("first list: %d %+v", rec.Code, first)
	}

	rec = do(t, h, http.MethodGet, "/v1/matches?status=upcoming", "")
	var second dto.MatchListResponse
	_ = json.Unmarshal(rec.Body.Bytes(), &second)
	if !second.Cached || c.sets != 1 {
		t.Errorf("second list cached=%v sets=%d", second.Cached, c.sets)
	}

	// liquidar invalida o cache
	if rec := do(t, h, http.MethodPost, "/v1/settle", `{"matchId":"M1","result":"draw"}`); rec.Code != http.StatusOK {
		t.Fatalf("settle: %d %s", rec.Code, rec.Body)
	}
	rec = do(t, h, http.MethodGet, "/v1/matches?status=upcoming", "")
	var third dto.MatchListResponse
	_ = json.Unmarshal(rec.Body.Bytes(), &third)
	if third.Cached || len(third.Matches) != 1 {
		t.Errorf("after settle: %+v", third)
	}
}

func TestLeaderboard(t *testing.T) {
	_, _, h := newTestAPI(t)
	rec := do(t, h, http.MethodGet, "/v1/leaderboard?limit=1", "")
	var lb dto.LeaderboardResponse
	_ = json.Unmarshal(rec.Body.Bytes(), &lb)
	if rec.Code != http.StatusOK || len(lb.Profiles) != 1 || lb.Profiles[0].UserID != "u2" {
		t.Errorf("leaderboard: %d %+v", rec.Code, lb)
	}
}

func TestRunPass(t *testing.T) {
	_, _, h := newTestAPI(t)
	rec := do(t, h, http.MethodPost, "/v1/settle/run", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("run: %d %s", rec.Code, rec.Body)
	}
	var rep service.PassReport
	if err := json.Unmarshal(rec.Body.Bytes(), &rep); err != nil {
		t.Fatal(err)
	}
}
