package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/radieske/sports-bet-settlement/internal/settlement-service/dto"
	"github.com/radieske/sports-bet-settlement/internal/settlement/domain"
	"github.com/radieske/sports-bet-settlement/internal/settlement/placement"
	"github.com/radieske/sports-bet-settlement/internal/settlement/service"
	"github.com/radieske/sports-bet-settlement/internal/settlement/status"
)

type Settler interface {
	Settle(ctx context.Context, req service.SettleRequest) (service.SettleResult, error)
	RunPass(ctx context.Context) (service.PassReport, error)
	AdvanceStatuses(ctx context.Context) (status.Transitions, error)
}

type Placer interface {
	PlaceBet(ctx context.Context, req placement.BetRequest) (*domain.SimpleBet, error)
	PlaceCombo(ctx context.Context, req placement.ComboRequest) (*domain.ComboBet, error)
}

type MatchReader interface {
	FindByID(ctx context.Context, id string) (*domain.Match, error)
	List(ctx context.Context, status *domain.MatchStatus) ([]domain.Match, error)
}

type BetReader interface {
	GetBet(ctx context.Context, id string) (*domain.SimpleBet, error)
	GetCombo(ctx context.Context, id string) (*domain.ComboBet, error)
}

type ProfileReader interface {
	GetProfile(ctx context.Context, userID string) (*domain.Profile, error)
	Leaderboard(ctx context.Context, limit int) ([]domain.Profile, error)
}

type MatchCache interface {
	Get(ctx context.Context, status *domain.MatchStatus) ([]domain.Match, bool, error)
	Set(ctx context.Context, status *domain.MatchStatus, matches []domain.Match) error
}

const (
	defaultLeaderboard = 10
	maxLeaderboard     = 100
	maxBodyBytes       = 1 << 20
)

var validate = validator.New()

// API expõe liquidação, apostas e leituras do settlement-service
type API struct {
	Log        *zap.Logger
	Settlement Settler
	Placement  Placer
	Matches    MatchReader
	Bets       BetReader
	Profiles   ProfileReader
	Cache      MatchCache // opcional
}

func (a *API) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Post("/v1/settle", a.settle)      // liquidação interativa
	r.Post("/v1/settle/run", a.runPass) // passada completa sob demanda
	r.Post("/v1/bets", a.placeBet)      // aposta simples
	r.Post("/v1/combos", a.placeCombo)  // combinada
	r.Get("/v1/matches", a.listMatches) // ?status=upcoming|live|finished
	r.Get("/v1/matches/{id}", a.getMatch)
	r.Get("/v1/bets/{id}", a.getBet)
	r.Get("/v1/combos/{id}", a.getCombo)
	r.Get("/v1/profiles/{userId}", a.getProfile)
	r.Get("/v1/leaderboard", a.leaderboard) // ?limit=
	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError traduz erros de domínio para status HTTP
func (a *API) writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		code = http.StatusBadRequest
	case errors.Is(err, domain.ErrMatchNotFound),
		errors.Is(err, domain.ErrBetNotFound),
		errors.Is(err, domain.ErrProfileNotFound):
		code = http.StatusNotFound
	case errors.Is(err, domain.ErrAlreadySettled),
		errors.Is(err, domain.ErrInsufficientFunds),
		errors.Is(err, domain.ErrMatchNotOpen),
		errors.Is(err, domain.ErrOddsChanged),
		errors.Is(err, service.ErrPassInProgress):
		code = http.StatusConflict
	}

	msg := err.Error()
	if code == http.StatusInternalServerError {
		a.Log.Error("request failed",
			zap.String("path", r.URL.Path),
			zap.String("requestId", middleware.GetReqID(r.Context())),
			zap.Error(err),
		)
		msg = "internal error"
	}
	writeJSON(w, code, dto.ErrorResponse{Error: msg})
}

// decode lê o JSON e aplica as tags validate
func decode(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}
	if err := validate.Struct(dst); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}
	return nil
}

func (a *API) settle(w http.ResponseWriter, r *http.Request) {
	var req dto.SettleRequest
	if err := decode(w, r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}
	res, err := a.Settlement.Settle(r.Context(), service.SettleRequest{
		MatchID:  req.MatchID,
		Result:   req.Result,
		Simulate: req.Simulate,
	})
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (a *API) runPass(w http.ResponseWriter, r *http.Request) {
	rep, err := a.Settlement.RunPass(r.Context())
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

func (a *API) placeBet(w http.ResponseWriter, r *http.Request) {
	var req dto.PlaceBetRequest
	if err := decode(w, r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}
	if req.Currency == "" {
		req.Currency = domain.Tokens
	}
	bet, err := a.Placement.PlaceBet(r.Context(), placement.BetRequest{
		UserID:       req.UserID,
		MatchID:      req.MatchID,
		Stake:        req.Stake,
		Currency:     req.Currency,
		Choice:       req.Choice,
		ExpectedOdds: req.Odds,
	})
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, bet)
}

func (a *API) placeCombo(w http.ResponseWriter, r *http.Request) {
	var req dto.PlaceComboRequest
	if err := decode(w, r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}
	if req.Currency == "" {
		req.Currency = domain.Tokens
	}
	sels := make([]placement.SelectionRequest, len(req.Selections))
	for i, s := range req.Selections {
		sels[i] = placement.SelectionRequest{MatchID: s.MatchID, Choice: s.Choice}
	}
	combo, err := a.Placement.PlaceCombo(r.Context(), placement.ComboRequest{
		UserID:     req.UserID,
		Stake:      req.Stake,
		Currency:   req.Currency,
		Selections: sels,
	})
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, combo)
}

// listMatches roda as transições de status antes de ler; a lista vai para o cache por alguns segundos
func (a *API) listMatches(w http.ResponseWriter, r *http.Request) {
	var filter *domain.MatchStatus
	if q := r.URL.Query().Get("status"); q != "" {
		st := domain.MatchStatus(q)
		if !st.Valid() {
			a.writeError(w, r, fmt.Errorf("%w: status %q", domain.ErrInvalidInput, q))
			return
		}
		filter = &st
	}

	if _, err := a.Settlement.AdvanceStatuses(r.Context()); err != nil {
		a.Log.Warn("status transitions on read failed", zap.Error(err))
	}

	if a.Cache != nil {
		if ms, ok, err := a.Cache.Get(r.Context(), filter); err == nil && ok {
			writeJSON(w, http.StatusOK, dto.MatchListResponse{Matches: ms, Cached: true})
			return
		}
	}

	ms, err := a.Matches.List(r.Context(), filter)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	if ms == nil {
		ms = []domain.Match{}
	}
	if a.Cache != nil {
		if err := a.Cache.Set(r.Context(), filter, ms); err != nil {
			a.Log.Warn("match list cache set failed", zap.Error(err))
		}
	}
	writeJSON(w, http.StatusOK, dto.MatchListResponse{Matches: ms})
}

func (a *API) getMatch(w http.ResponseWriter, r *http.Request) {
	m, err := a.Matches.FindByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (a *API) getBet(w http.ResponseWriter, r *http.Request) {
	b, err := a.Bets.GetBet(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (a *API) getCombo(w http.ResponseWriter, r *http.Request) {
	c, err := a.Bets.GetCombo(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (a *API) getProfile(w http.ResponseWriter, r *http.Request) {
	p, err := a.Profiles.GetProfile(r.Context(), chi.URLParam(r, "userId"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (a *API) leaderboard(w http.ResponseWriter, r *http.Request) {
	limit := defaultLeaderboard
	if q := r.URL.Query().Get("limit"); q != "" {
		n, err := strconv.Atoi(q)
		if err != nil || n <= 0 {
			a.writeError(w, r, fmt.Errorf("%w: limit %q", domain.ErrInvalidInput, q))
			return
		}
		limit = min(n, maxLeaderboard)
	}
	ps, err := a.Profiles.Leaderboard(r.Context(), limit)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	if ps == nil {
		ps = []domain.Profile{}
	}
	writeJSON(w, http.StatusOK, dto.LeaderboardResponse{Profiles: ps})
}
