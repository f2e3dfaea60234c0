package dto

import "github.com/radieske/sports-bet-settlement/internal/settlement/domain"

type ErrorResponse struct {
	Error string `json:"error"`
}

type MatchListResponse struct {
	Matches []domain.Match `json:"matches"`
	Cached  bool           `json:"cached"`
}

type LeaderboardResponse struct {
	Profiles []domain.Profile `json:"profiles"`
}
