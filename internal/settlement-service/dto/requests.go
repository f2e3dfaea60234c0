package dto

import (
	"github.com/shopspring/decimal"

	"github.com/radieske/sports-bet-settlement/internal/settlement/domain"
)

type SettleRequest struct {
	MatchID  string          `json:"matchId" validate:"required"`
	Result   *domain.Outcome `json:"result,omitempty"`
	Simulate bool            `json:"simulate"`
}

type PlaceBetRequest struct {
	UserID   string           `json:"userId" validate:"required"`
	MatchID  string           `json:"matchId" validate:"required"`
	Stake    int64            `json:"stake" validate:"gt=0"`
	Currency domain.Currency  `json:"currency" validate:"omitempty,oneof=tokens diamonds"` // default tokens
	Choice   domain.Outcome   `json:"choice" validate:"required"`
	Odds     *decimal.Decimal `json:"odds,omitempty"` // odd que o cliente viu
}

type Selection struct {
	MatchID string         `json:"matchId" validate:"required"`
	Choice  domain.Outcome `json:"choice" validate:"required"`
}

type PlaceComboRequest struct {
	UserID     string          `json:"userId" validate:"required"`
	Stake      int64           `json:"stake" validate:"gt=0"`
	Currency   domain.Currency `json:"currency" validate:"omitempty,oneof=tokens diamonds"`
	Selections []Selection     `json:"selections" validate:"min=2,dive"`
}
