package events

import "time"

const (
	KindSimple = "simple"
	KindCombo  = "combo"
)

// Evento emitido a cada aposta liquidada; o win-notifier avisa o usuário quando IsWin.
type BetSettled struct {
	BetID       string    `json:"betId"`
	Kind        string    `json:"kind"` // "simple" | "combo"
	UserID      string    `json:"userId"`
	MatchID     string    `json:"matchId,omitempty"` // vazio em combinadas
	IsWin       bool      `json:"isWin"`
	TokensWon   int64     `json:"tokensWon"`
	DiamondsWon int64     `json:"diamondsWon"`
	Ts          time.Time `json:"ts"`
}
