package events

// Evento emitido pelo settlement-service quando uma aposta é aceita (saldo já debitado).
type BetPlaced struct {
	BetID    string   `json:"bet_id"`
	Kind     string   `json:"kind"` // "simple" | "combo"
	UserID   string   `json:"user_id"`
	MatchIDs []string `json:"match_ids"`
	Stake    int64    `json:"stake"`
	Currency string   `json:"currency"`
	Odds     string   `json:"odds"` // decimal em string para não perder precisão
	TsUnixMs int64    `json:"ts_unix_ms"`
}
