package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Ticket é o que o cálculo de pagamento precisa de qualquer aposta
type Ticket struct {
	Stake    int64
	Odds     decimal.Decimal
	Currency Currency
}

// Wager é uma aposta simples ou combinada
type Wager interface {
	WagerID() string
	Owner() string
	Ticket() Ticket
}

// Resolution é o desfecho gravado uma única vez na aposta
type Resolution struct {
	IsWin       bool  `json:"isWin"`
	TokensWon   int64 `json:"tokensWon"`
	DiamondsWon int64 `json:"diamondsWon"`
}

// SimpleBet aposta em um único resultado de uma partida.
// Odds é o snapshot do momento da aposta.
type SimpleBet struct {
	ID          string          `json:"id"`
	UserID      string          `json:"userId"`
	MatchID     string          `json:"matchId"`
	Stake       int64           `json:"stake"`
	Currency    Currency        `json:"currency"`
	Choice      Outcome         `json:"choice"`
	Odds        decimal.Decimal `json:"odds"`
	IsWin       *bool           `json:"isWin"`
	TokensWon   int64           `json:"tokensWon"`
	DiamondsWon int64           `json:"diamondsWon"`
	CreatedAt   time.Time       `json:"createdAt"`
	ResolvedAt  *time.Time      `json:"resolvedAt,omitempty"`
}

func (b *SimpleBet) WagerID() string { return b.ID }
func (b *SimpleBet) Owner() string   { return b.UserID }
func (b *SimpleBet) Ticket() Ticket {
	return Ticket{Stake: b.Stake, Odds: b.Odds, Currency: b.Currency}
}

// Pending indica aposta ainda não liquidada
func (b *SimpleBet) Pending() bool { return b.IsWin == nil }

// Selection é uma perna da combinada; MatchStatus/MatchResult vêm do join com matches
type Selection struct {
	MatchID     string          `json:"matchId"`
	Choice      Outcome         `json:"choice"`
	Odds        decimal.Decimal `json:"odds"`
	MatchStatus MatchStatus     `json:"matchStatus,omitempty"`
	MatchResult *Outcome        `json:"matchResult,omitempty"`
}

// Settled indica perna cuja partida já terminou com resultado
func (s Selection) Settled() bool {
	return s.MatchStatus == StatusFinished && s.MatchResult != nil
}

// Won só faz sentido quando Settled
func (s Selection) Won() bool {
	return s.Settled() && *s.MatchResult == s.Choice
}

// ComboBet exige que todas as pernas acertem
type ComboBet struct {
	ID          string          `json:"id"`
	UserID      string          `json:"userId"`
	Stake       int64           `json:"stake"`
	Currency    Currency        `json:"currency"`
	TotalOdds   decimal.Decimal `json:"totalOdds"`
	Selections  []Selection     `json:"selections"`
	IsWin       *bool           `json:"isWin"`
	TokensWon   int64           `json:"tokensWon"`
	DiamondsWon int64           `json:"diamondsWon"`
	CreatedAt   time.Time       `json:"createdAt"`
	ResolvedAt  *time.Time      `json:"resolvedAt,omitempty"`
}

// MinSelections é o mínimo de pernas de uma combinada
const MinSelections = 2

func (c *ComboBet) WagerID() string { return c.ID }
func (c *ComboBet) Owner() string   { return c.UserID }

// Ticket paga pelo produto exato das pernas quando elas estão carregadas;
// TotalOdds gravado pode ter sido arredondado pelo banco.
func (c *ComboBet) Ticket() Ticket {
	odds := c.TotalOdds
	if len(c.Selections) > 0 {
		odds = CombinedOdds(c.Selections)
	}
	return Ticket{Stake: c.Stake, Odds: odds, Currency: c.Currency}
}

func (c *ComboBet) Pending() bool { return c.IsWin == nil }

// Ready indica que todas as pernas estão liquidadas
func (c *ComboBet) Ready() bool {
	if len(c.Selections) < MinSelections {
		return false
	}
	for _, s := range c.Selections {
		if !s.Settled() {
			return false
		}
	}
	return true
}

// AllWon é o AND de todas as pernas; só chamar quando Ready
func (c *ComboBet) AllWon() bool {
	for _, s := range c.Selections {
		if !s.Won() {
			return false
		}
	}
	return true
}

// CombinedOdds é o produto das odds das pernas
func CombinedOdds(selections []Selection) decimal.Decimal {
	total := decimal.NewFromInt(1)
	for _, s := range selections {
		total = total.Mul(s.Odds)
	}
	return total
}

// Profile é o saldo do usuário nas duas moedas
type Profile struct {
	UserID    string `json:"userId"`
	Username  string `json:"username"`
	Tokens    int64  `json:"tokens"`
	Diamonds  int64  `json:"diamonds"`
	TotalBets int    `json:"totalBets"`
	WonBets   int    `json:"wonBets"`
}

// Balance retorna o saldo na moeda informada
func (p *Profile) Balance(c Currency) int64 {
	if c == Diamonds {
		return p.Diamonds
	}
	return p.Tokens
}
