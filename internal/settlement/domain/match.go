package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Odds decimais 1x2
type Odds struct {
	Home decimal.Decimal `json:"home"`
	Draw decimal.Decimal `json:"draw"`
	Away decimal.Decimal `json:"away"`
}

// For retorna a odd do resultado informado
func (o Odds) For(outcome Outcome) decimal.Decimal {
	switch outcome {
	case Home:
		return o.Home
	case Draw:
		return o.Draw
	case Away:
		return o.Away
	}
	return decimal.Zero
}

// Match é uma partida; Result só existe quando Status == finished
type Match struct {
	ID        string      `json:"id"`
	HomeTeam  string      `json:"homeTeam"`
	AwayTeam  string      `json:"awayTeam"`
	League    string      `json:"league"`
	Odds      Odds        `json:"odds"`
	Status    MatchStatus `json:"status"`
	Result    *Outcome    `json:"result,omitempty"`
	StartTime time.Time   `json:"startTime"`
	EndTime   *time.Time  `json:"endTime,omitempty"`
}

// Settled indica partida encerrada com resultado definido
func (m *Match) Settled() bool {
	return m.Status == StatusFinished && m.Result != nil
}

// FinishesAt é o instante em que a partida passa a finished:
// end_time quando existe, senão start_time + grace.
func (m *Match) FinishesAt(grace time.Duration) time.Time {
	if m.EndTime != nil {
		return *m.EndTime
	}
	return m.StartTime.Add(grace)
}

// NextStatus calcula o status devido em now. Nunca retrocede.
func (m *Match) NextStatus(now time.Time, grace time.Duration) MatchStatus {
	if m.Status == StatusFinished {
		return StatusFinished
	}
	if !m.FinishesAt(grace).After(now) {
		return StatusFinished
	}
	if m.Status == StatusUpcoming && !m.StartTime.After(now) {
		return StatusLive
	}
	return m.Status
}
