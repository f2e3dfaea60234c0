// Package payout calcula retorno e bônus de apostas vencedoras.
//
// Arredondamento é sempre para baixo (floor): o sistema nunca paga fração de moeda
// a mais do que stake × odds.
package payout

import (
	"github.com/shopspring/decimal"

	"github.com/radieske/sports-bet-settlement/internal/settlement/domain"
)

// DefaultBonusRate é a fração do lucro em tokens creditada como diamantes (1%)
var DefaultBonusRate = decimal.RequireFromString("0.01")

// Calculator aplica a regra de pagamento com uma taxa de bônus fixa.
// O zero value não paga bônus.
type Calculator struct {
	BonusRate decimal.Decimal
}

func NewCalculator(bonusRate decimal.Decimal) Calculator {
	return Calculator{BonusRate: bonusRate}
}

// Payout é o resultado do cálculo para uma aposta vencedora
type Payout struct {
	TotalReturn   int64 // floor(stake × odds)
	Profit        int64 // TotalReturn - stake
	BonusDiamonds int64 // floor(profit × BonusRate) só para apostas em tokens
	TokensWon     int64 // crédito em tokens
	DiamondsWon   int64 // crédito em diamantes (retorno ou bônus)
}

// Compute usa a taxa padrão
func Compute(t domain.Ticket) Payout {
	return NewCalculator(DefaultBonusRate).Compute(t)
}

// Resolve usa a taxa padrão
func Resolve(t domain.Ticket, won bool) domain.Resolution {
	return NewCalculator(DefaultBonusRate).Resolve(t, won)
}

// Compute é puro e determinístico
func (c Calculator) Compute(t domain.Ticket) Payout {
	total := decimal.NewFromInt(t.Stake).Mul(t.Odds).Floor().IntPart()
	p := Payout{
		TotalReturn: total,
		Profit:      total - t.Stake,
	}

	switch t.Currency {
	case domain.Diamonds:
		p.DiamondsWon = total
	default:
		p.TokensWon = total
		if p.Profit > 0 {
			p.BonusDiamonds = decimal.NewFromInt(p.Profit).Mul(c.BonusRate).Floor().IntPart()
		}
		p.DiamondsWon = p.BonusDiamonds
	}
	return p
}

// Resolve aplica o cálculo ao desfecho da aposta; derrota não credita nada
func (c Calculator) Resolve(t domain.Ticket, won bool) domain.Resolution {
	if !won {
		return domain.Resolution{IsWin: false}
	}
	p := c.Compute(t)
	return domain.Resolution{
		IsWin:       true,
		TokensWon:   p.TokensWon,
		DiamondsWon: p.DiamondsWon,
	}
}
