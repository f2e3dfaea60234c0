package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/lib/pq"

	"github.com/radieske/sports-bet-settlement/internal/settlement/domain"
)

// BetRepo lê apostas simples e combinadas; escrita fica no Ledger
type BetRepo struct{ db *sql.DB }

func NewBetRepo(db *sql.DB) *BetRepo { return &BetRepo{db: db} }

const betCols = `id, user_id, match_id, stake, currency, choice, odds, is_win, tokens_won, diamonds_won, created_at, resolved_at`

func scanBet(row scanner) (domain.SimpleBet, error) {
	var (
		b        domain.SimpleBet
		currency string
		choice   string
		isWin    sql.NullBool
		resolved sql.NullTime
	)
	err := row.Scan(&b.ID, &b.UserID, &b.MatchID, &b.Stake, &currency, &choice, &b.Odds,
		&isWin, &b.TokensWon, &b.DiamondsWon, &b.CreatedAt, &resolved)
	if err != nil {
		return b, err
	}
	b.Currency, b.Choice = domain.Currency(currency), domain.Outcome(choice)
	if isWin.Valid {
		b.IsWin = &isWin.Bool
	}
	if resolved.Valid {
		b.ResolvedAt = &resolved.Time
	}
	return b, nil
}

func (r *BetRepo) ListPendingByMatch(ctx context.Context, matchID string) ([]domain.SimpleBet, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+betCols+` FROM bets
		WHERE match_id=$1 AND is_win IS NULL
		ORDER BY created_at, id`, matchID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.SimpleBet
	for rows.Next() {
		b, err := scanBet(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (r *BetRepo) GetBet(ctx context.Context, id string) (*domain.SimpleBet, error) {
	b, err := scanBet(r.db.QueryRowContext(ctx, `SELECT `+betCols+` FROM bets WHERE id::text=$1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrBetNotFound
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

const comboCols = `id, user_id, stake, currency, total_odds, is_win, tokens_won, diamonds_won, created_at, resolved_at`

func scanCombo(row scanner) (domain.ComboBet, error) {
	var (
		c        domain.ComboBet
		currency string
		isWin    sql.NullBool
		resolved sql.NullTime
	)
	err := row.Scan(&c.ID, &c.UserID, &c.Stake, &currency, &c.TotalOdds,
		&isWin, &c.TokensWon, &c.DiamondsWon, &c.CreatedAt, &resolved)
	if err != nil {
		return c, err
	}
	c.Currency = domain.Currency(currency)
	if isWin.Valid {
		c.IsWin = &isWin.Bool
	}
	if resolved.Valid {
		c.ResolvedAt = &resolved.Time
	}
	return c, nil
}

// ListPendingWithLegStatus traz combinadas pendentes com status/resultado atual de cada perna
func (r *BetRepo) ListPendingWithLegStatus(ctx context.Context) ([]domain.ComboBet, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+comboCols+` FROM combo_bets
		WHERE is_win IS NULL
		ORDER BY created_at, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var combos []domain.ComboBet
	for rows.Next() {
		c, err := scanCombo(rows)
		if err != nil {
			return nil, err
		}
		combos = append(combos, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := r.loadLegs(ctx, combos); err != nil {
		return nil, err
	}
	return combos, nil
}

func (r *BetRepo) GetCombo(ctx context.Context, id string) (*domain.ComboBet, error) {
	c, err := scanCombo(r.db.QueryRowContext(ctx, `SELECT `+comboCols+` FROM combo_bets WHERE id::text=$1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrBetNotFound
	}
	if err != nil {
		return nil, err
	}
	combos := []domain.ComboBet{c}
	if err := r.loadLegs(ctx, combos); err != nil {
		return nil, err
	}
	return &combos[0], nil
}

// loadLegs preenche as pernas com um único SELECT (join com matches)
func (r *BetRepo) loadLegs(ctx context.Context, combos []domain.ComboBet) error {
	if len(combos) == 0 {
		return nil
	}
	ids := make([]string, len(combos))
	idx := make(map[string]int, len(combos))
	for i, c := range combos {
		ids[i] = c.ID
		idx[c.ID] = i
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT s.combo_id, s.match_id, s.choice, s.odds, m.status, m.result
		FROM combo_selections s
		JOIN matches m ON m.id = s.match_id
		WHERE s.combo_id = ANY($1::uuid[])
		ORDER BY s.combo_id, s.match_id`, pq.Array(ids))
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			comboID, choice, status string
			result                  sql.NullString
			sel                     domain.Selection
		)
		if err := rows.Scan(&comboID, &sel.MatchID, &choice, &sel.Odds, &status, &result); err != nil {
			return err
		}
		sel.Choice, sel.MatchStatus = domain.Outcome(choice), domain.MatchStatus(status)
		if result.Valid {
			o := domain.Outcome(result.String)
			sel.MatchResult = &o
		}
		if i, ok := idx[comboID]; ok {
			combos[i].Selections = append(combos[i].Selections, sel)
		}
	}
	return rows.Err()
}
