package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/radieske/sports-bet-settlement/internal/settlement/domain"
)

// Operações gravadas em profile_ledger
const (
	OpBetDebit  = "BET_DEBIT"
	OpWinCredit = "WIN_CREDIT"
)

// Ledger concentra toda escrita que movimenta saldo.
// Cada operação é uma transação; saldo só muda via UPDATE atômico (col = col ± n).
type Ledger struct{ db *sql.DB }

func NewLedger(db *sql.DB) *Ledger { return &Ledger{db: db} }

// SettleBet grava o desfecho só se a aposta ainda estiver pendente (is_win IS NULL)
func (l *Ledger) SettleBet(ctx context.Context, bet *domain.SimpleBet, res domain.Resolution) error {
	return l.settle(ctx, "bets", bet.ID, bet.UserID, res)
}

func (l *Ledger) SettleCombo(ctx context.Context, combo *domain.ComboBet, res domain.Resolution) error {
	return l.settle(ctx, "combo_bets", combo.ID, combo.UserID, res)
}

// table é sempre um literal interno ("bets" ou "combo_bets")
func (l *Ledger) settle(ctx context.Context, table, id, userID string, res domain.Resolution) error {
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	r, err := tx.ExecContext(ctx, `
		UPDATE `+table+`
		SET is_win=$2, tokens_won=$3, diamonds_won=$4, resolved_at=NOW()
		WHERE id=$1 AND is_win IS NULL`,
		id, res.IsWin, res.TokensWon, res.DiamondsWon)
	if err != nil {
		return fmt.Errorf("mark %s %s: %w", table, id, err)
	}
	if n, err := r.RowsAffected(); err != nil {
		return err
	} else if n == 0 {
		return domain.ErrAlreadyResolved
	}

	if res.IsWin {
		r, err := tx.ExecContext(ctx, `
			UPDATE profiles
			SET tokens = tokens + $2, diamonds = diamonds + $3, won_bets = won_bets + 1, updated_at = NOW()
			WHERE user_id=$1`, userID, res.TokensWon, res.DiamondsWon)
		if err != nil {
			return fmt.Errorf("credit profile %s: %w", userID, err)
		}
		if n, err := r.RowsAffected(); err != nil {
			return err
		} else if n == 0 {
			return domain.ErrProfileNotFound
		}
		if err := insertLedger(ctx, tx, userID, OpWinCredit, res.TokensWon, res.DiamondsWon, id); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// PlaceBet debita o perfil e grava a aposta na mesma transação
func (l *Ledger) PlaceBet(ctx context.Context, bet *domain.SimpleBet) error {
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := debit(ctx, tx, bet.UserID, bet.Currency, bet.Stake, bet.ID); err != nil {
		return err
	}
	if err := tx.QueryRowContext(ctx, `
		INSERT INTO bets (id, user_id, match_id, stake, currency, choice, odds)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		RETURNING created_at`,
		bet.ID, bet.UserID, bet.MatchID, bet.Stake, string(bet.Currency), string(bet.Choice), bet.Odds,
	).Scan(&bet.CreatedAt); err != nil {
		return fmt.Errorf("insert bet: %w", err)
	}
	return tx.Commit()
}

func (l *Ledger) PlaceCombo(ctx context.Context, combo *domain.ComboBet) error {
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := debit(ctx, tx, combo.UserID, combo.Currency, combo.Stake, combo.ID); err != nil {
		return err
	}
	if err := tx.QueryRowContext(ctx, `
		INSERT INTO combo_bets (id, user_id, stake, currency, total_odds)
		VALUES ($1,$2,$3,$4,$5)
		RETURNING created_at`,
		combo.ID, combo.UserID, combo.Stake, string(combo.Currency), combo.TotalOdds,
	).Scan(&combo.CreatedAt); err != nil {
		return fmt.Errorf("insert combo: %w", err)
	}
	for _, s := range combo.Selections {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO combo_selections (combo_id, match_id, choice, odds)
			VALUES ($1,$2,$3,$4)`,
			combo.ID, s.MatchID, string(s.Choice), s.Odds); err != nil {
			return fmt.Errorf("insert selection %s: %w", s.MatchID, err)
		}
	}
	return tx.Commit()
}

// balanceColumn mapeia a moeda para a coluna de saldo
func balanceColumn(c domain.Currency) (string, error) {
	switch c {
	case domain.Tokens:
		return "tokens", nil
	case domain.Diamonds:
		return "diamonds", nil
	}
	return "", fmt.Errorf("%w: currency %q", domain.ErrInvalidInput, c)
}

// debit é condicional (saldo >= valor); sem linha afetada distingue perfil inexistente de saldo baixo
func debit(ctx context.Context, tx *sql.Tx, userID string, c domain.Currency, amount int64, ref string) error {
	col, err := balanceColumn(c)
	if err != nil {
		return err
	}
	r, err := tx.ExecContext(ctx, `
		UPDATE profiles
		SET `+col+` = `+col+` - $2, total_bets = total_bets + 1, updated_at = NOW()
		WHERE user_id=$1 AND `+col+` >= $2`, userID, amount)
	if err != nil {
		return fmt.Errorf("debit profile %s: %w", userID, err)
	}
	n, err := r.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		var exists bool
		if err := tx.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM profiles WHERE user_id=$1)`, userID).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return domain.ErrProfileNotFound
		}
		return domain.ErrInsufficientFunds
	}

	var tokens, diamonds int64
	if c == domain.Diamonds {
		diamonds = -amount
	} else {
		tokens = -amount
	}
	return insertLedger(ctx, tx, userID, OpBetDebit, tokens, diamonds, ref)
}

func insertLedger(ctx context.Context, tx *sql.Tx, userID, op string, tokens, diamonds int64, ref string) error {
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO profile_ledger (user_id, operation_type, tokens, diamonds, reference)
		VALUES ($1,$2,$3,$4,$5)`, userID, op, tokens, diamonds, ref); err != nil {
		return fmt.Errorf("insert ledger %s: %w", op, err)
	}
	return nil
}
