package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/radieske/sports-bet-settlement/internal/settlement/domain"
)

type ProfileRepo struct{ db *sql.DB }

func NewProfileRepo(db *sql.DB) *ProfileRepo { return &ProfileRepo{db: db} }

const profileCols = `user_id, username, tokens, diamonds, total_bets, won_bets`

func (r *ProfileRepo) GetProfile(ctx context.Context, userID string) (*domain.Profile, error) {
	var p domain.Profile
	err := r.db.QueryRowContext(ctx, `SELECT `+profileCols+` FROM profiles WHERE user_id=$1`, userID).
		Scan(&p.UserID, &p.Username, &p.Tokens, &p.Diamonds, &p.TotalBets, &p.WonBets)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrProfileNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// Leaderboard ordena por diamantes (a pontuação do ranking)
func (r *ProfileRepo) Leaderboard(ctx context.Context, limit int) ([]domain.Profile, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+profileCols+` FROM profiles
		ORDER BY diamonds DESC, user_id
		LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Profile
	for rows.Next() {
		var p domain.Profile
		if err := rows.Scan(&p.UserID, &p.Username, &p.Tokens, &p.Diamonds, &p.TotalBets, &p.WonBets); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
