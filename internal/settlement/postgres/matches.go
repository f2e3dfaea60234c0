// Package postgres implementa os stores de liquidação sobre database/sql + lib/pq.
package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/lib/pq"

	"github.com/radieske/sports-bet-settlement/internal/settlement/domain"
)

// MatchRepo persiste partidas
type MatchRepo struct{ db *sql.DB }

func NewMatchRepo(db *sql.DB) *MatchRepo { return &MatchRepo{db: db} }

const matchCols = `id, home_team, away_team, league, home_odds, draw_odds, away_odds, status, result, start_time, end_time`

type scanner interface {
	Scan(dest ...any) error
}

func scanMatch(row scanner) (domain.Match, error) {
	var (
		m      domain.Match
		status string
		result sql.NullString
		end    sql.NullTime
	)
	err := row.Scan(&m.ID, &m.HomeTeam, &m.AwayTeam, &m.League,
		&m.Odds.Home, &m.Odds.Draw, &m.Odds.Away,
		&status, &result, &m.StartTime, &end)
	if err != nil {
		return m, err
	}
	m.Status = domain.MatchStatus(status)
	if result.Valid {
		o := domain.Outcome(result.String)
		m.Result = &o
	}
	if end.Valid {
		m.EndTime = &end.Time
	}
	return m, nil
}

func (r *MatchRepo) query(ctx context.Context, q string, args ...any) ([]domain.Match, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Match
	for rows.Next() {
		m, err := scanMatch(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (r *MatchRepo) FindByID(ctx context.Context, id string) (*domain.Match, error) {
	m, err := scanMatch(r.db.QueryRowContext(ctx, `SELECT `+matchCols+` FROM matches WHERE id=$1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrMatchNotFound
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// List devolve as partidas por horário de início; status nil = todas
func (r *MatchRepo) List(ctx context.Context, status *domain.MatchStatus) ([]domain.Match, error) {
	var st sql.NullString
	if status != nil {
		st = sql.NullString{String: string(*status), Valid: true}
	}
	return r.query(ctx, `
		SELECT `+matchCols+` FROM matches
		WHERE ($1::text IS NULL OR status = $1)
		ORDER BY start_time, id`, st)
}

func (r *MatchRepo) ListUnfinished(ctx context.Context) ([]domain.Match, error) {
	return r.query(ctx, `SELECT `+matchCols+` FROM matches WHERE status <> 'finished'`)
}

// UpdateStatus é um UPDATE condicional em lote: só toca linhas cujo status atual está em from
func (r *MatchRepo) UpdateStatus(ctx context.Context, ids []string, from []domain.MatchStatus, to domain.MatchStatus) (int64, error) {
	fromS := make([]string, len(from))
	for i, s := range from {
		fromS[i] = string(s)
	}
	res, err := r.db.ExecContext(ctx, `
		UPDATE matches SET status=$1, updated_at=NOW()
		WHERE id = ANY($2) AND status = ANY($3)`,
		string(to), pq.Array(ids), pq.Array(fromS))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ListFinishedWithResult só traz partidas que ainda têm apostas simples pendentes
func (r *MatchRepo) ListFinishedWithResult(ctx context.Context) ([]domain.Match, error) {
	return r.query(ctx, `
		SELECT `+matchCols+` FROM matches m
		WHERE m.status = 'finished' AND m.result IS NOT NULL
		  AND EXISTS (SELECT 1 FROM bets b WHERE b.match_id = m.id AND b.is_win IS NULL)
		ORDER BY m.id`)
}

// SetResult encerra a partida com o resultado; quem chegar depois recebe ErrAlreadySettled
func (r *MatchRepo) SetResult(ctx context.Context, id string, result domain.Outcome) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE matches
		SET status='finished', result=$2, end_time=COALESCE(end_time, NOW()), updated_at=NOW()
		WHERE id=$1 AND result IS NULL`, id, string(result))
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err != nil {
		return err
	} else if n == 1 {
		return nil
	}

	var exists bool
	if err := r.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM matches WHERE id=$1)`, id).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return domain.ErrMatchNotFound
	}
	return domain.ErrAlreadySettled
}
