package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/radieske/sports-bet-settlement/internal/settlement/domain"
)

const keyPrefix = "matches:list:"

// listKeys são todas as variações de lista cacheadas; Invalidate apaga todas
var listKeys = []string{
	keyPrefix + "all",
	keyPrefix + string(domain.StatusUpcoming),
	keyPrefix + string(domain.StatusLive),
	keyPrefix + string(domain.StatusFinished),
}

// MatchList guarda a lista de partidas por filtro de status com TTL curto
type MatchList struct {
	R   *redis.Client
	TTL time.Duration
}

func New(r *redis.Client, ttl time.Duration) *MatchList { return &MatchList{R: r, TTL: ttl} }

func keyList(status *domain.MatchStatus) string {
	if status == nil {
		return keyPrefix + "all"
	}
	return keyPrefix + string(*status)
}

// Get devolve (nil, false, nil) em cache miss
func (c *MatchList) Get(ctx context.Context, status *domain.MatchStatus) ([]domain.Match, bool, error) {
	b, err := c.R.Get(ctx, keyList(status)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var out []domain.Match
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, false, err
	}
	return out, true, nil
}

func (c *MatchList) Set(ctx context.Context, status *domain.MatchStatus, matches []domain.Match) error {
	b, err := json.Marshal(matches)
	if err != nil {
		return err
	}
	return c.R.Set(ctx, keyList(status), b, c.TTL).Err()
}

// Invalidate é chamado quando status ou resultado de alguma partida muda
func (c *MatchList) Invalidate(ctx context.Context) error {
	return c.R.Del(ctx, listKeys...).Err()
}
