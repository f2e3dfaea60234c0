package pubsub

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/radieske/sports-bet-settlement/pkg/contracts/events"
)

// ChannelWins é o canal padrão; pode ser trocado via REDIS_WINS_CHANNEL
const ChannelWins = "bet_wins_broadcast"

type RedisBroadcaster struct {
	r *redis.Client
}

func NewRedisBroadcaster(r *redis.Client) *RedisBroadcaster {
	return &RedisBroadcaster{r: r}
}

func (b *RedisBroadcaster) Publish(ctx context.Context, channel string, payload []byte) error {
	return b.r.Publish(ctx, channel, payload).Err()
}

// WinNotice é o payload que trafega no Pub/Sub e chega ao WebSocket do usuário
type WinNotice struct {
	Type        string    `json:"type"` // sempre "win"
	UserID      string    `json:"userId"`
	BetID       string    `json:"betId"`
	Kind        string    `json:"kind"`
	MatchID     string    `json:"matchId,omitempty"`
	TokensWon   int64     `json:"tokensWon"`
	DiamondsWon int64     `json:"diamondsWon"`
	Ts          time.Time `json:"ts"`
}

func NoticeFrom(e events.BetSettled) WinNotice {
	return WinNotice{
		Type:        "win",
		UserID:      e.UserID,
		BetID:       e.BetID,
		Kind:        e.Kind,
		MatchID:     e.MatchID,
		TokensWon:   e.TokensWon,
		DiamondsWon: e.DiamondsWon,
		Ts:          e.Ts,
	}
}
