package ws

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/radieske/sports-bet-settlement/internal/win-notifier/pubsub"
)

// StartRedisSubscriber escuta o canal de vitórias e repassa cada aviso ao Hub.
// Roda em goroutine própria até ctx ser cancelado.
func StartRedisSubscriber(ctx context.Context, r *redis.Client, channel string, hub *Hub, log *zap.Logger) {
	sub := r.Subscribe(ctx, channel)
	ch := sub.Channel()
	go func() {
		for {
			select {
			case <-ctx.Done():
				_ = sub.Close()
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				if msg == nil {
					continue
				}
				if err := dispatch(hub, msg.Payload); err != nil {
					log.Warn("ws subscriber unmarshal error", zap.Error(err))
				}
			}
		}
	}()
}

func dispatch(hub *Hub, payload string) error {
	var n pubsub.WinNotice
	if err := json.Unmarshal([]byte(payload), &n); err != nil {
		return err
	}
	hub.Broadcast(n)
	return nil
}
