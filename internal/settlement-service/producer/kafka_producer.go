package producer

import (
	"context"
	"errors"

	sharedkafka "github.com/radieske/sports-bet-settlement/internal/shared/kafka"
	"github.com/radieske/sports-bet-settlement/pkg/contracts/events"
)

// KafkaPublisher publica bet_placed e bet_settled; chave = userId para manter a ordem por usuário
type KafkaPublisher struct {
	Placed  *sharedkafka.Writer
	Settled *sharedkafka.Writer
}

func NewKafkaPublisher(placed, settled *sharedkafka.Writer) *KafkaPublisher {
	return &KafkaPublisher{Placed: placed, Settled: settled}
}

func (p *KafkaPublisher) PublishBetPlaced(ctx context.Context, e events.BetPlaced) error {
	return sharedkafka.WriteJSON(ctx, p.Placed, e.UserID, e)
}

func (p *KafkaPublisher) PublishBetSettled(ctx context.Context, e events.BetSettled) error {
	return sharedkafka.WriteJSON(ctx, p.Settled, e.UserID, e)
}

func (p *KafkaPublisher) Close() error {
	return errors.Join(p.Placed.Close(), p.Settled.Close())
}
