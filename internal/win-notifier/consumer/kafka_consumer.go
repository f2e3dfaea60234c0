package consumer

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/radieske/sports-bet-settlement/internal/win-notifier/pubsub"
	"github.com/radieske/sports-bet-settlement/pkg/contracts/events"
)

type MessageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
}

type Broadcaster interface {
	Publish(ctx context.Context, channel string, payload []byte) error
}

type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// Processor consome bet_settled e repassa as vitórias para o Pub/Sub do Redis.
// Mensagens que não puderam ser repassadas vão para a DLQ.
type Processor struct {
	Log         *zap.Logger
	Reader      MessageReader
	Broadcaster Broadcaster
	Channel     string
	DLQ         MessageWriter // opcional

	OnConsumed  func()       // métricas
	OnForwarded func()       // métricas
	OnError     func(string) // métricas por fase
}

// Run é o loop principal; só retorna quando ctx é cancelado
func (p *Processor) Run(ctx context.Context) error {
	for {
		m, err := p.Reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			p.Log.Warn("kafka read failed", zap.Error(err))
			p.onError("read")
			time.Sleep(500 * time.Millisecond)
			continue
		}
		p.Handle(ctx, m)
	}
}

// Handle trata uma mensagem; derrotas são ignoradas
func (p *Processor) Handle(ctx context.Context, m kafka.Message) {
	if p.OnConsumed != nil {
		p.OnConsumed()
	}

	var ev events.BetSettled
	if err := json.Unmarshal(m.Value, &ev); err != nil {
		p.Log.Warn("invalid message", zap.Error(err))
		p.onError("decode")
		p.deadLetter(ctx, m, "decode: "+err.Error())
		return
	}
	if !ev.IsWin {
		return
	}

	b, _ := json.Marshal(pubsub.NoticeFrom(ev))
	pctx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
	defer cancel()
	if err := p.Broadcaster.Publish(pctx, p.Channel, b); err != nil {
		p.Log.Warn("win broadcast publish failed", zap.String("betId", ev.BetID), zap.Error(err))
		p.onError("publish")
		p.deadLetter(ctx, m, "publish: "+err.Error())
		return
	}
	if p.OnForwarded != nil {
		p.OnForwarded()
	}
	p.Log.Debug("win forwarded", zap.String("betId", ev.BetID), zap.String("userId", ev.UserID))
}

func (p *Processor) deadLetter(ctx context.Context, m kafka.Message, reason string) {
	if p.DLQ == nil {
		return
	}
	dl := kafka.Message{
		Key:     m.Key,
		Value:   m.Value,
		Headers: append(m.Headers, kafka.Header{Key: "error", Value: []byte(reason)}),
		Time:    time.Now(),
	}
	if err := p.DLQ.WriteMessages(ctx, dl); err != nil {
		p.Log.Error("dlq write failed", zap.Error(err))
		p.onError("dlq")
	}
}

func (p *Processor) onError(stage string) {
	if p.OnError != nil {
		p.OnError(stage)
	}
}
