package producer

import (
	"context"
	"encoding/json"
	"time"

	"github.com/radieske/points-prediction-market/internal/shared/kafka"
	"github.com/radieske/points-prediction-market/pkg/contracts/events"
)

// Topics agrupa os tópicos em que o market-service publica
type Topics struct {
	BetPlaced      string
	MarketResolved string
	PayoutCredited string
}

// KafkaPublisher publica os eventos de domínio; o tópico vai em cada mensagem
type KafkaPublisher struct {
	Writer kafka.MessageWriter
	Topics Topics
	now    func() time.Time
}

func NewKafkaPublisher(w kafka.MessageWriter, topics Topics) *KafkaPublisher {
	return &KafkaPublisher{Writer: w, Topics: topics, now: time.Now}
}

// PublishBetPlaced usa o marketId como chave para manter a ordem por mercado
func (p *KafkaPublisher) PublishBetPlaced(ctx context.Context, e events.BetPlaced) error {
	e.TsUnixMs = p.now().UnixMilli()
	b, err := json.Marshal(e)
	if err != nil {
		return err
	}
	return kafka.WriteJSON(ctx, p.Writer, p.Topics.BetPlaced, e.MarketID, b)
}

func (p *KafkaPublisher) PublishMarketResolved(ctx context.Context, e events.MarketResolved) error {
	e.TsUnixMs = p.now().UnixMilli()
	b, err := json.Marshal(e)
	if err != nil {
		return err
	}
	return kafka.WriteJSON(ctx, p.Writer, p.Topics.MarketResolved, e.MarketID, b)
}

func (p *KafkaPublisher) PublishPayoutCredited(ctx context.Context, e events.PayoutCredited) error {
	if e.Ts.IsZero() {
		e.Ts = p.now().UTC()
	}
	b, err := json.Marshal(e)
	if err != nil {
		return err
	}
	return kafka.WriteJSON(ctx, p.Writer, p.Topics.PayoutCredited, e.MarketID, b)
}
