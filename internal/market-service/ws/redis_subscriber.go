package ws

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/radieske/points-prediction-market/pkg/contracts/events"
)

// StartRedisSubscriber escuta o canal de pools e repassa cada snapshot ao Hub
// Encerra quando ctx é cancelado
func StartRedisSubscriber(ctx context.Context, r *redis.Client, channel string, hub *Hub, log *zap.Logger) {
	sub := r.Subscribe(ctx, channel)
	go Relay(ctx, sub.Channel(), hub, log, func() { _ = sub.Close() })
}

// Relay consome mensagens Pub/Sub e faz o broadcast
func Relay(ctx context.Context, ch <-chan *redis.Message, hub *Hub, log *zap.Logger, onStop func()) {
	defer func() {
		if onStop != nil {
			onStop()
		}
	}()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			if msg == nil {
				continue
			}
			var snap events.PoolSnapshot
			if err := json.Unmarshal([]byte(msg.Payload), &snap); err != nil || snap.MarketID == "" {
				log.Warn("ws subscriber invalid payload", zap.Error(err))
				continue
			}
			hub.Broadcast(snap)
		}
	}
}
