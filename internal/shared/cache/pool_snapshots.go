package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/radieske/points-prediction-market/pkg/contracts/events"
)

// PoolSnapshots guarda o último snapshot de pools por mercado
// Client: cliente Redis
// TTL: tempo de expiração dos registros
type PoolSnapshots struct {
	Client *redis.Client
	TTL    time.Duration
}

// NewPoolSnapshots cria o cache de snapshots com TTL configurável
func NewPoolSnapshots(c *redis.Client, ttl time.Duration) *PoolSnapshots {
	return &PoolSnapshots{Client: c, TTL: ttl}
}

// key gera a chave Redis do snapshot atual de um mercado
func key(marketID string) string { return "pools:current:" + marketID }

// Set armazena o snapshot de um mercado com o TTL definido
func (c *PoolSnapshots) Set(ctx context.Context, s events.PoolSnapshot) error {
	b, err := json.Marshal(s)
	if err != nil {
		return err
	}
	return c.Client.Set(ctx, key(s.MarketID), b, c.TTL).Err()
}

// Get retorna o snapshot em cache; ok=false quando não existe
func (c *PoolSnapshots) Get(ctx context.Context, marketID string) (events.PoolSnapshot, bool, error) {
	var s events.PoolSnapshot
	b, err := c.Client.Get(ctx, key(marketID)).Bytes()
	if err == redis.Nil {
		return s, false, nil
	}
	if err != nil {
		return s, false, err
	}
	if err := json.Unmarshal(b, &s); err != nil {
		return s, false, err
	}
	return s, true, nil
}
