package consumer

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/radieske/points-prediction-market/internal/market-service/domain"
	"github.com/radieske/points-prediction-market/internal/market-service/pool"
	"github.com/radieske/points-prediction-market/internal/shared/kafka"
	"github.com/radieske/points-prediction-market/pkg/contracts/events"
)

// Source identifica os snapshots gerados por este worker
const Source = "pool-projector-worker"

type PoolReader interface {
	GetMarketPools(ctx context.Context, marketID string) (domain.Pool, error)
}

type SnapshotCache interface {
	Set(ctx context.Context, s events.PoolSnapshot) error
}

type Broadcaster interface {
	Publish(ctx context.Context, channel string, payload []byte) error
}

// Projector consome bet_placed, recalcula os pools do mercado a partir do banco,
// grava o snapshot no Redis e o publica no canal do websocket
// O evento só indica qual mercado mudou; os totais sempre vêm do store
type Projector struct {
	Log       *zap.Logger
	Reader    kafka.MessageReader
	Pools     PoolReader
	Cache     SnapshotCache // opcional
	Broadcast Broadcaster   // opcional
	Channel   string

	OnConsumed  func()       // métricas (counter++)
	OnProjected func()       // métricas
	OnError     func(string) // métricas por fase

	now func() time.Time
}

// Run inicia o loop de consumo; retorna quando ctx é cancelado
func (p *Projector) Run(ctx context.Context) error {
	for {
		m, err := p.Reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			p.Log.Warn("kafka read failed", zap.Error(err))
			p.fail("read")
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(500 * time.Millisecond):
			}
			continue
		}

		if p.OnConsumed != nil {
			p.OnConsumed()
		}

		var ev events.BetPlaced
		if err := json.Unmarshal(m.Value, &ev); err != nil || ev.MarketID == "" {
			p.Log.Warn("invalid message", zap.Error(err), zap.Int64("offset", m.Offset))
			p.fail("decode")
			continue
		}

		if err := p.Project(ctx, ev.MarketID); err != nil {
			p.Log.Warn("projection failed", zap.String("marketId", ev.MarketID), zap.Error(err))
		}
	}
}

// Project recalcula e distribui o snapshot de um mercado
func (p *Projector) Project(ctx context.Context, marketID string) error {
	pools, err := p.Pools.GetMarketPools(ctx, marketID)
	if err != nil {
		p.fail("pools")
		return err
	}

	now := time.Now
	if p.now != nil {
		now = p.now
	}
	snap := pool.Snapshot(marketID, pools, now().UTC(), Source)

	// falha no cache não bloqueia o broadcast
	if p.Cache != nil {
		if err := p.Cache.Set(ctx, snap); err != nil {
			p.Log.Warn("redis set failed", zap.Error(err))
			p.fail("cache")
		}
	}

	if p.Broadcast != nil {
		b, err := json.Marshal(snap)
		if err != nil {
			p.fail("encode")
			return err
		}
		if err := p.Broadcast.Publish(ctx, p.Channel, b); err != nil {
			p.fail("broadcast")
			return err
		}
	}

	if p.OnProjected != nil {
		p.OnProjected()
	}
	p.Log.Debug("pools projected",
		zap.String("marketId", marketID),
		zap.String("total", snap.Total.String()),
	)
	return nil
}

func (p *Projector) fail(stage string) {
	if p.OnError != nil {
		p.OnError(stage)
	}
}
