package pool

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/radieske/points-prediction-market/internal/market-service/domain"
	"github.com/radieske/points-prediction-market/pkg/contracts/events"
)

// Snapshot converte o pool no evento publicado para o websocket
func Snapshot(marketID string, p domain.Pool, at time.Time, source string) events.PoolSnapshot {
	return events.PoolSnapshot{
		MarketID:         marketID,
		YesTotal:         p.YesTotal,
		NoTotal:          p.NoTotal,
		Total:            p.Total,
		YesBettorCount:   p.YesBettorCount,
		NoBettorCount:    p.NoBettorCount,
		TotalBettorCount: p.TotalBettorCount,
		YesPct:           p.YesPct,
		NoPct:            p.NoPct,
		UpdatedAt:        at,
		Source:           source,
	}
}

// SnapshotCache lê o último snapshot projetado pelo worker
type SnapshotCache interface {
	Get(ctx context.Context, marketID string) (events.PoolSnapshot, bool, error)
}

// Snapshots serve o snapshot inicial do websocket
// O store é a fonte: um bet_placed perdido deixaria o cache defasado até o TTL.
// Cache (opcional) só responde quando a leitura do store falha
type Snapshots struct {
	Pools  *Aggregator
	Cache  SnapshotCache
	Source string
	Log    *zap.Logger
	now    func() time.Time
}

func (s *Snapshots) Current(ctx context.Context, marketID string) (events.PoolSnapshot, bool, error) {
	p, err := s.Pools.GetMarketPools(ctx, marketID)
	if err == nil {
		return Snapshot(marketID, p, s.clock(), s.Source), true, nil
	}
	if s.Cache == nil {
		return events.PoolSnapshot{}, false, err
	}
	cached, ok, cerr := s.Cache.Get(ctx, marketID)
	if cerr != nil || !ok {
		return events.PoolSnapshot{}, false, err
	}
	if s.Log != nil {
		s.Log.Warn("pool read failed, serving cached snapshot",
			zap.String("marketId", marketID), zap.Time("cachedAt", cached.UpdatedAt), zap.Error(err))
	}
	return cached, true, nil
}

func (s *Snapshots) clock() time.Time {
	if s.now != nil {
		return s.now()
	}
	return time.Now().UTC()
}
