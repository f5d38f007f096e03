package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"

	"github.com/radieske/points-prediction-market/internal/market-service/domain"
)

// Collectors reúne as métricas de negócio do market-service
type Collectors struct {
	BetsPlaced      *prometheus.CounterVec
	PointsStaked    *prometheus.CounterVec
	MarketsCreated  prometheus.Counter
	MarketsResolved *prometheus.CounterVec
	PayoutsCredited prometheus.Counter
	PayoutsFailed   prometheus.Counter
	PublishErrors   *prometheus.CounterVec
}

// NewCollectors cria e registra as métricas no registerer informado
func NewCollectors(reg prometheus.Registerer) *Collectors {
	c := &Collectors{
		BetsPlaced: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "market_bets_placed_total", Help: "apostas aceitas por lado",
		}, []string{"side"}),
		PointsStaked: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "market_points_staked_total", Help: "pontos apostados por lado",
		}, []string{"side"}),
		MarketsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "market_markets_created_total", Help: "mercados criados",
		}),
		MarketsResolved: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "market_markets_resolved_total", Help: "mercados resolvidos por resultado",
		}, []string{"resolution", "distributed"}),
		PayoutsCredited: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "market_payouts_credited_total", Help: "payouts creditados",
		}),
		PayoutsFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "market_payouts_failed_total", Help: "falhas ao creditar payouts",
		}),
		PublishErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "market_publish_errors_total", Help: "falhas ao publicar eventos por tópico",
		}, []string{"topic"}),
	}
	reg.MustRegister(c.BetsPlaced, c.PointsStaked, c.MarketsCreated, c.MarketsResolved,
		c.PayoutsCredited, c.PayoutsFailed, c.PublishErrors)
	return c
}

func (c *Collectors) BetPlaced(side domain.Side, amount decimal.Decimal) {
	c.BetsPlaced.WithLabelValues(string(side)).Inc()
	c.PointsStaked.WithLabelValues(string(side)).Add(amount.InexactFloat64())
}

func (c *Collectors) MarketResolved(resolution domain.Side, distributed bool) {
	d := "false"
	if distributed {
		d = "true"
	}
	c.MarketsResolved.WithLabelValues(string(resolution), d).Inc()
}
