package events

import (
	"time"

	"github.com/shopspring/decimal"
)

// Snapshot dos pools de um mercado, gravado no Redis e enviado via Pub/Sub
type PoolSnapshot struct {
	MarketID         string          `json:"market_id"`
	YesTotal         decimal.Decimal `json:"yes_total"`
	NoTotal          decimal.Decimal `json:"no_total"`
	Total            decimal.Decimal `json:"total"`
	YesBettorCount   int             `json:"yes_bettor_count"`
	NoBettorCount    int             `json:"no_bettor_count"`
	TotalBettorCount int             `json:"total_bettor_count"`
	YesPct           decimal.Decimal `json:"yes_pct"`
	NoPct            decimal.Decimal `json:"no_pct"`
	UpdatedAt        time.Time       `json:"updated_at"`
	Source           string          `json:"source"` // "pool-projector-worker"
}
