package events

import (
	"time"

	"github.com/shopspring/decimal"
)

// Evento emitido pelo market-service quando um mercado é resolvido.
// O settlement-worker consome para retomar pagamentos pendentes.
type MarketResolved struct {
	MarketID         string          `json:"market_id"`
	Resolution       string          `json:"resolution"` // "YES" | "NO"
	Distributed      bool            `json:"distributed"`
	WinnerCount      int             `json:"winner_count"`
	TotalDistributed decimal.Decimal `json:"total_distributed"`
	ResolvedAt       time.Time       `json:"resolved_at"`
	TsUnixMs         int64           `json:"ts_unix_ms"`
}
