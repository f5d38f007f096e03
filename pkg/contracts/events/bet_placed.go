package events

import "github.com/shopspring/decimal"

// Evento publicado no tópico "bet_placed" após o débito da aposta.
// PositionAmount é o total acumulado na posição (user, market, side) após o merge.
type BetPlaced struct {
	BetID          string          `json:"bet_id"`
	UserID         string          `json:"user_id"`
	MarketID       string          `json:"market_id"`
	Side           string          `json:"side"` // "YES" | "NO"
	Amount         decimal.Decimal `json:"amount"`
	PositionAmount decimal.Decimal `json:"position_amount"`
	TsUnixMs       int64           `json:"ts_unix_ms"`
}
