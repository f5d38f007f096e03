package events

import (
	"time"

	"github.com/shopspring/decimal"
)

// Evento publicado para cada payout creditado no saldo do vencedor
type PayoutCredited struct {
	PayoutID string          `json:"payout_id"`
	MarketID string          `json:"market_id"`
	BetID    string          `json:"bet_id"`
	UserID   string          `json:"user_id"`
	Stake    decimal.Decimal `json:"stake"`
	Share    decimal.Decimal `json:"share"`
	Amount   decimal.Decimal `json:"amount"`
	Ts       time.Time       `json:"ts"`
}
