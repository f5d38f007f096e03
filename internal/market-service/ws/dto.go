package ws

import "github.com/radieske/points-prediction-market/pkg/contracts/events"

// ClientMsg representa uma mensagem recebida do cliente WebSocket
// Type: subscribe | unsubscribe | ping
type ClientMsg struct {
	Type     string `json:"type"`
	MarketID string `json:"marketId"` // requerido em subscribe/unsubscribe
}

// PoolsUpdate é enviada aos inscritos de um mercado
type PoolsUpdate struct {
	Type     string              `json:"type"` // "pools"
	MarketID string              `json:"marketId"`
	Payload  events.PoolSnapshot `json:"payload"`
}
