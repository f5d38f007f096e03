package dto

import (
	"github.com/shopspring/decimal"

	"github.com/radieske/points-prediction-market/internal/market-service/domain"
)

// Envelope é o formato comum de todas as respostas da API
type Envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
	Message string `json:"message,omitempty"`
}

// MarketDetailResponse é o mercado com os pools atuais
type MarketDetailResponse struct {
	Market domain.Market `json:"market"`
	Pools  domain.Pool   `json:"pools"`
}

// PlaceBetResponse devolve a posição resultante e o saldo após o débito
type PlaceBetResponse struct {
	Bet        domain.Bet      `json:"bet"`
	NewBalance decimal.Decimal `json:"new_balance"`
}
