package dto

import "github.com/shopspring/decimal"

type RegisterUserRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
}

type PlaceBetRequest struct {
	MarketID string          `json:"market_id"`
	Side     string          `json:"side"` // "YES" | "NO"
	Amount   decimal.Decimal `json:"amount"`
}

type CreateMarketRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

type AddPointsRequest struct {
	UserID string          `json:"user_id"`
	Amount decimal.Decimal `json:"amount"`
}

type UpdateBalanceRequest struct {
	Balance decimal.Decimal `json:"balance"`
}

type ResolveMarketRequest struct {
	Resolution string `json:"resolution"` // "YES" | "NO"
}
