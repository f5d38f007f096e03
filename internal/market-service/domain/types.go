package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Side é o lado de uma aposta binária
type Side string

const (
	SideYes Side = "YES"
	SideNo  Side = "NO"
)

// Valid indica se o lado é YES ou NO
func (s Side) Valid() bool { return s == SideYes || s == SideNo }

// Opposite retorna o outro lado
func (s Side) Opposite() Side {
	if s == SideYes {
		return SideNo
	}
	return SideYes
}

// MarketStatus só transita open -> resolved
type MarketStatus string

const (
	StatusOpen     MarketStatus = "open"
	StatusResolved MarketStatus = "resolved"
)

func (s MarketStatus) Valid() bool { return s == StatusOpen || s == StatusResolved }

type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// User mantém o saldo de pontos; Version sobe a cada escrita de saldo
type User struct {
	ID            string          `json:"id"`
	Username      string          `json:"username"`
	Email         string          `json:"email"`
	PointsBalance decimal.Decimal `json:"points_balance"`
	Role          Role            `json:"role"`
	Version       int64           `json:"version"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// UserRef é a identidade pública anexada a mercados e apostas
type UserRef struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

func (u User) Ref() UserRef { return UserRef{ID: u.ID, Username: u.Username, Email: u.Email} }

// Market: Resolution é não-nulo se e somente se Status == resolved
type Market struct {
	ID          string       `json:"id"`
	Title       string       `json:"title"`
	Description string       `json:"description"`
	Status      MarketStatus `json:"status"`
	Resolution  *Side        `json:"resolution"`
	CreatedBy   string       `json:"created_by"`
	Creator     *UserRef     `json:"creator,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
	ResolvedAt  *time.Time   `json:"resolved_at"`
}

// MarketRef é o resumo do mercado anexado às apostas de um usuário
type MarketRef struct {
	ID         string       `json:"id"`
	Title      string       `json:"title"`
	Status     MarketStatus `json:"status"`
	Resolution *Side        `json:"resolution"`
}

func (m Market) Ref() MarketRef {
	return MarketRef{ID: m.ID, Title: m.Title, Status: m.Status, Resolution: m.Resolution}
}

// Bet é a posição acumulada de um usuário em um lado de um mercado
// Existe no máximo uma por (UserID, MarketID, Side)
type Bet struct {
	ID        string          `json:"id"`
	UserID    string          `json:"user_id"`
	MarketID  string          `json:"market_id"`
	Side      Side            `json:"side"`
	Amount    decimal.Decimal `json:"amount"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`

	Market *MarketRef `json:"market,omitempty"`
	User   *UserRef   `json:"user,omitempty"`
}

// Pool é derivado das apostas, nunca persistido
type Pool struct {
	YesTotal         decimal.Decimal `json:"yes_total"`
	NoTotal          decimal.Decimal `json:"no_total"`
	Total            decimal.Decimal `json:"total"`
	YesBettorCount   int             `json:"yes_bettor_count"`
	NoBettorCount    int             `json:"no_bettor_count"`
	TotalBettorCount int             `json:"total_bettor_count"`
	YesPct           decimal.Decimal `json:"yes_pct"`
	NoPct            decimal.Decimal `json:"no_pct"`
}

// SideTotal retorna o total apostado no lado informado
func (p Pool) SideTotal(s Side) decimal.Decimal {
	if s == SideYes {
		return p.YesTotal
	}
	return p.NoTotal
}

type PayoutStatus string

const (
	PayoutPending PayoutStatus = "pending"
	PayoutPaid    PayoutStatus = "paid"
)

// Payout é o crédito devido a uma aposta vencedora
// Amount = Stake + Share
type Payout struct {
	ID        string          `json:"id"`
	MarketID  string          `json:"market_id"`
	BetID     string          `json:"bet_id"`
	UserID    string          `json:"user_id"`
	Stake     decimal.Decimal `json:"stake"`
	Share     decimal.Decimal `json:"share"`
	Amount    decimal.Decimal `json:"amount"`
	Status    PayoutStatus    `json:"status"`
	CreatedAt time.Time       `json:"created_at"`
	PaidAt    *time.Time      `json:"paid_at"`
}

type EntryReason string

const (
	ReasonDeposit EntryReason = "deposit"
	ReasonSet     EntryReason = "set"
	ReasonBet     EntryReason = "bet"
	ReasonPayout  EntryReason = "payout"
)

// LedgerEntry registra cada mutação de saldo (append-only)
type LedgerEntry struct {
	ID           string          `json:"id"`
	UserID       string          `json:"user_id"`
	Delta        decimal.Decimal `json:"delta"`
	BalanceAfter decimal.Decimal `json:"balance_after"`
	Reason       EntryReason     `json:"reason"`
	Reference    string          `json:"reference"`
	CreatedAt    time.Time       `json:"created_at"`
}
