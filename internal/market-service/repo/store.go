package repo

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/radieske/points-prediction-market/internal/market-service/domain"
)

// Store agrupa os repositórios e o controle de transação
// Leituras por id falham com domain.ErrNotFound; demais falhas embrulham domain.ErrStore
type Store interface {
	Users() UserRepository
	Markets() MarketRepository
	Bets() BetRepository
	Payouts() PayoutRepository
	Entries() EntryRepository

	// WithinTx executa fn em uma transação; chamadas aninhadas reaproveitam a transação externa
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx Store) error) error

	Ping(ctx context.Context) error
	Close() error
}

type UserRepository interface {
	Get(ctx context.Context, id string) (domain.User, error)
	// GetForUpdate bloqueia a linha do usuário até o fim da transação
	GetForUpdate(ctx context.Context, id string) (domain.User, error)
	Insert(ctx context.Context, u domain.User) (domain.User, error)
	// UpdateBalance grava o saldo somente se a versão ainda for expectedVersion
	UpdateBalance(ctx context.Context, id string, balance decimal.Decimal, expectedVersion int64) (domain.User, error)
}

// MarketFilter: Status vazio lista todos
type MarketFilter struct {
	Status domain.MarketStatus
}

type MarketRepository interface {
	// Get anexa o criador (Creator)
	Get(ctx context.Context, id string) (domain.Market, error)
	// GetForShare bloqueia contra resolução concorrente, sem bloquear outras apostas
	GetForShare(ctx context.Context, id string) (domain.Market, error)
	GetForUpdate(ctx context.Context, id string) (domain.Market, error)
	List(ctx context.Context, f MarketFilter) ([]domain.Market, error)
	Insert(ctx context.Context, m domain.Market) (domain.Market, error)
	// Resolve só transita mercados abertos; caso contrário domain.ErrAlreadyResolved
	Resolve(ctx context.Context, id string, resolution domain.Side, at time.Time) (domain.Market, error)
}

// BetFilter: MarketID vazio não filtra
type BetFilter struct {
	MarketID string
}

type BetRepository interface {
	// FindPosition busca a posição (user, market, side) com lock
	FindPosition(ctx context.Context, userID, marketID string, side domain.Side) (domain.Bet, error)
	Insert(ctx context.Context, b domain.Bet) (domain.Bet, error)
	UpdateAmount(ctx context.Context, id string, amount decimal.Decimal) (domain.Bet, error)
	ListByMarketSide(ctx context.Context, marketID string, side domain.Side) ([]domain.Bet, error)
	// ListByMarket anexa o apostador, mais recentes primeiro
	ListByMarket(ctx context.Context, marketID string) ([]domain.Bet, error)
	// ListByUser anexa o mercado, mais recentes primeiro
	ListByUser(ctx context.Context, userID string, f BetFilter) ([]domain.Bet, error)
}

type PayoutRepository interface {
	Insert(ctx context.Context, p domain.Payout) (domain.Payout, error)
	GetForUpdate(ctx context.Context, id string) (domain.Payout, error)
	MarkPaid(ctx context.Context, id string, at time.Time) (domain.Payout, error)
	// ListByMarket: status vazio lista todos
	ListByMarket(ctx context.Context, marketID string, status domain.PayoutStatus) ([]domain.Payout, error)
}

type EntryRepository interface {
	Insert(ctx context.Context, e domain.LedgerEntry) (domain.LedgerEntry, error)
	ListByUser(ctx context.Context, userID string) ([]domain.LedgerEntry, error)
}
