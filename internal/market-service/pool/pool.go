package pool

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/radieske/points-prediction-market/internal/market-service/domain"
	"github.com/radieske/points-prediction-market/internal/market-service/repo"
)

// PctScale é a precisão de exibição dos percentuais
const PctScale = 2

var hundred = decimal.NewFromInt(100)

// Aggregator calcula pools sob demanda, sempre relendo o store
type Aggregator struct {
	store repo.Store
}

func New(store repo.Store) *Aggregator { return &Aggregator{store: store} }

// GetMarketPools lê as apostas YES e NO separadamente e agrega
// Mercado sem apostas (ou inexistente) retorna pool zerado
func (a *Aggregator) GetMarketPools(ctx context.Context, marketID string) (domain.Pool, error) {
	yes, err := a.store.Bets().ListByMarketSide(ctx, marketID, domain.SideYes)
	if err != nil {
		return domain.Pool{}, fmt.Errorf("read YES pool: %w", err)
	}
	no, err := a.store.Bets().ListByMarketSide(ctx, marketID, domain.SideNo)
	if err != nil {
		return domain.Pool{}, fmt.Errorf("read NO pool: %w", err)
	}
	return Compute(yes, no), nil
}

// Compute agrega as apostas de cada lado
// Um usuário com posições nos dois lados conta uma vez em TotalBettorCount
func Compute(yes, no []domain.Bet) domain.Pool {
	p := domain.Pool{
		YesTotal: decimal.Zero,
		NoTotal:  decimal.Zero,
		Total:    decimal.Zero,
		YesPct:   decimal.Zero,
		NoPct:    decimal.Zero,
	}

	yesUsers := make(map[string]struct{})
	noUsers := make(map[string]struct{})
	allUsers := make(map[string]struct{})

	for _, b := range yes {
		p.YesTotal = p.YesTotal.Add(b.Amount)
		yesUsers[b.UserID] = struct{}{}
		allUsers[b.UserID] = struct{}{}
	}
	for _, b := range no {
		p.NoTotal = p.NoTotal.Add(b.Amount)
		noUsers[b.UserID] = struct{}{}
		allUsers[b.UserID] = struct{}{}
	}

	p.Total = p.YesTotal.Add(p.NoTotal)
	p.YesBettorCount = len(yesUsers)
	p.NoBettorCount = len(noUsers)
	p.TotalBettorCount = len(allUsers)

	if p.Total.IsPositive() {
		p.YesPct = p.YesTotal.Mul(hundred).Div(p.Total).Round(PctScale)
		p.NoPct = p.NoTotal.Mul(hundred).Div(p.Total).Round(PctScale)
	}
	return p
}
