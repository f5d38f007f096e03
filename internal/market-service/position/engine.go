package position

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/radieske/points-prediction-market/internal/market-service/domain"
	"github.com/radieske/points-prediction-market/internal/market-service/ledger"
	"github.com/radieske/points-prediction-market/internal/market-service/repo"
)

// Engine registra apostas, agregando apostas do mesmo lado em uma única posição
type Engine struct {
	store  repo.Store
	ledger *ledger.Ledger
	log    *zap.Logger
	now    func() time.Time
}

func New(store repo.Store, l *ledger.Ledger, log *zap.Logger) *Engine {
	return &Engine{store: store, ledger: l, log: log, now: func() time.Time { return time.Now().UTC() }}
}

// Placement é a posição resultante junto do saldo lido na mesma transação do débito
type Placement struct {
	Bet     domain.Bet
	Balance decimal.Decimal
}

// PlaceBet valida, faz merge ou cria a posição e debita o saldo na mesma transação
func (e *Engine) PlaceBet(ctx context.Context, userID, marketID string, side domain.Side, amount decimal.Decimal) (domain.Bet, error) {
	p, err := e.Place(ctx, userID, marketID, side, amount)
	return p.Bet, err
}

// Place é o PlaceBet que também devolve o saldo pós-débito, sem nova leitura após o commit
// O usuário fica bloqueado (FOR NO KEY UPDATE) e o mercado FOR SHARE até o commit
func (e *Engine) Place(ctx context.Context, userID, marketID string, side domain.Side, amount decimal.Decimal) (Placement, error) {
	if !side.Valid() {
		return Placement{}, domain.ErrInvalidSide
	}
	if err := domain.CheckAmount(amount); err != nil {
		return Placement{}, err
	}

	var out Placement
	err := e.store.WithinTx(ctx, func(ctx context.Context, tx repo.Store) error {
		user, err := tx.Users().GetForUpdate(ctx, userID)
		if err != nil {
			return err
		}
		if user.PointsBalance.LessThan(amount) {
			return domain.ErrInsufficientBalance
		}

		market, err := tx.Markets().GetForShare(ctx, marketID)
		if err != nil {
			return err
		}
		if market.Status != domain.StatusOpen {
			return domain.ErrMarketClosed
		}

		bet, err := e.upsertPosition(ctx, tx, userID, marketID, side, amount)
		if err != nil {
			return err
		}

		after, err := e.ledger.Bind(tx).ApplyBalanceDelta(ctx, userID, amount.Neg(), ledger.DeltaOptions{
			ExpectedVersion: &user.Version,
			Reason:          domain.ReasonBet,
			Reference:       bet.ID,
		})
		if err != nil {
			return fmt.Errorf("debit bet %s: %w", bet.ID, err)
		}

		out = Placement{Bet: bet, Balance: after.PointsBalance}
		return nil
	})
	if err != nil {
		return Placement{}, err
	}

	e.log.Info("bet placed",
		zap.String("betId", out.Bet.ID),
		zap.String("userId", userID),
		zap.String("marketId", marketID),
		zap.String("side", string(side)),
		zap.String("amount", amount.String()),
		zap.String("position", out.Bet.Amount.String()),
	)
	return out, nil
}

// upsertPosition soma ao registro existente (mesmo id) ou cria um novo
func (e *Engine) upsertPosition(ctx context.Context, tx repo.Store, userID, marketID string, side domain.Side, amount decimal.Decimal) (domain.Bet, error) {
	existing, err := tx.Bets().FindPosition(ctx, userID, marketID, side)
	switch {
	case err == nil:
		merged := existing.Amount.Add(amount)
		if merged.GreaterThanOrEqual(domain.MaxAmount) {
			return domain.Bet{}, domain.ErrAmountTooLarge
		}
		return tx.Bets().UpdateAmount(ctx, existing.ID, merged)
	case errors.Is(err, domain.ErrNotFound):
		now := e.now()
		return tx.Bets().Insert(ctx, domain.Bet{
			ID:        uuid.NewString(),
			UserID:    userID,
			MarketID:  marketID,
			Side:      side,
			Amount:    amount,
			CreatedAt: now,
			UpdatedAt: now,
		})
	default:
		return domain.Bet{}, err
	}
}

// GetUserBets lista as posições do usuário com o mercado anexado, mais recentes primeiro
func (e *Engine) GetUserBets(ctx context.Context, userID string, f repo.BetFilter) ([]domain.Bet, error) {
	return e.store.Bets().ListByUser(ctx, userID, f)
}

// GetMarketBets lista as posições do mercado com o apostador anexado, mais recentes primeiro
func (e *Engine) GetMarketBets(ctx context.Context, marketID string) ([]domain.Bet, error) {
	return e.store.Bets().ListByMarket(ctx, marketID)
}
