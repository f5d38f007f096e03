// Package settlement resolve mercados e distribui o pool perdedor aos vencedores.
//
// A resolução grava, na mesma transação, a transição open -> resolved e uma
// linha de payout pendente por aposta vencedora. O crédito de cada payout
// ocorre em transação própria e marca a linha como paga, então uma
// distribuição interrompida pode ser retomada com ResumeDistribution sem
// pagar ninguém duas vezes.
package settlement

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
	"github.com/radieske/points-prediction-market/internal/market-service/pool"
	"github.com/radieske/points-prediction-market/internal/market-service/repo"
)

// ShareScale é a precisão das cotas; o resto da divisão é truncado
// e fica com a casa, informado em Result.Residual
const ShareScale int32 = 8

const (
	MessageNoWinners = "No winners to distribute to"
	MessageNoLosers  = "Winners received their bets back (no losing pool)"
)

// Result descreve o resultado de uma resolução
type Result struct {
	Market           domain.Market   `json:"market"`
	Distributed      bool            `json:"distributed"`
	WinningPool      decimal.Decimal `json:"winning_pool"`
	LosingPool       decimal.Decimal `json:"losing_pool"`
	TotalDistributed decimal.Decimal `json:"total_distributed"`
	WinnerCount      int             `json:"winner_count"`
	Residual         decimal.Decimal `json:"residual"`
	Credited         int             `json:"credited"`
	Message          string          `json:"message,omitempty"`
}

// ResumeResult descreve uma retomada de pagamentos
type ResumeResult struct {
	MarketID    string `json:"market_id"`
	Credited    int    `json:"credited"`
	AlreadyPaid int    `json:"already_paid"`
	Pending     int    `json:"pending"`
}

// Hooks são chamados após cada tentativa de crédito (métricas, eventos)
type Hooks struct {
	OnCredited     func(ctx context.Context, p domain.Payout)
	OnCreditFailed func(p domain.Payout, err error)
}

type Engine struct {
	store  repo.Store
	ledger *ledger.Ledger
	log    *zap.Logger
	hooks  Hooks
	now    func() time.Time
}

func New(store repo.Store, l *ledger.Ledger, log *zap.Logger, hooks Hooks) *Engine {
	return &Engine{store: store, ledger: l, log: log, hooks: hooks, now: func() time.Time { return time.Now().UTC() }}
}

// ResolveMarketAndDistribute resolve o mercado uma única vez e paga os vencedores
// Retorna Result não-nulo sempre que o mercado foi resolvido; se algum crédito
// falhar, o erro embrulha domain.ErrPartialDistribution e os payouts restantes
// ficam pendentes
func (e *Engine) ResolveMarketAndDistribute(ctx context.Context, marketID string, resolution domain.Side) (*Result, error) {
	if !resolution.Valid() {
		return nil, domain.ErrInvalidResolution
	}

	var res Result
	var payouts []domain.Payout
	err := e.store.WithinTx(ctx, func(ctx context.Context, tx repo.Store) error {
		market, err := tx.Markets().GetForUpdate(ctx, marketID)
		if err != nil {
			return err
		}
		if market.Status != domain.StatusOpen {
			return domain.ErrAlreadyResolved
		}

		yes, err := tx.Bets().ListByMarketSide(ctx, marketID, domain.SideYes)
		if err != nil {
			return err
		}
		no, err := tx.Bets().ListByMarketSide(ctx, marketID, domain.SideNo)
		if err != nil {
			return err
		}

		resolved, err := tx.Markets().Resolve(ctx, marketID, resolution, e.now())
		if err != nil {
			return err
		}

		pools := pool.Compute(yes, no)
		winners := yes
		if resolution == domain.SideNo {
			winners = no
		}

		res = Result{
			Market:      resolved,
			WinningPool: pools.SideTotal(resolution),
			LosingPool:  pools.SideTotal(resolution.Opposite()),
			WinnerCount: len(winners),
		}
		payouts = Plan(marketID, winners, res.WinningPool, res.LosingPool, e.now())

		for i, p := range payouts {
			if payouts[i], err = tx.Payouts().Insert(ctx, p); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	// relê para anexar o criador
	if withCreator, err := e.store.Markets().Get(ctx, marketID); err == nil {
		res.Market = withCreator
	}

	switch {
	case res.WinningPool.IsZero():
		res.Distributed = false
		res.TotalDistributed = decimal.Zero
		res.Residual = decimal.Zero
		res.Message = MessageNoWinners
	case res.LosingPool.IsZero():
		res.Distributed = true
		res.TotalDistributed = decimal.Zero
		res.Residual = decimal.Zero
		res.Message = MessageNoLosers
	default:
		res.Distributed = true
		res.TotalDistributed = decimal.Zero
		for _, p := range payouts {
			res.TotalDistributed = res.TotalDistributed.Add(p.Share)
		}
		res.Residual = res.LosingPool.Sub(res.TotalDistributed)
	}

	e.log.Info("market resolved",
		zap.String("marketId", marketID),
		zap.String("resolution", string(resolution)),
		zap.String("winningPool", res.WinningPool.String()),
		zap.String("losingPool", res.LosingPool.String()),
		zap.Int("winners", res.WinnerCount),
		zap.String("residual", res.Residual.String()),
	)

	credited, err := e.creditAll(ctx, payouts)
	res.Credited = credited
	if err != nil {
		return &res, fmt.Errorf("market %s: %w: %w", marketID, domain.ErrPartialDistribution, err)
	}
	return &res, nil
}

// Plan calcula os payouts das apostas vencedoras
// share = stake * losingPool / winningPool, truncado em ShareScale casas;
// a soma das cotas nunca excede losingPool
func Plan(marketID string, winners []domain.Bet, winningPool, losingPool decimal.Decimal, at time.Time) []domain.Payout {
	if !winningPool.IsPositive() {
		return nil
	}

	out := make([]domain.Payout, 0, len(winners))
	for _, w := range winners {
		share := decimal.Zero
		if losingPool.IsPositive() {
			share, _ = w.Amount.Mul(losingPool).QuoRem(winningPool, ShareScale)
		}
		out = append(out, domain.Payout{
			ID:        uuid.NewString(),
			MarketID:  marketID,
			BetID:     w.ID,
			UserID:    w.UserID,
			Stake:     w.Amount,
			Share:     share,
			Amount:    w.Amount.Add(share),
			Status:    domain.PayoutPending,
			CreatedAt: at,
		})
	}
	return out
}

// ResumeDistribution credita os payouts ainda pendentes de um mercado resolvido
// Idempotente: payouts já pagos são ignorados
func (e *Engine) ResumeDistribution(ctx context.Context, marketID string) (ResumeResult, error) {
	out := ResumeResult{MarketID: marketID}

	market, err := e.store.Markets().Get(ctx, marketID)
	if err != nil {
		return out, err
	}
	if market.Status != domain.StatusResolved {
		return out, domain.ErrNotResolved
	}

	all, err := e.store.Payouts().ListByMarket(ctx, marketID, "")
	if err != nil {
		return out, err
	}
	var pending []domain.Payout
	for _, p := range all {
		if p.Status == domain.PayoutPending {
			pending = append(pending, p)
		}
	}
	out.AlreadyPaid = len(all) - len(pending)

	credited, err := e.creditAll(ctx, pending)
	out.Credited = credited
	out.Pending = len(pending) - credited
	if still, lerr := e.store.Payouts().ListByMarket(ctx, marketID, domain.PayoutPending); lerr == nil {
		out.Pending = len(still)
	}

	if credited > 0 || err != nil {
		e.log.Info("settlement resumed",
			zap.String("marketId", marketID),
			zap.Int("credited", out.Credited),
			zap.Int("pending", out.Pending),
			zap.Error(err),
		)
	}
	if err != nil {
		return out, fmt.Errorf("market %s: %w: %w", marketID, domain.ErrPartialDistribution, err)
	}
	return out, nil
}

// creditAll tenta todos os payouts e acumula as falhas
func (e *Engine) creditAll(ctx context.Context, payouts []domain.Payout) (int, error) {
	credited := 0
	var errs []error
	for _, p := range payouts {
		paid, ok, err := e.creditOne(ctx, p.ID)
		if err != nil {
			e.log.Error("payout credit failed",
				zap.String("payoutId", p.ID),
				zap.String("userId", p.UserID),
				zap.Error(err),
			)
			if e.hooks.OnCreditFailed != nil {
				e.hooks.OnCreditFailed(p, err)
			}
			errs = append(errs, fmt.Errorf("payout %s: %w", p.ID, err))
			continue
		}
		if !ok {
			continue
		}
		credited++
		if e.hooks.OnCredited != nil {
			e.hooks.OnCredited(ctx, paid)
		}
	}
	return credited, errors.Join(errs...)
}

// creditOne credita um payout e o marca como pago na mesma transação
// ok=false quando o payout já estava pago
func (e *Engine) creditOne(ctx context.Context, payoutID string) (domain.Payout, bool, error) {
	var paid domain.Payout
	credited := false
	err := e.store.WithinTx(ctx, func(ctx context.Context, tx repo.Store) error {
		p, err := tx.Payouts().GetForUpdate(ctx, payoutID)
		if err != nil {
			return err
		}
		if p.Status == domain.PayoutPaid {
			paid = p
			return nil
		}

		if _, err := e.ledger.Bind(tx).ApplyBalanceDelta(ctx, p.UserID, p.Amount, ledger.DeltaOptions{
			Reason:    domain.ReasonPayout,
			Reference: p.ID,
		}); err != nil {
			return err
		}

		if paid, err = tx.Payouts().MarkPaid(ctx, p.ID, e.now()); err != nil {
			return err
		}
		credited = true
		return nil
	})
	return paid, credited, err
}

// Payouts lista os payouts de um mercado
func (e *Engine) Payouts(ctx context.Context, marketID string) ([]domain.Payout, error) {
	if _, err := e.store.Markets().Get(ctx, marketID); err != nil {
		return nil, err
	}
	return e.store.Payouts().ListByMarket(ctx, marketID, "")
}
