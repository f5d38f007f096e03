// Package ledger é o único caminho de escrita do saldo de pontos.
// Toda mutação passa por ApplyBalanceDelta: lock da linha do usuário,
// checagem de versão, saldo nunca negativo e lançamento no points_ledger.
package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/radieske/points-prediction-market/internal/market-service/domain"
	"github.com/radieske/points-prediction-market/internal/market-service/repo"
)

type Ledger struct {
	store repo.Store
	log   *zap.Logger
	now   func() time.Time
}

func New(store repo.Store, log *zap.Logger) *Ledger {
	return &Ledger{store: store, log: log, now: func() time.Time { return time.Now().UTC() }}
}

// Bind retorna um Ledger que opera dentro da transação tx
func (l *Ledger) Bind(tx repo.Store) *Ledger {
	return &Ledger{store: tx, log: l.log, now: l.now}
}

// DeltaOptions: ExpectedVersion nil aceita qualquer versão
type DeltaOptions struct {
	ExpectedVersion *int64
	Reason          domain.EntryReason
	Reference       string
}

func (l *Ledger) GetUserByID(ctx context.Context, userID string) (domain.User, error) {
	return l.store.Users().Get(ctx, userID)
}

func (l *Ledger) GetBalance(ctx context.Context, userID string) (decimal.Decimal, error) {
	u, err := l.store.Users().Get(ctx, userID)
	if err != nil {
		return decimal.Zero, err
	}
	return u.PointsBalance, nil
}

// SetBalance grava um saldo absoluto; o lançamento registra a diferença
func (l *Ledger) SetBalance(ctx context.Context, userID string, newBalance decimal.Decimal) (domain.User, error) {
	if err := domain.CheckBalance(newBalance); err != nil {
		return domain.User{}, err
	}

	var out domain.User
	err := l.store.WithinTx(ctx, func(ctx context.Context, tx repo.Store) error {
		u, err := tx.Users().GetForUpdate(ctx, userID)
		if err != nil {
			return err
		}
		out, err = l.Bind(tx).ApplyBalanceDelta(ctx, userID, newBalance.Sub(u.PointsBalance), DeltaOptions{
			ExpectedVersion: &u.Version,
			Reason:          domain.ReasonSet,
		})
		return err
	})
	return out, err
}

// AddBalance credita um valor positivo
func (l *Ledger) AddBalance(ctx context.Context, userID string, amount decimal.Decimal) (domain.User, error) {
	if err := domain.CheckAmount(amount); err != nil {
		return domain.User{}, err
	}
	return l.ApplyBalanceDelta(ctx, userID, amount, DeltaOptions{Reason: domain.ReasonDeposit})
}

// ApplyBalanceDelta aplica delta ao saldo de forma atômica
// Falha com ErrVersionConflict se a versão divergir de opts.ExpectedVersion
// e com ErrNegativeBalance se o saldo resultante ficar abaixo de zero
// (ou com ErrBalanceScale/ErrBalanceTooLarge fora da precisão da coluna)
func (l *Ledger) ApplyBalanceDelta(ctx context.Context, userID string, delta decimal.Decimal, opts DeltaOptions) (domain.User, error) {
	var out domain.User
	err := l.store.WithinTx(ctx, func(ctx context.Context, tx repo.Store) error {
		u, err := tx.Users().GetForUpdate(ctx, userID)
		if err != nil {
			return err
		}
		if opts.ExpectedVersion != nil && *opts.ExpectedVersion != u.Version {
			return fmt.Errorf("user %s at version %d, expected %d: %w", userID, u.Version, *opts.ExpectedVersion, domain.ErrVersionConflict)
		}

		next := u.PointsBalance.Add(delta)
		if err := domain.CheckBalance(next); err != nil {
			return err
		}

		updated, err := tx.Users().UpdateBalance(ctx, userID, next, u.Version)
		if err != nil {
			return err
		}

		if _, err := tx.Entries().Insert(ctx, domain.LedgerEntry{
			ID:           uuid.NewString(),
			UserID:       userID,
			Delta:        delta,
			BalanceAfter: next,
			Reason:       opts.Reason,
			Reference:    opts.Reference,
			CreatedAt:    l.now(),
		}); err != nil {
			return err
		}

		out = updated
		return nil
	})
	if err != nil {
		return domain.User{}, err
	}

	l.log.Debug("balance updated",
		zap.String("userId", userID),
		zap.String("delta", delta.String()),
		zap.String("balance", out.PointsBalance.String()),
		zap.String("reason", string(opts.Reason)),
	)
	return out, nil
}

// Entries lista o histórico de lançamentos do usuário
func (l *Ledger) Entries(ctx context.Context, userID string) ([]domain.LedgerEntry, error) {
	if _, err := l.store.Users().Get(ctx, userID); err != nil {
		return nil, err
	}
	return l.store.Entries().ListByUser(ctx, userID)
}
