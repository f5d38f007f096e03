package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// AmountScale e MaxAmount acompanham a coluna NUMERIC(20,8):
// até 8 casas decimais e 12 dígitos inteiros
const AmountScale int32 = 8

var MaxAmount = decimal.New(1, 12)

var (
	ErrAmountScale     = fmt.Errorf("%w: at most %d decimal places", ErrInvalidAmount, AmountScale)
	ErrAmountTooLarge  = fmt.Errorf("%w: must be below %s", ErrInvalidAmount, MaxAmount)
	ErrBalanceScale    = fmt.Errorf("%w: balance supports at most %d decimal places", ErrInvalidArgument, AmountScale)
	ErrBalanceTooLarge = fmt.Errorf("%w: balance must be below %s", ErrInvalidArgument, MaxAmount)
)

// CheckAmount valida um valor positivo de aposta ou crédito
func CheckAmount(d decimal.Decimal) error {
	switch {
	case !d.IsPositive():
		return ErrInvalidAmount
	case !d.Equal(d.Truncate(AmountScale)):
		return ErrAmountScale
	case d.GreaterThanOrEqual(MaxAmount):
		return ErrAmountTooLarge
	}
	return nil
}

// CheckBalance valida um saldo absoluto
func CheckBalance(d decimal.Decimal) error {
	switch {
	case d.IsNegative():
		return ErrNegativeBalance
	case !d.Equal(d.Truncate(AmountScale)):
		return ErrBalanceScale
	case d.GreaterThanOrEqual(MaxAmount):
		return ErrBalanceTooLarge
	}
	return nil
}
