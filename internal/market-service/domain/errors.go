package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound = errors.New("not found")

	ErrInvalidArgument   = errors.New("invalid argument")
	ErrInvalidSide       = fmt.Errorf("%w: side must be YES or NO", ErrInvalidArgument)
	ErrInvalidAmount     = fmt.Errorf("%w: amount must be greater than 0", ErrInvalidArgument)
	ErrInvalidResolution = fmt.Errorf("%w: resolution must be YES or NO", ErrInvalidArgument)
	ErrNegativeBalance   = fmt.Errorf("%w: balance cannot be negative", ErrInvalidArgument)
	ErrInvalidStatus     = fmt.Errorf("%w: status must be open or resolved", ErrInvalidArgument)

	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrMarketClosed        = errors.New("market is not open for betting")
	ErrAlreadyResolved     = errors.New("market is already resolved")
	ErrNotResolved         = errors.New("market is not resolved")

	ErrConflict        = errors.New("already exists")
	ErrVersionConflict = errors.New("balance version conflict")

	ErrStore               = errors.New("store error")
	ErrPartialDistribution = errors.New("partial distribution")
)
