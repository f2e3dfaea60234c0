package domain

import "errors"

var (
	ErrInvalidInput      = errors.New("invalid input")
	ErrMatchNotFound     = errors.New("match not found")
	ErrBetNotFound       = errors.New("bet not found")
	ErrProfileNotFound   = errors.New("profile not found")
	ErrAlreadySettled    = errors.New("match already settled")
	ErrAlreadyResolved   = errors.New("bet already resolved")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrMatchNotOpen      = errors.New("match not open for betting")
	ErrOddsChanged       = errors.New("odds changed")
)
