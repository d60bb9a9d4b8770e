package domain

import "errors"

var (
	ErrNotFound        = errors.New("market not found")
	ErrMarketClosed    = errors.New("market closed")
	ErrAlreadyResolved = errors.New("market already resolved")
	ErrForbidden       = errors.New("forbidden")
)
