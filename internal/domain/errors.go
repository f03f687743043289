package domain

import "errors"

var (
	ErrNotFound            = errors.New("not found")
	ErrAlreadyExists       = errors.New("already exists")
	ErrInvalidOrder        = errors.New("invalid order parameters")
	ErrUnsupportedToken    = errors.New("unsupported token")
	ErrNoQuoteAvailable    = errors.New("no quote available")
	ErrInvalidKeyLength    = errors.New("invalid private key length")
	ErrSwapFailed          = errors.New("swap failed")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrContextDone         = errors.New("context cancelled")
	ErrLockHeld            = errors.New("lock already held")
)
