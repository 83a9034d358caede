package domain

import "github.com/pkg/errors"

var (
	ErrUnknownSymbol       = errors.New("unknown symbol")
	ErrUnknownInterval     = errors.New("invalid interval")
	ErrInvalidTrade        = errors.New("invalid trade")
	ErrInvalidSubscription = errors.New("invalid subscription")
)
