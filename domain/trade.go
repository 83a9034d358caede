package domain

import (
	"time"

	"github.com/pkg/errors"
)

// Trade is a single externally produced trade event. It is immutable once
// created; the ingest path ships it around by value.
type Trade struct {
	Token     string    `json:"token"`
	Price     float64   `json:"price"`
	Volume    float64   `json:"volume"`
	Timestamp time.Time `json:"timestamp"`
	IsBuy     bool      `json:"is_buy"`
}

// Validate checks the trade's own fields. Whether the token is actually
// served is decided by the candle store, not here.
func (t Trade) Validate() error {
	if t.Token == "" {
		return errors.Wrap(ErrInvalidTrade, "empty token")
	}
	if t.Price <= 0 {
		return errors.Wrapf(ErrInvalidTrade, "price %v", t.Price)
	}
	if t.Volume < 0 {
		return errors.Wrapf(ErrInvalidTrade, "volume %v", t.Volume)
	}
	if t.Timestamp.IsZero() {
		return errors.Wrap(ErrInvalidTrade, "zero timestamp")
	}
	return nil
}
