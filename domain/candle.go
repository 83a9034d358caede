package domain

import (
	"math"
	"time"
)

// Candle is one OHLCV bar for a (token, interval) window. Timestamp is the
// aligned window start; the bar covers [Timestamp, Timestamp+interval).
// Closed is monotonic: once true it never reverts.
type Candle struct {
	Token     string    `json:"token"`
	Timestamp time.Time `json:"timestamp"`
	Interval  Interval  `json:"interval"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    float64   `json:"volume"`
	Closed    bool      `json:"is_closed"`
}

// NewCandle opens a bar from the first trade of its window.
func NewCandle(tr Trade, interval Interval) Candle {
	return Candle{
		Token:     tr.Token,
		Timestamp: interval.Align(tr.Timestamp),
		Interval:  interval,
		Open:      tr.Price,
		High:      tr.Price,
		Low:       tr.Price,
		Close:     tr.Price,
		Volume:    tr.Volume,
	}
}

// NewEmptyCandle makes the synthetic bar for a window that saw no trades.
// All prices carry the previous close and the bar is born closed.
func NewEmptyCandle(token string, interval Interval, start time.Time, prevClose float64) Candle {
	return Candle{
		Token:     token,
		Timestamp: start,
		Interval:  interval,
		Open:      prevClose,
		High:      prevClose,
		Low:       prevClose,
		Close:     prevClose,
		Closed:    true,
	}
}

// Fold merges one more trade from the same window into the bar.
func (c *Candle) Fold(tr Trade) {
	if tr.Price > c.High {
		c.High = tr.Price
	}
	if tr.Price < c.Low {
		c.Low = tr.Price
	}
	c.Close = tr.Price
	c.Volume += tr.Volume
}

// Sane reports whether the OHLC relations hold:
// low ≤ min(open, close) and max(open, close) ≤ high, volume ≥ 0.
func (c Candle) Sane() bool {
	return c.Low <= math.Min(c.Open, c.Close) &&
		math.Max(c.Open, c.Close) <= c.High &&
		c.Volume >= 0
}
