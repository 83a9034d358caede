package domain

import (
	"time"

	"github.com/pkg/errors"
)

// Interval is a candle width. The set is closed; every value also is the
// canonical wire form.
type Interval string

const (
	Interval1s  Interval = "1s"
	Interval1m  Interval = "1m"
	Interval5m  Interval = "5m"
	Interval15m Interval = "15m"
	Interval1h  Interval = "1h"
)

func Intervals() []Interval {
	return []Interval{
		Interval1s,
		Interval1m,
		Interval5m,
		Interval15m,
		Interval1h,
	}
}

func ParseInterval(s string) (Interval, error) {
	for _, interval := range Intervals() {
		if string(interval) == s {
			return interval, nil
		}
	}
	return "", errors.Wrapf(ErrUnknownInterval, "%q", s)
}

func (interval Interval) String() string {
	return string(interval)
}

func (interval Interval) Duration() time.Duration {
	int2dur := map[Interval]time.Duration{
		Interval1s:  time.Second,
		Interval1m:  time.Minute,
		Interval5m:  5 * time.Minute,
		Interval15m: 15 * time.Minute,
		Interval1h:  time.Hour,
	}

	return int2dur[interval]
}

// Align returns the start of the candle window holding ts. Windows are
// half-open [start, start+d) and anchored to whole multiples of the
// interval duration since the Unix epoch, computed in integer seconds, so a
// 1h window starts at xx:00:00 UTC in every zone.
func (interval Interval) Align(ts time.Time) time.Time {
	d := int64(interval.Duration() / time.Second)
	sec := ts.Unix()

	return time.Unix(sec-sec%d, 0).UTC()
}

// Next returns the start of the window after the one holding ts.
func (interval Interval) Next(ts time.Time) time.Time {
	return interval.Align(ts).Add(interval.Duration())
}
