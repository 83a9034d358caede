package candle

import (
	"fmt"
	"sync"
	"time"

	"github.com/memelabs/candlecast/domain"
)

// series is the bounded ordered run of candles for one (token, interval)
// key. Window starts are strictly increasing by exactly one interval and at
// most the tail candle is open. Every access goes through the series mutex;
// no reference to the backing slice ever escapes it.
type series struct {
	mu       sync.Mutex
	token    string
	interval domain.Interval
	limit    int
	candles  []domain.Candle
}

func newSeries(token string, interval domain.Interval, limit int) *series {
	return &series{
		token:    token,
		interval: interval,
		limit:    limit,
	}
}

// applyTrade folds tr into the window align(tr.Timestamp). Updates come out
// in emission order: closures first, the refreshed open candle last. ok is
// false when the trade was older than the current window and dropped for
// this interval.
func (s *series) applyTrade(tr domain.Trade) (updates []domain.CandleUpdate, ok bool) {
	w := s.interval.Align(tr.Timestamp)

	s.mu.Lock()
	defer s.mu.Unlock()

	switch tail := s.tail(); {
	case tail == nil:
		s.candles = append(s.candles, domain.NewCandle(tr, s.interval))
	case tail.Timestamp.Before(w):
		updates = s.rollOver(w)
		s.candles = append(s.candles, domain.NewCandle(tr, s.interval))
	case tail.Timestamp.Equal(w):
		if tail.Closed {
			// the sweeper already sealed this window; too late to amend
			return nil, false
		}
		tail.Fold(tr)
	default:
		// trade precedes the current window: too late to aggregate
		return nil, false
	}

	s.trim()

	current := s.candles[len(s.candles)-1]
	s.assertSane(current)
	updates = append(updates, domain.CandleUpdate{Candle: current})

	return updates, true
}

// rollOver seals the open tail and materializes a closed empty bar for every
// whole window between the tail and w. All emitted updates are terminal.
// The caller appends the candle for w itself.
func (s *series) rollOver(w time.Time) []domain.CandleUpdate {
	var updates []domain.CandleUpdate

	tail := s.tail()
	if !tail.Closed {
		tail.Closed = true
		updates = append(updates, domain.CandleUpdate{Candle: *tail, Terminal: true})
	}

	prevClose := tail.Close
	d := s.interval.Duration()
	for start := tail.Timestamp.Add(d); start.Before(w); start = start.Add(d) {
		empty := domain.NewEmptyCandle(s.token, s.interval, start, prevClose)
		s.candles = append(s.candles, empty)
		updates = append(updates, domain.CandleUpdate{Candle: empty, Terminal: true})
	}

	return updates
}

// sweep seals the tail once the wall clock has left its window and appends
// closed empty bars up to, but not including, the window holding now. The
// window holding now stays vacant until a trade opens it.
func (s *series) sweep(now time.Time) []domain.CandleUpdate {
	s.mu.Lock()
	defer s.mu.Unlock()

	tail := s.tail()
	if tail == nil {
		return nil
	}

	var updates []domain.CandleUpdate
	if !tail.Closed {
		if s.interval.Next(tail.Timestamp).After(now) {
			return nil
		}
		tail.Closed = true
		updates = append(updates, domain.CandleUpdate{Candle: *tail, Terminal: true})
	}

	prevClose := tail.Close
	lastStart := tail.Timestamp
	d := s.interval.Duration()
	for start := lastStart.Add(d); start.Before(s.interval.Align(now)); start = start.Add(d) {
		empty := domain.NewEmptyCandle(s.token, s.interval, start, prevClose)
		s.candles = append(s.candles, empty)
		updates = append(updates, domain.CandleUpdate{Candle: empty, Terminal: true})
	}

	s.trim()

	return updates
}

// history returns up to limit closed candles, oldest first, taken from the
// newest end of the series. The result is a copy.
func (s *series) history(limit int) []domain.Candle {
	s.mu.Lock()
	defer s.mu.Unlock()

	closed := s.candles
	if n := len(closed); n > 0 && !closed[n-1].Closed {
		closed = closed[:n-1]
	}
	if limit > 0 && len(closed) > limit {
		closed = closed[len(closed)-limit:]
	}

	out := make([]domain.Candle, len(closed))
	copy(out, closed)

	return out
}

func (s *series) latestClosed() (domain.Candle, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// at most the tail is open, so the newest closed candle is within the
	// last two elements
	for i := len(s.candles) - 1; i >= 0; i-- {
		if s.candles[i].Closed {
			return s.candles[i], true
		}
	}

	return domain.Candle{}, false
}

func (s *series) current() (domain.Candle, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if tail := s.tail(); tail != nil && !tail.Closed {
		return *tail, true
	}

	return domain.Candle{}, false
}

func (s *series) length() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.candles)
}

// tail is only valid until the next append. Callers hold s.mu.
func (s *series) tail() *domain.Candle {
	if len(s.candles) == 0 {
		return nil
	}
	return &s.candles[len(s.candles)-1]
}

func (s *series) trim() {
	if over := len(s.candles) - s.limit; over > 0 {
		s.candles = s.candles[over:]
	}
}

func (s *series) assertSane(c domain.Candle) {
	if !c.Sane() {
		panic(fmt.Sprintf("candle invariant broken for %s %s: %+v", s.token, s.interval, c))
	}
}
