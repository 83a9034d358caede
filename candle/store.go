package candle

import (
	"sort"
	"time"

	"github.com/pkg/errors"

	"github.com/memelabs/candlecast/domain"
	"github.com/memelabs/candlecast/infra"
)

// Store is the concurrent candle table. Every (token, interval) key is
// registered at construction and the key map never changes afterwards, so
// lookups need no lock; folds on different keys run in parallel and folds
// on one key serialize on that key's series lock.
type Store struct {
	tokens    []string
	intervals []domain.Interval
	series    map[string]map[domain.Interval]*series
	stats     *infra.Stats
}

func NewStore(tokens []string, retentionHours int, stats *infra.Stats) *Store {
	sorted := append([]string(nil), tokens...)
	sort.Strings(sorted)

	store := &Store{
		tokens:    sorted,
		intervals: domain.Intervals(),
		series:    make(map[string]map[domain.Interval]*series, len(sorted)),
		stats:     stats,
	}
	for _, token := range sorted {
		byInterval := make(map[domain.Interval]*series, len(store.intervals))
		for _, interval := range store.intervals {
			byInterval[interval] = newSeries(token, interval, retentionCap(retentionHours, interval))
		}
		store.series[token] = byInterval
	}

	return store
}

// retentionCap converts the retention horizon to a candle count for one
// interval.
func retentionCap(hours int, interval domain.Interval) int {
	return hours * int(time.Hour/interval.Duration())
}

// ApplyTrade folds tr into every interval series of its token and returns
// the resulting updates: closures and gap fills first, then one
// non-terminal update per interval for the refreshed open candle. Trades
// older than an interval's current window are dropped for that interval and
// counted.
func (st *Store) ApplyTrade(tr domain.Trade) ([]domain.CandleUpdate, error) {
	byInterval, ok := st.series[tr.Token]
	if !ok {
		return nil, errors.Wrapf(domain.ErrUnknownSymbol, "%s", tr.Token)
	}

	var updates []domain.CandleUpdate
	for _, interval := range st.intervals {
		u, folded := byInterval[interval].applyTrade(tr)
		if !folded {
			st.stats.LateTradeDrops.Add(1)
			continue
		}
		updates = append(updates, u...)
	}

	return updates, nil
}

// SweepClosures seals every candle whose window no longer holds now and
// fills the gaps behind it with closed empty bars. All returned updates are
// terminal.
func (st *Store) SweepClosures(now time.Time) []domain.CandleUpdate {
	var updates []domain.CandleUpdate
	for _, token := range st.tokens {
		for _, interval := range st.intervals {
			updates = append(updates, st.series[token][interval].sweep(now)...)
		}
	}

	return updates
}

// History returns up to limit closed candles, oldest first, from the newest
// end of the series.
func (st *Store) History(token string, interval domain.Interval, limit int) ([]domain.Candle, error) {
	s, err := st.lookup(token, interval)
	if err != nil {
		return nil, err
	}

	return s.history(limit), nil
}

// LatestClosed returns the newest closed candle, or nil when the series has
// none yet.
func (st *Store) LatestClosed(token string, interval domain.Interval) (*domain.Candle, error) {
	s, err := st.lookup(token, interval)
	if err != nil {
		return nil, err
	}

	if c, ok := s.latestClosed(); ok {
		return &c, nil
	}

	return nil, nil
}

// Current returns the open candle, or nil when the current window has not
// seen a trade.
func (st *Store) Current(token string, interval domain.Interval) (*domain.Candle, error) {
	s, err := st.lookup(token, interval)
	if err != nil {
		return nil, err
	}

	if c, ok := s.current(); ok {
		return &c, nil
	}

	return nil, nil
}

// Has reports whether token was registered at construction.
func (st *Store) Has(token string) bool {
	_, ok := st.series[token]
	return ok
}

// Tokens returns the registered tokens in sorted order.
func (st *Store) Tokens() []string {
	return append([]string(nil), st.tokens...)
}

func (st *Store) lookup(token string, interval domain.Interval) (*series, error) {
	byInterval, ok := st.series[token]
	if !ok {
		return nil, errors.Wrapf(domain.ErrUnknownSymbol, "%s", token)
	}
	s, ok := byInterval[interval]
	if !ok {
		return nil, errors.Wrapf(domain.ErrUnknownInterval, "%s", interval)
	}

	return s, nil
}
