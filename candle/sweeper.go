package candle

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/memelabs/candlecast/bus"
	"github.com/memelabs/candlecast/domain"
)

var timeNow = func() time.Time {
	return time.Now()
}

// Sweeper drives time-based candle closure: on every tick it collects due
// closures and gap fills from the store and republishes them on the bus, so
// candles seal on schedule even when no trade lands in their window.
type Sweeper struct {
	store   *Store
	bus     *bus.Bus
	cadence time.Duration
}

func NewSweeper(store *Store, b *bus.Bus, cadence time.Duration) *Sweeper {
	if cadence <= 0 {
		cadence = time.Second
	}

	return &Sweeper{
		store:   store,
		bus:     b,
		cadence: cadence,
	}
}

// Run ticks until ctx is done.
func (sw *Sweeper) Run(ctx context.Context) error {
	log.WithField("cadence", sw.cadence).Info("[*] candle sweeper started")

	ticker := time.NewTicker(sw.cadence)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			sw.Tick()
		}
	}
}

// Tick runs one closure pass. Split out so tests and shutdown flushes can
// drive it directly.
func (sw *Sweeper) Tick() {
	for _, update := range sw.store.SweepClosures(timeNow()) {
		sw.bus.Publish(domain.NewCandleEvent(update))
	}
}
