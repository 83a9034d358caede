package trade

import (
	"context"
	"hash/fnv"
	"runtime"
	"sync"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/memelabs/candlecast/bus"
	"github.com/memelabs/candlecast/candle"
	"github.com/memelabs/candlecast/domain"
	"github.com/memelabs/candlecast/infra"
)

const queueDepth = 64

// Service is the ingest path. Submit validates a trade and hands it to the
// worker owning the trade's token; the worker folds it into the store and
// republishes the trade plus the per-interval candle updates on the bus.
// Partitioning by token keeps per-token order while tokens fold in
// parallel. Any number of sources may call Submit concurrently.
type Service struct {
	store  *candle.Store
	bus    *bus.Bus
	stats  *infra.Stats
	queues []chan domain.Trade
	wg     sync.WaitGroup
}

func NewService(store *candle.Store, b *bus.Bus, workers int, stats *infra.Stats) *Service {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	queues := make([]chan domain.Trade, workers)
	for i := range queues {
		queues[i] = make(chan domain.Trade, queueDepth)
	}

	return &Service{
		store:  store,
		bus:    b,
		stats:  stats,
		queues: queues,
	}
}

// Run starts the workers and blocks until ctx is done and the workers have
// stopped.
func (s *Service) Run(ctx context.Context) error {
	log.WithField("workers", len(s.queues)).Info("[*] trade ingest started")

	for _, q := range s.queues {
		s.wg.Add(1)
		go s.worker(ctx, q)
	}
	s.wg.Wait()

	return nil
}

func (s *Service) worker(ctx context.Context, q <-chan domain.Trade) {
	defer s.wg.Done()

	for {
		select {
		case <-ctx.Done():
			// drain what is already queued so blocked submitters get released
			for {
				select {
				case tr := <-q:
					s.process(tr)
				default:
					return
				}
			}
		case tr := <-q:
			s.process(tr)
		}
	}
}

// Submit validates tr and queues it for folding. The unknown-symbol and
// malformed-trade errors surface to the caller; everything behind the queue
// is asynchronous.
func (s *Service) Submit(tr domain.Trade) error {
	if err := tr.Validate(); err != nil {
		s.stats.TradesRejected.Add(1)
		return err
	}
	if !s.store.Has(tr.Token) {
		s.stats.TradesRejected.Add(1)
		return errors.Wrapf(domain.ErrUnknownSymbol, "%s", tr.Token)
	}

	s.queue(tr.Token) <- tr

	return nil
}

func (s *Service) process(tr domain.Trade) {
	updates, err := s.store.ApplyTrade(tr)
	if err != nil {
		// Submit checks the symbol up front, so this only fires when a
		// caller bypassed it
		s.stats.TradesRejected.Add(1)
		log.WithError(err).WithField("token", tr.Token).Debug("trade rejected at fold")
		return
	}
	s.stats.TradesProcessed.Add(1)

	// the trade goes first; its candle updates follow in emission order
	s.bus.Publish(domain.NewTradeEvent(tr))
	for _, update := range updates {
		s.bus.Publish(domain.NewCandleEvent(update))
	}
}

func (s *Service) queue(token string) chan<- domain.Trade {
	h := fnv.New32a()
	_, _ = h.Write([]byte(token))

	return s.queues[int(h.Sum32())%len(s.queues)]
}
