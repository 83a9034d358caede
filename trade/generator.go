package trade

import (
	"context"
	"math/rand"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/memelabs/candlecast/domain"
	"github.com/memelabs/candlecast/infra"
)

var timeNow = func() time.Time { return time.Now() }

// Generator emits synthetic trades for the configured tokens so the service
// streams data without an upstream feed. Each trade prices within the
// configured volatility band around the token's base price, so the
// synthetic market hovers there instead of drifting off.
type Generator struct {
	svc        *Service
	tokens     []infra.TokenConfig
	interval   time.Duration
	volatility float64
	volumeMin  float64
	volumeMax  float64

	rng *rand.Rand
}

func NewGenerator(svc *Service, tokens []infra.TokenConfig, cfg infra.DataGenerationConfig) *Generator {
	return &Generator{
		svc:        svc,
		tokens:     tokens,
		interval:   cfg.Interval(),
		volatility: cfg.Volatility,
		volumeMin:  cfg.VolumeRange[0],
		volumeMax:  cfg.VolumeRange[1],
		rng:        rand.New(rand.NewSource(timeNow().UnixNano())),
	}
}

// Run emits one trade per token each interval until ctx is done.
func (g *Generator) Run(ctx context.Context) error {
	log.WithFields(log.Fields{
		"tokens":   len(g.tokens),
		"interval": g.interval,
	}).Info("[*] trade generator started")

	ticker := time.NewTicker(g.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			g.tick()
		}
	}
}

func (g *Generator) tick() {
	now := timeNow()
	for _, t := range g.tokens {
		if err := g.svc.Submit(g.nextTrade(t, now)); err != nil {
			log.WithError(err).WithField("token", t.Symbol).Warn("generated trade rejected")
		}
	}
}

func (g *Generator) nextTrade(t infra.TokenConfig, now time.Time) domain.Trade {
	return domain.Trade{
		Token:     t.Symbol,
		Price:     t.BasePrice * (1 + g.volatility*(2*g.rng.Float64()-1)),
		Volume:    g.volumeMin + g.rng.Float64()*(g.volumeMax-g.volumeMin),
		Timestamp: now,
		IsBuy:     g.rng.Intn(2) == 0,
	}
}
