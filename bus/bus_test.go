package bus

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/memelabs/candlecast/domain"
	"github.com/memelabs/candlecast/infra"
)

func tradeEvent(token string, price float64) domain.Event {
	return domain.NewTradeEvent(domain.Trade{
		Token:     token,
		Price:     price,
		Volume:    1,
		Timestamp: time.Now(),
	})
}

func candleEvent(token string, interval domain.Interval) domain.Event {
	return domain.NewCandleEvent(domain.CandleUpdate{
		Candle: domain.Candle{Token: token, Interval: interval},
	})
}

func drain(sub *Subscriber) []domain.Event {
	var got []domain.Event
	for {
		select {
		case ev := <-sub.Events():
			got = append(got, ev)
		default:
			return got
		}
	}
}

func TestBusDeliversByFilter(t *testing.T) {
	b := New(64, infra.NewStats())

	tradesA := b.Subscribe("a", domain.Subscription{Type: domain.SubscribeTrades, Tokens: []string{"DOGE"}})
	candlesB := b.Subscribe("b", domain.Subscription{Type: domain.SubscribeCandles, Token: "SHIB", Interval: domain.Interval1m})

	b.Publish(tradeEvent("DOGE", 0.15))
	b.Publish(tradeEvent("SHIB", 0.00005))
	b.Publish(candleEvent("SHIB", domain.Interval1m))
	b.Publish(candleEvent("SHIB", domain.Interval5m))

	gotA := drain(tradesA)
	require.Len(t, gotA, 1)
	assert.Equal(t, domain.EventKindTrade, gotA[0].Kind)
	assert.Equal(t, "DOGE", gotA[0].Trade.Token)

	gotB := drain(candlesB)
	require.Len(t, gotB, 1)
	assert.Equal(t, domain.EventKindCandle, gotB[0].Kind)
	assert.Equal(t, domain.Interval1m, gotB[0].Update.Candle.Interval)
}

func TestBusAllTradesSeesEveryToken(t *testing.T) {
	b := New(64, infra.NewStats())
	sub := b.Subscribe("all", domain.Subscription{Type: domain.SubscribeAllTrades})

	b.Publish(tradeEvent("DOGE", 0.15))
	b.Publish(tradeEvent("SHIB", 0.00005))
	b.Publish(candleEvent("DOGE", domain.Interval1s))

	got := drain(sub)
	require.Len(t, got, 2)
	assert.Equal(t, "DOGE", got[0].Trade.Token)
	assert.Equal(t, "SHIB", got[1].Trade.Token)
}

func TestBusFilterUnion(t *testing.T) {
	b := New(64, infra.NewStats())
	sub := b.Subscribe("mixed",
		domain.Subscription{Type: domain.SubscribeTrades, Tokens: []string{"DOGE"}},
		domain.Subscription{Type: domain.SubscribeCandles, Token: "DOGE", Interval: domain.Interval1m},
	)

	b.Publish(tradeEvent("DOGE", 0.15))
	b.Publish(candleEvent("DOGE", domain.Interval1m))
	b.Publish(candleEvent("DOGE", domain.Interval1h))

	got := drain(sub)
	require.Len(t, got, 2)
	assert.Equal(t, domain.EventKindTrade, got[0].Kind)
	assert.Equal(t, domain.EventKindCandle, got[1].Kind)
}

func TestBusPreservesPerSubscriberOrder(t *testing.T) {
	b := New(256, infra.NewStats())
	sub := b.Subscribe("ordered", domain.Subscription{Type: domain.SubscribeAllTrades})

	for i := 0; i < 100; i++ {
		b.Publish(tradeEvent("DOGE", float64(i)))
	}

	got := drain(sub)
	require.Len(t, got, 100)
	for i, ev := range got {
		assert.Equal(t, float64(i), ev.Trade.Price)
	}
}

func TestBusDropsOnFullBufferWithoutBlocking(t *testing.T) {
	stats := infra.NewStats()
	b := New(2, stats)
	slow := b.Subscribe("slow", domain.Subscription{Type: domain.SubscribeAllTrades})

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 10; i++ {
			b.Publish(tradeEvent("DOGE", float64(i)))
		}
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publisher blocked on a full subscriber")
	}

	assert.Len(t, drain(slow), 2, "buffer holds the first events")
	assert.Equal(t, int64(8), slow.Dropped())
	assert.Equal(t, int64(8), stats.EventsDropped.Load())
	assert.Equal(t, int64(10), stats.EventsPublished.Load())
}

func TestBusSlowSubscriberDoesNotStarveOthers(t *testing.T) {
	b := New(2, infra.NewStats())
	slow := b.Subscribe("slow", domain.Subscription{Type: domain.SubscribeAllTrades})
	fast := b.Subscribe("fast", domain.Subscription{Type: domain.SubscribeAllTrades})

	const total = 200
	var received []domain.Event
	for i := 0; i < total; i++ {
		b.Publish(tradeEvent("DOGE", float64(i)))
		received = append(received, drain(fast)...)
	}

	require.Len(t, received, total, "the draining subscriber gets everything")
	for i, ev := range received {
		require.Equal(t, float64(i), ev.Trade.Price)
	}
	assert.Equal(t, int64(total-2), slow.Dropped())
}

func TestBusSubscribeIsIdempotentById(t *testing.T) {
	b := New(64, infra.NewStats())

	first := b.Subscribe("dup", domain.Subscription{Type: domain.SubscribeAllTrades})
	second := b.Subscribe("dup", domain.Subscription{Type: domain.SubscribeCandles, Token: "DOGE", Interval: domain.Interval1m})

	assert.Same(t, first, second)
	assert.Equal(t, 1, b.Len())

	// the second call merged its filter in
	b.Publish(candleEvent("DOGE", domain.Interval1m))
	assert.Len(t, drain(first), 1)
}

func TestBusUnsubscribeIsIdempotent(t *testing.T) {
	b := New(64, infra.NewStats())
	sub := b.Subscribe("gone", domain.Subscription{Type: domain.SubscribeAllTrades})

	b.Unsubscribe("gone")
	b.Unsubscribe("gone")
	b.Unsubscribe("never-was")

	assert.Equal(t, 0, b.Len())
	_, open := <-sub.Events()
	assert.False(t, open, "channel closes on unsubscribe")

	// publishing after removal must not panic or deliver
	b.Publish(tradeEvent("DOGE", 0.15))
}

func TestBusClosedBusDropsPublishes(t *testing.T) {
	stats := infra.NewStats()
	b := New(64, stats)
	sub := b.Subscribe("late", domain.Subscription{Type: domain.SubscribeAllTrades})

	b.Close()
	b.Publish(tradeEvent("DOGE", 0.15))

	assert.Empty(t, drain(sub))
	assert.Zero(t, stats.EventsPublished.Load())
}

func TestSubscriberFilterAddRemove(t *testing.T) {
	b := New(64, infra.NewStats())
	sub := b.Subscribe("s")

	f := domain.Subscription{Type: domain.SubscribeTrades, Tokens: []string{"DOGE"}}
	sub.Add(f)
	sub.Add(f)

	b.Publish(tradeEvent("DOGE", 0.15))
	assert.Len(t, drain(sub), 1, "duplicate filters must not duplicate delivery")

	sub.Remove(f)
	sub.Remove(f)
	b.Publish(tradeEvent("DOGE", 0.15))
	assert.Empty(t, drain(sub))
}

func TestBusConcurrentPublishSubscribe(t *testing.T) {
	b := New(16, infra.NewStats())

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("sub-%d", i)
			for j := 0; j < 50; j++ {
				sub := b.Subscribe(id, domain.Subscription{Type: domain.SubscribeAllTrades})
				b.Publish(tradeEvent("DOGE", float64(j)))
				drain(sub)
				b.Unsubscribe(id)
			}
		}(i)
	}
	wg.Wait()

	assert.Zero(t, b.Len())
}
