package infra

import "sync/atomic"

// Stats is the process-wide telemetry block. One instance is created at
// startup and shared by the store, the bus, the ingest path and the
// websocket layer; the stats endpoint reads it through Snapshot.
type Stats struct {
	TradesProcessed   atomic.Int64
	TradesRejected    atomic.Int64
	LateTradeDrops    atomic.Int64
	EventsPublished   atomic.Int64
	EventsDropped     atomic.Int64
	SessionsActive    atomic.Int64
	SessionsOpened    atomic.Int64
	SessionsRejected  atomic.Int64
	SessionQueueDrops atomic.Int64
}

func NewStats() *Stats {
	return &Stats{}
}

func (s *Stats) Snapshot() map[string]int64 {
	return map[string]int64{
		"trades_processed":    s.TradesProcessed.Load(),
		"trades_rejected":     s.TradesRejected.Load(),
		"late_trade_drops":    s.LateTradeDrops.Load(),
		"events_published":    s.EventsPublished.Load(),
		"events_dropped":      s.EventsDropped.Load(),
		"sessions_active":     s.SessionsActive.Load(),
		"sessions_opened":     s.SessionsOpened.Load(),
		"sessions_rejected":   s.SessionsRejected.Load(),
		"session_queue_drops": s.SessionQueueDrops.Load(),
	}
}
