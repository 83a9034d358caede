package domain

type EventKind uint8

const (
	EventKindTrade EventKind = iota + 1
	EventKindCandle
)

// CandleUpdate carries a by-value snapshot of a bar after a fold or a
// closure. Terminal mirrors the snapshot's Closed flag: a terminal update
// is the final state of that window.
type CandleUpdate struct {
	Candle   Candle
	Terminal bool
}

// Event is the tagged union shipped over the broadcast bus. Kind selects
// which payload field is meaningful; events travel by value so no receiver
// can touch the publisher's copy.
type Event struct {
	Kind   EventKind
	Trade  Trade
	Update CandleUpdate
}

func NewTradeEvent(tr Trade) Event {
	return Event{Kind: EventKindTrade, Trade: tr}
}

func NewCandleEvent(u CandleUpdate) Event {
	return Event{Kind: EventKindCandle, Update: u}
}
