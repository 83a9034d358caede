package ws

import (
	"github.com/memelabs/candlecast/domain"
)

// Client actions.
const (
	ActionSubscribe   = "subscribe"
	ActionUnsubscribe = "unsubscribe"
	ActionPing        = "ping"
)

// Server frame types.
const (
	MessageTransaction  = "transaction"
	MessageKline        = "kline"
	MessageSubscribed   = "subscribed"
	MessageUnsubscribed = "unsubscribed"
	MessagePong         = "pong"
	MessageError        = "error"
)

// ClientMessage is an inbound frame. The subscription fields sit beside the
// action at the top level, so {"action":"subscribe","type":"klines",...}
// decodes in one pass.
type ClientMessage struct {
	Action string `json:"action"`
	domain.Subscription
}

// ServerMessage is an outbound frame. Only the fields a given type uses are
// serialized.
type ServerMessage struct {
	Type         string               `json:"type"`
	Data         interface{}          `json:"data,omitempty"`
	Subscription *domain.Subscription `json:"subscription,omitempty"`
	Message      string               `json:"message,omitempty"`
}

func NewTradeMessage(tr domain.Trade) ServerMessage {
	return ServerMessage{Type: MessageTransaction, Data: tr}
}

func NewCandleMessage(c domain.Candle) ServerMessage {
	return ServerMessage{Type: MessageKline, Data: c}
}

func NewSubscribedMessage(sub domain.Subscription) ServerMessage {
	return ServerMessage{Type: MessageSubscribed, Subscription: &sub}
}

func NewUnsubscribedMessage(sub domain.Subscription) ServerMessage {
	return ServerMessage{Type: MessageUnsubscribed, Subscription: &sub}
}

func NewPongMessage() ServerMessage {
	return ServerMessage{Type: MessagePong}
}

func NewErrorMessage(msg string) ServerMessage {
	return ServerMessage{Type: MessageError, Message: msg}
}
