package client

import (
	"context"
	"encoding/json"
	"net/url"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"

	"github.com/memelabs/candlecast/domain"
)

// Stream is the push side of the service API. Dial, subscribe, then pull
// frames with Next. A Stream is not safe for concurrent use.
type Stream struct {
	conn *websocket.Conn
}

// Frame is one server push, decoded just far enough to route on its type.
type Frame struct {
	Type         string               `json:"type"`
	Data         json.RawMessage      `json:"data"`
	Subscription *domain.Subscription `json:"subscription"`
	Message      string               `json:"message"`
}

// Trade decodes a transaction frame.
func (f *Frame) Trade() (domain.Trade, error) {
	var tr domain.Trade
	if f.Type != "transaction" {
		return tr, errors.Errorf("frame is %q, not a transaction", f.Type)
	}

	return tr, errors.Wrap(json.Unmarshal(f.Data, &tr), "decode trade frame")
}

// Candle decodes a kline frame.
func (f *Frame) Candle() (domain.Candle, error) {
	var c domain.Candle
	if f.Type != "kline" {
		return c, errors.Errorf("frame is %q, not a kline", f.Type)
	}

	return c, errors.Wrap(json.Unmarshal(f.Data, &c), "decode kline frame")
}

type clientFrame struct {
	Action string `json:"action"`
	domain.Subscription
}

// DialStream connects to the websocket endpoint of the service at baseURL.
// The http and https schemes map to ws and wss.
func DialStream(ctx context.Context, baseURL string) (*Stream, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, errors.Wrap(err, "parse service url")
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	}
	u.Path = "/ws"

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return nil, errors.Wrap(err, "dial websocket")
	}

	return &Stream{conn: conn}, nil
}

func (s *Stream) Subscribe(sub domain.Subscription) error {
	return errors.Wrap(s.conn.WriteJSON(clientFrame{Action: "subscribe", Subscription: sub}), "send subscribe")
}

func (s *Stream) Unsubscribe(sub domain.Subscription) error {
	return errors.Wrap(s.conn.WriteJSON(clientFrame{Action: "unsubscribe", Subscription: sub}), "send unsubscribe")
}

func (s *Stream) Ping() error {
	return errors.Wrap(s.conn.WriteJSON(clientFrame{Action: "ping"}), "send ping")
}

// Next blocks for the next frame, up to timeout.
func (s *Stream) Next(timeout time.Duration) (*Frame, error) {
	if err := s.conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return nil, errors.Wrap(err, "set read deadline")
	}

	var f Frame
	if err := s.conn.ReadJSON(&f); err != nil {
		return nil, errors.Wrap(err, "read frame")
	}

	return &f, nil
}

func (s *Stream) Close() error {
	_ = s.conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second),
	)

	return s.conn.Close()
}
