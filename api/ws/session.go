package ws

import (
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"

	"github.com/memelabs/candlecast/bus"
	"github.com/memelabs/candlecast/domain"
)

// Session lifecycle states.
const (
	stateOpening int32 = iota
	stateActive
	stateClosing
	stateClosed
)

const (
	writeWait      = 10 * time.Second
	maxMessageSize = 4 << 10
	sendQueueDepth = 64
)

// Session owns one websocket connection. Three goroutines run per session:
// the read pump handles client frames, the forward pump turns bus events
// into server frames and the write pump is the only writer on the socket.
// A full send queue drops frames rather than stalling the other pumps.
type Session struct {
	id   string
	conn *websocket.Conn
	sub  *bus.Subscriber
	hub  *Hub

	send  chan ServerMessage
	done  chan struct{}
	once  sync.Once
	state atomic.Int32
}

func newSession(hub *Hub, conn *websocket.Conn, id string) *Session {
	return &Session{
		id:   id,
		conn: conn,
		sub:  hub.bus.Subscribe(id),
		hub:  hub,
		send: make(chan ServerMessage, sendQueueDepth),
		done: make(chan struct{}),
	}
}

func (s *Session) ID() string {
	return s.id
}

func (s *Session) start() {
	s.state.Store(stateActive)

	s.hub.wg.Add(3)
	go s.readLoop()
	go s.writeLoop()
	go s.forwardLoop()
}

// Close starts the teardown: the bus subscription goes away, the write pump
// delivers a close frame and shuts the socket. Safe to call from any
// goroutine, any number of times.
func (s *Session) Close() {
	s.once.Do(func() {
		s.state.Store(stateClosing)
		s.hub.bus.Unsubscribe(s.id)
		close(s.done)
		s.hub.remove(s)
		s.hub.stats.SessionsActive.Add(-1)
		log.WithField("session", s.id).Debug("session closing")
	})
}

func (s *Session) readLoop() {
	defer s.hub.wg.Done()
	defer s.Close()

	s.conn.SetReadLimit(maxMessageSize)
	_ = s.conn.SetReadDeadline(time.Now().Add(s.hub.clientTimeout))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(s.hub.clientTimeout))
	})

	for {
		_, raw, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.WithError(err).WithField("session", s.id).Debug("session read failed")
			}
			return
		}
		// any client frame counts as liveness, not just pongs
		_ = s.conn.SetReadDeadline(time.Now().Add(s.hub.clientTimeout))
		s.handle(raw)
	}
}

func (s *Session) writeLoop() {
	defer s.hub.wg.Done()

	ticker := time.NewTicker(s.hub.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			s.flush()
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = s.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			_ = s.conn.Close()
			s.state.Store(stateClosed)
			return
		case msg := <-s.send:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteJSON(msg); err != nil {
				s.Close()
			}
		case <-ticker.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				s.Close()
			}
		}
	}
}

// flush drains frames already queued at close time so a clean shutdown does
// not cut off acknowledgements in flight.
func (s *Session) flush() {
	for {
		select {
		case msg := <-s.send:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteJSON(msg); err != nil {
				return
			}
		default:
			return
		}
	}
}

func (s *Session) forwardLoop() {
	defer s.hub.wg.Done()

	// the bus closes the event channel on unsubscribe
	for ev := range s.sub.Events() {
		switch ev.Kind {
		case domain.EventKindTrade:
			s.enqueue(NewTradeMessage(ev.Trade))
		case domain.EventKindCandle:
			s.enqueue(NewCandleMessage(ev.Update.Candle))
		}
	}
}

func (s *Session) enqueue(msg ServerMessage) {
	select {
	case s.send <- msg:
	default:
		s.hub.stats.SessionQueueDrops.Add(1)
		log.WithFields(log.Fields{
			"session": s.id,
			"type":    msg.Type,
		}).Debug("send queue full, frame dropped")
	}
}

func (s *Session) handle(raw []byte) {
	var msg ClientMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		s.enqueue(NewErrorMessage("Invalid message format"))
		return
	}

	switch msg.Action {
	case ActionSubscribe:
		if err := msg.Subscription.Validate(); err != nil {
			s.enqueue(NewErrorMessage(err.Error()))
			return
		}
		s.sub.Add(msg.Subscription)
		s.enqueue(NewSubscribedMessage(msg.Subscription))
	case ActionUnsubscribe:
		if err := msg.Subscription.Validate(); err != nil {
			s.enqueue(NewErrorMessage(err.Error()))
			return
		}
		s.sub.Remove(msg.Subscription)
		s.enqueue(NewUnsubscribedMessage(msg.Subscription))
	case ActionPing:
		s.enqueue(NewPongMessage())
	default:
		s.enqueue(NewErrorMessage("Unknown action: " + msg.Action))
	}
}
