package ws

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/memelabs/candlecast/bus"
	"github.com/memelabs/candlecast/infra"
)

const (
	defaultHeartbeat     = 30 * time.Second
	defaultClientTimeout = 60 * time.Second
)

// Hub upgrades websocket requests into sessions and enforces the connection
// limit. A limit of zero or less means unlimited.
type Hub struct {
	bus   *bus.Bus
	stats *infra.Stats

	maxConns      int
	heartbeat     time.Duration
	clientTimeout time.Duration

	upgrader websocket.Upgrader

	mu       sync.Mutex
	sessions map[string]*Session
	reserved int

	wg sync.WaitGroup
}

func NewHub(b *bus.Bus, stats *infra.Stats, maxConns int, heartbeat, clientTimeout time.Duration) *Hub {
	if heartbeat <= 0 {
		heartbeat = defaultHeartbeat
	}
	if clientTimeout <= 0 {
		clientTimeout = defaultClientTimeout
	}

	return &Hub{
		bus:           b,
		stats:         stats,
		maxConns:      maxConns,
		heartbeat:     heartbeat,
		clientTimeout: clientTimeout,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		sessions: make(map[string]*Session),
	}
}

func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !h.tryReserve() {
		h.stats.SessionsRejected.Add(1)
		http.Error(w, "connection limit reached", http.StatusServiceUnavailable)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.release()
		// the upgrader already wrote the error response
		log.WithError(err).Debug("websocket upgrade failed")
		return
	}

	s := newSession(h, conn, uuid.NewString())
	h.stats.SessionsOpened.Add(1)
	h.stats.SessionsActive.Add(1)
	h.add(s)
	log.WithField("session", s.id).Debug("session opened")

	s.start()
}

// Shutdown closes every open session and waits for their pumps to finish or
// for ctx to expire.
func (h *Hub) Shutdown(ctx context.Context) error {
	h.mu.Lock()
	open := make([]*Session, 0, len(h.sessions))
	for _, s := range h.sessions {
		open = append(open, s)
	}
	h.mu.Unlock()

	for _, s := range open {
		s.Close()
	}

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Info("[*] websocket hub stopped")
		return nil
	case <-ctx.Done():
		return errors.Wrap(ctx.Err(), "websocket hub shutdown")
	}
}

// Len reports the number of open sessions.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()

	return len(h.sessions)
}

func (h *Hub) tryReserve() bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.maxConns > 0 && h.reserved >= h.maxConns {
		return false
	}
	h.reserved++

	return true
}

func (h *Hub) release() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.reserved--
}

func (h *Hub) add(s *Session) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.sessions[s.id] = s
}

func (h *Hub) remove(s *Session) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.sessions[s.id]; ok {
		delete(h.sessions, s.id)
		h.reserved--
	}
}
