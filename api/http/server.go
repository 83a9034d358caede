package http

import (
	"context"
	"net/http"
	"path/filepath"
	"time"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/memelabs/candlecast/api/http/handler"
	"github.com/memelabs/candlecast/api/ws"
	"github.com/memelabs/candlecast/infra"
)

const shutdownTimeout = 5 * time.Second

type Server struct {
	srv http.Server
}

// NewServer wires the REST routes, the websocket endpoint and the test page
// into one listener. webDir may be empty to skip the page.
func NewServer(conf infra.ServerConfig, kline *handler.KlineHandler, hub *ws.Hub, webDir string) *Server {
	r := mux.NewRouter()
	r.Use(requestID, cors, logRequests)

	api := r.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/klines", kline.GetKlines).Methods(http.MethodGet, http.MethodOptions)
	api.HandleFunc("/klines/latest", kline.GetLatestKline).Methods(http.MethodGet, http.MethodOptions)
	api.HandleFunc("/klines/current", kline.GetCurrentKline).Methods(http.MethodGet, http.MethodOptions)
	api.HandleFunc("/tokens", kline.GetTokens).Methods(http.MethodGet, http.MethodOptions)
	api.HandleFunc("/stats", kline.GetStats).Methods(http.MethodGet, http.MethodOptions)
	api.HandleFunc("/health", kline.GetHealth).Methods(http.MethodGet, http.MethodOptions)

	r.Handle("/ws", hub)

	if webDir != "" {
		page := filepath.Join(webDir, "websocket_test.html")
		r.HandleFunc("/", func(w http.ResponseWriter, req *http.Request) {
			http.ServeFile(w, req, page)
		}).Methods(http.MethodGet)
	}

	return &Server{
		srv: http.Server{
			Addr:    conf.Addr(),
			Handler: r,
		},
	}
}

// Run serves until ctx is done, then drains in-flight requests.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		log.WithField("addr", s.srv.Addr).Info("[*] http server started")
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return errors.Wrap(err, "http server")
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.srv.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "http server shutdown")
	}
	log.Info("[*] http server stopped")

	return nil
}

// Handler exposes the routing tree for in-process tests.
func (s *Server) Handler() http.Handler {
	return s.srv.Handler
}
