package handler

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/AlekSi/pointer"
	"github.com/go-http-utils/headers"
	log "github.com/sirupsen/logrus"

	"github.com/memelabs/candlecast/candle"
	"github.com/memelabs/candlecast/domain"
	"github.com/memelabs/candlecast/infra"
)

const defaultHistoryLimit = 100

// KlineHandler serves the read-only candle endpoints. All data comes from
// the in-memory store; responses describe the state at the moment of the
// call.
type KlineHandler struct {
	store *candle.Store
	stats *infra.Stats
}

func NewKlineHandler(store *candle.Store, stats *infra.Stats) *KlineHandler {
	return &KlineHandler{
		store: store,
		stats: stats,
	}
}

type klineResponse struct {
	Token    string          `json:"token"`
	Interval domain.Interval `json:"interval"`
	Data     interface{}     `json:"data"`
	IsOpen   *bool           `json:"is_open,omitempty"`
}

type tokensResponse struct {
	Tokens []string `json:"tokens"`
	Count  int      `json:"count"`
}

type statsResponse struct {
	Statistics map[string]interface{} `json:"statistics"`
	Timestamp  time.Time              `json:"timestamp"`
}

type healthResponse struct {
	Status    string    `json:"status"`
	Service   string    `json:"service"`
	Timestamp time.Time `json:"timestamp"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// GetKlines returns up to limit closed candles, oldest first.
func (h *KlineHandler) GetKlines(w http.ResponseWriter, r *http.Request) {
	token, interval, ok := h.parseKey(w, r)
	if !ok {
		return
	}

	limit := defaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "Invalid limit parameter")
			return
		}
		limit = n
	}

	klines, err := h.store.History(token, interval, limit)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, klineResponse{
		Token:    token,
		Interval: interval,
		Data:     klines,
	})
}

// GetLatestKline returns the newest closed candle.
func (h *KlineHandler) GetLatestKline(w http.ResponseWriter, r *http.Request) {
	token, interval, ok := h.parseKey(w, r)
	if !ok {
		return
	}

	kline, err := h.store.LatestClosed(token, interval)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if kline == nil {
		writeError(w, http.StatusNotFound, "No K-line data found for the specified token and interval")
		return
	}

	writeJSON(w, http.StatusOK, klineResponse{
		Token:    token,
		Interval: interval,
		Data:     kline,
	})
}

// GetCurrentKline returns the still-forming candle of the current window.
func (h *KlineHandler) GetCurrentKline(w http.ResponseWriter, r *http.Request) {
	token, interval, ok := h.parseKey(w, r)
	if !ok {
		return
	}

	kline, err := h.store.Current(token, interval)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if kline == nil {
		writeError(w, http.StatusNotFound, "No K-line data found for the specified token and interval")
		return
	}

	writeJSON(w, http.StatusOK, klineResponse{
		Token:    token,
		Interval: interval,
		Data:     kline,
		IsOpen:   pointer.ToBool(true),
	})
}

func (h *KlineHandler) GetTokens(w http.ResponseWriter, r *http.Request) {
	tokens := h.store.Tokens()

	writeJSON(w, http.StatusOK, tokensResponse{
		Tokens: tokens,
		Count:  len(tokens),
	})
}

func (h *KlineHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	statistics := make(map[string]interface{})
	for name, value := range h.stats.Snapshot() {
		statistics[name] = value
	}
	statistics["total_tokens"] = len(h.store.Tokens())
	statistics["supported_tokens"] = h.store.Tokens()
	statistics["supported_intervals"] = domain.Intervals()

	writeJSON(w, http.StatusOK, statsResponse{
		Statistics: statistics,
		Timestamp:  time.Now().UTC(),
	})
}

func (h *KlineHandler) GetHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status:    "healthy",
		Service:   "candlecast",
		Timestamp: time.Now().UTC(),
	})
}

// parseKey pulls the token and interval parameters every kline endpoint
// requires. On failure the error response is already written.
func (h *KlineHandler) parseKey(w http.ResponseWriter, r *http.Request) (string, domain.Interval, bool) {
	q := r.URL.Query()

	token := q.Get("token")
	if token == "" {
		writeError(w, http.StatusBadRequest, "Missing required parameter: token")
		return "", "", false
	}

	raw := q.Get("interval")
	if raw == "" {
		writeError(w, http.StatusBadRequest, "Missing required parameter: interval")
		return "", "", false
	}
	interval, err := domain.ParseInterval(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid interval. Supported: 1s, 1m, 5m, 15m, 1h")
		return "", "", false
	}

	if !h.store.Has(token) {
		writeError(w, http.StatusBadRequest, "Unknown token: "+token)
		return "", "", false
	}

	return token, interval, true
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		log.WithError(err).Error("marshal response")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set(headers.ContentType, "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
