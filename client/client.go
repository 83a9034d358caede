package client

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-http-utils/headers"
	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"

	"github.com/memelabs/candlecast/domain"
)

// ErrNotFound reports a 404 from the service.
var ErrNotFound = errors.New("not found")

const defaultTimeout = 10 * time.Second

// Client calls the read-only REST API. For the push side see DialStream.
type Client struct {
	http *resty.Client
}

func New(baseURL string) *Client {
	return &Client{
		http: resty.New().
			SetBaseURL(baseURL).
			SetTimeout(defaultTimeout).
			SetHeader(headers.Accept, "application/json"),
	}
}

type KlinesResponse struct {
	Token    string          `json:"token"`
	Interval domain.Interval `json:"interval"`
	Data     []domain.Candle `json:"data"`
}

type KlineResponse struct {
	Token    string          `json:"token"`
	Interval domain.Interval `json:"interval"`
	Data     domain.Candle   `json:"data"`
	IsOpen   *bool           `json:"is_open,omitempty"`
}

type TokensResponse struct {
	Tokens []string `json:"tokens"`
	Count  int      `json:"count"`
}

type StatsResponse struct {
	Statistics map[string]interface{} `json:"statistics"`
	Timestamp  time.Time              `json:"timestamp"`
}

type HealthResponse struct {
	Status    string    `json:"status"`
	Service   string    `json:"service"`
	Timestamp time.Time `json:"timestamp"`
}

type apiError struct {
	Error string `json:"error"`
}

// Klines fetches closed candles, oldest first. limit may be nil for the
// server default.
func (c *Client) Klines(ctx context.Context, token string, interval domain.Interval, limit *int) (*KlinesResponse, error) {
	req := c.http.R().
		SetContext(ctx).
		SetQueryParam("token", token).
		SetQueryParam("interval", interval.String()).
		SetResult(&KlinesResponse{}).
		SetError(&apiError{})
	if limit != nil {
		req.SetQueryParam("limit", strconv.Itoa(*limit))
	}

	resp, err := req.Get("/api/v1/klines")
	if err != nil {
		return nil, errors.Wrap(err, "get klines")
	}
	if resp.IsError() {
		return nil, errorFrom(resp)
	}

	return resp.Result().(*KlinesResponse), nil
}

// LatestKline fetches the newest closed candle. ErrNotFound when the series
// has none yet.
func (c *Client) LatestKline(ctx context.Context, token string, interval domain.Interval) (*KlineResponse, error) {
	return c.kline(ctx, "/api/v1/klines/latest", token, interval)
}

// CurrentKline fetches the still-forming candle. ErrNotFound when the
// current window has no trades.
func (c *Client) CurrentKline(ctx context.Context, token string, interval domain.Interval) (*KlineResponse, error) {
	return c.kline(ctx, "/api/v1/klines/current", token, interval)
}

func (c *Client) kline(ctx context.Context, path, token string, interval domain.Interval) (*KlineResponse, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("token", token).
		SetQueryParam("interval", interval.String()).
		SetResult(&KlineResponse{}).
		SetError(&apiError{}).
		Get(path)
	if err != nil {
		return nil, errors.Wrapf(err, "get %s", path)
	}
	if resp.IsError() {
		return nil, errorFrom(resp)
	}

	return resp.Result().(*KlineResponse), nil
}

func (c *Client) Tokens(ctx context.Context) (*TokensResponse, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&TokensResponse{}).
		SetError(&apiError{}).
		Get("/api/v1/tokens")
	if err != nil {
		return nil, errors.Wrap(err, "get tokens")
	}
	if resp.IsError() {
		return nil, errorFrom(resp)
	}

	return resp.Result().(*TokensResponse), nil
}

func (c *Client) Stats(ctx context.Context) (*StatsResponse, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&StatsResponse{}).
		SetError(&apiError{}).
		Get("/api/v1/stats")
	if err != nil {
		return nil, errors.Wrap(err, "get stats")
	}
	if resp.IsError() {
		return nil, errorFrom(resp)
	}

	return resp.Result().(*StatsResponse), nil
}

func (c *Client) Health(ctx context.Context) (*HealthResponse, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&HealthResponse{}).
		SetError(&apiError{}).
		Get("/api/v1/health")
	if err != nil {
		return nil, errors.Wrap(err, "get health")
	}
	if resp.IsError() {
		return nil, errorFrom(resp)
	}

	return resp.Result().(*HealthResponse), nil
}

func errorFrom(resp *resty.Response) error {
	msg := resp.Status()
	if e, ok := resp.Error().(*apiError); ok && e.Error != "" {
		msg = e.Error
	}
	if resp.StatusCode() == http.StatusNotFound {
		return errors.Wrap(ErrNotFound, msg)
	}

	return errors.Errorf("service error: %s", msg)
}
