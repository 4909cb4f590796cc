// Package analytics implements the HTTP client for the external analytics
// service that owns price history, indicator computation and backtest
// execution.
package analytics

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/quantwise/chartsync/core"
)

const (
	pricePath     = "/get-price-data"
	indicatorPath = "/get-indicator-data"
	backtestPath  = "/run-backtest"
)

// Client talks to one analytics service instance. It performs no retries
// and no caching: every synchronization pass refetches what it needs.
type Client struct {
	baseURL string
	http    *http.Client
	log     core.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

// NewClient creates a client for the service at baseURL.
func NewClient(baseURL string, log core.Logger, options ...Option) *Client {
	client := &Client{
		baseURL: baseURL,
		http:    http.DefaultClient,
		log:     log,
	}

	for _, option := range options {
		option(client)
	}

	return client
}

// PriceSeries implements core.Analytics.
func (c *Client) PriceSeries(ctx context.Context, ticker, startDate, endDate string) ([]core.PriceBar, error) {
	query := url.Values{}
	query.Set("ticker", ticker)
	query.Set("start_date", startDate)
	query.Set("end_date", endDate)

	var bars []core.PriceBar
	if err := c.get(ctx, pricePath, query, &bars, "Error fetching price data"); err != nil {
		return nil, err
	}

	return bars, nil
}

// IndicatorSeries implements core.Analytics.
func (c *Client) IndicatorSeries(ctx context.Context, ticker string, req core.IndicatorRequest, startDate, endDate string) ([]core.RawIndicatorPoint, error) {
	query := url.Values{}
	query.Set("ticker", ticker)
	query.Set("indicator", req.Indicator)
	query.Set("period", strconv.Itoa(req.Period))
	query.Set("start_date", startDate)
	query.Set("end_date", endDate)

	var points []core.RawIndicatorPoint
	fallback := fmt.Sprintf("Error fetching %s data", req.Indicator)
	if err := c.get(ctx, indicatorPath, query, &points, fallback); err != nil {
		return nil, err
	}

	return points, nil
}

// RunBacktest implements core.Analytics.
func (c *Client) RunBacktest(ctx context.Context, req core.BacktestRequest) (*core.BacktestResult, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to encode backtest request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+backtestPath, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	c.log.Debugf("submitting backtest for %s [%s..%s]", req.Ticker, req.StartDate, req.EndDate)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("backtest request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, serviceError(resp.Body, "Error running backtest")
	}

	var result core.BacktestResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode backtest response: %w", err)
	}

	return &result, nil
}

// get issues a read request and decodes a 2xx answer into out. A non-2xx
// answer is turned into the service's own error message when the payload
// carries one, or the fallback text otherwise.
func (c *Client) get(ctx context.Context, path string, query url.Values, out any, fallback string) error {
	endpoint := c.baseURL + path + "?" + query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}

	c.log.Debugf("fetching %s", endpoint)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", fallback, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return serviceError(resp.Body, fallback)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s: %w", fallback, err)
	}

	return nil
}

// serviceError extracts the JSON error message from a failed response body,
// falling back to a generic message when the payload is not parseable.
func serviceError(body io.Reader, fallback string) error {
	var payload struct {
		Error string `json:"error"`
	}

	if err := json.NewDecoder(body).Decode(&payload); err == nil && payload.Error != "" {
		return fmt.Errorf("%s", payload.Error)
	}

	return fmt.Errorf("%s", fallback)
}
