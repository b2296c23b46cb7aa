// Package vela provides a Go client for the vela-server API along with the
// request and response types of its JSON wire format.
package vela

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Client talks to a vela-server instance.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a client for the server at baseURL. Backtests run
// synchronously on the server, so the default timeout is generous.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 5 * time.Minute},
	}
}

// Strategies lists the strategy names the server can run.
func (c *Client) Strategies(ctx context.Context) ([]string, error) {
	var resp StrategiesResponse
	if err := c.get(ctx, "/api/v1/strategies", &resp); err != nil {
		return nil, err
	}
	return resp.Strategies, nil
}

// Symbols lists the symbols available in the server's bar store.
func (c *Client) Symbols(ctx context.Context) ([]string, error) {
	var resp SymbolsResponse
	if err := c.get(ctx, "/api/v1/symbols", &resp); err != nil {
		return nil, err
	}
	return resp.Symbols, nil
}

// RunBacktest submits a backtest and waits for its result.
func (c *Client) RunBacktest(ctx context.Context, req BacktestRequest) (*RunResult, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v1/backtests", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		return nil, apiError(resp)
	}
	var res RunResult
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return nil, fmt.Errorf("decoding run result: %w", err)
	}
	return &res, nil
}

// ListRuns returns summaries of the server's stored runs, newest first.
func (c *Client) ListRuns(ctx context.Context) ([]RunSummary, error) {
	var resp RunsResponse
	if err := c.get(ctx, "/api/v1/backtests", &resp); err != nil {
		return nil, err
	}
	return resp.Runs, nil
}

// GetRun fetches a stored run by ID.
func (c *Client) GetRun(ctx context.Context, id string) (*RunResult, error) {
	var res RunResult
	if err := c.get(ctx, "/api/v1/backtests/"+id, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return apiError(resp)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func apiError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var apiErr struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(body, &apiErr) == nil && apiErr.Error != "" {
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, apiErr.Error)
	}
	return fmt.Errorf("server returned %d", resp.StatusCode)
}
