package alpaca

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/shopspring/decimal"

	"github.com/macross-trading/macross/internal/config"
	"github.com/macross-trading/macross/internal/models"
)

// Client is a thin wrapper around the Alpaca REST API
type Client struct {
	cfg        *config.Config
	httpClient *http.Client
	baseURL    string
	dataURL    string
}

// NewClient creates a new Alpaca client
func NewClient(cfg *config.Config) *Client {
	return &Client{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: cfg.HTTPTimeout,
		},
		baseURL: cfg.AlpacaBaseURL,
		dataURL: cfg.AlpacaDataURL,
	}
}

// doRequest performs an HTTP request with auth headers
func (c *Client) doRequest(ctx context.Context, method, url string, body interface{}) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("APCA-API-KEY-ID", c.cfg.AlpacaKeyID)
	req.Header.Set("APCA-API-SECRET-KEY", c.cfg.AlpacaSecretKey)
	req.Header.Set("Content-Type", "application/json")

	return c.httpClient.Do(req)
}

// parseResponse reads and unmarshals the response
func parseResponse(resp *http.Response, target interface{}) error {
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("API error %d: %s", resp.StatusCode, string(body))
	}

	return json.NewDecoder(resp.Body).Decode(target)
}

// errorMessage extracts the brokerage's message field from an error payload,
// falling back to the raw body
func errorMessage(body []byte) string {
	var payload struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && payload.Message != "" {
		return payload.Message
	}
	return string(body)
}

// GetAccount retrieves account information
func (c *Client) GetAccount(ctx context.Context) (*models.Account, error) {
	resp, err := c.doRequest(ctx, "GET", c.baseURL+"/v2/account", nil)
	if err != nil {
		return nil, err
	}

	var account models.Account
	if err := parseResponse(resp, &account); err != nil {
		return nil, err
	}

	return &account, nil
}

// GetBars retrieves historical bars for a single symbol
func (c *Client) GetBars(ctx context.Context, symbol, timeframe string, limit int) ([]*models.Bar, error) {
	params := url.Values{}
	params.Set("timeframe", timeframe)
	if limit > 0 {
		params.Set("limit", fmt.Sprintf("%d", limit))
	}

	reqURL := fmt.Sprintf("%s/v2/stocks/%s/bars?%s", c.dataURL, url.PathEscape(symbol), params.Encode())
	resp, err := c.doRequest(ctx, "GET", reqURL, nil)
	if err != nil {
		return nil, &MarketDataError{Symbol: symbol, Err: err}
	}

	var result struct {
		Bars []*models.Bar `json:"bars"`
	}
	if err := parseResponse(resp, &result); err != nil {
		return nil, &MarketDataError{Symbol: symbol, Err: err}
	}

	return result.Bars, nil
}

// GetClosingPrices retrieves the closing price sequence for a symbol,
// most-recent-last
func (c *Client) GetClosingPrices(ctx context.Context, symbol, timeframe string, limit int) ([]decimal.Decimal, error) {
	bars, err := c.GetBars(ctx, symbol, timeframe, limit)
	if err != nil {
		return nil, err
	}

	closes := make([]decimal.Decimal, 0, len(bars))
	for _, bar := range bars {
		closes = append(closes, bar.Close)
	}
	return closes, nil
}

// GetAsset retrieves the listing for a symbol
func (c *Client) GetAsset(ctx context.Context, symbol string) (*models.Asset, error) {
	reqURL := fmt.Sprintf("%s/v2/assets/%s", c.baseURL, url.PathEscape(symbol))
	resp, err := c.doRequest(ctx, "GET", reqURL, nil)
	if err != nil {
		return nil, err
	}

	var asset models.Asset
	if err := parseResponse(resp, &asset); err != nil {
		return nil, err
	}

	return &asset, nil
}

// IsTradable reports whether the brokerage permits orders against symbol.
// Unknown symbols and transport failures both report false; a symbol that
// cannot be validated must not be traded.
func (c *Client) IsTradable(ctx context.Context, symbol string) bool {
	asset, err := c.GetAsset(ctx, symbol)
	if err != nil {
		return false
	}
	return asset.Tradable
}

// GetPosition retrieves the held position for a symbol. A not-found result
// means no shares are held and returns a zero position, not an error.
func (c *Client) GetPosition(ctx context.Context, symbol string) (*models.Position, error) {
	reqURL := fmt.Sprintf("%s/v2/positions/%s", c.baseURL, url.PathEscape(symbol))
	resp, err := c.doRequest(ctx, "GET", reqURL, nil)
	if err != nil {
		return nil, &PositionError{Symbol: symbol, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		io.Copy(io.Discard, resp.Body)
		return &models.Position{Symbol: symbol, Qty: decimal.Zero, MarketValue: decimal.Zero}, nil
	}

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(resp.Body)
		return nil, &PositionError{Symbol: symbol, Err: fmt.Errorf("API error %d: %s", resp.StatusCode, string(body))}
	}

	var position models.Position
	if err := json.NewDecoder(resp.Body).Decode(&position); err != nil {
		return nil, &PositionError{Symbol: symbol, Err: err}
	}

	return &position, nil
}

// GetPositions retrieves all positions
func (c *Client) GetPositions(ctx context.Context) ([]*models.Position, error) {
	resp, err := c.doRequest(ctx, "GET", c.baseURL+"/v2/positions", nil)
	if err != nil {
		return nil, err
	}

	var positions []*models.Position
	if err := parseResponse(resp, &positions); err != nil {
		return nil, err
	}

	return positions, nil
}

// PlaceOrder submits a new order
func (c *Client) PlaceOrder(ctx context.Context, order *models.OrderRequest) (*models.Order, error) {
	resp, err := c.doRequest(ctx, "POST", c.baseURL+"/v2/orders", order)
	if err != nil {
		return nil, &OrderError{Symbol: order.Symbol, Message: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(resp.Body)
		return nil, &OrderError{Symbol: order.Symbol, Message: errorMessage(body)}
	}

	var placed models.Order
	if err := json.NewDecoder(resp.Body).Decode(&placed); err != nil {
		return nil, &OrderError{Symbol: order.Symbol, Message: err.Error()}
	}

	return &placed, nil
}

// GetOrders retrieves a list of orders
func (c *Client) GetOrders(ctx context.Context, status string) ([]*models.Order, error) {
	reqURL := c.baseURL + "/v2/orders"
	if status != "" {
		reqURL += "?status=" + url.QueryEscape(status)
	}

	resp, err := c.doRequest(ctx, "GET", reqURL, nil)
	if err != nil {
		return nil, err
	}

	var orders []*models.Order
	if err := parseResponse(resp, &orders); err != nil {
		return nil, err
	}

	return orders, nil
}

// GetNews retrieves recent market news
func (c *Client) GetNews(ctx context.Context) ([]*models.NewsArticle, error) {
	resp, err := c.doRequest(ctx, "GET", c.dataURL+"/v1beta1/news", nil)
	if err != nil {
		return nil, err
	}

	var result struct {
		News []*models.NewsArticle `json:"news"`
	}
	if err := parseResponse(resp, &result); err != nil {
		return nil, err
	}

	return result.News, nil
}
