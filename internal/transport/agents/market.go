package agents

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/finbrief/finbrief/internal/domain"
)

// MarketClient talks to the market-data collaborator.
type MarketClient struct {
	httpClient
}

// NewMarketClient creates a market-data client.
func NewMarketClient(baseURL string, client *http.Client) *MarketClient {
	return &MarketClient{newHTTPClient(baseURL, client)}
}

// GetQuotes fetches quotes for the given symbols.
func (c *MarketClient) GetQuotes(ctx context.Context, symbols []string) (map[string]domain.Quote, error) {
	var resp struct {
		Quotes map[string]domain.Quote `json:"quotes"`
	}
	path := "/quotes?symbols=" + url.QueryEscape(strings.Join(symbols, ","))
	if err := c.getJSON(ctx, path, &resp); err != nil {
		return nil, fmt.Errorf("get quotes: %w", err)
	}
	return resp.Quotes, nil
}

// GetEarningsCalendar fetches the upcoming and recent earnings events.
func (c *MarketClient) GetEarningsCalendar(ctx context.Context) ([]domain.EarningsEvent, error) {
	var resp struct {
		Events []domain.EarningsEvent `json:"events"`
	}
	if err := c.getJSON(ctx, "/earnings", &resp); err != nil {
		return nil, fmt.Errorf("get earnings calendar: %w", err)
	}
	return resp.Events, nil
}
