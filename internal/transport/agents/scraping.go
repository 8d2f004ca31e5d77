package agents

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/finbrief/finbrief/internal/domain"
)

// ScrapingClient talks to the news-scraping collaborator.
type ScrapingClient struct {
	httpClient
}

// NewScrapingClient creates a scraping client.
func NewScrapingClient(baseURL string, client *http.Client) *ScrapingClient {
	return &ScrapingClient{newHTTPClient(baseURL, client)}
}

// GetNews fetches scraped news, optionally filtered by topic.
func (c *ScrapingClient) GetNews(ctx context.Context, topic string) ([]domain.NewsItem, error) {
	path := "/news"
	if topic != "" {
		path += "?topic=" + url.QueryEscape(topic)
	}
	var resp struct {
		Items []domain.NewsItem `json:"items"`
	}
	if err := c.getJSON(ctx, path, &resp); err != nil {
		return nil, fmt.Errorf("get news: %w", err)
	}
	return resp.Items, nil
}
