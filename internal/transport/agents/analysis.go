package agents

import (
	"context"
	"fmt"
	"net/http"

	"github.com/finbrief/finbrief/internal/domain"
)

// AnalysisClient talks to the risk-analysis collaborator.
type AnalysisClient struct {
	httpClient
}

// NewAnalysisClient creates an analysis client.
func NewAnalysisClient(baseURL string, client *http.Client) *AnalysisClient {
	return &AnalysisClient{newHTTPClient(baseURL, client)}
}

// ComputeMetrics asks the collaborator for risk and sentiment metrics over
// the given portfolio and market snapshot.
func (c *AnalysisClient) ComputeMetrics(
	ctx context.Context, portfolio domain.Portfolio, market map[string]domain.Quote,
) (domain.Metrics, error) {
	req := struct {
		Portfolio domain.Portfolio        `json:"portfolio"`
		Market    map[string]domain.Quote `json:"market"`
	}{Portfolio: portfolio, Market: market}

	var resp domain.Metrics
	if err := c.postJSON(ctx, "/metrics", req, &resp); err != nil {
		return domain.Metrics{}, fmt.Errorf("compute metrics: %w", err)
	}
	return resp, nil
}
