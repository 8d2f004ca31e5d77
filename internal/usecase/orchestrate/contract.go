package orchestrate

import (
	"context"
	"time"

	"github.com/finbrief/finbrief/internal/domain"
	"github.com/finbrief/finbrief/internal/domain/bundle"
	"github.com/finbrief/finbrief/internal/domain/call"
	"github.com/finbrief/finbrief/internal/domain/plan"
	"github.com/finbrief/finbrief/internal/domain/retrieval"
)

// Router builds the dispatch plan for a query. Never fails.
type Router interface {
	Route(q domain.Query) plan.Plan
}

// Retriever fetches ranked supporting passages.
type Retriever interface {
	Retrieve(ctx context.Context, queryText string, k int, minScore float64) ([]retrieval.Result, error)
}

// Aggregator merges dispatch results into a context bundle.
type Aggregator interface {
	Aggregate(
		results map[domain.Service]call.Result,
		passages []retrieval.Result,
		planned []domain.Service,
	) bundle.Bundle
}

// Gate produces the scored answer from the bundle.
type Gate interface {
	Synthesize(ctx context.Context, b bundle.Bundle, q domain.Query) domain.Synthesis
}

// Caller runs one collaborator call under a timeout, resolving every outcome
// to a call.Result.
type Caller interface {
	Call(ctx context.Context, service domain.Service, timeout time.Duration, fn call.Fn) call.Result
}

// MarketData is the market-data collaborator.
type MarketData interface {
	GetQuotes(ctx context.Context, symbols []string) (map[string]domain.Quote, error)
	GetEarningsCalendar(ctx context.Context) ([]domain.EarningsEvent, error)
}

// Scraper is the news-scraping collaborator.
type Scraper interface {
	GetNews(ctx context.Context, topic string) ([]domain.NewsItem, error)
}

// Analyst is the risk-analysis collaborator.
type Analyst interface {
	ComputeMetrics(ctx context.Context, portfolio domain.Portfolio, market map[string]domain.Quote) (domain.Metrics, error)
}

// Speech is the voice collaborator. Optional; nil disables voice mode.
type Speech interface {
	TranscribeAudio(ctx context.Context, audio []byte) (string, error)
	SynthesizeSpeech(ctx context.Context, text string) ([]byte, error)
}
