// Package aggregate merges heterogeneous collaborator results into one
// bounded context bundle.
package aggregate

import (
	"fmt"
	"sort"
	"time"

	"github.com/finbrief/finbrief/internal/domain"
	"github.com/finbrief/finbrief/internal/domain/bundle"
	"github.com/finbrief/finbrief/internal/domain/call"
	"github.com/finbrief/finbrief/internal/domain/retrieval"
)

// Weight bands per precedence tier. Trimming drops ascending by weight, so
// news goes before passages, passages before structured data.
const (
	structuredBase = 2.0
	passageBase    = 1.0
	newsBase       = 0.0
)

// Service builds context bundles under a serialized-size budget.
type Service struct {
	maxChars int
}

// New creates an aggregator. maxChars <= 0 disables the budget.
func New(maxChars int) *Service {
	return &Service{maxChars: maxChars}
}

// Aggregate builds the context bundle for one query. Only Success results
// contribute content; Timeout and Failure results are recorded as failed
// units for the degraded flag. planned lists every dispatched unit in plan
// order so coverage reflects units that produced no result at all.
func (s *Service) Aggregate(
	results map[domain.Service]call.Result,
	passages []retrieval.Result,
	planned []domain.Service,
) bundle.Bundle {
	var items []bundle.Item
	var failed []domain.Service
	succeeded := 0

	for _, svc := range planned {
		res, ok := results[svc]
		if !ok || !res.OK() {
			failed = append(failed, svc)
			continue
		}
		succeeded++
		items = append(items, itemsFromPayload(svc, res.Payload())...)
	}

	for i, p := range passages {
		// score breaks ties inside the passage band; rank keeps the order
		// stable for equal scores
		weight := passageBase + p.Score() - float64(i)*1e-9
		items = append(items, bundle.NewItem(
			bundle.KindPassage,
			p.Document().ID,
			weight,
			fmt.Sprintf("[%s] %s", p.Document().Source, p.Document().Text),
		))
	}

	b := bundle.New(items, failed, len(planned), succeeded, retrieval.MeanScore(passages))
	return b.TrimToBudget(s.maxChars)
}

// itemsFromPayload serializes one success payload into weighted items.
func itemsFromPayload(svc domain.Service, payload any) []bundle.Item {
	switch data := payload.(type) {
	case domain.MarketSnapshot:
		items := quoteItems(data.Quotes)
		return append(items, earningsItems(data.Earnings)...)
	case map[string]domain.Quote:
		return quoteItems(data)
	case []domain.EarningsEvent:
		return earningsItems(data)
	case domain.Metrics:
		return metricItems(svc, data)
	case []domain.NewsItem:
		return newsItems(data)
	default:
		return nil
	}
}

func quoteItems(quotes map[string]domain.Quote) []bundle.Item {
	symbols := make([]string, 0, len(quotes))
	for sym := range quotes {
		symbols = append(symbols, sym)
	}
	sort.Strings(symbols)

	items := make([]bundle.Item, 0, len(quotes))
	for i, sym := range symbols {
		q := quotes[sym]
		items = append(items, bundle.NewItem(
			bundle.KindQuote,
			string(domain.ServiceMarketData),
			structuredBase+0.9-float64(i)*1e-9,
			fmt.Sprintf("%s: $%.2f (%+.2f%%), volume %d", q.Symbol, q.Price, q.ChangePercent, q.Volume),
		))
	}
	return items
}

func earningsItems(events []domain.EarningsEvent) []bundle.Item {
	items := make([]bundle.Item, 0, len(events))
	for i, ev := range events {
		text := fmt.Sprintf("%s (%s) earnings %s: estimate %.2f",
			ev.Company, ev.Symbol, ev.Date.Format("2006-01-02"), ev.Estimate)
		if ev.Actual != nil {
			verdict := "beat"
			if *ev.Actual < ev.Estimate {
				verdict = "missed"
			}
			text = fmt.Sprintf("%s, actual %.2f (%s)", text, *ev.Actual, verdict)
		}
		items = append(items, bundle.NewItem(
			bundle.KindEarnings,
			string(domain.ServiceMarketData),
			structuredBase+0.5-float64(i)*1e-9,
			text,
		))
	}
	return items
}

func metricItems(svc domain.Service, m domain.Metrics) []bundle.Item {
	items := []bundle.Item{
		bundle.NewItem(bundle.KindMetric, string(svc), structuredBase+0.95,
			fmt.Sprintf("Portfolio risk exposure: %.0f%% of AUM", m.RiskExposure*100)),
		bundle.NewItem(bundle.KindMetric, string(svc), structuredBase+0.94,
			fmt.Sprintf("Regional sentiment score: %+.2f", m.SentimentScore)),
	}

	symbols := make([]string, 0, len(m.EarningsSurprises))
	for sym := range m.EarningsSurprises {
		symbols = append(symbols, sym)
	}
	sort.Strings(symbols)
	for i, sym := range symbols {
		items = append(items, bundle.NewItem(
			bundle.KindMetric, string(svc), structuredBase+0.9-float64(i)*1e-9,
			fmt.Sprintf("%s earnings surprise: %+.1f%%", sym, m.EarningsSurprises[sym]),
		))
	}
	return items
}

// newsItems weights articles by recency: the freshest article gets the top
// of the news band, anything older than a week the bottom.
func newsItems(news []domain.NewsItem) []bundle.Item {
	now := time.Now()
	items := make([]bundle.Item, 0, len(news))
	for _, n := range news {
		items = append(items, bundle.NewItem(
			bundle.KindNews,
			n.Source,
			newsBase+recencyWeight(now, n.PublishedAt),
			fmt.Sprintf("%s — %s", n.Title, n.Text),
		))
	}
	return items
}

func recencyWeight(now, published time.Time) float64 {
	if published.IsZero() || published.After(now) {
		return 0.5
	}
	age := now.Sub(published)
	const week = 7 * 24 * time.Hour
	if age >= week {
		return 0
	}
	return 0.99 * (1 - float64(age)/float64(week))
}
