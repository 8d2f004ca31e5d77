package aggregate

import (
	"strings"
	"testing"
	"time"

	"github.com/finbrief/finbrief/internal/domain"
	"github.com/finbrief/finbrief/internal/domain/bundle"
	"github.com/finbrief/finbrief/internal/domain/call"
	"github.com/finbrief/finbrief/internal/domain/retrieval"
)

func successResult(payload any) call.Result {
	return call.Success(payload, 10*time.Millisecond)
}

func sampleQuotes() map[string]domain.Quote {
	return map[string]domain.Quote{
		"TSM": {Symbol: "TSM", Price: 184.50, ChangePercent: 1.23, Volume: 12_000_000},
	}
}

func TestAggregate_QuoteFormatting(t *testing.T) {
	svc := New(0)
	results := map[domain.Service]call.Result{
		domain.ServiceMarketData: successResult(sampleQuotes()),
	}

	b := svc.Aggregate(results, nil, []domain.Service{domain.ServiceMarketData})

	items := b.Items()
	if len(items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(items))
	}
	want := "TSM: $184.50 (+1.23%), volume 12000000"
	if items[0].Text() != want {
		t.Errorf("expected %q, got %q", want, items[0].Text())
	}
	if items[0].Kind() != bundle.KindQuote {
		t.Errorf("expected quote kind, got %v", items[0].Kind())
	}
}

func TestAggregate_RiskExposurePercent(t *testing.T) {
	svc := New(0)
	results := map[domain.Service]call.Result{
		domain.ServiceAnalysis: successResult(domain.Metrics{RiskExposure: 0.22}),
	}

	b := svc.Aggregate(results, nil, []domain.Service{domain.ServiceAnalysis})

	found := false
	for _, it := range b.Items() {
		if strings.Contains(it.Text(), "risk exposure: 22% of AUM") {
			found = true
		}
	}
	if !found {
		t.Errorf("expected risk exposure rendered as 22%%, items: %v", texts(b))
	}
}

func TestAggregate_FailedUnitMarksDegraded(t *testing.T) {
	svc := New(0)
	results := map[domain.Service]call.Result{
		domain.ServiceMarketData: successResult(sampleQuotes()),
		domain.ServiceScraping:   call.Timeout(5 * time.Second),
	}
	planned := []domain.Service{domain.ServiceMarketData, domain.ServiceScraping}

	b := svc.Aggregate(results, nil, planned)

	if !b.Degraded() {
		t.Error("timed-out unit should mark the bundle degraded")
	}
	if b.Coverage() != 0.5 {
		t.Errorf("expected coverage 0.5, got %v", b.Coverage())
	}
	failed := b.FailedServices()
	if len(failed) != 1 || failed[0] != domain.ServiceScraping {
		t.Errorf("expected scraping in failed services, got %v", failed)
	}
}

func TestAggregate_MissingResultCountsAsFailed(t *testing.T) {
	svc := New(0)
	planned := []domain.Service{domain.ServiceMarketData}

	b := svc.Aggregate(map[domain.Service]call.Result{}, nil, planned)

	if !b.Degraded() {
		t.Error("planned unit with no result at all should count as failed")
	}
	if b.Coverage() != 0 {
		t.Errorf("expected coverage 0, got %v", b.Coverage())
	}
}

func TestAggregate_PrecedenceOrdering(t *testing.T) {
	svc := New(0)
	results := map[domain.Service]call.Result{
		domain.ServiceMarketData: successResult(sampleQuotes()),
		domain.ServiceScraping: successResult([]domain.NewsItem{
			{Title: "Chip rally", Text: "Foundries up.", Source: "wire", PublishedAt: time.Now().Add(-time.Hour)},
		}),
	}
	passages := []retrieval.Result{
		retrieval.New(domain.Document{ID: "doc-1", Source: "filings", Text: "Guidance raised."}, 0.82),
	}
	planned := []domain.Service{domain.ServiceMarketData, domain.ServiceScraping, domain.ServiceRetrieval}
	results[domain.ServiceRetrieval] = successResult(passages)

	b := svc.Aggregate(results, passages, planned)

	items := b.Items()
	if len(items) != 3 {
		t.Fatalf("expected 3 items, got %d", len(items))
	}
	if items[0].Kind() != bundle.KindQuote {
		t.Errorf("structured data should rank first, got %v", items[0].Kind())
	}
	if items[1].Kind() != bundle.KindPassage {
		t.Errorf("passages should rank above news, got %v", items[1].Kind())
	}
	if items[2].Kind() != bundle.KindNews {
		t.Errorf("news should rank last, got %v", items[2].Kind())
	}
}

func TestAggregate_PassagesOrderedByScore(t *testing.T) {
	svc := New(0)
	passages := []retrieval.Result{
		retrieval.New(domain.Document{ID: "high", Source: "s", Text: "a"}, 0.9),
		retrieval.New(domain.Document{ID: "low", Source: "s", Text: "b"}, 0.4),
	}
	planned := []domain.Service{domain.ServiceRetrieval}
	results := map[domain.Service]call.Result{
		domain.ServiceRetrieval: successResult(passages),
	}

	b := svc.Aggregate(results, passages, planned)

	items := b.Items()
	if items[0].Origin() != "high" || items[1].Origin() != "low" {
		t.Errorf("passages not ordered by score: %v %v", items[0].Origin(), items[1].Origin())
	}
	if mean := b.PassageMeanScore(); mean < 0.649 || mean > 0.651 {
		t.Errorf("expected mean score near 0.65, got %v", mean)
	}
}

func TestAggregate_NewsRecency(t *testing.T) {
	svc := New(0)
	now := time.Now()
	news := []domain.NewsItem{
		{Title: "stale", Text: "x", Source: "w", PublishedAt: now.Add(-8 * 24 * time.Hour)},
		{Title: "fresh", Text: "y", Source: "w", PublishedAt: now.Add(-time.Hour)},
	}
	planned := []domain.Service{domain.ServiceScraping}
	results := map[domain.Service]call.Result{
		domain.ServiceScraping: successResult(news),
	}

	b := svc.Aggregate(results, nil, planned)

	items := b.Items()
	if !strings.HasPrefix(items[0].Text(), "fresh") {
		t.Errorf("fresh article should rank first, got %q", items[0].Text())
	}
	if items[1].Weight() != 0 {
		t.Errorf("week-old article should weigh 0, got %v", items[1].Weight())
	}
}

func TestAggregate_BudgetDropsWholeLowWeightItems(t *testing.T) {
	svc := New(80)
	results := map[domain.Service]call.Result{
		domain.ServiceMarketData: successResult(sampleQuotes()),
		domain.ServiceScraping: successResult([]domain.NewsItem{
			{Title: "long story", Text: strings.Repeat("n", 100), Source: "w", PublishedAt: time.Now()},
		}),
	}
	planned := []domain.Service{domain.ServiceMarketData, domain.ServiceScraping}

	b := svc.Aggregate(results, nil, planned)

	for _, it := range b.Items() {
		if it.Kind() == bundle.KindNews {
			t.Error("oversized news item should have been dropped")
		}
	}
	if b.Empty() {
		t.Error("quote should survive the trim")
	}
}

func TestAggregate_EarningsVerdicts(t *testing.T) {
	svc := New(0)
	actualBeat := 2.10
	actualMiss := 1.10
	snapshot := domain.MarketSnapshot{
		Quotes: sampleQuotes(),
		Earnings: []domain.EarningsEvent{
			{Symbol: "TSM", Company: "TSMC", Date: time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC), Estimate: 2.00, Actual: &actualBeat},
			{Symbol: "ASML", Company: "ASML", Date: time.Date(2026, 8, 21, 0, 0, 0, 0, time.UTC), Estimate: 1.50, Actual: &actualMiss},
		},
	}
	planned := []domain.Service{domain.ServiceMarketData}
	results := map[domain.Service]call.Result{
		domain.ServiceMarketData: successResult(snapshot),
	}

	b := svc.Aggregate(results, nil, planned)

	var beat, missed bool
	for _, it := range b.Items() {
		if strings.Contains(it.Text(), "(beat)") {
			beat = true
		}
		if strings.Contains(it.Text(), "(missed)") {
			missed = true
		}
	}
	if !beat || !missed {
		t.Errorf("expected beat and missed verdicts, items: %v", texts(b))
	}
}

func texts(b bundle.Bundle) []string {
	out := make([]string, 0, len(b.Items()))
	for _, it := range b.Items() {
		out = append(out, it.Text())
	}
	return out
}
