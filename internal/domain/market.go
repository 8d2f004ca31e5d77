package domain

import "time"

// Quote is a single market data point for a symbol.
type Quote struct {
	Symbol        string    `json:"symbol"`
	Price         float64   `json:"price"`
	ChangePercent float64   `json:"change_percent"`
	Volume        int64     `json:"volume"`
	MarketCap     float64   `json:"market_cap"`
	AsOf          time.Time `json:"as_of"`
}

// EarningsEvent is one entry in the earnings calendar.
type EarningsEvent struct {
	Company  string    `json:"company"`
	Symbol   string    `json:"symbol"`
	Date     time.Time `json:"date"`
	Estimate float64   `json:"estimate"`
	Actual   *float64  `json:"actual,omitempty"` // nil before the report lands
}

// NewsItem is a scraped news article.
type NewsItem struct {
	Title       string    `json:"title"`
	Text        string    `json:"text"`
	Source      string    `json:"source"`
	PublishedAt time.Time `json:"published_at"`
}

// MarketSnapshot is the combined payload of the market-data collaborator:
// current quotes plus the earnings calendar.
type MarketSnapshot struct {
	Quotes   map[string]Quote `json:"quotes"`
	Earnings []EarningsEvent  `json:"earnings"`
}

// Portfolio maps symbols to their allocation weights.
type Portfolio map[string]float64

// Metrics is the output of the analysis collaborator.
type Metrics struct {
	RiskExposure      float64            `json:"risk_exposure"` // fraction of AUM, 0..1
	EarningsSurprises map[string]float64 `json:"earnings_surprises"`
	SentimentScore    float64            `json:"sentiment_score"` // -1..1
}
