// Package route decides which collaborators and retrieval calls a query needs.
package route

import (
	"regexp"
	"strings"

	"github.com/finbrief/finbrief/internal/domain"
	"github.com/finbrief/finbrief/internal/domain/plan"
)

// Keyword groups driving service selection. Matching is case-insensitive on
// whole words.
var (
	riskTerms = []string{
		"risk", "exposure", "portfolio", "allocation", "volatility",
		"beta", "drawdown", "hedge", "var",
	}
	marketTerms = []string{
		"price", "prices", "quote", "quotes", "stock", "stocks",
		"shares", "market", "volume", "cap",
	}
	earningsTerms = []string{
		"earnings", "quarterly", "results", "profit", "revenue", "eps",
	}
	newsTerms = []string{
		"news", "headlines", "latest", "breaking", "announcements",
		"reports", "sentiment",
	}
)

// tickerRe matches ticker-like tokens: uppercase symbols, optionally with an
// exchange suffix (TSM, BABA, 005930.KS).
var tickerRe = regexp.MustCompile(`^[A-Z0-9]{2,6}(\.[A-Z]{1,3})?$`)

// tickerStop lists tokens that fit the ticker shape but are vocabulary, not
// symbols: every keyword term above plus common all-caps finance words.
var tickerStop = buildTickerStop()

func buildTickerStop() map[string]bool {
	stop := map[string]bool{
		"us": true, "ai": true, "it": true, "ceo": true, "cfo": true,
		"ipo": true, "gdp": true, "aum": true, "usd": true, "etf": true,
		"yoy": true, "ytd": true,
	}
	for _, group := range [][]string{riskTerms, marketTerms, earningsTerms, newsTerms} {
		for _, term := range group {
			stop[term] = true
		}
	}
	return stop
}

// Service routes queries to collaborators. Routing never fails: a query
// matching no rule gets the default retrieval-only plan.
type Service struct {
	retrieval plan.Retrieval
}

// New creates a router with the configured retrieval defaults.
func New(retrieval plan.Retrieval) *Service {
	return &Service{retrieval: retrieval}
}

// Route inspects the query text and builds a plan.
func (s *Service) Route(q domain.Query) plan.Plan {
	tokens := strings.Fields(q.Text)
	lower := make([]string, len(tokens))
	for i, tok := range tokens {
		lower[i] = strings.ToLower(strings.Trim(tok, ".,!?;:'\""))
	}

	hasRisk := containsAny(lower, riskTerms)
	hasMarket := containsAny(lower, marketTerms)
	hasEarnings := containsAny(lower, earningsTerms)
	hasNews := containsAny(lower, newsTerms)
	symbols := tickerTokens(tokens)
	hasTicker := len(symbols) > 0

	var services []domain.Service
	if hasRisk {
		services = append(services, domain.ServiceAnalysis)
	}
	if hasTicker || hasMarket || hasEarnings {
		services = append(services, domain.ServiceMarketData)
	}
	if hasNews {
		services = append(services, domain.ServiceScraping)
	}

	// Risk analysis needs a market snapshot as its input.
	if hasRisk && !includes(services, domain.ServiceMarketData) {
		services = append(services, domain.ServiceMarketData)
	}

	if len(services) == 0 {
		return plan.Default(s.retrieval)
	}

	if s.isPureLookup(lower, tokens, hasTicker, hasRisk, hasNews) {
		return plan.New(services, nil).WithSymbols(symbols)
	}

	retrieval := s.retrieval
	return plan.New(services, &retrieval).WithSymbols(symbols)
}

// isPureLookup classifies short "price of X" style queries that need no
// supporting passages.
func (s *Service) isPureLookup(lower, tokens []string, hasTicker, hasRisk, hasNews bool) bool {
	if hasRisk || hasNews {
		return false
	}
	if len(tokens) > 6 {
		return false
	}
	return hasTicker && containsAny(lower, marketTerms)
}

func containsAny(tokens []string, terms []string) bool {
	for _, tok := range tokens {
		for _, term := range terms {
			if tok == term {
				return true
			}
		}
	}
	return false
}

func tickerTokens(tokens []string) []string {
	var symbols []string
	for _, tok := range tokens {
		tok = strings.Trim(tok, ",!?;:'\"")
		tok = strings.TrimSuffix(tok, ".") // sentence-final period, not an exchange suffix
		if tickerStop[strings.ToLower(tok)] {
			continue
		}
		// ticker tokens must carry at least one uppercase letter
		if tok != strings.ToLower(tok) && tok == strings.ToUpper(tok) && tickerRe.MatchString(tok) {
			symbols = append(symbols, tok)
		}
	}
	return symbols
}

func includes(services []domain.Service, s domain.Service) bool {
	for _, svc := range services {
		if svc == s {
			return true
		}
	}
	return false
}
