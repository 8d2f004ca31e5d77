package domain

// Service identifies a collaborating service the pipeline can call.
type Service string

// Known collaborators.
const (
	ServiceMarketData Service = "market_data"
	ServiceScraping   Service = "scraping"
	ServiceAnalysis   Service = "analysis"
	ServiceRetrieval  Service = "retrieval"
	ServiceLanguage   Service = "language"
	ServiceSpeech     Service = "speech"
)
