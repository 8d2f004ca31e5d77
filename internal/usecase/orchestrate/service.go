// Package orchestrate coordinates one query through the pipeline:
// Routing -> Dispatching -> Aggregating -> Synthesizing -> Done.
//
// Dispatching fans out every planned collaborator call plus retrieval
// concurrently, each under its own timeout, and joins on all of them before
// advancing. The query-level deadline bounds the whole pipeline: calls still
// unresolved when it expires resolve as Timeout and the pipeline proceeds
// degraded instead of hanging.
package orchestrate

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/finbrief/finbrief/internal/domain"
	"github.com/finbrief/finbrief/internal/domain/bundle"
	"github.com/finbrief/finbrief/internal/domain/call"
	"github.com/finbrief/finbrief/internal/domain/plan"
	"github.com/finbrief/finbrief/internal/domain/retrieval"
	"github.com/finbrief/finbrief/internal/logger"
	"github.com/finbrief/finbrief/internal/metrics"
)

// Config holds orchestration settings.
type Config struct {
	QueryDeadline  time.Duration
	Timeouts       map[domain.Service]time.Duration // per-collaborator call budgets
	DefaultTimeout time.Duration
	DefaultSymbols []string
	Portfolio      domain.Portfolio
}

// Service is the top-level query coordinator.
type Service struct {
	router     Router
	retriever  Retriever
	aggregator Aggregator
	gate       Gate
	caller     Caller

	market  MarketData
	scraper Scraper
	analyst Analyst
	speech  Speech // nil disables voice mode

	cfg Config
}

// New creates an orchestrator. speech may be nil when no voice collaborator
// is configured.
func New(
	router Router,
	retriever Retriever,
	aggregator Aggregator,
	gate Gate,
	caller Caller,
	market MarketData,
	scraper Scraper,
	analyst Analyst,
	speech Speech,
	cfg Config,
) *Service {
	if cfg.DefaultTimeout <= 0 {
		cfg.DefaultTimeout = 5 * time.Second
	}
	if cfg.QueryDeadline <= 0 {
		cfg.QueryDeadline = 15 * time.Second
	}
	return &Service{
		router:     router,
		retriever:  retriever,
		aggregator: aggregator,
		gate:       gate,
		caller:     caller,
		market:     market,
		scraper:    scraper,
		analyst:    analyst,
		speech:     speech,
		cfg:        cfg,
	}
}

type state int

const (
	stateRouting state = iota
	stateDispatching
	stateAggregating
	stateSynthesizing
	stateDone
	stateFailed
)

// pipeline carries the per-query data between states. It never outlives the
// request.
type pipeline struct {
	query    domain.Query
	plan     plan.Plan
	results  map[domain.Service]call.Result
	passages []retrieval.Result
	bundle   bundle.Bundle
	result   domain.Synthesis
	err      error
}

// Process drives one query through the pipeline and emits exactly one
// synthesis result or one error wrapping domain.ErrQueryFailed.
func (s *Service) Process(ctx context.Context, q domain.Query) (domain.Synthesis, error) {
	start := time.Now()
	log := logger.FromContext(ctx).With(zap.String("query_id", q.ID))
	ctx = logger.ContextWithLogger(ctx, log)

	ctx, cancel := context.WithTimeout(ctx, s.cfg.QueryDeadline)
	defer cancel()

	result, err := s.run(ctx, q)

	metrics.QueryDuration.Observe(time.Since(start).Seconds())
	switch {
	case err != nil:
		metrics.QueriesTotal.WithLabelValues("failed").Inc()
	case result.Degraded:
		metrics.QueriesTotal.WithLabelValues("degraded").Inc()
	default:
		metrics.QueriesTotal.WithLabelValues("ok").Inc()
	}

	return result, err
}

func (s *Service) run(ctx context.Context, q domain.Query) (domain.Synthesis, error) {
	log := logger.FromContext(ctx)

	p := &pipeline{query: q}
	current := stateRouting

	for current != stateDone && current != stateFailed {
		switch current {
		case stateRouting:
			current = s.routing(ctx, p)
		case stateDispatching:
			current = s.dispatching(ctx, p)
		case stateAggregating:
			current = s.aggregating(p)
		case stateSynthesizing:
			current = s.synthesizing(ctx, p)
		}
	}

	if current == stateFailed {
		log.Warn("query failed", zap.Error(p.err))
		return domain.Synthesis{}, p.err
	}

	log.Info("query completed",
		zap.Float64("confidence", p.result.Confidence),
		zap.Bool("degraded", p.result.Degraded),
		zap.Int("sources", len(p.result.Sources)),
	)
	return p.result, nil
}

// routing transcribes voice input when needed and builds the plan.
// Routing itself never fails; only an untranscribable voice query does.
func (s *Service) routing(ctx context.Context, p *pipeline) state {
	if p.query.Mode == domain.ModeVoice {
		text, err := s.transcribe(ctx, p.query.Audio)
		if err != nil {
			p.err = fmt.Errorf("%w: %w", domain.ErrQueryFailed, err)
			return stateFailed
		}
		p.query = p.query.WithText(text)
	}

	p.plan = s.router.Route(p.query)
	if p.plan.DefaultApplied() {
		logger.FromContext(ctx).Info("no routing rule matched, using default plan")
	}
	return stateDispatching
}

// dispatching fans out all planned units concurrently and joins on all of
// them. No unit's failure cancels another; the only shared cancellation is
// the query deadline carried by ctx.
func (s *Service) dispatching(ctx context.Context, p *pipeline) state {
	var (
		mu      sync.Mutex
		results = make(map[domain.Service]call.Result, p.plan.PlannedUnits())
	)
	record := func(svc domain.Service, res call.Result) {
		mu.Lock()
		results[svc] = res
		mu.Unlock()
	}

	var g errgroup.Group
	for _, svc := range p.plan.Services() {
		svc := svc
		fn := s.unitFor(svc, p.plan)
		if fn == nil {
			record(svc, call.Failure(call.ReasonInternal,
				fmt.Errorf("no client configured for %s", svc), 0))
			continue
		}
		g.Go(func() error {
			record(svc, s.caller.Call(ctx, svc, s.timeoutFor(svc), fn))
			return nil
		})
	}

	if r, ok := p.plan.Retrieval(); ok {
		g.Go(func() error {
			res := s.caller.Call(ctx, domain.ServiceRetrieval, s.timeoutFor(domain.ServiceRetrieval),
				func(ctx context.Context) (any, error) {
					return s.retriever.Retrieve(ctx, p.query.Text, r.TopK, r.MinScore)
				})
			record(domain.ServiceRetrieval, res)
			return nil
		})
	}

	// join barrier: every dispatched unit has resolved past this point
	_ = g.Wait()

	p.results = results
	if res, ok := results[domain.ServiceRetrieval]; ok && res.OK() {
		if passages, ok := res.Payload().([]retrieval.Result); ok {
			p.passages = passages
		}
	}
	return stateAggregating
}

func (s *Service) aggregating(p *pipeline) state {
	planned := p.plan.Services()
	if _, ok := p.plan.Retrieval(); ok {
		planned = append(planned[:len(planned):len(planned)], domain.ServiceRetrieval)
	}

	b := s.aggregator.Aggregate(p.results, p.passages, planned)
	if b.Empty() {
		p.err = fmt.Errorf("%w: no usable context from any collaborator", domain.ErrQueryFailed)
		return stateFailed
	}
	p.bundle = b
	return stateSynthesizing
}

func (s *Service) synthesizing(ctx context.Context, p *pipeline) state {
	p.result = s.gate.Synthesize(ctx, p.bundle, p.query)

	if p.query.Mode == domain.ModeVoice && s.speech != nil {
		audio, err := s.voiceAnswer(ctx, p.result.AnswerText)
		if err != nil {
			logger.FromContext(ctx).Warn("speech synthesis failed, returning text only", zap.Error(err))
			p.result.Degraded = true
		} else {
			p.result.Audio = audio
		}
	}
	return stateDone
}

// unitFor binds a planned service to its collaborator call.
func (s *Service) unitFor(svc domain.Service, p plan.Plan) call.Fn {
	switch svc {
	case domain.ServiceMarketData:
		if s.market == nil {
			return nil
		}
		symbols := p.Symbols()
		if len(symbols) == 0 {
			symbols = s.cfg.DefaultSymbols
		}
		return func(ctx context.Context) (any, error) {
			return s.marketSnapshot(ctx, symbols)
		}
	case domain.ServiceScraping:
		if s.scraper == nil {
			return nil
		}
		return func(ctx context.Context) (any, error) {
			return s.scraper.GetNews(ctx, "")
		}
	case domain.ServiceAnalysis:
		if s.analyst == nil {
			return nil
		}
		return func(ctx context.Context) (any, error) {
			return s.analyze(ctx)
		}
	default:
		return nil
	}
}

// marketSnapshot fetches quotes and the earnings calendar in one unit.
// A missing calendar does not fail the unit; quotes are the core payload.
func (s *Service) marketSnapshot(ctx context.Context, symbols []string) (any, error) {
	quotes, err := s.market.GetQuotes(ctx, symbols)
	if err != nil {
		return nil, fmt.Errorf("get quotes: %w", err)
	}

	events, err := s.market.GetEarningsCalendar(ctx)
	if err != nil {
		logger.FromContext(ctx).Warn("earnings calendar unavailable", zap.Error(err))
		events = nil
	}
	return domain.MarketSnapshot{Quotes: quotes, Earnings: events}, nil
}

// analyze feeds the analysis collaborator its own market snapshot, fetched
// inside this unit so the call stays independent of the market-data unit.
func (s *Service) analyze(ctx context.Context) (any, error) {
	symbols := make([]string, 0, len(s.cfg.Portfolio))
	for sym := range s.cfg.Portfolio {
		symbols = append(symbols, sym)
	}

	market := map[string]domain.Quote{}
	if s.market != nil && len(symbols) > 0 {
		quotes, err := s.market.GetQuotes(ctx, symbols)
		if err != nil {
			logger.FromContext(ctx).Warn("market snapshot for analysis unavailable", zap.Error(err))
		} else {
			market = quotes
		}
	}

	m, err := s.analyst.ComputeMetrics(ctx, s.cfg.Portfolio, market)
	if err != nil {
		return nil, fmt.Errorf("compute metrics: %w", err)
	}
	return m, nil
}

func (s *Service) transcribe(ctx context.Context, audio []byte) (string, error) {
	if s.speech == nil {
		return "", fmt.Errorf("%w: no speech collaborator configured", domain.ErrTranscriptionFailed)
	}

	res := s.caller.Call(ctx, domain.ServiceSpeech, s.timeoutFor(domain.ServiceSpeech),
		func(ctx context.Context) (any, error) {
			return s.speech.TranscribeAudio(ctx, audio)
		})
	if !res.OK() {
		return "", fmt.Errorf("%w: %s", domain.ErrTranscriptionFailed, res.Status())
	}
	text, _ := res.Payload().(string)
	if text == "" {
		return "", fmt.Errorf("%w: empty transcript", domain.ErrTranscriptionFailed)
	}
	return text, nil
}

func (s *Service) voiceAnswer(ctx context.Context, text string) ([]byte, error) {
	res := s.caller.Call(ctx, domain.ServiceSpeech, s.timeoutFor(domain.ServiceSpeech),
		func(ctx context.Context) (any, error) {
			return s.speech.SynthesizeSpeech(ctx, text)
		})
	if !res.OK() {
		if res.Err() != nil {
			return nil, res.Err()
		}
		return nil, fmt.Errorf("speech synthesis %s", res.Status())
	}
	audio, _ := res.Payload().([]byte)
	return audio, nil
}

func (s *Service) timeoutFor(svc domain.Service) time.Duration {
	if t, ok := s.cfg.Timeouts[svc]; ok && t > 0 {
		return t
	}
	return s.cfg.DefaultTimeout
}
