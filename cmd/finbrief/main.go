package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/finbrief/finbrief/internal/client"
	"github.com/finbrief/finbrief/internal/config"
	"github.com/finbrief/finbrief/internal/db"
	dbRedis "github.com/finbrief/finbrief/internal/db/redis"
	"github.com/finbrief/finbrief/internal/domain"
	"github.com/finbrief/finbrief/internal/domain/plan"
	"github.com/finbrief/finbrief/internal/index"
	logpkg "github.com/finbrief/finbrief/internal/logger"
	"github.com/finbrief/finbrief/internal/metrics"
	"github.com/finbrief/finbrief/internal/repository/embcache"
	"github.com/finbrief/finbrief/internal/repository/snapshot"
	"github.com/finbrief/finbrief/internal/transport/agents"
	chiTransport "github.com/finbrief/finbrief/internal/transport/chi"
	openaiTransport "github.com/finbrief/finbrief/internal/transport/openai"
	aggregateuc "github.com/finbrief/finbrief/internal/usecase/aggregate"
	healthuc "github.com/finbrief/finbrief/internal/usecase/health"
	ingestuc "github.com/finbrief/finbrief/internal/usecase/ingest"
	orchestrateuc "github.com/finbrief/finbrief/internal/usecase/orchestrate"
	retrieveuc "github.com/finbrief/finbrief/internal/usecase/retrieve"
	routeuc "github.com/finbrief/finbrief/internal/usecase/route"
	synthesizeuc "github.com/finbrief/finbrief/internal/usecase/synthesize"
	"github.com/finbrief/finbrief/internal/version"
)

func main() {
	// Load configuration based on ENV
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting finbrief API server",
		zap.String("build", version.String()),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.Int("collaborators", len(cfg.Collaborators)),
	)

	ctx := context.Background()

	// Register pipeline metrics explicitly (no init())
	metrics.RegisterPipelineMetrics()

	// Optional embedding cache store
	var store db.Store
	if len(cfg.Cache.Addrs) > 0 {
		store, err = dbRedis.NewStore(dbRedis.Config{
			Addrs:    cfg.Cache.Addrs,
			Password: cfg.Cache.Password,
		})
		if err != nil {
			logger.Fatal("Failed to create cache store", zap.Error(err))
		}
		defer store.Close()

		if err := store.WaitForReady(ctx, time.Duration(cfg.Cache.ReadinessTimeout)*time.Second); err != nil {
			logger.Fatal("Cache store not ready", zap.Error(err))
		}
		logger.Info("Connected to embedding cache", zap.Strings("addrs", cfg.Cache.Addrs))
	}

	// Index snapshot store and in-memory index
	snapStore, err := snapshot.Open(cfg.Snapshot.Path)
	if err != nil {
		logger.Fatal("Failed to open snapshot store", zap.Error(err), zap.String("path", cfg.Snapshot.Path))
	}
	defer snapStore.Close()

	ix := index.New(cfg.Embedding.Dimensions)
	docs, err := snapStore.Load(ctx)
	if err != nil {
		logger.Fatal("Failed to load index snapshot", zap.Error(err))
	}
	if err := ix.Restore(docs); err != nil {
		logger.Warn("Some snapshot documents were skipped", zap.Error(err))
	}
	metrics.IndexedDocuments.Set(float64(ix.Len()))
	logger.Info("Index restored from snapshot",
		zap.String("path", cfg.Snapshot.Path),
		zap.Int("documents", ix.Len()),
	)

	// Build embedder chain — composition root
	baseEmbedder := openaiTransport.NewEmbedder(&openaiTransport.EmbedderConfig{
		APIKey:     cfg.Embedding.APIKey,
		BaseURL:    cfg.Embedding.BaseURL,
		Model:      cfg.Embedding.Model,
		Dimensions: cfg.Embedding.Dimensions,
		Logger:     logger,
	})
	docEmbedder := buildEmbedder(baseEmbedder, store, cfg.Embedding.DocumentInstruction, logger)
	queryEmbedder := buildEmbedder(baseEmbedder, store, cfg.Embedding.QueryInstruction, logger)
	logger.Info("Embedders created",
		zap.String("model", cfg.Embedding.Model),
		zap.Int("dimensions", cfg.Embedding.Dimensions),
		zap.Bool("cached", store != nil),
	)

	generator := openaiTransport.NewGenerator(&openaiTransport.GeneratorConfig{
		APIKey:  cfg.Synthesis.APIKey,
		BaseURL: cfg.Synthesis.BaseURL,
		Model:   cfg.Synthesis.Model,
		Logger:  logger,
	})

	// Collaborator clients. The pool enforces per-call timeouts; the shared
	// http.Client carries no timeout of its own.
	httpClient := &http.Client{}
	var (
		market  orchestrateuc.MarketData
		scraper orchestrateuc.Scraper
		analyst orchestrateuc.Analyst
		speech  orchestrateuc.Speech
	)
	// Typed-nil gotcha: only assign interfaces when the client exists.
	if c, ok := cfg.Collaborators[string(domain.ServiceMarketData)]; ok {
		market = agents.NewMarketClient(c.BaseURL, httpClient)
	}
	if c, ok := cfg.Collaborators[string(domain.ServiceScraping)]; ok {
		scraper = agents.NewScrapingClient(c.BaseURL, httpClient)
	}
	if c, ok := cfg.Collaborators[string(domain.ServiceAnalysis)]; ok {
		analyst = agents.NewAnalysisClient(c.BaseURL, httpClient)
	}
	if c, ok := cfg.Collaborators[string(domain.ServiceSpeech)]; ok {
		speech = agents.NewSpeechClient(c.BaseURL, httpClient)
	}

	timeouts := make(map[domain.Service]time.Duration, len(cfg.Collaborators))
	for name, c := range cfg.Collaborators {
		timeouts[domain.Service(name)] = time.Duration(c.TimeoutMS) * time.Millisecond
	}

	// Create use case services
	retrievalDefaults := plan.Retrieval{TopK: cfg.Retrieval.TopK, MinScore: cfg.Retrieval.MinScore}
	router := routeuc.New(retrievalDefaults)
	retriever := retrieveuc.New(ix, queryEmbedder)
	aggregator := aggregateuc.New(cfg.Pipeline.BundleMaxChars)
	gate := synthesizeuc.New(generator, synthesizeuc.Config{
		AcceptThreshold: cfg.Synthesis.AcceptThreshold,
		MaxTokens:       cfg.Synthesis.MaxTokens,
		MaxAnswerChars:  cfg.Synthesis.MaxAnswerChars,
		Weights: synthesizeuc.Weights{
			Coverage:  cfg.Synthesis.Weights.Coverage,
			Retrieval: cfg.Synthesis.Weights.Retrieval,
			Lexical:   cfg.Synthesis.Weights.Lexical,
		},
	})
	pool := client.NewPool(logger)

	orchestrator := orchestrateuc.New(
		router, retriever, aggregator, gate, pool,
		market, scraper, analyst, speech,
		orchestrateuc.Config{
			QueryDeadline:  time.Duration(cfg.Pipeline.QueryDeadlineMS) * time.Millisecond,
			Timeouts:       timeouts,
			DefaultSymbols: cfg.Pipeline.DefaultSymbols,
			Portfolio:      domain.Portfolio(cfg.Pipeline.Portfolio),
		},
	)

	ingester := ingestuc.New(docEmbedder, ix, snapStore)

	var cachePinger healthuc.Pinger
	if store != nil {
		cachePinger = store
	}
	healthSvc := healthuc.New(baseEmbedder, generator, cachePinger, ix)

	// Create chi server
	server := chiTransport.NewServer(orchestrator, ingester, healthSvc, logger)

	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(logger))
	r.Use(chiTransport.BearerAuthMiddleware(cfg.Auth.APIKeys))
	r.Use(metrics.Middleware())
	server.Routes(r)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
}

// buildEmbedder assembles the decorator chain: OpenAI -> Cached -> Instruction.
func buildEmbedder(
	base domain.Embedder,
	store db.Store,
	instruction string,
	logger *zap.Logger,
) domain.Embedder {
	embedder := base
	if store != nil {
		embedder = embcache.New(embedder, store, metrics.EmbeddingCacheTotal, logger)
	}

	// Instruction prefix (outermost — cache key includes instruction)
	if instruction != "" {
		return domain.NewInstructionEmbedder(embedder, instruction)
	}
	return embedder
}

// jsonRecoverer is a recovery middleware that returns JSON instead of a plain text stacktrace.
func jsonRecoverer(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rvr := recover(); rvr != nil {
					logger.Error("panic recovered",
						zap.Any("panic", rvr),
						zap.Stack("stacktrace"),
					)
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					_ = json.NewEncoder(w).Encode(map[string]string{
						"code":    "internal_error",
						"message": "internal error",
					})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// wideEventMiddleware emits a canonical log line per request and propagates X-Request-ID.
func wideEventMiddleware(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// chi.middleware.RequestID already placed request_id in context
			requestID := chiMiddleware.GetReqID(r.Context())

			// Set X-Request-ID in response header
			if requestID != "" {
				w.Header().Set("X-Request-ID", requestID)
			}

			// Per-request logger with request_id
			reqLogger := logger.With(zap.String("request_id", requestID))
			ctx := logpkg.ContextWithLogger(r.Context(), reqLogger)

			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			// Canonical log line — one line per request
			reqLogger.Info("http_request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("duration", time.Since(start)),
				zap.String("remote_addr", r.RemoteAddr),
			)
		})
	}
}
