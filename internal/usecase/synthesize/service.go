// Package synthesize gates answer generation on a confidence score.
//
// The gate is a small state machine: Attempt generates from the full bundle,
// Retry regenerates from the structured items only, Fallback assembles the
// answer directly from structured data without the language model. Each
// transition fires only when the confidence of the previous stage is below
// the acceptance threshold.
package synthesize

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/finbrief/finbrief/internal/domain"
	"github.com/finbrief/finbrief/internal/domain/bundle"
	"github.com/finbrief/finbrief/internal/logger"
	"github.com/finbrief/finbrief/internal/metrics"
)

// Weights holds the confidence formula weights. They should sum to 1.
type Weights struct {
	Coverage  float64
	Retrieval float64
	Lexical   float64
}

// Config holds gate settings.
type Config struct {
	AcceptThreshold float64
	MaxTokens       int
	MaxAnswerChars  int
	Weights         Weights
}

// Service is the synthesizer gate.
type Service struct {
	gen Generator
	cfg Config
}

// New creates a synthesizer gate.
func New(gen Generator, cfg Config) *Service {
	return &Service{gen: gen, cfg: cfg}
}

type stage string

const (
	stageAttempt  stage = "attempt"
	stageRetry    stage = "retry"
	stageFallback stage = "fallback"
	stageDone     stage = "done"
)

// Synthesize produces exactly one scored answer for the query. It never
// returns an unbounded answer and never fails outright: when both generation
// attempts score below the threshold (or the generator errors), it falls
// back to a template assembled from structured data with degraded=true.
func (s *Service) Synthesize(ctx context.Context, b bundle.Bundle, q domain.Query) domain.Synthesis {
	log := logger.FromContext(ctx)

	var result domain.Synthesis
	current := stageAttempt
	for current != stageDone {
		metrics.SynthesisAttemptsTotal.WithLabelValues(string(current)).Inc()

		switch current {
		case stageAttempt:
			result = s.generate(ctx, b, q)
			if result.Confidence >= s.cfg.AcceptThreshold {
				current = stageDone
				break
			}
			log.Info("answer below acceptance threshold, retrying with trimmed context",
				zap.Float64("confidence", result.Confidence),
				zap.Float64("threshold", s.cfg.AcceptThreshold),
			)
			current = stageRetry

		case stageRetry:
			trimmed := b.StructuredOnly()
			if trimmed.Empty() {
				current = stageFallback
				break
			}
			result = s.generate(ctx, trimmed, q)
			if result.Confidence >= s.cfg.AcceptThreshold {
				result.Degraded = true // partial context produced this answer
				current = stageDone
				break
			}
			current = stageFallback

		case stageFallback:
			result = s.fallback(b)
			current = stageDone
		}
	}

	result.AnswerText = truncate(result.AnswerText, s.cfg.MaxAnswerChars)
	metrics.AnswerConfidence.Observe(result.Confidence)
	return result
}

// generate runs one language model attempt over the bundle.
func (s *Service) generate(ctx context.Context, b bundle.Bundle, q domain.Query) domain.Synthesis {
	prompt := composePrompt(q.Text, b)

	answer, err := s.gen.Generate(ctx, prompt, s.cfg.MaxTokens)
	if err != nil {
		logger.FromContext(ctx).Warn("generation failed", zap.Error(err))
		return domain.Synthesis{Confidence: 0, Degraded: true}
	}

	return domain.Synthesis{
		AnswerText: answer,
		Confidence: s.confidence(b, answer),
		Sources:    b.Sources(),
		Degraded:   b.Degraded(),
	}
}

// confidence scores an answer from three inputs: collaborator coverage, mean
// retrieval score of the passages used, and a lexical check that the answer
// carries the numeric markers the context promised. When the bundle holds no
// passages (pure data lookups, structured-only retries) the retrieval term is
// dropped and the remaining weights are renormalized, so the absence of a
// planned retrieval never sinks an otherwise complete answer.
func (s *Service) confidence(b bundle.Bundle, answer string) float64 {
	w := s.cfg.Weights
	num := w.Coverage*b.Coverage() + w.Lexical*lexicalScore(b, answer)
	den := w.Coverage + w.Lexical
	if b.HasPassages() {
		num += w.Retrieval * b.PassageMeanScore()
		den += w.Retrieval
	}
	if den == 0 {
		return 0
	}
	return num / den
}

var numericMarker = regexp.MustCompile(`[0-9]|%`)

// lexicalScore checks the answer for numeric/percentage markers. When the
// context carried numbers, an answer without any is suspect.
func lexicalScore(b bundle.Bundle, answer string) float64 {
	contextHasNumbers := false
	for _, it := range b.Items() {
		if numericMarker.MatchString(it.Text()) {
			contextHasNumbers = true
			break
		}
	}
	if !contextHasNumbers {
		return 1
	}
	if numericMarker.MatchString(answer) {
		return 1
	}
	return 0
}

// fallback assembles a templated answer directly from structured data,
// bypassing generation entirely.
func (s *Service) fallback(b bundle.Bundle) domain.Synthesis {
	structured := b.StructuredOnly()
	if structured.Empty() {
		return domain.Synthesis{
			AnswerText: "I could not assemble enough reliable data to answer this. " +
				"Could you narrow the question?",
			Confidence: 0,
			Degraded:   true,
		}
	}

	var sb strings.Builder
	sb.WriteString("Here is what the data shows:\n")
	for _, it := range structured.Items() {
		fmt.Fprintf(&sb, "- %s\n", it.Text())
	}

	return domain.Synthesis{
		AnswerText: sb.String(),
		Confidence: s.cfg.Weights.Coverage * structured.Coverage(),
		Sources:    structured.Sources(),
		Degraded:   true,
	}
}

// composePrompt serializes the bundle in precedence order.
func composePrompt(queryText string, b bundle.Bundle) string {
	var sb strings.Builder
	sb.WriteString("Query: ")
	sb.WriteString(queryText)
	sb.WriteString("\n\nContext:\n")
	for _, it := range b.Items() {
		fmt.Fprintf(&sb, "[%s] %s\n", it.Kind(), it.Text())
	}
	sb.WriteString("\nAnswer the query using only the context above. " +
		"Cite specific figures where available.")
	return sb.String()
}

// truncate bounds the answer length, cutting on a rune boundary.
func truncate(s string, maxChars int) string {
	if maxChars <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= maxChars {
		return s
	}
	return string(runes[:maxChars])
}
