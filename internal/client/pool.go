// Package client runs collaborator calls under per-call timeouts and turns
// every outcome into a call.Result. A slow or broken collaborator can never
// hang a query or abort sibling calls.
package client

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/finbrief/finbrief/internal/domain"
	"github.com/finbrief/finbrief/internal/domain/call"
	"github.com/finbrief/finbrief/internal/metrics"
	"github.com/finbrief/finbrief/internal/transport/agents"
)

// Pool issues collaborator calls. Safe for concurrent use across queries;
// it keeps no per-query state.
type Pool struct {
	logger *zap.Logger
}

// NewPool creates a call pool.
func NewPool(logger *zap.Logger) *Pool {
	return &Pool{logger: logger}
}

type outcome struct {
	payload any
	err     error
}

// Call runs fn under its own timeout and resolves exactly one Result.
// The deadline is the tighter of timeout and any deadline already on ctx
// (the query-level budget). When the deadline fires before fn returns, the
// result is Timeout and fn's eventual return is discarded.
func (p *Pool) Call(ctx context.Context, service domain.Service, timeout time.Duration, fn call.Fn) call.Result {
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	done := make(chan outcome, 1)
	go func() {
		payload, err := fn(callCtx)
		done <- outcome{payload: payload, err: err}
	}()

	var result call.Result
	select {
	case <-callCtx.Done():
		elapsed := time.Since(start)
		if errors.Is(callCtx.Err(), context.Canceled) {
			result = call.Failure(call.ReasonCanceled, callCtx.Err(), elapsed)
		} else {
			result = call.Timeout(elapsed)
		}
	case out := <-done:
		elapsed := time.Since(start)
		if out.err != nil {
			result = classify(out.err, elapsed)
		} else {
			result = call.Success(out.payload, elapsed)
		}
	}

	metrics.CollaboratorCallsTotal.WithLabelValues(string(service), string(result.Status())).Inc()
	metrics.CollaboratorCallDuration.WithLabelValues(string(service)).Observe(result.Elapsed().Seconds())

	if !result.OK() {
		p.logger.Warn("collaborator call did not succeed",
			zap.String("service", string(service)),
			zap.String("status", string(result.Status())),
			zap.String("reason", string(result.Reason())),
			zap.Duration("elapsed", result.Elapsed()),
			zap.Error(result.Err()),
		)
	}
	return result
}

// classify maps a returned error onto the call taxonomy.
func classify(err error, elapsed time.Duration) call.Result {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return call.Timeout(elapsed)
	case errors.Is(err, context.Canceled):
		return call.Failure(call.ReasonCanceled, err, elapsed)
	}

	var statusErr *agents.StatusError
	if errors.As(err, &statusErr) {
		return call.Failure(call.ReasonHTTPStatus, err, elapsed)
	}
	var decodeErr *agents.DecodeError
	if errors.As(err, &decodeErr) {
		return call.Failure(call.ReasonDecode, err, elapsed)
	}
	if errors.Is(err, domain.ErrEmbeddingUnavailable) {
		return call.Failure(call.ReasonInternal, err, elapsed)
	}
	return call.Failure(call.ReasonConnection, err, elapsed)
}
