package client

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/finbrief/finbrief/internal/domain"
	"github.com/finbrief/finbrief/internal/domain/call"
	"github.com/finbrief/finbrief/internal/transport/agents"
)

func newTestPool() *Pool {
	return NewPool(zap.NewNop())
}

func TestCall_Success(t *testing.T) {
	p := newTestPool()

	res := p.Call(context.Background(), domain.ServiceMarketData, time.Second,
		func(_ context.Context) (any, error) {
			return "payload", nil
		})

	if !res.OK() {
		t.Fatalf("expected success, got %v", res.Status())
	}
	if res.Payload() != "payload" {
		t.Errorf("expected payload, got %v", res.Payload())
	}
}

func TestCall_TimeoutResolvesBeforeFnReturns(t *testing.T) {
	p := newTestPool()

	start := time.Now()
	res := p.Call(context.Background(), domain.ServiceScraping, 50*time.Millisecond,
		func(ctx context.Context) (any, error) {
			<-ctx.Done() // honor cancellation like a real client
			return nil, ctx.Err()
		})
	elapsed := time.Since(start)

	if res.Status() != call.StatusTimeout {
		t.Fatalf("expected timeout, got %v", res.Status())
	}
	if elapsed > 500*time.Millisecond {
		t.Errorf("timeout resolution took %v", elapsed)
	}
}

func TestCall_TimeoutEvenIfFnHangs(t *testing.T) {
	p := newTestPool()

	block := make(chan struct{})
	defer close(block)

	res := p.Call(context.Background(), domain.ServiceScraping, 50*time.Millisecond,
		func(_ context.Context) (any, error) {
			<-block // ignores cancellation entirely
			return nil, nil
		})

	if res.Status() != call.StatusTimeout {
		t.Fatalf("hanging fn must still resolve as timeout, got %v", res.Status())
	}
}

func TestCall_StatusErrorClassified(t *testing.T) {
	p := newTestPool()

	res := p.Call(context.Background(), domain.ServiceMarketData, time.Second,
		func(_ context.Context) (any, error) {
			return nil, &agents.StatusError{Status: 502, Body: "bad gateway"}
		})

	if res.Status() != call.StatusFailure {
		t.Fatalf("expected failure, got %v", res.Status())
	}
	if res.Reason() != call.ReasonHTTPStatus {
		t.Errorf("expected http_status reason, got %v", res.Reason())
	}
}

func TestCall_DecodeErrorClassified(t *testing.T) {
	p := newTestPool()

	res := p.Call(context.Background(), domain.ServiceMarketData, time.Second,
		func(_ context.Context) (any, error) {
			return nil, &agents.DecodeError{Err: errors.New("unexpected EOF")}
		})

	if res.Reason() != call.ReasonDecode {
		t.Errorf("expected decode reason, got %v", res.Reason())
	}
}

func TestCall_ConnectionErrorDefault(t *testing.T) {
	p := newTestPool()

	res := p.Call(context.Background(), domain.ServiceMarketData, time.Second,
		func(_ context.Context) (any, error) {
			return nil, errors.New("dial tcp: connection refused")
		})

	if res.Reason() != call.ReasonConnection {
		t.Errorf("expected connection reason, got %v", res.Reason())
	}
}

func TestCall_ParentCancellation(t *testing.T) {
	p := newTestPool()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	res := p.Call(ctx, domain.ServiceAnalysis, time.Second,
		func(ctx context.Context) (any, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		})

	if res.Status() != call.StatusFailure {
		t.Fatalf("expected failure on cancellation, got %v", res.Status())
	}
	if res.Reason() != call.ReasonCanceled {
		t.Errorf("expected canceled reason, got %v", res.Reason())
	}
}

func TestCall_ParentDeadlineWinsOverCallTimeout(t *testing.T) {
	p := newTestPool()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	start := time.Now()
	res := p.Call(ctx, domain.ServiceMarketData, 5*time.Second,
		func(ctx context.Context) (any, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		})
	elapsed := time.Since(start)

	if res.Status() != call.StatusTimeout {
		t.Fatalf("expected timeout from parent deadline, got %v", res.Status())
	}
	if elapsed > 500*time.Millisecond {
		t.Errorf("parent deadline should bound the call, took %v", elapsed)
	}
}
