// Package call models the outcome of a single collaborator call as data.
// Errors never cross the dispatch barrier as panics or returned errors; every
// issued call resolves to exactly one Result.
package call

import (
	"context"
	"time"
)

// Fn is one collaborator call. It must honor ctx cancellation; the caller
// still resolves the result on deadline even if it does not.
type Fn func(ctx context.Context) (any, error)

// Status is the resolution of a collaborator call.
type Status string

// Call statuses.
const (
	StatusSuccess Status = "success"
	StatusTimeout Status = "timeout"
	StatusFailure Status = "failure"
)

// Reason is a machine-readable failure reason code.
type Reason string

// Failure reason codes.
const (
	ReasonNone       Reason = ""
	ReasonConnection Reason = "connection"
	ReasonHTTPStatus Reason = "http_status"
	ReasonDecode     Reason = "decode"
	ReasonCanceled   Reason = "canceled"
	ReasonInternal   Reason = "internal"
)

// Result is the resolved outcome of one collaborator call.
type Result struct {
	status  Status
	payload any
	reason  Reason
	err     error
	elapsed time.Duration
}

// Success creates a successful call result carrying the payload.
func Success(payload any, elapsed time.Duration) Result {
	return Result{status: StatusSuccess, payload: payload, elapsed: elapsed}
}

// Timeout creates a timed-out call result.
func Timeout(elapsed time.Duration) Result {
	return Result{status: StatusTimeout, elapsed: elapsed}
}

// Failure creates a failed call result with a reason code.
func Failure(reason Reason, err error, elapsed time.Duration) Result {
	return Result{status: StatusFailure, reason: reason, err: err, elapsed: elapsed}
}

// Status returns the call resolution.
func (r Result) Status() Status { return r.status }

// OK reports whether the call succeeded.
func (r Result) OK() bool { return r.status == StatusSuccess }

// Payload returns the success payload, nil otherwise.
func (r Result) Payload() any { return r.payload }

// Reason returns the failure reason code.
func (r Result) Reason() Reason { return r.reason }

// Err returns the underlying error, if any.
func (r Result) Err() error { return r.err }

// Elapsed returns how long the call took to resolve.
func (r Result) Elapsed() time.Duration { return r.elapsed }
