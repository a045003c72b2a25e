package rpc

import (
	"errors"
	"time"
)

// Disposition classifies how the caller should react to a failed RPC call
// (spec.md §4.1).
type Disposition int

const (
	// Retry means the same endpoint should be retried after a backoff delay.
	Retry Disposition = iota
	// SwitchEndpoint means the current endpoint is unhealthy and the next
	// call should go to a different one; the attempt still counts against
	// the global retry limit.
	SwitchEndpoint
	// Fatal means the error will not resolve by retrying or switching and
	// should be returned to the caller immediately ("Through(Err)").
	Fatal
)

// ErrAllEndpointsExhausted is returned when the pool has no configured
// endpoint. When every configured endpoint is marked failed, Select clears
// the failure set instead of returning this error.
var ErrAllEndpointsExhausted = errors.New("rpc: all endpoints exhausted")

// ErrRetryLimitReached is returned when the global retry budget is spent
// without success.
var ErrRetryLimitReached = errors.New("rpc: retry limit reached")

// FailureKind names a row of the disposition table in spec.md §4.1. Each
// maps to a Disposition and a minimum pre-retry delay.
type FailureKind int

const (
	FailureRateLimited        FailureKind = iota // TooManyRequests / 503
	FailureServerInternal                        // server internal error, other 5xx
	FailureRequestValidation                     // request validation error
	FailureUnauthorized                          // Unauthorized
	FailureHandlerLogic                          // application-logic (JSON-RPC) error
	FailurePayloadSend                            // network error issuing the request
	FailurePayloadSerialize                       // marshal request failed
	FailurePayloadReceive                         // reading response body failed
	FailurePayloadParse                           // unmarshal envelope failed
	FailureResponseParse                          // decoding the result into the caller's type failed
	FailureUnexpectedResponse                     // anything not covered above
	FailureContextCanceled                        // context.Canceled / DeadlineExceeded
)

// outcome pairs a Disposition with the minimum pre-retry delay the
// disposition table assigns it (spec.md §4.1).
type outcome struct {
	disposition Disposition
	minDelay    time.Duration
}

var dispositionTable = map[FailureKind]outcome{
	FailureRateLimited:        {SwitchEndpoint, 0},
	FailureServerInternal:     {Retry, 500 * time.Millisecond},
	FailureRequestValidation:  {Fatal, 0},
	FailureUnauthorized:       {Fatal, 0},
	FailureHandlerLogic:       {Fatal, 0},
	FailurePayloadSend:        {Retry, 500 * time.Millisecond},
	FailurePayloadSerialize:   {Fatal, 0},
	FailurePayloadReceive:     {Retry, 1 * time.Second},
	FailurePayloadParse:       {Retry, 2 * time.Second},
	FailureResponseParse:      {Retry, 500 * time.Millisecond},
	FailureUnexpectedResponse: {Fatal, 0},
	FailureContextCanceled:    {Fatal, 0},
}

// Classify returns the disposition and minimum pre-retry delay for kind.
func Classify(kind FailureKind) (Disposition, time.Duration) {
	o, ok := dispositionTable[kind]
	if !ok {
		return Fatal, 0
	}
	return o.disposition, o.minDelay
}

// ClassifyHTTPStatus maps an HTTP status code (no transport/JSON-RPC error)
// to a FailureKind per the disposition table: 429/503 rate-limit, other 5xx
// server-internal, 401 unauthorized, other 4xx request-validation.
func ClassifyHTTPStatus(statusCode int) FailureKind {
	switch {
	case statusCode == 429 || statusCode == 503:
		return FailureRateLimited
	case statusCode >= 500:
		return FailureServerInternal
	case statusCode == 401:
		return FailureUnauthorized
	default:
		return FailureRequestValidation
	}
}
