package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// rpcEnvelope is the JSON-RPC 2.0 envelope the NEAR RPC surface uses for
// view and broadcast calls.
type rpcEnvelope struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      string          `json:"id"`
	Result  json.RawMessage `json:"result"`
	Error   *rpcError       `json:"error"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *rpcError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// Transport is the decorrelated-backoff, multi-endpoint aware RPC caller
// (C-RPC, spec.md §4.1). It owns no domain knowledge of pools or tokens;
// callers marshal JSON-RPC params and unmarshal the result themselves via
// Call.
type Transport struct {
	pool       *EndpointPool
	httpClient *http.Client
	log        zerolog.Logger
	rnd        *rand.Rand

	retryLimit int
	delayLimit time.Duration
	fluctuate  float64
}

// NewTransport builds a Transport over the given endpoints.
func NewTransport(endpoints []EndpointConfig, retryLimit int, delayLimit time.Duration, fluctuate float64, log zerolog.Logger) *Transport {
	rnd := rand.New(rand.NewSource(time.Now().UnixNano()))
	return &Transport{
		pool:       NewEndpointPool(endpoints, rnd),
		httpClient: &http.Client{Timeout: 30 * time.Second},
		log:        log.With().Str("component", "rpc_transport").Logger(),
		rnd:        rnd,
		retryLimit: retryLimit,
		delayLimit: delayLimit,
		fluctuate:  fluctuate,
	}
}

// Call performs the endpoint-selection and retry loop of spec.md §4.1: the
// caller stays on the current endpoint across Retry dispositions until its
// MaxEndpointRetries is exceeded, at which point it is marked failed and a
// new weighted-random non-failed endpoint is selected (resetting its local
// retry count); a SwitchEndpoint disposition fails the current endpoint
// immediately. A Fatal disposition returns at once. The global retryLimit
// bounds total attempts across every endpoint; exceeding it returns the
// last observed error wrapped in ErrRetryLimitReached.
func (t *Transport) Call(ctx context.Context, method string, params interface{}) (json.RawMessage, error) {
	endpoint, err := t.pool.Select()
	if err != nil {
		return nil, err
	}

	endpointRetryCount := 0
	var lastErr error

	for attempt := 1; attempt <= t.retryLimit; attempt++ {
		result, statusCode, transportErr, rpcErr, kind := t.doRequest(ctx, endpoint, method, params)
		if transportErr == nil && rpcErr == nil {
			t.pool.RecordSuccess(endpoint)
			return result, nil
		}

		disposition, minDelay := Classify(kind)
		lastErr = firstNonNil(transportErr, rpcErr)

		ev := t.log.Info()
		if disposition == Fatal {
			ev = t.log.Warn()
		}
		ev.Str("endpoint", endpoint).
			Str("method", method).
			Int("attempt", attempt).
			Int("status_code", statusCode).
			Err(lastErr).
			Int("disposition", int(disposition)).
			Msg("rpc call failed")

		switch disposition {
		case Fatal:
			return nil, lastErr

		case SwitchEndpoint:
			t.pool.MarkFailed(endpoint)
			next, err := t.pool.Select()
			if err != nil {
				return nil, err
			}
			endpoint = next
			endpointRetryCount = 0

		case Retry:
			endpointRetryCount++
			if endpointRetryCount > t.pool.MaxRetriesFor(endpoint) {
				t.pool.MarkFailed(endpoint)
				next, err := t.pool.Select()
				if err != nil {
					return nil, err
				}
				endpoint = next
				endpointRetryCount = 0
			}

			delay := EffectiveDelay(attempt, t.retryLimit, t.delayLimit, minDelay, t.fluctuate, t.rnd)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	if lastErr != nil {
		return nil, fmt.Errorf("%w: %v", ErrRetryLimitReached, lastErr)
	}
	return nil, ErrRetryLimitReached
}

func (t *Transport) doRequest(ctx context.Context, endpoint, method string, params interface{}) (result json.RawMessage, statusCode int, transportErr, rpcErr error, kind FailureKind) {
	body, err := json.Marshal(map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      "agent",
		"method":  method,
		"params":  params,
	})
	if err != nil {
		return nil, 0, err, nil, FailurePayloadSerialize
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, 0, err, nil, FailurePayloadSerialize
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, 0, err, nil, FailureContextCanceled
		}
		return nil, 0, err, nil, FailurePayloadSend
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, err, nil, FailurePayloadReceive
	}

	if resp.StatusCode >= 300 {
		return nil, resp.StatusCode, fmt.Errorf("unexpected status %d", resp.StatusCode), nil, ClassifyHTTPStatus(resp.StatusCode)
	}

	var envelope rpcEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, resp.StatusCode, err, nil, FailurePayloadParse
	}
	if envelope.Error != nil {
		return nil, resp.StatusCode, nil, envelope.Error, FailureHandlerLogic
	}

	return envelope.Result, resp.StatusCode, nil, nil, 0
}

// EndpointStatus exposes the live health of configured endpoints for
// diagnostics/logging.
func (t *Transport) EndpointStatus() []EndpointHealth {
	return t.pool.EndpointStatus()
}

func firstNonNil(errs ...error) error {
	for _, e := range errs {
		if e != nil {
			return e
		}
	}
	return nil
}
