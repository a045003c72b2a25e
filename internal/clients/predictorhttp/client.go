// Package predictorhttp is the concrete predictor.Predictor adapter: a
// thin JSON-over-HTTP client to an external forecasting microservice,
// following the same envelope-and-post shape internal/clients/tradernet
// once used for its trading microservice.
package predictorhttp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/nearswap/agent/internal/predictor"
)

// Client calls a forecasting microservice's /predict endpoint.
type Client struct {
	baseURL string
	http    *http.Client
	log     zerolog.Logger
}

var _ predictor.Predictor = (*Client)(nil)

// NewClient creates a new predictor microservice client.
func NewClient(baseURL string, log zerolog.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 30 * time.Second},
		log:     log.With().Str("client", "predictor").Logger(),
	}
}

type sampleWire struct {
	Timestamp int64  `json:"timestamp"`
	Value     string `json:"value"`
}

type predictRequest struct {
	History       []sampleWire `json:"history"`
	ForecastUntil int64        `json:"forecast_until"`
}

type forecastWire struct {
	Timestamp           int64 `json:"timestamp"`
	Value               string `json:"value"`
	ConfidenceIntervals []struct {
		Level string `json:"level"`
		Lower string `json:"lower"`
		Upper string `json:"upper"`
	} `json:"confidence_intervals,omitempty"`
}

type predictResponse struct {
	Success bool           `json:"success"`
	Error   *string        `json:"error"`
	Forecasts []forecastWire `json:"forecasts"`
	Metrics   map[string]string `json:"metrics,omitempty"`
}

// Predict implements predictor.Predictor.
func (c *Client) Predict(ctx context.Context, history []predictor.Sample, forecastUntil time.Time) (predictor.Result, error) {
	wireHistory := make([]sampleWire, len(history))
	for i, s := range history {
		wireHistory[i] = sampleWire{Timestamp: s.Timestamp.Unix(), Value: s.Value.String()}
	}

	body, err := json.Marshal(predictRequest{History: wireHistory, ForecastUntil: forecastUntil.Unix()})
	if err != nil {
		return predictor.Result{}, fmt.Errorf("marshal predict request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/predict", bytes.NewReader(body))
	if err != nil {
		return predictor.Result{}, fmt.Errorf("build predict request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return predictor.Result{}, fmt.Errorf("predict request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return predictor.Result{}, fmt.Errorf("read predict response: %w", err)
	}

	var parsed predictResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return predictor.Result{}, fmt.Errorf("parse predict response: %w", err)
	}
	if !parsed.Success {
		msg := "unknown error"
		if parsed.Error != nil {
			msg = *parsed.Error
		}
		return predictor.Result{}, fmt.Errorf("predictor error: %s", msg)
	}

	forecasts := make([]predictor.Forecast, len(parsed.Forecasts))
	for i, f := range parsed.Forecasts {
		value, err := decimal.NewFromString(f.Value)
		if err != nil {
			return predictor.Result{}, fmt.Errorf("parse forecast value %q: %w", f.Value, err)
		}
		intervals := make([]predictor.ConfidenceInterval, len(f.ConfidenceIntervals))
		for j, ci := range f.ConfidenceIntervals {
			level, err := decimal.NewFromString(ci.Level)
			if err != nil {
				return predictor.Result{}, fmt.Errorf("parse confidence level %q: %w", ci.Level, err)
			}
			lower, err := decimal.NewFromString(ci.Lower)
			if err != nil {
				return predictor.Result{}, fmt.Errorf("parse confidence lower %q: %w", ci.Lower, err)
			}
			upper, err := decimal.NewFromString(ci.Upper)
			if err != nil {
				return predictor.Result{}, fmt.Errorf("parse confidence upper %q: %w", ci.Upper, err)
			}
			intervals[j] = predictor.ConfidenceInterval{Level: level, Lower: lower, Upper: upper}
		}
		forecasts[i] = predictor.Forecast{
			Timestamp:           time.Unix(f.Timestamp, 0).UTC(),
			Value:               value,
			ConfidenceIntervals: intervals,
		}
	}

	metrics := make(map[string]decimal.Decimal, len(parsed.Metrics))
	for k, v := range parsed.Metrics {
		d, err := decimal.NewFromString(v)
		if err != nil {
			return predictor.Result{}, fmt.Errorf("parse metric %q: %w", k, err)
		}
		metrics[k] = d
	}

	return predictor.Result{Forecasts: forecasts, Metrics: metrics}, nil
}
