package events

import (
	"encoding/json"
	"time"

	"github.com/rs/zerolog"
)

// EventType represents different event types
type EventType string

const (
	ErrorOccurred EventType = "ERROR_OCCURRED"

	// Pool/graph lifecycle events
	PoolSnapshotRefreshed EventType = "POOL_SNAPSHOT_REFRESHED"
	GraphRebuilt          EventType = "GRAPH_REBUILT"

	// Rate recording events
	RateRecorded EventType = "RATE_RECORDED"

	// Prediction evaluation events
	ForecastRecorded     EventType = "FORECAST_RECORDED"
	PredictionEvaluated  EventType = "PREDICTION_EVALUATED"
	ConfidenceRecomputed EventType = "CONFIDENCE_RECOMPUTED"

	// Trade execution events
	SwapSubmitted      EventType = "SWAP_SUBMITTED"
	SwapFailed         EventType = "SWAP_FAILED"
	RebalanceDecided   EventType = "REBALANCE_DECIDED"
	PortfolioSnapshot  EventType = "PORTFOLIO_SNAPSHOT_RECORDED"

	// Harvest events
	HarvestSkimmed EventType = "HARVEST_SKIMMED"
	HarvestSkipped EventType = "HARVEST_SKIPPED"

	// RPC transport events
	EndpointSwitched EventType = "RPC_ENDPOINT_SWITCHED"
)

// Event represents a system event
type Event struct {
	Type      EventType              `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Data      map[string]interface{} `json:"data"`
	Module    string                 `json:"module"`
}

// Manager handles event emission and logging
type Manager struct {
	log zerolog.Logger
}

// NewManager creates a new event manager
func NewManager(log zerolog.Logger) *Manager {
	return &Manager{
		log: log.With().Str("service", "events").Logger(),
	}
}

// Emit emits an event
func (m *Manager) Emit(eventType EventType, module string, data map[string]interface{}) {
	event := Event{
		Type:      eventType,
		Timestamp: time.Now(),
		Data:      data,
		Module:    module,
	}

	// Log event
	eventJSON, _ := json.Marshal(event)
	m.log.Info().
		Str("event_type", string(eventType)).
		Str("module", module).
		RawJSON("event", eventJSON).
		Msg("Event emitted")
}

// EmitError emits an error event
func (m *Manager) EmitError(module string, err error, context map[string]interface{}) {
	data := map[string]interface{}{
		"error":   err.Error(),
		"context": context,
	}
	m.Emit(ErrorOccurred, module, data)
}
