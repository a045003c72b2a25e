package rpc

import (
	"math/rand"
	"sync"
	"time"
)

// EndpointConfig describes one configured RPC endpoint: its relative
// selection weight and how many retries on that endpoint it tolerates
// before the endpoint is marked failed (spec.md §4.1, §6).
type EndpointConfig struct {
	URL                string
	Weight             float64
	MaxEndpointRetries int
}

// endpointState tracks the live health of one endpoint.
type endpointState struct {
	cfg             EndpointConfig
	failed          bool
	consecutiveFail int
	lastFailureAt   time.Time
}

// EndpointPool implements the endpoint-selection algorithm of spec.md
// §4.1: weighted-random selection among non-failed endpoints; when every
// endpoint has failed, the failure set is cleared and selection resumes
// from the full set.
type EndpointPool struct {
	mu    sync.Mutex
	rnd   *rand.Rand
	items []*endpointState
}

// NewEndpointPool builds a pool from the given configs. The order of cfgs
// is preserved for EndpointStatus reporting.
func NewEndpointPool(cfgs []EndpointConfig, rnd *rand.Rand) *EndpointPool {
	items := make([]*endpointState, 0, len(cfgs))
	for _, c := range cfgs {
		items = append(items, &endpointState{cfg: c})
	}
	return &EndpointPool{rnd: rnd, items: items}
}

// Select returns a weighted-random non-failed endpoint. If every endpoint
// is marked failed, the failure set is cleared first (spec.md §4.1) so the
// loop can begin again.
func (p *EndpointPool) Select() (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.items) == 0 {
		return "", ErrAllEndpointsExhausted
	}

	if p.allFailedLocked() {
		for _, e := range p.items {
			e.failed = false
		}
	}

	var total float64
	var healthy []*endpointState
	for _, e := range p.items {
		if !e.failed {
			healthy = append(healthy, e)
			total += e.cfg.Weight
		}
	}
	if len(healthy) == 0 {
		return "", ErrAllEndpointsExhausted
	}

	draw := p.rnd.Float64() * total
	var cursor float64
	for _, e := range healthy {
		cursor += e.cfg.Weight
		if draw <= cursor {
			return e.cfg.URL, nil
		}
	}
	return healthy[len(healthy)-1].cfg.URL, nil
}

func (p *EndpointPool) allFailedLocked() bool {
	for _, e := range p.items {
		if !e.failed {
			return false
		}
	}
	return true
}

// MaxRetriesFor returns the configured MaxEndpointRetries for url, or 0 if
// url is unknown.
func (p *EndpointPool) MaxRetriesFor(url string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, e := range p.items {
		if e.cfg.URL == url {
			return e.cfg.MaxEndpointRetries
		}
	}
	return 0
}

// MarkFailed marks url as failed, excluding it from Select until the
// failure set is cleared (either explicitly or because every endpoint
// became failed).
func (p *EndpointPool) MarkFailed(url string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, e := range p.items {
		if e.cfg.URL == url {
			e.failed = true
			e.consecutiveFail++
			e.lastFailureAt = time.Now()
			return
		}
	}
}

// RecordSuccess clears url's failed flag and resets its failure count.
func (p *EndpointPool) RecordSuccess(url string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, e := range p.items {
		if e.cfg.URL == url {
			e.failed = false
			e.consecutiveFail = 0
			return
		}
	}
}

// EndpointHealth is a point-in-time health report for one endpoint.
type EndpointHealth struct {
	URL             string
	ConsecutiveFail int
	Failed          bool
	LastFailureAt   time.Time
}

// EndpointStatus reports the health of every configured endpoint, in
// configuration order.
func (p *EndpointPool) EndpointStatus() []EndpointHealth {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]EndpointHealth, 0, len(p.items))
	for _, e := range p.items {
		out = append(out, EndpointHealth{
			URL:             e.cfg.URL,
			ConsecutiveFail: e.consecutiveFail,
			Failed:          e.failed,
			LastFailureAt:   e.lastFailureAt,
		})
	}
	return out
}
