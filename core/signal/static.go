package signal

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/gridshift/carbonsched/core/model"
)

// StaticProvider serves a fixed set of signals from memory. It backs
// tests and simulations where forecast data is prepared up front.
type StaticProvider struct {
	mu   sync.RWMutex
	data map[model.Region][]model.GridSignal
}

// NewStaticProvider returns an empty StaticProvider.
func NewStaticProvider() *StaticProvider {
	return &StaticProvider{data: make(map[model.Region][]model.GridSignal)}
}

// Add appends signals, keeping each region's sequence ordered.
func (p *StaticProvider) Add(signals ...model.GridSignal) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, s := range signals {
		p.data[s.Region] = append(p.data[s.Region], s)
	}
	for r := range p.data {
		sort.Slice(p.data[r], func(i, j int) bool {
			return p.data[r][i].Timestamp.Before(p.data[r][j].Timestamp)
		})
	}
}

// Fetch returns the stored signals within [from, to). An empty result
// is not an error; it simply means no forecast coverage.
func (p *StaticProvider) Fetch(_ context.Context, region model.Region, from, to time.Time) ([]model.GridSignal, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	var out []model.GridSignal
	for _, s := range p.data[region] {
		if s.Timestamp.Before(from) || !s.Timestamp.Before(to) {
			continue
		}
		out = append(out, s)
	}
	return out, nil
}
