package filter

import (
	"fmt"
	"sync/atomic"

	"logsmith/src/internal/config"
	"logsmith/src/internal/core"

	"github.com/lixenwraith/log"
)

// Chain runs every stage in order; an entry must pass all of them
type Chain struct {
	filters []*Filter
	logger  *log.Logger

	processed atomic.Uint64
	passed    atomic.Uint64
}

// NewChain compiles the stages of one sink. It returns nil, nil when there
// are no stages so callers can skip filtering entirely.
func NewChain(stages []config.FilterOptions, logger *log.Logger) (*Chain, error) {
	if len(stages) == 0 {
		return nil, nil
	}

	chain := &Chain{
		filters: make([]*Filter, 0, len(stages)),
		logger:  logger,
	}
	for i, opts := range stages {
		f, err := New(opts, logger)
		if err != nil {
			return nil, fmt.Errorf("filter[%d]: %w", i, err)
		}
		chain.filters = append(chain.filters, f)
	}

	logger.Debug("msg", "Filter chain created",
		"component", "filter_chain",
		"filter_count", len(stages))
	return chain, nil
}

// Apply is safe on a nil chain, which passes everything
func (c *Chain) Apply(entry core.Entry) bool {
	if c == nil {
		return true
	}
	c.processed.Add(1)

	for i, f := range c.filters {
		if !f.Apply(entry) {
			c.logger.Debug("msg", "Entry filtered out",
				"component", "filter_chain",
				"filter_index", i,
				"filter_type", f.kind,
				"correlation_id", entry.CorrelationID)
			return false
		}
	}
	c.passed.Add(1)
	return true
}

type ChainStats struct {
	Processed uint64  `json:"processed"`
	Passed    uint64  `json:"passed"`
	Filters   []Stats `json:"filters"`
}

// Stats returns nil for a nil chain
func (c *Chain) Stats() *ChainStats {
	if c == nil {
		return nil
	}
	stats := &ChainStats{
		Processed: c.processed.Load(),
		Passed:    c.passed.Load(),
		Filters:   make([]Stats, len(c.filters)),
	}
	for i, f := range c.filters {
		stats.Filters[i] = f.Stats()
	}
	return stats
}
