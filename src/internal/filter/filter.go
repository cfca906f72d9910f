// Package filter applies regex include/exclude stages to entries before a
// sink sees them.
package filter

import (
	"fmt"
	"regexp"
	"sync/atomic"

	"logsmith/src/internal/config"
	"logsmith/src/internal/core"

	"github.com/lixenwraith/log"
)

// Filter is one regex stage
type Filter struct {
	kind     string
	logic    string
	patterns []*regexp.Regexp
	logger   *log.Logger

	processed atomic.Uint64
	matched   atomic.Uint64
	dropped   atomic.Uint64
}

// New compiles opts. Type defaults to include and logic to or.
func New(opts config.FilterOptions, logger *log.Logger) (*Filter, error) {
	if opts.Type == "" {
		opts.Type = config.FilterTypeInclude
	}
	if opts.Logic == "" {
		opts.Logic = config.FilterLogicOr
	}

	f := &Filter{
		kind:     opts.Type,
		logic:    opts.Logic,
		patterns: make([]*regexp.Regexp, 0, len(opts.Patterns)),
		logger:   logger,
	}
	for i, pattern := range opts.Patterns {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid regex pattern[%d] '%s': %w", i, pattern, err)
		}
		f.patterns = append(f.patterns, re)
	}
	return f, nil
}

// Subject is the text patterns run against
func Subject(entry core.Entry) string {
	text := entry.Level.String() + " " + entry.Message
	if entry.Source != "" {
		text = entry.Source + " " + text
	}
	return text
}

// Apply reports whether the entry passes this stage
func (f *Filter) Apply(entry core.Entry) bool {
	f.processed.Add(1)
	if len(f.patterns) == 0 {
		return true
	}

	matched := f.matches(Subject(entry))
	if matched {
		f.matched.Add(1)
	}

	pass := matched
	if f.kind == config.FilterTypeExclude {
		pass = !matched
	}
	if !pass {
		f.dropped.Add(1)
	}
	return pass
}

func (f *Filter) matches(text string) bool {
	if f.logic == config.FilterLogicAnd {
		for _, re := range f.patterns {
			if !re.MatchString(text) {
				return false
			}
		}
		return true
	}
	for _, re := range f.patterns {
		if re.MatchString(text) {
			return true
		}
	}
	return false
}

type Stats struct {
	Type      string `json:"type"`
	Logic     string `json:"logic"`
	Patterns  int    `json:"patterns"`
	Processed uint64 `json:"processed"`
	Matched   uint64 `json:"matched"`
	Dropped   uint64 `json:"dropped"`
}

func (f *Filter) Stats() Stats {
	return Stats{
		Type:      f.kind,
		Logic:     f.logic,
		Patterns:  len(f.patterns),
		Processed: f.processed.Load(),
		Matched:   f.matched.Load(),
		Dropped:   f.dropped.Load(),
	}
}
