package config

import (
	"fmt"
	"strings"

	"logsmith/src/internal/core"
)

// SinkKind tags the variant held by a SinkSpec
type SinkKind string

const (
	SinkConsole  SinkKind = "console"
	SinkFile     SinkKind = "file"
	SinkDatabase SinkKind = "database"
	SinkTrace    SinkKind = "trace"
)

// SinkSpec is the resolved configuration of one sink. Exactly one of the
// option pointers matching Kind is set.
type SinkSpec struct {
	Kind     SinkKind
	Enabled  bool
	MinLevel core.Level

	Console  *ConsoleSinkOptions
	File     *FileSinkOptions
	Database *DatabaseSinkOptions
	Trace    *TraceSinkOptions
}

// Threshold returns the parsed global level
func (c *Config) Threshold() core.Level {
	level, err := core.ParseLevel(c.Logging.Level)
	if err != nil {
		return core.LevelOff
	}
	return level
}

// LogName is the file name if set, else the application name, else "Log"
func (c *Config) LogName() string {
	if name := strings.TrimSpace(c.Logging.FileName); name != "" {
		return name
	}
	if name := strings.TrimSpace(c.ApplicationName); name != "" {
		return name
	}
	return core.DefaultLogName
}

func (c *Config) connectionString() string {
	if c.Logging.Database.ConnectionString != "" {
		return c.Logging.Database.ConnectionString
	}
	return c.Logging.ConnectionString
}

// SinkSpecs enumerates the enabled sinks in registration order: console,
// file, database, trace. Each spec carries the global level unless its own
// min_level overrides it, and is a copy independent of c.
func (c *Config) SinkSpecs() ([]SinkSpec, error) {
	threshold, err := core.ParseLevel(c.Logging.Level)
	if err != nil {
		return nil, &ConfigError{Key: "logging.level", Reason: "invalid level", Err: err}
	}

	builders := []struct {
		enabled bool
		kind    SinkKind
		build   func() SinkSpec
	}{
		{c.Logging.LogToConsole, SinkConsole, c.consoleSpec},
		{c.Logging.LogToFile, SinkFile, c.fileSpec},
		{c.Logging.LogToDatabase, SinkDatabase, c.databaseSpec},
		{c.Logging.LogToTrace, SinkTrace, c.traceSpec},
	}

	specs := make([]SinkSpec, 0, len(builders))
	for _, b := range builders {
		if !b.enabled {
			continue
		}
		spec := b.build()
		spec.Kind = b.kind
		spec.Enabled = true
		spec.MinLevel = threshold
		if override := spec.minLevelOverride(); override != "" {
			level, err := core.ParseLevel(override)
			if err != nil {
				return nil, &ConfigError{Key: fmt.Sprintf("logging.%s.min_level", b.kind), Reason: "invalid level", Err: err}
			}
			spec.MinLevel = level
		}
		specs = append(specs, spec)
	}
	return specs, nil
}

func (s SinkSpec) minLevelOverride() string {
	switch s.Kind {
	case SinkConsole:
		return s.Console.MinLevel
	case SinkFile:
		return s.File.MinLevel
	case SinkDatabase:
		return s.Database.MinLevel
	case SinkTrace:
		return s.Trace.MinLevel
	}
	return ""
}

// Filters returns the filter stages of the sink, empty when it has none
func (s SinkSpec) Filters() []FilterOptions {
	switch s.Kind {
	case SinkConsole:
		return s.Console.Filters
	case SinkFile:
		return s.File.Filters
	case SinkDatabase:
		return s.Database.Filters
	case SinkTrace:
		return s.Trace.Filters
	}
	return nil
}

func copyFilters(in []FilterOptions) []FilterOptions {
	if len(in) == 0 {
		return nil
	}
	out := make([]FilterOptions, len(in))
	for i, f := range in {
		f.Patterns = append([]string(nil), f.Patterns...)
		out[i] = f
	}
	return out
}

func (c *Config) bufferSize(own int64) int64 {
	if own > 0 {
		return own
	}
	if c.Logging.BufferSize > 0 {
		return c.Logging.BufferSize
	}
	return core.DefaultBufferSize
}

func (c *Config) consoleSpec() SinkSpec {
	opts := c.Logging.Console
	opts.Filters = copyFilters(opts.Filters)
	opts.BufferSize = c.bufferSize(opts.BufferSize)
	if opts.Target == "" {
		opts.Target = "stdout"
	}
	if opts.Format.Layout == "" {
		opts.Format.Layout = "console"
	}
	return SinkSpec{Console: &opts}
}

func (c *Config) fileSpec() SinkSpec {
	opts := c.Logging.File
	opts.Filters = copyFilters(opts.Filters)
	opts.BufferSize = c.bufferSize(opts.BufferSize)
	if opts.Directory == "" {
		opts.Directory = c.Logging.LogPath
	}
	if opts.Name == "" {
		opts.Name = c.LogName()
	}
	opts.ArchiveMonthly = opts.ArchiveMonthly || c.Logging.ArchiveMonthly
	if opts.Format.Layout == "" {
		opts.Format.Layout = "file"
	}
	return SinkSpec{File: &opts}
}

func (c *Config) databaseSpec() SinkSpec {
	opts := c.Logging.Database
	opts.Filters = copyFilters(opts.Filters)
	opts.BufferSize = c.bufferSize(opts.BufferSize)
	opts.ConnectionString = c.connectionString()
	if opts.LogName == "" {
		opts.LogName = c.LogName()
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = core.DefaultBatchSize
	}
	return SinkSpec{Database: &opts}
}

func (c *Config) traceSpec() SinkSpec {
	opts := c.Logging.Trace
	opts.Filters = copyFilters(opts.Filters)
	opts.BufferSize = c.bufferSize(opts.BufferSize)
	opts.HTTP.Auth.Users = append([]BasicUser(nil), opts.HTTP.Auth.Users...)
	opts.HTTP.Auth.Tokens = append([]string(nil), opts.HTTP.Auth.Tokens...)
	if opts.Format.Layout == "" {
		opts.Format.Layout = "trace"
	}
	return SinkSpec{Trace: &opts}
}
