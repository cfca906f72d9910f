package config

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"logsmith/src/internal/core"

	"github.com/go-playground/validator/v10"
	lconfig "github.com/lixenwraith/config"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func structValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New()
	})
	return validate
}

// Validate checks field ranges, level names and the options of every enabled
// sink. All failures are *ConfigError.
func (c *Config) Validate() error {
	if c == nil {
		return &ConfigError{Key: "config", Reason: "config is nil"}
	}

	if err := structValidator().Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return &ConfigError{
				Key:    fe.Namespace(),
				Reason: fmt.Sprintf("failed '%s' check (value: %v)", fe.Tag(), fe.Value()),
			}
		}
		return &ConfigError{Key: "config", Reason: "invalid", Err: err}
	}

	levels := []struct {
		key      string
		value    string
		optional bool
	}{
		{"logging.level", c.Logging.Level, false},
		{"logging.console.min_level", c.Logging.Console.MinLevel, true},
		{"logging.file.min_level", c.Logging.File.MinLevel, true},
		{"logging.database.min_level", c.Logging.Database.MinLevel, true},
		{"logging.trace.min_level", c.Logging.Trace.MinLevel, true},
		{"diagnostics.level", c.Diagnostics.Level, true},
	}
	for _, l := range levels {
		if l.optional && l.value == "" {
			continue
		}
		if _, err := core.ParseLevel(l.value); err != nil {
			return &ConfigError{Key: l.key, Reason: "invalid level", Err: err}
		}
	}

	sinkFilters := []struct {
		kind    SinkKind
		filters []FilterOptions
	}{
		{SinkConsole, c.Logging.Console.Filters},
		{SinkFile, c.Logging.File.Filters},
		{SinkDatabase, c.Logging.Database.Filters},
		{SinkTrace, c.Logging.Trace.Filters},
	}
	for _, sf := range sinkFilters {
		if err := validateFilters(sf.kind, sf.filters); err != nil {
			return err
		}
	}

	if c.Logging.LogToFile {
		if err := validateFileName(c.LogName()); err != nil {
			return err
		}
	}

	if c.Logging.LogToDatabase {
		if err := lconfig.NonEmpty(c.connectionString()); err != nil {
			return &ConfigError{Key: "logging.connection_string", Reason: "required when log_to_database is set", Err: err}
		}
		if err := lconfig.NonEmpty(c.Logging.Database.Driver); err != nil {
			return &ConfigError{Key: "logging.database.driver", Reason: "required when log_to_database is set", Err: err}
		}
	}

	if c.Logging.LogToTrace {
		if err := validateTrace(&c.Logging.Trace); err != nil {
			return err
		}
	}

	return nil
}

func validateFilters(kind SinkKind, filters []FilterOptions) error {
	for i, f := range filters {
		for j, pattern := range f.Patterns {
			if _, err := regexp.Compile(pattern); err != nil {
				return &ConfigError{
					Key:    fmt.Sprintf("logging.%s.filters[%d].patterns[%d]", kind, i, j),
					Reason: "invalid regex",
					Err:    err,
				}
			}
		}
	}
	return nil
}

func validateFileName(name string) error {
	if strings.ContainsAny(name, `/\`) {
		return &ConfigError{Key: "logging.file_name", Reason: fmt.Sprintf("log name %q must not contain path separators", name)}
	}
	return nil
}

func validateTrace(opts *TraceSinkOptions) error {
	if opts.HTTP.Enabled {
		if err := lconfig.Port(opts.HTTP.Port); err != nil {
			return &ConfigError{Key: "logging.trace.http.port", Reason: "invalid port", Err: err}
		}
		for key, path := range map[string]string{
			"logging.trace.http.stream_path":  opts.HTTP.StreamPath,
			"logging.trace.http.status_path":  opts.HTTP.StatusPath,
			"logging.trace.http.metrics_path": opts.HTTP.MetricsPath,
		} {
			if path != "" && !strings.HasPrefix(path, "/") {
				return &ConfigError{Key: key, Reason: "must start with /"}
			}
		}
		if err := validateTraceAuth(&opts.HTTP.Auth); err != nil {
			return err
		}
	}

	if opts.TCP.Enabled {
		if err := lconfig.Port(opts.TCP.Port); err != nil {
			return &ConfigError{Key: "logging.trace.tcp.port", Reason: "invalid port", Err: err}
		}
		if opts.HTTP.Enabled && opts.HTTP.Port == opts.TCP.Port {
			return &ConfigError{Key: "logging.trace.tcp.port", Reason: fmt.Sprintf("port %d already used by the trace http server", opts.TCP.Port)}
		}
	}
	return nil
}

func validateTraceAuth(auth *TraceAuthOptions) error {
	switch auth.Type {
	case "", "none":
		return nil
	case "basic":
		if len(auth.Users) == 0 {
			return &ConfigError{Key: "logging.trace.http.auth.users", Reason: "basic auth requires at least one user"}
		}
		for i, user := range auth.Users {
			if err := lconfig.NonEmpty(user.Username); err != nil {
				return &ConfigError{Key: fmt.Sprintf("logging.trace.http.auth.users[%d].username", i), Reason: "required", Err: err}
			}
			if !strings.HasPrefix(user.PasswordHash, "$argon2id$") {
				return &ConfigError{Key: fmt.Sprintf("logging.trace.http.auth.users[%d].password_hash", i), Reason: "expected an argon2id PHC hash"}
			}
		}
	case "bearer":
		if len(auth.Tokens) == 0 && auth.JWTSigningKey == "" {
			return &ConfigError{Key: "logging.trace.http.auth", Reason: "bearer auth requires tokens or jwt_signing_key"}
		}
	}
	return nil
}
