package config

import "fmt"

// ConfigError reports a bad or missing configuration value. It is fatal to
// facility initialization.
type ConfigError struct {
	Key    string
	Reason string
	Err    error
}

func (e *ConfigError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("config %s: %s: %v", e.Key, e.Reason, e.Err)
	}
	return fmt.Sprintf("config %s: %s", e.Key, e.Reason)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}
