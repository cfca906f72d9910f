package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"unicode"

	lconfig "github.com/lixenwraith/config"
)

// Lookup is the minimal contract of an external settings store
type Lookup func(key string) (string, bool)

// Keys understood by FromLookup
const (
	KeyApplicationName  = "ApplicationName"
	KeyLevel            = "Logging.Level"
	KeyFileName         = "Logging.FileName"
	KeyLogPath          = "Logging.LogPath"
	KeyConnectionString = "Logging.ConnectionString"
	KeyDatabase         = "Logging.Database"
	KeyLogToConsole     = "Logging.LogToConsole"
	KeyLogToFile        = "Logging.LogToFile"
	KeyLogToDatabase    = "Logging.LogToDatabase"
	KeyLogToTrace       = "Logging.LogToTrace"
	KeyArchiveMonthly   = "Logging.ArchiveMonthly"
)

// FromLookup builds a configuration from a key/value store. Unset keys keep
// their defaults; a file name or log path switches file logging on.
func FromLookup(lookup Lookup) (*Config, error) {
	cfg := Defaults()
	if lookup == nil {
		return cfg, cfg.Validate()
	}

	get := func(key string) (string, bool) {
		v, ok := lookup(key)
		v = strings.TrimSpace(v)
		return v, ok && v != ""
	}

	if v, ok := get(KeyApplicationName); ok {
		cfg.ApplicationName = v
	}
	if v, ok := get(KeyLevel); ok {
		cfg.Logging.Level = v
	}

	fileName, hasFile := get(KeyFileName)
	logPath, hasPath := get(KeyLogPath)
	if hasFile || hasPath {
		cfg.Logging.LogToFile = true
	}
	if hasFile {
		cfg.Logging.FileName = fileName
	}
	if hasPath {
		cfg.Logging.LogPath = logPath
	}

	if v, ok := get(KeyConnectionString); ok {
		cfg.Logging.ConnectionString = v
	} else if v, ok := get(KeyDatabase); ok {
		cfg.Logging.ConnectionString = v
	}

	flags := []struct {
		key string
		dst *bool
	}{
		{KeyLogToConsole, &cfg.Logging.LogToConsole},
		{KeyLogToFile, &cfg.Logging.LogToFile},
		{KeyLogToDatabase, &cfg.Logging.LogToDatabase},
		{KeyLogToTrace, &cfg.Logging.LogToTrace},
		{KeyArchiveMonthly, &cfg.Logging.ArchiveMonthly},
	}
	for _, f := range flags {
		v, ok := get(f.key)
		if !ok {
			continue
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			return nil, &ConfigError{Key: f.key, Reason: "expected a boolean", Err: err}
		}
		*f.dst = b
	}

	return cfg, cfg.Validate()
}

// MapLookup serves keys from a map
func MapLookup(values map[string]string) Lookup {
	return func(key string) (string, bool) {
		v, ok := values[key]
		return v, ok
	}
}

// EnvLookup maps Logging.FileName to <PREFIX>LOGGING_FILE_NAME
func EnvLookup(prefix string) Lookup {
	return func(key string) (string, bool) {
		return os.LookupEnv(prefix + strings.ToUpper(strings.ReplaceAll(KeyPath(key), ".", "_")))
	}
}

// LconfigLookup reads keys from a loaded lixenwraith/config instance using the
// TOML paths of Config, Logging.FileName is logging.file_name
func LconfigLookup(cfg *lconfig.Config) Lookup {
	return func(key string) (string, bool) {
		if cfg == nil {
			return "", false
		}
		v, ok := cfg.Get(KeyPath(key))
		if !ok || v == nil {
			return "", false
		}
		return fmt.Sprint(v), true
	}
}

// KeyPath converts a dotted CamelCase key to its snake_case config path
func KeyPath(key string) string {
	parts := strings.Split(key, ".")
	for i, p := range parts {
		parts[i] = snake(p)
	}
	return strings.Join(parts, ".")
}

func snake(s string) string {
	runes := []rune(s)
	var b strings.Builder
	for i, r := range runes {
		if unicode.IsUpper(r) {
			if i > 0 {
				prev := runes[i-1]
				nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
				if unicode.IsLower(prev) || unicode.IsDigit(prev) || (unicode.IsUpper(prev) && nextLower) {
					b.WriteByte('_')
				}
			}
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
