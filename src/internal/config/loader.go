package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	lconfig "github.com/lixenwraith/config"
)

// Defaults mirrors the behaviour of a facility created without configuration:
// console on, monthly archiving on, level debug
func Defaults() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level:           "debug",
			LogPath:         "./log",
			LogToConsole:    true,
			ArchiveMonthly:  true,
			BufferSize:      1000,
			FlushIntervalMS: 1000,
			Console: ConsoleSinkOptions{
				Target: "stdout",
				Color:  true,
				Format: FormatOptions{Type: "text", Layout: "console"},
			},
			File: FileSinkOptions{
				Compress: true,
				Format:   FormatOptions{Type: "text", Layout: "file"},
			},
			Database: DatabaseSinkOptions{
				Driver:    "sqlite",
				Migrate:   true,
				BatchSize: 100,
			},
			Trace: TraceSinkOptions{
				Backlog: 200,
				Format:  FormatOptions{Type: "text", Layout: "trace"},
				HTTP: TraceHTTPOptions{
					Host:        "127.0.0.1",
					Port:        8088,
					StreamPath:  "/trace",
					StatusPath:  "/status",
					MetricsPath: "/metrics",
					Auth:        TraceAuthOptions{Type: "none"},
				},
				TCP: TraceTCPOptions{
					Host: "127.0.0.1",
					Port: 8089,
				},
			},
		},
		Diagnostics: DiagnosticsConfig{
			Output:           "console",
			Level:            "warn",
			ReportsPerSecond: 1,
			Burst:            5,
		},
	}
}

// LoadWithCLI builds the configuration from defaults, the TOML file, LOGSMITH_
// environment variables and CLI arguments, highest priority last in that list
func LoadWithCLI(cliArgs []string) (*Config, *lconfig.Config, error) {
	configPath := GetConfigPath()

	lcfg, err := lconfig.NewBuilder().
		WithDefaults(Defaults()).
		WithEnvPrefix("LOGSMITH_").
		WithFile(configPath).
		WithArgs(cliArgs).
		WithEnvTransform(customEnvTransform).
		WithSources(
			lconfig.SourceCLI,
			lconfig.SourceEnv,
			lconfig.SourceFile,
			lconfig.SourceDefault,
		).
		Build()

	if err != nil {
		// A missing file is fine, defaults and env still apply
		if !strings.Contains(err.Error(), "not found") {
			return nil, nil, fmt.Errorf("failed to load config: %w", err)
		}
	}

	finalConfig := &Config{}
	if err := lcfg.Scan(finalConfig, ""); err != nil {
		return nil, nil, fmt.Errorf("failed to scan config: %w", err)
	}

	return finalConfig, lcfg, finalConfig.Validate()
}

func customEnvTransform(path string) string {
	env := strings.ReplaceAll(path, ".", "_")
	env = strings.ToUpper(env)
	env = "LOGSMITH_" + env
	return env
}

// GetConfigPath resolves the config file from LOGSMITH_CONFIG_FILE and
// LOGSMITH_CONFIG_DIR, falling back to ~/.config/logsmith.toml
func GetConfigPath() string {
	if configFile := os.Getenv("LOGSMITH_CONFIG_FILE"); configFile != "" {
		if filepath.IsAbs(configFile) {
			return configFile
		}
		if configDir := os.Getenv("LOGSMITH_CONFIG_DIR"); configDir != "" {
			return filepath.Join(configDir, configFile)
		}
		return configFile
	}

	if configDir := os.Getenv("LOGSMITH_CONFIG_DIR"); configDir != "" {
		return filepath.Join(configDir, "logsmith.toml")
	}

	if homeDir, err := os.UserHomeDir(); err == nil {
		return filepath.Join(homeDir, ".config", "logsmith.toml")
	}

	return "logsmith.toml"
}
