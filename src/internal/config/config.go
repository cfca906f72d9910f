package config

// Config is the complete facility configuration
type Config struct {
	ApplicationName string `toml:"application_name"`

	// Reload the CLI configuration when the TOML file changes
	ConfigAutoReload bool `toml:"config_auto_reload"`

	Logging     LoggingConfig     `toml:"logging"`
	Diagnostics DiagnosticsConfig `toml:"diagnostics"`
}

// LoggingConfig holds the global threshold, the sink switches and the
// per-sink option blocks
type LoggingConfig struct {
	// Global threshold: off, trace, debug, info, warn, error, fatal
	Level string `toml:"level" validate:"required"`

	// Log name, defaults to ApplicationName. An extension, if present, is kept
	// for the file sink.
	FileName string `toml:"file_name"`
	LogPath  string `toml:"log_path"`

	LogToConsole  bool `toml:"log_to_console"`
	LogToFile     bool `toml:"log_to_file"`
	LogToDatabase bool `toml:"log_to_database"`
	LogToTrace    bool `toml:"log_to_trace"`

	ArchiveMonthly   bool   `toml:"archive_monthly"`
	ConnectionString string `toml:"connection_string"`

	// Queue size per sink
	BufferSize int64 `toml:"buffer_size" validate:"min=1,max=1000000"`

	// Periodic flush of all sinks, 0 disables
	FlushIntervalMS int64 `toml:"flush_interval_ms" validate:"min=0"`

	Console  ConsoleSinkOptions  `toml:"console"`
	File     FileSinkOptions     `toml:"file"`
	Database DatabaseSinkOptions `toml:"database"`
	Trace    TraceSinkOptions    `toml:"trace"`
}

// FormatOptions selects and tunes the formatter of a sink
type FormatOptions struct {
	// text, json or raw
	Type string `toml:"type" validate:"omitempty,oneof=text json raw"`

	// Text layout: console, file or trace
	Layout string `toml:"layout" validate:"omitempty,oneof=console file trace"`

	// Custom text/template overriding the layout
	Template        string `toml:"template"`
	TimestampFormat string `toml:"timestamp_format"`

	// Insert machine name and identity after the source column
	IncludeHost bool `toml:"include_host"`

	Color  bool `toml:"-"`
	Pretty bool `toml:"pretty"`
}

const (
	FilterTypeInclude = "include"
	FilterTypeExclude = "exclude"
	FilterLogicOr     = "or"
	FilterLogicAnd    = "and"
)

// FilterOptions is one regex stage of a sink filter chain. Patterns match
// against "<source> <LEVEL> <message>".
type FilterOptions struct {
	Type     string   `toml:"type" validate:"omitempty,oneof=include exclude"`
	Logic    string   `toml:"logic" validate:"omitempty,oneof=or and"`
	Patterns []string `toml:"patterns"`
}

type ConsoleSinkOptions struct {
	// Overrides the global level for this sink when set
	MinLevel string `toml:"min_level"`

	// stdout, stderr or split (warn and above to stderr)
	Target string `toml:"target" validate:"omitempty,oneof=stdout stderr split"`

	// Colorize levels when writing to a terminal
	Color bool `toml:"color"`

	Format     FormatOptions `toml:"format"`
	BufferSize int64         `toml:"buffer_size" validate:"min=0"`

	// Regex stages applied before the sink sees an entry
	Filters []FilterOptions `toml:"filters" validate:"dive"`
}

type FileSinkOptions struct {
	MinLevel string `toml:"min_level"`

	// Filled from logging.log_path and the log name when empty
	Directory string `toml:"directory"`
	Name      string `toml:"name"`

	ArchiveMonthly bool `toml:"archive_monthly"`

	// Gzip archived files
	Compress bool `toml:"compress"`

	Format     FormatOptions `toml:"format"`
	BufferSize int64         `toml:"buffer_size" validate:"min=0"`

	Filters []FilterOptions `toml:"filters" validate:"dive"`
}

type DatabaseSinkOptions struct {
	MinLevel string `toml:"min_level"`

	// database/sql driver name: sqlite (modernc) or sqlite3 (cgo)
	Driver           string `toml:"driver"`
	ConnectionString string `toml:"connection_string"`

	// Named-parameter statement executed per entry. Parameters: :log_name,
	// :entry_date, :level, :message, :source, :tags, :machine_name, :identity,
	// :error_detail, :correlation_id, :url, :server_name
	Statement string `toml:"statement"`

	// Apply the bundled schema, sqlite drivers only
	Migrate bool `toml:"migrate"`

	BatchSize  int64 `toml:"batch_size" validate:"min=0,max=10000"`
	BufferSize int64 `toml:"buffer_size" validate:"min=0"`

	// Filled from the log name
	LogName string `toml:"log_name"`

	Filters []FilterOptions `toml:"filters" validate:"dive"`
}

type TraceSinkOptions struct {
	MinLevel string `toml:"min_level"`

	// Mirror trace lines to stderr
	Stderr bool `toml:"stderr"`

	// Lines kept for subscribers that connect late
	Backlog int64 `toml:"backlog" validate:"min=0,max=100000"`

	Format     FormatOptions    `toml:"format"`
	BufferSize int64            `toml:"buffer_size" validate:"min=0"`
	HTTP       TraceHTTPOptions `toml:"http"`
	TCP        TraceTCPOptions  `toml:"tcp"`

	Filters []FilterOptions `toml:"filters" validate:"dive"`
}

type TraceHTTPOptions struct {
	Enabled      bool             `toml:"enabled"`
	Host         string           `toml:"host"`
	Port         int64            `toml:"port"`
	StreamPath   string           `toml:"stream_path"`
	StatusPath   string           `toml:"status_path"`
	MetricsPath  string           `toml:"metrics_path"`
	WriteTimeout int64            `toml:"write_timeout_ms"`
	Auth         TraceAuthOptions `toml:"auth"`
	Limit        NetLimitOptions  `toml:"limit"`
}

type TraceTCPOptions struct {
	Enabled bool            `toml:"enabled"`
	Host    string          `toml:"host"`
	Port    int64           `toml:"port"`
	Limit   NetLimitOptions `toml:"limit"`
}

// NetLimitOptions caps what one trace server accepts. Zero disables a limit.
type NetLimitOptions struct {
	MaxConnections      int64 `toml:"max_connections" validate:"min=0"`
	MaxConnectionsPerIP int64 `toml:"max_connections_per_ip" validate:"min=0"`

	// Token bucket per client IP, applied to requests and new connections
	RequestsPerSecond float64 `toml:"requests_per_second" validate:"min=0"`
	BurstSize         int64   `toml:"burst_size" validate:"min=0"`
}

type TraceAuthOptions struct {
	// none, basic or bearer
	Type  string      `toml:"type" validate:"omitempty,oneof=none basic bearer"`
	Realm string      `toml:"realm"`
	Users []BasicUser `toml:"users"`

	// Static bearer tokens
	Tokens []string `toml:"tokens"`

	// HS256/384/512 key for bearer JWTs, empty disables JWT validation
	JWTSigningKey string `toml:"jwt_signing_key"`
	JWTIssuer     string `toml:"jwt_issuer"`
	JWTAudience   string `toml:"jwt_audience"`
}

type BasicUser struct {
	Username string `toml:"username"`
	// Argon2id PHC string, see `logsmith hash`
	PasswordHash string `toml:"password_hash"`
}

// DiagnosticsConfig configures the facility's own logger, the last-resort
// channel for sink failures
type DiagnosticsConfig struct {
	// console, file or none
	Output string `toml:"output" validate:"omitempty,oneof=console file none"`
	Level  string `toml:"level"`

	// Defaults to logging.log_path and <logname>.diag
	Directory string `toml:"directory"`
	Name      string `toml:"name"`

	// Failure reports per second and burst before suppression kicks in
	ReportsPerSecond float64 `toml:"reports_per_second" validate:"min=0"`
	Burst            int64   `toml:"burst" validate:"min=0"`
}
