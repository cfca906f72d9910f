package core

const (
	// DefaultLevel applies to entries written without an explicit level
	DefaultLevel = LevelDebug

	DefaultLogName      = "Log"
	DefaultLogExtension = "log"
	DefaultBufferSize   = 1000
	DefaultBatchSize    = 100

	// TimestampFormat is the line layout timestamp, millisecond precision plus one digit
	TimestampFormat = "2006-01-02 15:04:05.0000"

	// ArchiveDateFormat names monthly archives, <name>.<yyyyMMdd>.<ext>
	ArchiveDateFormat = "20060102"
)

// Argon2id parameters for trace endpoint basic auth
const (
	Argon2Time    = 3
	Argon2Memory  = 64 * 1024 // 64 MB
	Argon2Threads = 4
	Argon2SaltLen = 16
	Argon2KeyLen  = 32
)
