package core

import (
	"fmt"
	"strings"
)

// Level is the severity of an entry. Trace through Fatal form a total order;
// LevelOff sits outside it and disables whatever threshold it is assigned to.
type Level int8

const (
	LevelOff Level = iota - 1
	LevelTrace
	LevelDebug
	LevelInfo
	LevelWarn
	LevelError
	LevelFatal
)

var levelNames = map[Level]string{
	LevelOff:   "OFF",
	LevelTrace: "TRACE",
	LevelDebug: "DEBUG",
	LevelInfo:  "INFO",
	LevelWarn:  "WARN",
	LevelError: "ERROR",
	LevelFatal: "FATAL",
}

// String returns the upper-case level name
func (l Level) String() string {
	if name, ok := levelNames[l]; ok {
		return name
	}
	return fmt.Sprintf("LEVEL(%d)", int8(l))
}

// Padded returns the level name left-aligned in a fixed five column field
func (l Level) Padded() string {
	name := l.String()
	if len(name) > 5 {
		return name[:5]
	}
	return fmt.Sprintf("%-5s", name)
}

// Valid reports whether l is one of the defined levels, Off included
func (l Level) Valid() bool {
	_, ok := levelNames[l]
	return ok
}

// ParseLevel converts a level name, case-insensitively
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "off", "none", "disabled":
		return LevelOff, nil
	case "trace":
		return LevelTrace, nil
	case "debug":
		return LevelDebug, nil
	case "info":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	case "fatal", "critical":
		return LevelFatal, nil
	default:
		return LevelOff, fmt.Errorf("unknown log level: %s", s)
	}
}

// Enabled reports whether an entry at level passes threshold.
// Off on either side never passes.
func Enabled(threshold, level Level) bool {
	if threshold == LevelOff || level == LevelOff {
		return false
	}
	if !threshold.Valid() || !level.Valid() {
		return false
	}
	return level >= threshold
}

// MarshalText implements encoding.TextMarshaler
func (l Level) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (l *Level) UnmarshalText(text []byte) error {
	parsed, err := ParseLevel(string(text))
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}
