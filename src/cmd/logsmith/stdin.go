package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"logsmith/src/internal/core"
	"logsmith/src/internal/facility"
)

const maxLineSize = 1024 * 1024

// pumpLines logs every line read from r until EOF or ctx is done
func pumpLines(ctx context.Context, r io.Reader, f *facility.Facility) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	for scanner.Scan() {
		if ctx.Err() != nil {
			return nil
		}
		level, message, ok := parseLine(scanner.Text())
		if !ok {
			continue
		}
		f.WriteEntry(message, core.WithLevel(level), core.WithSource("stdin"))
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading stdin: %w", err)
	}
	return nil
}

// parseLine splits an optional "LEVEL: " prefix from the message. Lines
// without a recognised prefix are logged at Info. Blank lines are skipped.
func parseLine(line string) (core.Level, string, bool) {
	line = strings.TrimRight(line, "\r")
	if strings.TrimSpace(line) == "" {
		return core.LevelOff, "", false
	}

	if prefix, rest, found := strings.Cut(line, ":"); found && !strings.ContainsAny(prefix, " \t") {
		if level, err := core.ParseLevel(prefix); err == nil && level != core.LevelOff {
			return level, strings.TrimSpace(rest), true
		}
	}
	return core.LevelInfo, line, true
}
