package commands

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"logsmith/src/internal/config"
	"logsmith/src/internal/core"
	"logsmith/src/internal/facility"
)

// tagFlags collects repeated -t key=value flags
type tagFlags map[string]string

func (t tagFlags) String() string {
	pairs := make([]string, 0, len(t))
	for k, v := range t {
		pairs = append(pairs, k+"="+v)
	}
	return strings.Join(pairs, ",")
}

func (t tagFlags) Set(value string) error {
	key, val, ok := strings.Cut(value, "=")
	if !ok || key == "" {
		return fmt.Errorf("tag must be key=value, got %q", value)
	}
	t[key] = val
	return nil
}

// EmitCommand writes a single entry through the configured sinks and exits
type EmitCommand struct {
	errOut io.Writer
	// Loads the configuration; replaced in tests
	load func() (*config.Config, error)
}

func NewEmitCommand() *EmitCommand {
	return &EmitCommand{
		errOut: os.Stderr,
		load: func() (*config.Config, error) {
			cfg, _, err := config.LoadWithCLI(nil)
			return cfg, err
		},
	}
}

func (ec *EmitCommand) Execute(args []string) error {
	cmd := flag.NewFlagSet("emit", flag.ContinueOnError)
	cmd.SetOutput(ec.errOut)

	tags := tagFlags{}
	var (
		level  = cmd.String("l", "info", "Entry level")
		source = cmd.String("s", "", "Entry source")
	)
	cmd.Var(tags, "t", "Tag as key=value, repeatable")
	cmd.Usage = func() {
		fmt.Fprint(ec.errOut, ec.Help())
	}

	if err := cmd.Parse(args); err != nil {
		return err
	}
	message := strings.Join(cmd.Args(), " ")
	if message == "" {
		return fmt.Errorf("message required")
	}

	lvl, err := core.ParseLevel(*level)
	if err != nil {
		return err
	}

	cfg, err := ec.load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	f, err := facility.Init(context.Background(), cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}

	f.WriteEntry(message,
		core.WithLevel(lvl),
		core.WithSource(*source),
		core.WithTags(tags))

	return f.Shutdown(5 * time.Second)
}

func (ec *EmitCommand) Description() string {
	return "Write one entry through the configured sinks"
}

func (ec *EmitCommand) Help() string {
	return `Emit Command - Write one entry through the configured sinks

Usage:
  logsmith emit [-l level] [-s source] [-t key=value]... <message>

Options:
  -l <level>       trace, debug, info, warn, error, fatal (default: info)
  -s <source>      Source recorded with the entry
  -t key=value     Tag, repeatable

Example:
  logsmith emit -l error -s Writer.flush -t disk=sda1 "disk full"
`
}
