package commands

import (
	"fmt"

	"logsmith/src/internal/config"
)

// InitConfigCommand writes the default configuration as TOML
type InitConfigCommand struct{}

func NewInitConfigCommand() *InitConfigCommand {
	return &InitConfigCommand{}
}

func (c *InitConfigCommand) Execute(args []string) error {
	path := "logsmith.toml"
	if len(args) > 0 {
		path = args[0]
	}
	if err := config.Defaults().SaveToFile(path, false); err != nil {
		return err
	}
	fmt.Printf("Default configuration written to %s\n", path)
	return nil
}

func (c *InitConfigCommand) Description() string {
	return "Write the default configuration file"
}

func (c *InitConfigCommand) Help() string {
	return `Init-Config Command - Write the default configuration file

Usage:
  logsmith init-config [path]    (default: ./logsmith.toml)

An existing file is never overwritten.
`
}
