package commands

import (
	"fmt"

	"logsmith/src/internal/version"
)

type VersionCommand struct{}

func NewVersionCommand() *VersionCommand {
	return &VersionCommand{}
}

func (c *VersionCommand) Execute(args []string) error {
	fmt.Println(version.String())
	return nil
}

func (c *VersionCommand) Description() string {
	return "Show version information"
}

func (c *VersionCommand) Help() string {
	return `Version Command - Show logsmith version information

Usage:
  logsmith version
  logsmith -v
  logsmith --version
`
}
