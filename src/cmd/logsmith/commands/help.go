package commands

import (
	"fmt"
	"sort"
	"strings"
)

const generalHelpTemplate = `logsmith: structured logging to console, files, a database and live trace streams.

Usage:
  logsmith [command] [options]
  logsmith [options]              Log each stdin line ("LEVEL: message" sets the level)

Commands:
%s

Configuration Sources (Precedence: CLI > Env > File > Defaults):
  --logging.level=info            Any config key as a CLI argument
  LOGSMITH_LOGGING_LEVEL=info     Any config key as an environment variable
  LOGSMITH_CONFIG_FILE            Config file path (default: ~/.config/logsmith.toml)
  LOGSMITH_CONFIG_DIR             Config directory
  --config_auto_reload=true       Reload configuration when the file changes

Signals:
  SIGHUP                          Reload configuration and swap sinks
  SIGINT, SIGTERM                 Flush and shut down

Examples:
  # Write a default configuration
  logsmith init-config ./logsmith.toml

  # Pipe a service's output through logsmith into monthly archived files
  myservice 2>&1 | LOGSMITH_CONFIG_FILE=./logsmith.toml logsmith

  # Hash a password for the trace endpoint
  logsmith hash -u ops
`

// HelpCommand displays general or command-specific help.
type HelpCommand struct {
	router *CommandRouter
}

func NewHelpCommand(router *CommandRouter) *HelpCommand {
	return &HelpCommand{router: router}
}

func (c *HelpCommand) Execute(args []string) error {
	if len(args) > 0 && args[0] != "" {
		cmdName := args[0]

		if handler, exists := c.router.GetCommand(cmdName); exists {
			fmt.Print(handler.Help())
			return nil
		}

		return fmt.Errorf("unknown command: %s", cmdName)
	}

	fmt.Printf(generalHelpTemplate, c.formatCommandList())
	return nil
}

func (c *HelpCommand) Description() string {
	return "Display help information"
}

func (c *HelpCommand) Help() string {
	return `Help Command - Display help information

Usage:
  logsmith help              Show general help
  logsmith help <command>    Show help for a specific command
`
}

// formatCommandList aligns command names and descriptions.
func (c *HelpCommand) formatCommandList() string {
	commands := c.router.GetCommands()

	names := make([]string, 0, len(commands))
	maxLen := 0
	for name := range commands {
		names = append(names, name)
		if len(name) > maxLen {
			maxLen = len(name)
		}
	}
	sort.Strings(names)

	var lines []string
	for _, name := range names {
		handler := commands[name]
		padding := strings.Repeat(" ", maxLen-len(name)+2)
		lines = append(lines, fmt.Sprintf("  %s%s%s", name, padding, handler.Description()))
	}

	return strings.Join(lines, "\n")
}
