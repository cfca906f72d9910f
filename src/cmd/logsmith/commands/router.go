package commands

import "fmt"

// Handler defines the interface required for all subcommands.
type Handler interface {
	Execute(args []string) error
	Description() string
	Help() string
}

// CommandRouter routes CLI arguments to subcommand handlers.
type CommandRouter struct {
	commands map[string]Handler
}

// NewCommandRouter creates the router with every available command.
func NewCommandRouter() *CommandRouter {
	router := &CommandRouter{
		commands: make(map[string]Handler),
	}

	router.commands["version"] = NewVersionCommand()
	router.commands["help"] = NewHelpCommand(router)
	router.commands["hash"] = NewHashCommand()
	router.commands["emit"] = NewEmitCommand()
	router.commands["init-config"] = NewInitConfigCommand()

	return router
}

// Route executes a subcommand if args name one. The bool reports whether a
// command ran; when false the caller continues with the default mode.
func (r *CommandRouter) Route(args []string) (bool, error) {
	if len(args) < 2 {
		return false, nil
	}

	cmdName := args[1]

	for _, arg := range args[1:] {
		if arg == "-h" || arg == "--help" {
			if handler, exists := r.commands[cmdName]; exists && cmdName != "help" {
				fmt.Print(handler.Help())
				return true, nil
			}
			return true, r.commands["help"].Execute(nil)
		}
	}

	if cmdName == "-v" || cmdName == "--version" {
		return true, r.commands["version"].Execute(nil)
	}

	handler, exists := r.commands[cmdName]
	if !exists {
		if cmdName[0] != '-' {
			return false, fmt.Errorf("unknown command: %s\n\nRun 'logsmith help' for usage", cmdName)
		}
		return false, nil
	}

	return true, handler.Execute(args[2:])
}

func (r *CommandRouter) GetCommand(name string) (Handler, bool) {
	cmd, exists := r.commands[name]
	return cmd, exists
}

func (r *CommandRouter) GetCommands() map[string]Handler {
	return r.commands
}

// coalesceString returns the first non-empty string.
func coalesceString(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
