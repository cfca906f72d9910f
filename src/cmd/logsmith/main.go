package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"logsmith/src/cmd/logsmith/commands"
	"logsmith/src/internal/config"
	"logsmith/src/internal/facility"
	"logsmith/src/internal/version"
)

const shutdownTimeout = 10 * time.Second

func main() {
	router := commands.NewCommandRouter()
	handled, err := router.Route(os.Args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if handled {
		os.Exit(0)
	}

	if path := configFlag(os.Args[1:]); path != "" {
		os.Setenv("LOGSMITH_CONFIG_FILE", path)
	}

	cfg, _, err := config.LoadWithCLI(os.Args[1:])
	if err != nil {
		if strings.Contains(err.Error(), "not found") {
			fatal(2, "Config file not found: %s\n", config.GetConfigPath())
		}
		fatal(1, "Failed to load config: %v\n", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	f, err := facility.Init(ctx, cfg)
	if err != nil {
		fatal(1, "Failed to initialize logging: %v\n", err)
	}

	f.WriteInfo(fmt.Sprintf("logsmith %s started, reading stdin", version.Short()))

	reloader := NewReloadManager(f, os.Args[1:])
	signals := NewSignalHandler(reloader)
	defer signals.Stop()

	if cfg.ConfigAutoReload {
		if err := reloader.Watch(ctx, config.GetConfigPath(), cfg); err != nil {
			f.WriteException(err)
		}
	}

	pumpDone := make(chan error, 1)
	go func() {
		pumpDone <- pumpLines(ctx, os.Stdin, f)
	}()

	var exitCode int
	select {
	case sig := <-signals.Wait(ctx):
		f.WriteInfo(fmt.Sprintf("received %s, shutting down", sig))
	case err := <-pumpDone:
		if err != nil {
			f.WriteException(err)
			exitCode = 1
		}
	}

	cancel()
	reloader.Stop()
	if err := f.Shutdown(shutdownTimeout); err != nil {
		fmt.Fprintf(os.Stderr, "Shutdown incomplete: %v\n", err)
		exitCode = 1
	}
	os.Exit(exitCode)
}

// configFlag extracts -c/--config so it can steer the config file lookup
func configFlag(args []string) string {
	for i, arg := range args {
		switch {
		case arg == "-c" || arg == "--config":
			if i+1 < len(args) {
				return args[i+1]
			}
		case strings.HasPrefix(arg, "--config="):
			return strings.TrimPrefix(arg, "--config=")
		}
	}
	return ""
}

func fatal(code int, format string, args ...any) {
	fmt.Fprintf(os.Stderr, format, args...)
	os.Exit(code)
}
