package main

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"logsmith/src/internal/config"
	"logsmith/src/internal/core"
	"logsmith/src/internal/facility"

	lconfig "github.com/lixenwraith/config"
)

// ReloadManager reloads the configuration from its sources and swaps the
// facility's sinks. Overlapping reloads are skipped.
type ReloadManager struct {
	facility *facility.Facility
	cliArgs  []string
	load     func(args []string) (*config.Config, error)

	mu          sync.Mutex
	isReloading bool

	watcher *lconfig.Config
	wg      sync.WaitGroup
}

func NewReloadManager(f *facility.Facility, cliArgs []string) *ReloadManager {
	return &ReloadManager{
		facility: f,
		cliArgs:  cliArgs,
		load: func(args []string) (*config.Config, error) {
			cfg, _, err := config.LoadWithCLI(args)
			return cfg, err
		},
	}
}

// Reload reports the outcome through the facility itself; a failed reload
// leaves the running configuration in place
func (rm *ReloadManager) Reload() error {
	rm.mu.Lock()
	if rm.isReloading {
		rm.mu.Unlock()
		rm.facility.WriteEntry("reload already in progress, skipped",
			core.WithLevel(core.LevelWarn), core.WithSource("reload"))
		return nil
	}
	rm.isReloading = true
	rm.mu.Unlock()

	defer func() {
		rm.mu.Lock()
		rm.isReloading = false
		rm.mu.Unlock()
	}()

	cfg, err := rm.load(rm.cliArgs)
	if err != nil {
		err = fmt.Errorf("reload: %w", err)
		rm.facility.WriteException(err, core.WithSource("reload"))
		return err
	}

	if err := rm.facility.Reconfigure(cfg); err != nil {
		rm.facility.WriteException(fmt.Errorf("reload: %w", err), core.WithSource("reload"))
		return err
	}

	rm.facility.WriteEntry("configuration reloaded",
		core.WithLevel(core.LevelInfo),
		core.WithSource("reload"),
		core.WithTag("level", cfg.Logging.Level))
	return nil
}

// Watch reloads whenever the TOML file at path changes, until ctx is done or
// Stop is called
func (rm *ReloadManager) Watch(ctx context.Context, path string, current *config.Config) error {
	target := *current
	lcfg, err := lconfig.NewBuilder().
		WithFile(path).
		WithTarget(&target).
		WithFileFormat("toml").
		WithSecurityOptions(lconfig.SecurityOptions{
			PreventPathTraversal: true,
			MaxFileSize:          10 * 1024 * 1024,
		}).
		Build()
	if err != nil {
		return fmt.Errorf("failed to create config watcher: %w", err)
	}

	lcfg.AutoUpdateWithOptions(lconfig.WatchOptions{
		PollInterval:      time.Second,
		Debounce:          500 * time.Millisecond,
		ReloadTimeout:     30 * time.Second,
		VerifyPermissions: true,
	})
	rm.watcher = lcfg

	rm.wg.Add(1)
	go rm.watchLoop(ctx, lcfg.Watch())

	rm.facility.WriteEntry("configuration auto reload enabled",
		core.WithLevel(core.LevelInfo),
		core.WithSource("reload"),
		core.WithTag("config_file", path))
	return nil
}

func (rm *ReloadManager) watchLoop(ctx context.Context, changes <-chan string) {
	defer rm.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case changed, ok := <-changes:
			if !ok {
				return
			}
			if msg := watchProblem(changed); msg != "" {
				rm.facility.WriteEntry(msg,
					core.WithLevel(core.LevelError),
					core.WithSource("reload"),
					core.WithTag("action", "keeping current configuration"))
				continue
			}
			rm.Reload()
		}
	}
}

// watchProblem maps the watcher's special notifications to a message; a
// plain changed path yields ""
func watchProblem(changed string) string {
	switch changed {
	case "file_deleted":
		return "configuration file deleted"
	case "permissions_changed":
		return "configuration file permissions changed, reload blocked"
	case "reload_timeout":
		return "configuration reload timed out"
	}
	if reason, ok := strings.CutPrefix(changed, "reload_error:"); ok {
		return "configuration reload error: " + reason
	}
	return ""
}

// Stop ends file watching started by Watch
func (rm *ReloadManager) Stop() {
	if rm.watcher != nil {
		rm.watcher.StopAutoUpdate()
	}
	rm.wg.Wait()
}
