package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

// SignalHandler reloads on SIGHUP and reports termination signals
type SignalHandler struct {
	reloader *ReloadManager
	sigChan  chan os.Signal
}

func NewSignalHandler(rm *ReloadManager) *SignalHandler {
	sh := &SignalHandler{
		reloader: rm,
		sigChan:  make(chan os.Signal, 1),
	}

	signal.Notify(sh.sigChan,
		syscall.SIGINT,
		syscall.SIGTERM,
		syscall.SIGHUP,
	)

	return sh
}

// Wait handles reloads in the background and delivers the first
// termination signal
func (sh *SignalHandler) Wait(ctx context.Context) <-chan os.Signal {
	out := make(chan os.Signal, 1)
	go func() {
		for {
			select {
			case sig := <-sh.sigChan:
				if sig == syscall.SIGHUP {
					go sh.reloader.Reload()
					continue
				}
				out <- sig
				return
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

func (sh *SignalHandler) Stop() {
	signal.Stop(sh.sigChan)
}
