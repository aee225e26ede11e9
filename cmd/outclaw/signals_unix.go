//go:build !windows

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

// watchPlatformSignals handles Unix maintenance signals until ctx ends.
// SIGHUP reloads the config in place; SIGUSR1 forces a sync pass.
func watchPlatformSignals(ctx context.Context, app *App) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGHUP, syscall.SIGUSR1)
	defer signal.Stop(sigCh)

	for {
		select {
		case <-ctx.Done():
			return
		case sig := <-sigCh:
			switch sig {
			case syscall.SIGHUP:
				app.Logger.Info("reload signal received")
				app.reloadConfig()
			case syscall.SIGUSR1:
				app.Logger.Info("sync signal received")
				go app.Queue.Sync(ctx)
			}
		}
	}
}
