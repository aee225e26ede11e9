//go:build windows

package main

import "context"

// watchPlatformSignals is a no-op on Windows; SIGHUP/SIGUSR1 do not exist.
// Config reloads still happen through the file watcher.
func watchPlatformSignals(ctx context.Context, app *App) {
	<-ctx.Done()
}
