// Package signals maps OS signals onto monitor control: SIGINT and SIGTERM
// shut down, SIGHUP asks for a configuration reload.
package signals

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/endorses/osmon/internal/pkg/constants"
	"github.com/endorses/osmon/internal/pkg/logger"
)

// SetupHandler cancels the provided context on SIGINT or SIGTERM.
// Returns a cleanup function that should be called when the signal handler is no longer needed
func SetupHandler(ctx context.Context, cancel context.CancelFunc) (cleanup func()) {
	sigCh := make(chan os.Signal, constants.SignalChannelBuffer)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	done := make(chan struct{})
	go func() {
		defer close(done)
		select {
		case sig := <-sigCh:
			logger.Info("Received signal, initiating shutdown", "signal", sig.String())
			cancel()
		case <-ctx.Done():
			// Context already cancelled, clean up
		}
	}()

	return func() {
		signal.Stop(sigCh)
		cancel()
		<-done
	}
}

// NotifyReload delivers a value on the returned channel for every SIGHUP
// until ctx is done. Requests arriving while one is pending are merged.
func NotifyReload(ctx context.Context) (<-chan struct{}, func()) {
	sigCh := make(chan os.Signal, constants.SignalChannelBuffer)
	signal.Notify(sigCh, syscall.SIGHUP)

	reload := make(chan struct{}, constants.ReloadChannelBuffer)
	stop := make(chan struct{})
	done := make(chan struct{})

	go func() {
		defer close(done)
		for {
			select {
			case sig := <-sigCh:
				logger.Info("Received signal, requesting reload", "signal", sig.String())
				select {
				case reload <- struct{}{}:
				default:
				}
			case <-ctx.Done():
				return
			case <-stop:
				return
			}
		}
	}()

	return reload, func() {
		signal.Stop(sigCh)
		close(stop)
		<-done
	}
}
