// Package lifecycle wires SIGINT/SIGTERM into context cancellation, the
// clean shutdown path spec §6's CLI contract requires: the coordinator
// stops accepting new outcomes, saves history, and the process exits
// non-zero rather than mid-write.
package lifecycle

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/foldershare/sharer/pkg/logger"
)

// WithSignalCancel returns a context that is cancelled the first time
// SIGINT or SIGTERM arrives, and a stop function the caller should defer
// to release the signal handler once the run has finished.
func WithSignalCancel(parent context.Context) (context.Context, func()) {
	ctx, cancel := context.WithCancel(parent)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	done := make(chan struct{})
	go func() {
		select {
		case sig := <-sigCh:
			logger.Startup("shutdown_signal", "received shutdown signal, stopping after in-flight work drains", map[string]interface{}{
				"signal": sig.String(),
			})
			cancel()
		case <-done:
		}
	}()

	stop := func() {
		close(done)
		signal.Stop(sigCh)
		cancel()
	}
	return ctx, stop
}
