// Package signal turns process termination signals into a final save.
package signal

import (
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
)

// ExitInterrupted is the exit status used after SIGINT or SIGTERM.
const ExitInterrupted = 130

// OnTerminate calls flush and then exit(ExitInterrupted) when SIGINT or SIGTERM
// is received. A running turn is not cancelled first; flush must be safe to
// call concurrently with it. The returned stop function unregisters the handler.
func OnTerminate(flush func(), exit func(code int)) (stop func()) {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, os.Interrupt, syscall.SIGTERM)

	done := make(chan struct{})
	go watch(ch, done, flush, exit)

	var once sync.Once
	return func() {
		once.Do(func() {
			signal.Stop(ch)
			close(done)
		})
	}
}

func watch(ch <-chan os.Signal, done <-chan struct{}, flush func(), exit func(int)) {
	select {
	case sig := <-ch:
		slog.Debug("received signal, saving conversation", "signal", sig.String())
		if flush != nil {
			flush()
		}
		exit(ExitInterrupted)
	case <-done:
	}
}
