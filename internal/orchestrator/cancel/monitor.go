// Package cancel is the Cancellation Monitor (C10): a best-effort,
// cooperative watchdog that polls a Run's persisted status roughly
// once a second and signals a shared stop flag the moment the Run
// reaches RunStatusCancelled, so the streaming loop can exit cleanly
// after its current normalized event instead of continuing to drive
// the provider or execute further tool calls.
//
// Grounded on the teacher's own context.WithTimeout + ctx.Done() check
// inside AgenticLoop.Run's turn loop (internal/agent/loop.go) — this
// generalizes that single deadline check into a recurring poll against
// external, store-backed cancellation rather than a local timer.
package cancel

import (
	"context"
	"time"

	"github.com/haasonsaas/nexus-core/pkg/models"
)

const defaultPollInterval = time.Second

// RunStatusReader is the subset of internal/store.Runs the monitor
// needs to observe a Run's status.
type RunStatusReader interface {
	GetRun(ctx context.Context, id string) (*models.Run, error)
}

// Monitor watches one Run and exposes a Stopped() check the streaming
// loop polls after every normalized event.
type Monitor struct {
	stop chan struct{}
	done chan struct{}
}

// Watch starts a background poller for runID against reader, using
// pollInterval (defaulting to 1s if zero). Call Stop when the turn
// this monitor was watching completes, whether or not cancellation
// occurred, to release the goroutine.
func Watch(ctx context.Context, reader RunStatusReader, runID string, pollInterval time.Duration) *Monitor {
	if pollInterval <= 0 {
		pollInterval = defaultPollInterval
	}
	m := &Monitor{stop: make(chan struct{}), done: make(chan struct{})}

	go func() {
		defer close(m.done)
		ticker := time.NewTicker(pollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-m.stop:
				return
			case <-ticker.C:
			}

			run, err := reader.GetRun(ctx, runID)
			if err != nil {
				continue
			}
			if run.Status.IsTerminal() {
				return
			}
		}
	}()

	return m
}

// Stopped reports whether the monitor's goroutine has exited (either
// because the watched context ended, Stop was called, or the Run hit
// a terminal status). The streaming loop should check this after each
// normalized event and break if it observed RunStatusCancelled
// specifically — callers needing the distinction should re-check the
// Run's status themselves, since Stopped alone doesn't distinguish
// graceful completion from cancellation.
func (m *Monitor) Stopped() bool {
	select {
	case <-m.done:
		return true
	default:
		return false
	}
}

// Stop releases the monitor's background goroutine. Safe to call more
// than once.
func (m *Monitor) Stop() {
	select {
	case <-m.stop:
	default:
		close(m.stop)
	}
	<-m.done
}
