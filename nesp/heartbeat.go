package nesp

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/fluidlab/go-nesp/logger"
)

// heartbeat keeps a safe-mode session alive. While active it waits up to half
// the safe mode timeout for an activity signal; if the wait elapses
// unsignaled it issues a plain status query through the dispatcher, which is
// indistinguishable from a user-issued one and itself resets the signal.
//
// A query failure is fatal to the task only: the task stops and the next
// user-issued command surfaces the underlying transport problem directly.
type heartbeat struct {
	logger logger.Logger
	query  func() error

	// interval is the wait interval in nanoseconds. Retuning a running task
	// stores a new value here; the task picks it up on its next wait, with
	// no restart.
	interval atomic.Int64

	// activity receives a token whenever a real command completes.
	activity chan struct{}

	mu      sync.Mutex // guards running, stopc, done
	running bool
	stopc   chan struct{}
	done    chan struct{}
}

func newHeartbeat(query func() error, l logger.Logger) *heartbeat {
	return &heartbeat{
		logger:   l,
		query:    query,
		activity: make(chan struct{}, 1),
	}
}

// markActivity records that a real command completed, postponing the next
// heartbeat query by a full interval. It never blocks.
func (h *heartbeat) markActivity() {
	select {
	case h.activity <- struct{}{}:
	default:
	}
}

// setTimeout applies a new safe mode timeout. The wait interval is half the
// timeout; zero disables the task entirely.
//
//   - zero to nonzero: start the task.
//   - nonzero to a different nonzero: update the interval in place; a task
//     that stopped on a query fault is started again.
//   - nonzero to zero: signal termination and wait for the task to finish
//     before returning.
//
// setTimeout must not be called while holding the transceiver lock: a running
// query has to be able to complete before the task can observe the stop
// signal.
func (h *heartbeat) setTimeout(timeout time.Duration) {
	h.mu.Lock()
	defer h.mu.Unlock()

	interval := timeout / 2
	h.interval.Store(int64(interval))

	switch {
	case interval == 0 && h.running:
		close(h.stopc)
		<-h.done
		h.running = false
	case interval != 0 && !h.running:
		h.stopc = make(chan struct{})
		h.done = make(chan struct{})
		h.running = true
		go h.run(h.stopc, h.done)
	case interval != 0 && h.running:
		// A task that stopped on a query fault leaves running stale; start a
		// fresh task so the session stays covered once the transport recovers.
		select {
		case <-h.done:
			h.stopc = make(chan struct{})
			h.done = make(chan struct{})
			go h.run(h.stopc, h.done)
		default:
		}
	}
}

func (h *heartbeat) run(stopc, done chan struct{}) {
	defer close(done)

	h.logger.Debug("heartbeat task started", "interval", time.Duration(h.interval.Load()))

	for {
		interval := time.Duration(h.interval.Load())
		if interval == 0 {
			return
		}
		timer := time.NewTimer(interval)

		select {
		case <-stopc:
			timer.Stop()
			h.logger.Debug("heartbeat task stopped")
			return
		case <-h.activity:
			timer.Stop()
		case <-timer.C:
			if err := h.query(); err != nil {
				h.logger.Error("heartbeat status query failed, stopping keepalive", "error", err)
				return
			}
		}
	}
}
