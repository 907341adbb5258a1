package trace

import (
	"fmt"
	"sync"
	"time"
)

// Heartbeat periodically emits heartbeat events naming the case that is
// currently running. A run whose heartbeats keep naming the same case while
// no span ends is waiting on a hung child.
type Heartbeat struct {
	tracer   Tracer
	interval time.Duration
	stopCh   chan struct{}
	wg       sync.WaitGroup

	mu      sync.Mutex
	current string
	since   time.Time
	stopped bool
}

// StartHeartbeat starts the heartbeat goroutine. It returns nil when tracing
// is disabled or interval is not positive; all methods accept a nil receiver.
func StartHeartbeat(tracer Tracer, interval time.Duration) *Heartbeat {
	if tracer == nil || !tracer.Enabled() || interval <= 0 {
		return nil
	}
	h := &Heartbeat{
		tracer:   tracer,
		interval: interval,
		stopCh:   make(chan struct{}),
	}
	h.wg.Add(1)
	go h.run()
	return h
}

// Mark records the case that is now running; "" means idle.
func (h *Heartbeat) Mark(name string) {
	if h == nil {
		return
	}
	h.mu.Lock()
	h.current = name
	h.since = time.Now()
	h.mu.Unlock()
}

func (h *Heartbeat) run() {
	defer h.wg.Done()

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	beat := 0
	for {
		select {
		case <-ticker.C:
			beat++
			h.mu.Lock()
			current, since := h.current, h.since
			h.mu.Unlock()

			detail := fmt.Sprintf("#%d idle", beat)
			if current != "" {
				detail = fmt.Sprintf("#%d %s running for %s", beat, current, time.Since(since).Round(time.Millisecond))
			}
			h.tracer.Emit(&Event{
				Time:   time.Now(),
				Kind:   KindHeartbeat,
				Scope:  ScopeRun,
				Name:   "heartbeat",
				Detail: detail,
			})
		case <-h.stopCh:
			return
		}
	}
}

// Stop stops the heartbeat goroutine and waits for it to finish.
func (h *Heartbeat) Stop() {
	if h == nil {
		return
	}
	h.mu.Lock()
	if h.stopped {
		h.mu.Unlock()
		return
	}
	h.stopped = true
	h.mu.Unlock()

	close(h.stopCh)
	h.wg.Wait()
}
