package notify

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mohamedkhairy/storefront-realtime/internal/models"
	"github.com/mohamedkhairy/storefront-realtime/pkg/logger"
)

const notifyTimeout = 10 * time.Second

// ConnectionCounter reports the number of open connections
type ConnectionCounter interface {
	ActiveConnections() int
}

// StatusWatcher polls a ConnectionCounter and notifies when the count
// moves to or from zero. The first observation only sets the baseline.
type StatusWatcher struct {
	counter  ConnectionCounter
	notifier Notifier
	clock    clockwork.Clock
	interval time.Duration

	// guarded by stateMu
	stateMu   sync.Mutex
	observed  bool
	online    bool
	zeroSince time.Time

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	running bool
}

// NewStatusWatcher creates a watcher; a nil notifier falls back to NoopNotifier
func NewStatusWatcher(counter ConnectionCounter, notifier Notifier, clock clockwork.Clock, interval time.Duration) *StatusWatcher {
	if notifier == nil {
		notifier = NoopNotifier{}
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &StatusWatcher{
		counter:  counter,
		notifier: notifier,
		clock:    clock,
		interval: interval,
	}
}

// Start begins polling
func (w *StatusWatcher) Start() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	w.cancel = cancel
	w.done = make(chan struct{})
	w.running = true

	go w.run(ctx, w.done)

	logger.Info("Status watcher started", logger.Duration("interval", w.interval))
}

// Stop halts polling and waits for an in-flight check
func (w *StatusWatcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	cancel, done := w.cancel, w.done
	w.mu.Unlock()

	cancel()
	<-done
	logger.Info("Status watcher stopped")
}

func (w *StatusWatcher) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	w.Check(ctx)

	ticker := w.clock.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			w.Check(ctx)
		}
	}
}

// Check takes one observation and notifies on a transition. It returns
// the status that was sent, if any.
func (w *StatusWatcher) Check(ctx context.Context) (models.ServerStatus, bool) {
	count := w.counter.ActiveConnections()
	now := w.clock.Now()
	online := count > 0

	w.stateMu.Lock()
	if !w.observed {
		w.observed = true
		w.online = online
		if !online {
			w.zeroSince = now
		}
		w.stateMu.Unlock()
		return models.ServerStatus{}, false
	}
	if online == w.online {
		w.stateMu.Unlock()
		return models.ServerStatus{}, false
	}

	status := models.ServerStatus{
		ActiveConnections: count,
		Timestamp:         now.UTC(),
	}
	if online {
		status.Status = models.ServerOnline
		status.DowntimeMs = now.Sub(w.zeroSince).Milliseconds()
		w.zeroSince = time.Time{}
	} else {
		status.Status = models.ServerOffline
		w.zeroSince = now
	}
	w.online = online
	w.stateMu.Unlock()

	notifyCtx, cancel := context.WithTimeout(ctx, notifyTimeout)
	defer cancel()

	if err := w.notifier.NotifyServerStatus(notifyCtx, status); err != nil {
		logger.Warn("Failed to send server status notification",
			logger.ErrorField(err),
			logger.String("status", string(status.Status)),
		)
	}
	return status, true
}
