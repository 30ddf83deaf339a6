package activity

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mohamedkhairy/storefront-realtime/internal/config"
	"github.com/mohamedkhairy/storefront-realtime/internal/models"
	"github.com/mohamedkhairy/storefront-realtime/internal/storage"
	"github.com/mohamedkhairy/storefront-realtime/pkg/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	activityWritesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "activity_writes_total",
			Help: "Last-active updates by outcome",
		},
		[]string{"status"}, // "success", "error", "dropped", "throttled"
	)

	activityQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "activity_queue_depth",
			Help: "Pending last-active updates",
		},
	)
)

// throttle entries are swept once the map grows past this size
const pruneThreshold = 10000

// Recorder persists last-active timestamps off the connection hot path.
// RecordActivity never blocks; updates are throttled per user and written
// by a single background worker.
type Recorder struct {
	store        storage.ActivityStore
	clock        clockwork.Clock
	window       time.Duration
	writeTimeout time.Duration
	queue        chan models.ActivityRecord

	mu         sync.Mutex
	lastQueued map[string]time.Time
	running    bool
	stopped    bool
	done       chan struct{}
}

// NewRecorder creates a recorder writing to store
func NewRecorder(store storage.ActivityStore, cfg config.ActivityConfig, clock clockwork.Clock) *Recorder {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	queueSize := cfg.QueueSize
	if queueSize <= 0 {
		queueSize = 1024
	}
	writeTimeout := cfg.WriteTimeout
	if writeTimeout <= 0 {
		writeTimeout = 5 * time.Second
	}

	return &Recorder{
		store:        store,
		clock:        clock,
		window:       cfg.ThrottleWindow,
		writeTimeout: writeTimeout,
		queue:        make(chan models.ActivityRecord, queueSize),
		lastQueued:   make(map[string]time.Time),
	}
}

// RecordActivity queues a last-active update for userID
func (r *Recorder) RecordActivity(userID string) {
	if userID == "" {
		return
	}
	now := r.clock.Now()

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stopped {
		return
	}

	if last, ok := r.lastQueued[userID]; ok && r.window > 0 && now.Sub(last) < r.window {
		activityWritesTotal.WithLabelValues("throttled").Inc()
		return
	}

	select {
	case r.queue <- models.ActivityRecord{UserID: userID, LastActive: now}:
		r.lastQueued[userID] = now
		activityQueueDepth.Inc()
	default:
		activityWritesTotal.WithLabelValues("dropped").Inc()
		logger.Warn("Activity queue full, dropping update",
			logger.String("user_id", userID),
			logger.Int("queue_size", cap(r.queue)),
		)
	}

	if len(r.lastQueued) > pruneThreshold {
		r.prune(now)
	}
}

// prune drops throttle entries older than the window. Caller holds mu.
func (r *Recorder) prune(now time.Time) {
	for userID, last := range r.lastQueued {
		if now.Sub(last) >= r.window {
			delete(r.lastQueued, userID)
		}
	}
}

// Start starts the write worker
func (r *Recorder) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running || r.stopped {
		return
	}
	r.running = true
	r.done = make(chan struct{})

	logger.Info("Starting activity recorder",
		logger.Int("queue_size", cap(r.queue)),
		logger.Duration("throttle_window", r.window),
	)

	go r.run(r.done)
}

// Stop stops accepting updates, flushes the queue and waits for the worker
func (r *Recorder) Stop() {
	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return
	}
	r.stopped = true
	running, done := r.running, r.done
	close(r.queue)
	r.mu.Unlock()

	if running {
		<-done
	} else {
		for record := range r.queue {
			r.write(record)
		}
	}
	logger.Info("Activity recorder stopped")
}

func (r *Recorder) run(done chan struct{}) {
	defer close(done)
	for record := range r.queue {
		r.write(record)
	}
}

func (r *Recorder) write(record models.ActivityRecord) {
	activityQueueDepth.Dec()

	ctx, cancel := context.WithTimeout(context.Background(), r.writeTimeout)
	defer cancel()

	if err := r.store.UpdateLastActive(ctx, record.UserID, record.LastActive); err != nil {
		activityWritesTotal.WithLabelValues("error").Inc()
		logger.Warn("Failed to record user activity",
			logger.ErrorField(err),
			logger.String("user_id", record.UserID),
		)
		return
	}
	activityWritesTotal.WithLabelValues("success").Inc()
}
