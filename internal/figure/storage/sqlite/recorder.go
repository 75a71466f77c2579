package sqlite

import (
	"context"
	"sync"
	"time"

	"github.com/banshee-data/skintrack/internal/figure/tracking"
	"github.com/banshee-data/skintrack/internal/monitoring"
	"github.com/banshee-data/skintrack/internal/timeutil"
)

// Recorder buffers published samples in memory and writes them to one
// recording on every flush tick. Publish never touches the database, so
// the frame loop is not held up by disk writes.
type Recorder struct {
	store    *Store
	id       string
	clock    timeutil.Clock
	interval time.Duration

	mu      sync.Mutex
	pending []tracking.Sample
	dropped int
	limit   int
}

// maxPending bounds memory when the database falls behind.
const maxPending = 10000

// NewRecorder starts a new recording for model.
func NewRecorder(ctx context.Context, store *Store, model string, clock timeutil.Clock, interval time.Duration) (*Recorder, error) {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	if interval <= 0 {
		interval = time.Second
	}
	id, err := store.NewRecording(ctx, model, clock.Now())
	if err != nil {
		return nil, err
	}
	monitoring.Logf("[record] recording %s for %s", id, model)
	return &Recorder{store: store, id: id, clock: clock, interval: interval, limit: maxPending}, nil
}

// ID returns the recording ID.
func (r *Recorder) ID() string { return r.id }

// Publish queues a sample for the next flush.
func (r *Recorder) Publish(s tracking.Sample) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.pending) >= r.limit {
		r.dropped++
		return
	}
	r.pending = append(r.pending, s)
}

// Flush writes everything queued so far. On error the batch is kept for
// the next attempt, still bounded by the queue limit; the oldest samples
// are kept and the excess counts as dropped.
func (r *Recorder) Flush(ctx context.Context) error {
	r.mu.Lock()
	batch := r.pending
	r.pending = nil
	dropped := r.dropped
	r.dropped = 0
	r.mu.Unlock()

	if dropped > 0 {
		monitoring.Logf("[record] dropped %d samples: writer behind", dropped)
	}
	if err := r.store.InsertSamples(ctx, r.id, batch); err != nil {
		r.mu.Lock()
		queued := append(batch, r.pending...)
		if len(queued) > r.limit {
			r.dropped += len(queued) - r.limit
			queued = queued[:r.limit]
		}
		r.pending = queued
		r.mu.Unlock()
		return err
	}
	monitoring.Debugf("[record] flushed %d samples", len(batch))
	return nil
}

// Run flushes on every interval until ctx is cancelled, then flushes once
// more so nothing queued is lost.
func (r *Recorder) Run(ctx context.Context) error {
	ticker := r.clock.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return r.Flush(context.Background())
		case <-ticker.C():
			if err := r.Flush(ctx); err != nil {
				monitoring.Logf("[record] flush: %v", err)
			}
		}
	}
}
