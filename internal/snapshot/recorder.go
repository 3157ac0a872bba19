package snapshot

import (
	"context"
	"sync"
	"time"

	"github.com/deploymenttheory/go-batch-runner/internal/logger"
	"github.com/deploymenttheory/go-batch-runner/internal/table"
	"github.com/romdo/go-debounce"
	"go.uber.org/zap"
)

const (
	// DefaultWait coalesces bursts of table changes into one write
	DefaultWait = 500 * time.Millisecond
	// DefaultMaxWait bounds how long a busy table goes unsaved
	DefaultMaxWait = 2 * time.Second
)

// Recorder saves a table shortly after it changes
type Recorder struct {
	cache     Cache
	projectID string
	store     *table.Store
	log       *zap.SugaredLogger

	trigger func()
	cancel  func()

	mu     sync.Mutex
	saveMu sync.Mutex
	closed bool
}

// NewRecorder watches store and saves it to cache after wait of quiet, or at
// least every maxWait while changes keep coming.
func NewRecorder(cache Cache, projectID string, store *table.Store, wait, maxWait time.Duration, log *zap.SugaredLogger) *Recorder {
	if wait <= 0 {
		wait = DefaultWait
	}
	if maxWait < wait {
		maxWait = DefaultMaxWait
		if maxWait < wait {
			maxWait = wait
		}
	}

	r := &Recorder{
		cache:     cache,
		projectID: projectID,
		store:     store,
		log:       logger.Get(log),
	}
	r.trigger, r.cancel = debounce.NewWithMaxWait(wait, maxWait, r.save)
	store.Watch(r.changed)
	return r
}

func (r *Recorder) changed() {
	r.mu.Lock()
	closed := r.closed
	r.mu.Unlock()
	if !closed {
		r.trigger()
	}
}

func (r *Recorder) save() {
	if err := r.Flush(context.Background()); err != nil {
		r.log.Warnw("Failed to save table snapshot", "project", r.projectID, "error", err)
	}
}

// Flush saves the table now
func (r *Recorder) Flush(ctx context.Context) error {
	r.saveMu.Lock()
	defer r.saveMu.Unlock()
	return Save(ctx, r.cache, r.projectID, r.store)
}

// Close stops watching, drops any pending save and saves the final state
func (r *Recorder) Close(ctx context.Context) error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	r.mu.Unlock()

	r.cancel()
	return r.Flush(ctx)
}
