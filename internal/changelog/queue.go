// Package changelog coalesces rapid mutations into a keyed batch and delivers
// it to a persistence collaborator on a debounce timer.
package changelog

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	// DefaultDebounce is the delay after the last enqueue before a flush is
	// attempted.
	DefaultDebounce = 2 * time.Second

	opQueueNew   = "changelog.queue.new"
	opQueueFlush = "changelog.queue.flush"
)

var (
	errMissingSaver = errors.New("saver is required")
	noOpLogger      = zap.NewNop()
)

// Event is a single replayable mutation. Events sharing a change key collapse
// to the latest payload within one debounce window.
type Event interface {
	ChangeKey() string
}

// Saver durably accepts a batch of events. A nil error means the whole batch
// was accepted; any error is treated as a full-batch failure and the batch is
// retained for the next flush.
type Saver interface {
	SaveChanges(ctx context.Context, batch []Event) error
}

// Notifier surfaces a transient, user-visible notice.
type Notifier interface {
	Notify(message string)
}

// QueueError carries a dotted operation/reason code alongside the cause.
type QueueError struct {
	code string
	err  error
}

func (e *QueueError) Error() string {
	if e.err == nil {
		return e.code
	}
	return fmt.Sprintf("%s: %v", e.code, e.err)
}

func (e *QueueError) Unwrap() error {
	return e.err
}

func (e *QueueError) Code() string {
	return e.code
}

func newQueueError(operation, reason string, cause error) error {
	return &QueueError{code: fmt.Sprintf("%s.%s", operation, reason), err: cause}
}

// QueueConfig configures a change queue.
type QueueConfig struct {
	Saver    Saver
	Debounce time.Duration
	Logger   *zap.Logger
	Notifier Notifier
}

type entry struct {
	seq   uint64
	event Event
}

// Queue maps change keys to the most recent event per key and flushes the
// merged batch after a debounce window. Enqueues restart the pending timer;
// content is merged by key, so timing follows the last enqueue while payloads
// follow the last write per key.
type Queue struct {
	mu      sync.Mutex
	pending map[string]entry
	nextSeq uint64
	timer   *time.Timer
	pushing bool

	// flushMu serializes manual and debounce-triggered flushes so two
	// deliveries never overlap. The pushing flag is UI state only.
	flushMu sync.Mutex

	saver    Saver
	debounce time.Duration
	logger   *zap.Logger
	notifier Notifier
}

// NewQueue validates the configuration and returns an empty queue.
func NewQueue(cfg QueueConfig) (*Queue, error) {
	if cfg.Saver == nil {
		return nil, newQueueError(opQueueNew, "missing_saver", errMissingSaver)
	}

	debounce := cfg.Debounce
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}

	return &Queue{
		pending:  make(map[string]entry),
		saver:    cfg.Saver,
		debounce: debounce,
		logger:   logger,
		notifier: cfg.Notifier,
	}, nil
}

// Enqueue records the event under its change key, superseding any pending
// event for the same key, and restarts the debounce timer.
func (q *Queue) Enqueue(event Event) {
	if event == nil {
		return
	}

	q.mu.Lock()
	q.nextSeq++
	q.pending[event.ChangeKey()] = entry{seq: q.nextSeq, event: event}
	if q.timer != nil {
		q.timer.Stop()
	}
	q.timer = time.AfterFunc(q.debounce, func() {
		if err := q.Flush(context.Background()); err != nil {
			q.logger.Warn("debounced flush failed", zap.Error(err))
		}
	})
	q.mu.Unlock()
}

// Changes returns the pending events in enqueue order, for progress UI.
func (q *Queue) Changes() []Event {
	q.mu.Lock()
	defer q.mu.Unlock()
	return eventsOf(snapshotLocked(q.pending))
}

// Len returns the number of pending change keys.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// Pushing reports whether a flush is currently in flight.
func (q *Queue) Pushing() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.pushing
}

// Flush delivers the pending batch to the saver. A no-op when the queue is
// empty. On failure every pending event is retained, naturally merged with
// any newer edits, and resent on the next flush. Events enqueued while the
// save is in flight are never dropped: a key is retired only when its entry
// is still the one captured in the snapshot.
func (q *Queue) Flush(ctx context.Context) error {
	q.flushMu.Lock()
	defer q.flushMu.Unlock()

	q.mu.Lock()
	if len(q.pending) == 0 {
		q.mu.Unlock()
		return nil
	}
	if q.timer != nil {
		q.timer.Stop()
		q.timer = nil
	}
	snapshot := snapshotLocked(q.pending)
	q.pushing = true
	q.mu.Unlock()

	batch := eventsOf(snapshot)
	saveErr := q.saver.SaveChanges(ctx, batch)

	q.mu.Lock()
	q.pushing = false
	if saveErr == nil {
		for _, item := range snapshot {
			current, ok := q.pending[item.key]
			if ok && current.seq == item.seq {
				delete(q.pending, item.key)
			}
		}
	}
	q.mu.Unlock()

	if saveErr != nil {
		q.logger.Warn("change batch rejected, retaining for retry",
			zap.Int("batch_size", len(batch)),
			zap.Error(saveErr))
		if q.notifier != nil {
			q.notifier.Notify("saving changes failed, will retry")
		}
		return newQueueError(opQueueFlush, "save_failed", saveErr)
	}

	q.logger.Debug("change batch saved", zap.Int("batch_size", len(batch)))
	return nil
}

// Close stops the pending timer and flushes whatever is queued.
func (q *Queue) Close(ctx context.Context) error {
	q.mu.Lock()
	if q.timer != nil {
		q.timer.Stop()
		q.timer = nil
	}
	q.mu.Unlock()
	return q.Flush(ctx)
}

type keyedEntry struct {
	key   string
	seq   uint64
	event Event
}

func snapshotLocked(pending map[string]entry) []keyedEntry {
	snapshot := make([]keyedEntry, 0, len(pending))
	for key, item := range pending {
		snapshot = append(snapshot, keyedEntry{key: key, seq: item.seq, event: item.event})
	}
	sort.Slice(snapshot, func(i, j int) bool { return snapshot[i].seq < snapshot[j].seq })
	return snapshot
}

func eventsOf(snapshot []keyedEntry) []Event {
	events := make([]Event, 0, len(snapshot))
	for _, item := range snapshot {
		events = append(events, item.event)
	}
	return events
}
