package changelog

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type testEvent struct {
	key     string
	payload string
}

func (e testEvent) ChangeKey() string { return e.key }

type recordingSaver struct {
	mu      sync.Mutex
	batches [][]Event
	err     error

	started  chan struct{}
	proceed  chan struct{}
	blocking bool
}

func (s *recordingSaver) SaveChanges(_ context.Context, batch []Event) error {
	if s.blocking {
		s.started <- struct{}{}
		<-s.proceed
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := make([]Event, len(batch))
	copy(copied, batch)
	s.batches = append(s.batches, copied)
	return s.err
}

func (s *recordingSaver) batchCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.batches)
}

func (s *recordingSaver) lastBatch() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.batches) == 0 {
		return nil
	}
	return s.batches[len(s.batches)-1]
}

type recordingNotifier struct {
	mu       sync.Mutex
	messages []string
}

func (n *recordingNotifier) Notify(message string) {
	n.mu.Lock()
	n.messages = append(n.messages, message)
	n.mu.Unlock()
}

func mustQueue(t *testing.T, cfg QueueConfig) *Queue {
	t.Helper()
	queue, err := NewQueue(cfg)
	if err != nil {
		t.Fatalf("unexpected error building queue: %v", err)
	}
	return queue
}

func TestNewQueueRequiresSaver(t *testing.T) {
	_, err := NewQueue(QueueConfig{})
	if err == nil {
		t.Fatalf("expected error for missing saver")
	}
	var queueErr *QueueError
	if !errors.As(err, &queueErr) {
		t.Fatalf("expected QueueError, got %T", err)
	}
	if queueErr.Code() != "changelog.queue.new.missing_saver" {
		t.Fatalf("unexpected code %q", queueErr.Code())
	}
}

func TestEnqueueCollapsesByKey(t *testing.T) {
	saver := &recordingSaver{}
	queue := mustQueue(t, QueueConfig{Saver: saver, Debounce: time.Hour})

	queue.Enqueue(testEvent{key: "annotate-column-update-a1", payload: "first"})
	queue.Enqueue(testEvent{key: "annotate-column-update-a1", payload: "second"})
	queue.Enqueue(testEvent{key: "settings-update", payload: "settings"})

	if queue.Len() != 2 {
		t.Fatalf("expected 2 pending keys, got %d", queue.Len())
	}

	if err := queue.Flush(context.Background()); err != nil {
		t.Fatalf("unexpected flush error: %v", err)
	}

	batch := saver.lastBatch()
	if len(batch) != 2 {
		t.Fatalf("expected 2 events in batch, got %d", len(batch))
	}
	first, ok := batch[0].(testEvent)
	if !ok || first.payload != "second" {
		t.Fatalf("expected latest payload to win, got %+v", batch[0])
	}
	if queue.Len() != 0 {
		t.Fatalf("flushed queue should be empty, got %d", queue.Len())
	}
}

func TestFlushEmptyIsNoOp(t *testing.T) {
	saver := &recordingSaver{}
	queue := mustQueue(t, QueueConfig{Saver: saver, Debounce: time.Hour})

	if err := queue.Flush(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if saver.batchCount() != 0 {
		t.Fatalf("empty flush must not call the saver")
	}
}

func TestDebounceTriggersFlush(t *testing.T) {
	saver := &recordingSaver{}
	queue := mustQueue(t, QueueConfig{Saver: saver, Debounce: 20 * time.Millisecond})

	queue.Enqueue(testEvent{key: "a", payload: "1"})
	queue.Enqueue(testEvent{key: "b", payload: "2"})

	deadline := time.Now().Add(2 * time.Second)
	for queue.Len() != 0 {
		if time.Now().After(deadline) {
			t.Fatalf("debounced flush never drained the queue")
		}
		time.Sleep(5 * time.Millisecond)
	}
	if saver.batchCount() != 1 {
		t.Fatalf("expected a single batch, got %d", saver.batchCount())
	}
}

func TestEnqueueRestartsDebounceTimer(t *testing.T) {
	saver := &recordingSaver{}
	queue := mustQueue(t, QueueConfig{Saver: saver, Debounce: 60 * time.Millisecond})

	queue.Enqueue(testEvent{key: "a", payload: "1"})
	time.Sleep(35 * time.Millisecond)
	queue.Enqueue(testEvent{key: "a", payload: "2"})
	time.Sleep(35 * time.Millisecond)

	// 70ms after the first enqueue but only 35ms after the second: the
	// restarted timer must not have fired yet.
	if saver.batchCount() != 0 {
		t.Fatalf("timer was not restarted by the second enqueue")
	}
}

func TestFailedFlushRetainsEvents(t *testing.T) {
	saver := &recordingSaver{err: errors.New("backend down")}
	notifier := &recordingNotifier{}
	queue := mustQueue(t, QueueConfig{Saver: saver, Debounce: time.Hour, Notifier: notifier})

	queue.Enqueue(testEvent{key: "a", payload: "1"})

	err := queue.Flush(context.Background())
	if err == nil {
		t.Fatalf("expected flush error")
	}
	var queueErr *QueueError
	if !errors.As(err, &queueErr) || queueErr.Code() != "changelog.queue.flush.save_failed" {
		t.Fatalf("unexpected error: %v", err)
	}
	if queue.Len() != 1 {
		t.Fatalf("failed flush must retain events, got len %d", queue.Len())
	}

	notifier.mu.Lock()
	messageCount := len(notifier.messages)
	notifier.mu.Unlock()
	if messageCount != 1 {
		t.Fatalf("expected one failure notice, got %d", messageCount)
	}

	// Recovery: the retained event goes out with the next flush.
	saver.err = nil
	if err := queue.Flush(context.Background()); err != nil {
		t.Fatalf("retry flush failed: %v", err)
	}
	if queue.Len() != 0 {
		t.Fatalf("retry should drain the queue")
	}
}

func TestEnqueueDuringFlushIsPreserved(t *testing.T) {
	saver := &recordingSaver{
		blocking: true,
		started:  make(chan struct{}),
		proceed:  make(chan struct{}),
	}
	queue := mustQueue(t, QueueConfig{Saver: saver, Debounce: time.Hour})

	queue.Enqueue(testEvent{key: "a", payload: "old"})

	flushDone := make(chan error, 1)
	go func() {
		flushDone <- queue.Flush(context.Background())
	}()

	<-saver.started
	if !queue.Pushing() {
		t.Fatalf("pushing flag should be set during an in-flight save")
	}
	// These arrive while the snapshot is already with the saver.
	queue.Enqueue(testEvent{key: "a", payload: "new"})
	queue.Enqueue(testEvent{key: "b", payload: "fresh"})
	close(saver.proceed)

	if err := <-flushDone; err != nil {
		t.Fatalf("unexpected flush error: %v", err)
	}
	if queue.Pushing() {
		t.Fatalf("pushing flag should clear after the save")
	}

	// Key "a" was rewritten mid-flight and key "b" is new; both survive.
	if queue.Len() != 2 {
		t.Fatalf("in-flight enqueues were dropped, len = %d", queue.Len())
	}
	events := queue.Changes()
	found := map[string]string{}
	for _, event := range events {
		te := event.(testEvent)
		found[te.key] = te.payload
	}
	if found["a"] != "new" || found["b"] != "fresh" {
		t.Fatalf("unexpected retained events: %v", found)
	}
}

func TestChangesReturnsEnqueueOrder(t *testing.T) {
	saver := &recordingSaver{}
	queue := mustQueue(t, QueueConfig{Saver: saver, Debounce: time.Hour})

	queue.Enqueue(testEvent{key: "c", payload: "3"})
	queue.Enqueue(testEvent{key: "a", payload: "1"})
	queue.Enqueue(testEvent{key: "b", payload: "2"})
	// Rewriting "c" moves it to the back of the order.
	queue.Enqueue(testEvent{key: "c", payload: "3b"})

	events := queue.Changes()
	if len(events) != 3 {
		t.Fatalf("expected 3 events, got %d", len(events))
	}
	keys := make([]string, 0, len(events))
	for _, event := range events {
		keys = append(keys, event.ChangeKey())
	}
	want := []string{"a", "b", "c"}
	for i := range want {
		if keys[i] != want[i] {
			t.Fatalf("order = %v, want %v", keys, want)
		}
	}
}

func TestCloseFlushesPending(t *testing.T) {
	saver := &recordingSaver{}
	queue := mustQueue(t, QueueConfig{Saver: saver, Debounce: time.Hour})

	queue.Enqueue(testEvent{key: "a", payload: "1"})
	if err := queue.Close(context.Background()); err != nil {
		t.Fatalf("unexpected close error: %v", err)
	}
	if saver.batchCount() != 1 {
		t.Fatalf("close should deliver the pending batch")
	}
	if queue.Len() != 0 {
		t.Fatalf("close should drain the queue")
	}
}

func TestEnqueueNilEventIgnored(t *testing.T) {
	saver := &recordingSaver{}
	queue := mustQueue(t, QueueConfig{Saver: saver, Debounce: time.Hour})
	queue.Enqueue(nil)
	if queue.Len() != 0 {
		t.Fatalf("nil event should be ignored")
	}
}
