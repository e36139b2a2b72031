package history

import (
	"context"
	"sync"
	"time"
)

// ScrollStore persists message-pane scroll offsets keyed by lead.
type ScrollStore interface {
	Get(ctx context.Context, key string) (offset int, ok bool, err error)
	Set(ctx context.Context, key string, offset int) error
	Delete(ctx context.Context, key string) error
}

// ScrollKey returns the storage key for a lead's scroll offset.
func ScrollKey(leadID string) string {
	return "scroll_position_" + leadID
}

// MemoryScrollStore is a process-lifetime ScrollStore, the equivalent of
// browser session storage. It is safe for concurrent use.
type MemoryScrollStore struct {
	mu      sync.Mutex
	offsets map[string]int
}

// NewMemoryScrollStore creates an empty in-memory store.
func NewMemoryScrollStore() *MemoryScrollStore {
	return &MemoryScrollStore{offsets: make(map[string]int)}
}

func (s *MemoryScrollStore) Get(_ context.Context, key string) (int, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.offsets[key]
	return v, ok, nil
}

func (s *MemoryScrollStore) Set(_ context.Context, key string, offset int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.offsets[key] = offset
	return nil
}

func (s *MemoryScrollStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.offsets, key)
	return nil
}

// debouncer runs the most recently scheduled function once no new call
// has arrived for delay.
type debouncer struct {
	mu      sync.Mutex
	delay   time.Duration
	timer   *time.Timer
	pending func()
	stopped bool
	running sync.WaitGroup
}

func newDebouncer(delay time.Duration) *debouncer {
	return &debouncer{delay: delay}
}

func (d *debouncer) Do(fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}
	if d.timer != nil {
		d.timer.Stop()
	}
	d.pending = fn
	d.timer = time.AfterFunc(d.delay, d.fire)
}

func (d *debouncer) fire() {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return
	}
	fn := d.pending
	d.pending = nil
	if fn != nil {
		d.running.Add(1)
	}
	d.mu.Unlock()
	if fn != nil {
		defer d.running.Done()
		fn()
	}
}

// Flush stops the timer and runs any pending call synchronously.
func (d *debouncer) Flush() {
	d.mu.Lock()
	if d.timer != nil {
		d.timer.Stop()
	}
	fn := d.pending
	d.pending = nil
	d.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// Stop drops any pending call and ignores future ones. It returns once a
// call already started by the timer has finished.
func (d *debouncer) Stop() {
	d.mu.Lock()
	d.stopped = true
	d.pending = nil
	if d.timer != nil {
		d.timer.Stop()
	}
	d.mu.Unlock()
	d.running.Wait()
}
