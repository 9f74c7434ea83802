// internal/adapters/out/notify/feed_notifier.go
package notify

import (
	"sync"
	"time"

	usecase "storefront/internal/application/usecase"
)

const defaultFeedCapacity = 50

// Entry is a notification with the time it was raised.
type Entry struct {
	usecase.Notification
	At time.Time `json:"at"`
}

// FeedNotifier buffers notifications until the client drains them.
// When full, the oldest entries are dropped. Notify never blocks.
type FeedNotifier struct {
	mu       sync.Mutex
	entries  []Entry
	capacity int
	now      func() time.Time
}

func NewFeedNotifier(capacity int) *FeedNotifier {
	if capacity <= 0 {
		capacity = defaultFeedCapacity
	}
	return &FeedNotifier{capacity: capacity, now: time.Now}
}

func (f *FeedNotifier) Notify(n usecase.Notification) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = append(f.entries, Entry{Notification: n, At: f.now().UTC()})
	if over := len(f.entries) - f.capacity; over > 0 {
		f.entries = append(f.entries[:0:0], f.entries[over:]...)
	}
}

// Drain returns and removes everything buffered so far.
func (f *FeedNotifier) Drain() []Entry {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := f.entries
	f.entries = nil
	if out == nil {
		out = []Entry{}
	}
	return out
}

// Len is the number of buffered entries.
func (f *FeedNotifier) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.entries)
}
