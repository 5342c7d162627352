package frontier

import "github.com/antigloss/go/concurrent/container/queue"

// Item is a URL waiting to be visited at the given depth.
type Item struct {
	URL   string
	Depth int
}

// Frontier is a FIFO of not-yet-visited items that remembers everything ever
// enqueued, so a URL is queued at most once.
// A Frontier belongs to a single crawl loop and must not be shared between goroutines.
type Frontier struct {
	queue  *queue.LockfreeQueue
	size   int
	queued map[string]bool
}

// New creates an empty frontier.
func New() *Frontier {
	return &Frontier{
		queue:  queue.NewLockfreeQueue(),
		queued: map[string]bool{},
	}
}

// Push enqueues item unless its URL was enqueued before. It reports whether the item was added.
func (f *Frontier) Push(item Item) bool {
	if f.queued[item.URL] {
		return false
	}

	f.queued[item.URL] = true
	f.size++
	f.queue.Push(item)

	return true
}

// Pop dequeues the oldest item.
func (f *Frontier) Pop() (Item, bool) {
	if f.size == 0 {
		return Item{}, false
	}

	value := f.queue.Pop()
	item, ok := value.(Item)
	if !ok {
		return Item{}, false
	}

	f.size--

	return item, true
}

// Len returns the number of items waiting.
func (f *Frontier) Len() int {
	return f.size
}

// Drain empties the frontier and returns the remaining URLs in FIFO order.
func (f *Frontier) Drain() []string {
	remaining := make([]string, 0, f.Len())
	for {
		item, ok := f.Pop()
		if !ok {
			return remaining
		}

		remaining = append(remaining, item.URL)
	}
}
