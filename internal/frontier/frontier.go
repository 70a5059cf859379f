// Package frontier holds the crawl-scoped BFS work queue and URL sets.
//
// All structures here are mutated only by the orchestrating goroutine
// between extraction batches, so they carry no locks.
package frontier

// Item is one unit of BFS work: a URL and the depth it was found at.
type Item struct {
	URL   string
	Depth int
}

// Queue is a FIFO frontier of pending items.
type Queue struct {
	items []Item
}

// NewQueue creates a frontier queue seeded with the given items.
func NewQueue(seed ...Item) *Queue {
	q := &Queue{items: make([]Item, 0, 16)}
	q.items = append(q.items, seed...)
	return q
}

// Push appends an item.
func (q *Queue) Push(item Item) {
	q.items = append(q.items, item)
}

// Pop removes and returns the oldest item. ok is false when empty.
func (q *Queue) Pop() (item Item, ok bool) {
	if len(q.items) == 0 {
		return Item{}, false
	}
	item = q.items[0]
	q.items = q.items[1:]
	return item, true
}

// Len returns the number of pending items.
func (q *Queue) Len() int {
	return len(q.items)
}

// VisitedSet tracks URLs that have been dequeued for processing.
type VisitedSet map[string]struct{}

// NewVisitedSet creates an empty visited set.
func NewVisitedSet() VisitedSet {
	return make(VisitedSet)
}

// Has reports whether url was visited.
func (s VisitedSet) Has(url string) bool {
	_, ok := s[url]
	return ok
}

// Add marks url as visited.
func (s VisitedSet) Add(url string) {
	s[url] = struct{}{}
}

// DiscoveredSet is the ordered, bounded set of URLs accepted as crawl
// output. Insertion order is the output order.
type DiscoveredSet struct {
	order []string
	seen  map[string]struct{}
	limit int
}

// NewDiscoveredSet creates a discovered set bounded by limit.
func NewDiscoveredSet(limit int) *DiscoveredSet {
	return &DiscoveredSet{
		seen:  make(map[string]struct{}),
		limit: limit,
	}
}

// Add inserts url if it is new and the set is not full. It reports whether
// the URL was added.
func (d *DiscoveredSet) Add(url string) bool {
	if d.Full() {
		return false
	}
	if _, ok := d.seen[url]; ok {
		return false
	}
	d.seen[url] = struct{}{}
	d.order = append(d.order, url)
	return true
}

// Has reports whether url is already in the set.
func (d *DiscoveredSet) Has(url string) bool {
	_, ok := d.seen[url]
	return ok
}

// Full reports whether the set reached its bound.
func (d *DiscoveredSet) Full() bool {
	return d.limit > 0 && len(d.order) >= d.limit
}

// Len returns the number of discovered URLs.
func (d *DiscoveredSet) Len() int {
	return len(d.order)
}

// URLs returns the discovered URLs in insertion order.
func (d *DiscoveredSet) URLs() []string {
	out := make([]string, len(d.order))
	copy(out, d.order)
	return out
}
