package scrape

import "sync"

// Visited is the set of resource ids already handled during one export.
// It is shared by every branch of the walk; MarkIfNew is the single
// check-and-insert point.
type Visited struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

// NewVisited returns an empty set.
func NewVisited() *Visited {
	return &Visited{seen: make(map[string]struct{})}
}

// MarkIfNew records id and reports whether it was not yet present. Only the
// first caller for a given id gets true.
func (v *Visited) MarkIfNew(id string) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	if _, ok := v.seen[id]; ok {
		return false
	}
	v.seen[id] = struct{}{}
	return true
}

// Len returns the number of marked ids.
func (v *Visited) Len() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.seen)
}
