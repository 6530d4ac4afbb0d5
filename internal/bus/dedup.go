package bus

import "sync"

// Dedup remembers the most recent event ids so a consumer can ignore
// redelivered events.
type Dedup struct {
	mu    sync.Mutex
	size  int
	order []string
	seen  map[string]struct{}
}

// NewDedup keeps up to size ids.
func NewDedup(size int) *Dedup {
	if size < 1 {
		size = 1
	}
	return &Dedup{size: size, seen: make(map[string]struct{}, size)}
}

// Seen reports whether id was already recorded, recording it if not.
// Empty ids are never considered seen.
func (d *Dedup) Seen(id string) bool {
	if id == "" {
		return false
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.seen[id]; ok {
		return true
	}
	if len(d.order) == d.size {
		delete(d.seen, d.order[0])
		d.order = d.order[1:]
	}
	d.order = append(d.order, id)
	d.seen[id] = struct{}{}
	return false
}
