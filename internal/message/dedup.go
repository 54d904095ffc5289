package message

import (
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// Dedup prevents duplicate message processing using a size-bounded TTL cache.
type Dedup struct {
	mu    sync.Mutex
	cache *expirable.LRU[string, struct{}]
}

func NewDedup(size int, ttl time.Duration) *Dedup {
	return &Dedup{cache: expirable.NewLRU[string, struct{}](size, nil, ttl)}
}

// IsDuplicate returns true if this key was seen within the TTL.
// If not a duplicate, records it and returns false. Empty keys are never duplicates.
func (d *Dedup) IsDuplicate(key string) bool {
	if key == "" {
		return false
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	// Get, unlike Contains, ignores entries past their TTL that are not purged yet
	if _, ok := d.cache.Get(key); ok {
		return true
	}
	d.cache.Add(key, struct{}{})
	return false
}

// Forget drops key so the message is processed again on the next sighting.
func (d *Dedup) Forget(key string) {
	d.cache.Remove(key)
}

func (d *Dedup) Len() int {
	return d.cache.Len()
}
