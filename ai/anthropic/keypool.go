package anthropic

import (
	"sync"
)

// keyPool rotates through a set of API keys round-robin. The pipeline never
// learns how many credentials exist; rotation is entirely internal to the
// client.
type keyPool struct {
	mu   sync.Mutex
	keys []string
	next int
}

func newKeyPool(keys []string) *keyPool {
	// Drop empty entries so a sparse config doesn't produce dead slots
	cleaned := make([]string, 0, len(keys))
	for _, k := range keys {
		if k != "" {
			cleaned = append(cleaned, k)
		}
	}
	return &keyPool{keys: cleaned}
}

// Next returns the next key in rotation, or "" if the pool is empty
func (p *keyPool) Next() string {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.keys) == 0 {
		return ""
	}
	key := p.keys[p.next]
	p.next = (p.next + 1) % len(p.keys)
	return key
}

// Size returns the number of usable keys
func (p *keyPool) Size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.keys)
}
