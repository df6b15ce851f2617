package chat

import "sync"

// lockPool hands out one mutex per conversation id so appends and
// read-marking for the same conversation never interleave. Entries are
// retained for the life of the process; conversations are never deleted
// and the set is bounded by the number of participant pairs.
type lockPool struct {
	mu sync.Mutex
	m  map[string]*sync.Mutex
}

func (p *lockPool) get(key string) *sync.Mutex {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.m == nil {
		p.m = make(map[string]*sync.Mutex)
	}
	if l, ok := p.m[key]; ok {
		return l
	}
	l := &sync.Mutex{}
	p.m[key] = l
	return l
}
