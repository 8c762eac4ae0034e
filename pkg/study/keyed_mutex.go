package study

import "sync"

// keyedMutex serializes work per key without holding a global lock while the work runs.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*keyedLock
}

type keyedLock struct {
	mu      sync.Mutex
	holders int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*keyedLock)}
}

// Lock blocks until key is free and returns the matching unlock function.
func (keyed *keyedMutex) Lock(key string) func() {
	keyed.mu.Lock()
	lock, exists := keyed.locks[key]
	if !exists {
		lock = &keyedLock{}
		keyed.locks[key] = lock
	}
	lock.holders++
	keyed.mu.Unlock()

	lock.mu.Lock()
	return func() {
		lock.mu.Unlock()
		keyed.mu.Lock()
		lock.holders--
		if lock.holders == 0 {
			delete(keyed.locks, key)
		}
		keyed.mu.Unlock()
	}
}
