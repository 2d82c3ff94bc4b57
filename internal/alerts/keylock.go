package alerts

import "sync"

// keyedLock is a set of non-blocking per-key locks. A key is either held or
// free; TryLock never waits.
type keyedLock struct {
	mu   sync.Mutex
	held map[int64]struct{}
}

func newKeyedLock() *keyedLock {
	return &keyedLock{held: make(map[int64]struct{})}
}

// TryLock takes key and reports true, or reports false if it is already held.
func (k *keyedLock) TryLock(key int64) bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	if _, busy := k.held[key]; busy {
		return false
	}
	k.held[key] = struct{}{}
	return true
}

func (k *keyedLock) Unlock(key int64) {
	k.mu.Lock()
	delete(k.held, key)
	k.mu.Unlock()
}
