package chat

import "sync"

// keyLocks serializes message handling per phone number.
type keyLocks struct {
	mutex sync.Mutex
	keys  map[string]*keyLock
}

type keyLock struct {
	mu   sync.Mutex
	refs int
}

func newKeyLocks() *keyLocks {
	return &keyLocks{keys: make(map[string]*keyLock)}
}

// Lock blocks until key is free and returns the matching unlock.
func (l *keyLocks) Lock(key string) func() {
	l.mutex.Lock()
	lock, ok := l.keys[key]
	if !ok {
		lock = &keyLock{}
		l.keys[key] = lock
	}
	lock.refs++
	l.mutex.Unlock()

	lock.mu.Lock()
	return func() {
		lock.mu.Unlock()
		l.mutex.Lock()
		lock.refs--
		if lock.refs == 0 {
			delete(l.keys, key)
		}
		l.mutex.Unlock()
	}
}
