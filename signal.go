package statis

import "sync"

// Signal notifies all its subscribers synchronously, in the order they subscribed.
type Signal struct {
	mu          sync.Mutex
	subscribers []func()
}

func (s *Signal) Tap(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.subscribers = append(s.subscribers, fn)
}

func (s *Signal) Call() {
	s.mu.Lock()
	subscribers := make([]func(), len(s.subscribers))
	copy(subscribers, s.subscribers)
	s.mu.Unlock()

	for _, fn := range subscribers {
		fn()
	}
}
