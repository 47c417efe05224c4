package statis

import "sync"

// Reloader reloads all connected browsers.
type Reloader interface {
	Reload()
}

// Session is shared by the plugins of one Statis.
// The reload plugin publishes its server once it is ready,
// the statis plugin uses it after every generator run.
type Session struct {
	mu       sync.RWMutex
	reloader Reloader
}

func (s *Session) SetReloader(r Reloader) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.reloader = r
}

// Reloader returns the running reload server or nil.
func (s *Session) Reloader() Reloader { //nolint:ireturn // nil if none is running
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.reloader
}
