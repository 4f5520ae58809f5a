package config

import "sync"

// Live is the shared in-memory settings holder: the single source of
// truth every component (filter pipeline, builder, dispatcher, tracker,
// planner, engine) reads its current parameters from. The engine is the
// only writer: Start replaces the settings with the loaded document and
// SetParameter changes single parameters.
type Live struct {
	mu sync.RWMutex
	s  Settings
}

func NewLive(initial Settings) *Live {
	return &Live{s: initial}
}

func (l *Live) Get() Settings {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.s
}

func (l *Live) Set(s Settings) {
	l.mu.Lock()
	l.s = s
	l.mu.Unlock()
}

// Mutate applies fn to the current settings under the write lock and
// returns the updated value.
func (l *Live) Mutate(fn func(*Settings) error) (Settings, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := fn(&l.s); err != nil {
		return l.s, err
	}
	return l.s, nil
}
