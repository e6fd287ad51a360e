package repository

import (
	"time"

	"github.com/okian/fitrep/pkg/logger"
)

// Option applies a configuration option to the MemStore.
type Option func(*MemStore)

// WithPersister loads records on start and saves them on flush.
func WithPersister(p Persister) Option {
	return func(s *MemStore) { s.persister = p }
}

// WithFlushInterval sets how often pending changes are written. Single
// mutations are coalesced until the next tick.
func WithFlushInterval(interval time.Duration) Option {
	return func(s *MemStore) {
		if interval > 0 {
			s.flushInterval = interval
		}
	}
}

// WithObserver registers fn to run after every committed mutation.
func WithObserver(fn Observer) Option {
	return func(s *MemStore) {
		if fn != nil {
			s.observers = append(s.observers, fn)
		}
	}
}

// WithLogger sets the store logger.
func WithLogger(l logger.Logger) Option {
	return func(s *MemStore) {
		if l != nil {
			s.logger = l
		}
	}
}
