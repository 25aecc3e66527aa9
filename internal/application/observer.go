package application

import (
	"sync"
)

// subscribers holds the observers of one store. Callbacks are invoked in
// registration order, outside of the store lock.
type subscribers[T any] struct {
	mu   sync.Mutex
	next uint64
	fns  map[uint64]func(T)
	ids  []uint64
}

func (s *subscribers[T]) add(fn func(T)) func() {
	if fn == nil {
		return func() {}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fns == nil {
		s.fns = make(map[uint64]func(T))
	}
	s.next++
	id := s.next
	s.fns[id] = fn
	s.ids = append(s.ids, id)

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			delete(s.fns, id)
			for i, existing := range s.ids {
				if existing == id {
					s.ids = append(s.ids[:i], s.ids[i+1:]...)
					break
				}
			}
		})
	}
}

func (s *subscribers[T]) publish(state T) {
	s.mu.Lock()
	fns := make([]func(T), 0, len(s.ids))
	for _, id := range s.ids {
		fns = append(fns, s.fns[id])
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn(state)
	}
}
