// Package transport holds the pieces shared by the chat transports.
package transport

import "sync"

// Serializer runs functions in submission order per key. Functions with
// different keys run concurrently. A key with nothing queued holds no
// goroutine.
type Serializer struct {
	mu     sync.Mutex
	queues map[string][]func()
	wg     sync.WaitGroup
}

// NewSerializer creates an idle serializer
func NewSerializer() *Serializer {
	return &Serializer{
		queues: make(map[string][]func()),
	}
}

// Do queues fn to run after every function submitted earlier with key
func (s *Serializer) Do(key string, fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	queue, running := s.queues[key]
	s.queues[key] = append(queue, fn)
	if running {
		return
	}

	s.wg.Add(1)
	go s.drain(key)
}

// Pending returns the number of keys with queued or running work
func (s *Serializer) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queues)
}

// Wait blocks until every submitted function has returned
func (s *Serializer) Wait() {
	s.wg.Wait()
}

func (s *Serializer) drain(key string) {
	defer s.wg.Done()

	for {
		s.mu.Lock()
		queue := s.queues[key]
		if len(queue) == 0 {
			delete(s.queues, key)
			s.mu.Unlock()
			return
		}
		fn := queue[0]
		s.queues[key] = queue[1:]
		s.mu.Unlock()

		fn()
	}
}
