// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Plugger Contributors

package plugin

import (
	"context"
	"sync"
)

// session is a FIFO mutual-exclusion lock whose waiters can give up when
// their context ends. A held session is never abandoned.
type session struct {
	mu      sync.Mutex
	held    bool
	waiters []chan struct{}
}

func (s *session) acquire(ctx context.Context) error {
	s.mu.Lock()
	if !s.held && len(s.waiters) == 0 {
		s.held = true
		s.mu.Unlock()
		return nil
	}
	ready := make(chan struct{})
	s.waiters = append(s.waiters, ready)
	s.mu.Unlock()

	select {
	case <-ready:
		return nil
	case <-ctx.Done():
		s.mu.Lock()
		defer s.mu.Unlock()
		for i, w := range s.waiters {
			if w == ready {
				s.waiters = append(s.waiters[:i], s.waiters[i+1:]...)
				return ctx.Err()
			}
		}
		// Ownership was handed over while we were giving up; pass it on.
		s.handOff()
		return ctx.Err()
	}
}

func (s *session) release() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handOff()
}

// handOff transfers the held session to the next waiter or frees it.
// s.mu must be held.
func (s *session) handOff() {
	if len(s.waiters) == 0 {
		s.held = false
		return
	}
	next := s.waiters[0]
	s.waiters = s.waiters[1:]
	close(next)
}
