package service

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"signup-service/internal/domain"
)

// FlowStore holds in-progress flows in memory, one per screen visit.
type FlowStore[T any] struct {
	mu    sync.RWMutex
	flows map[string]*flowEntry[T] // key: flow ID
	ttl   time.Duration
	now   func() time.Time
}

type flowEntry[T any] struct {
	flow      T
	expiresAt time.Time
}

// NewFlowStore returns a store whose flows expire ttl after creation.
// Expired flows are swept in the background until ctx is done.
func NewFlowStore[T any](ctx context.Context, ttl time.Duration) *FlowStore[T] {
	store := &FlowStore[T]{
		flows: make(map[string]*flowEntry[T]),
		ttl:   ttl,
		now:   time.Now,
	}

	go store.cleanupExpired(ctx)

	return store
}

// Put stores a flow under a fresh ID and returns the ID.
func (s *FlowStore[T]) Put(flow T) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := uuid.NewString()
	s.flows[id] = &flowEntry[T]{flow: flow, expiresAt: s.now().Add(s.ttl)}
	return id
}

// Get returns the flow stored under id.
func (s *FlowStore[T]) Get(id string) (T, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.flows[id]
	if !ok || s.now().After(entry.expiresAt) {
		var zero T
		return zero, domain.ErrFlowNotFound
	}
	return entry.flow, nil
}

// Delete removes a flow.
func (s *FlowStore[T]) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.flows, id)
}

func (s *FlowStore[T]) cleanupExpired(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep()
		}
	}
}

func (s *FlowStore[T]) sweep() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for id, entry := range s.flows {
		if now.After(entry.expiresAt) {
			delete(s.flows, id)
		}
	}
}
