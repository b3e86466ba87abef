package cluster

import (
	"context"

	"github.com/st3v3nmw/replcheck/pkg/threadsafe"
)

type memoryStore struct {
	sessions *threadsafe.Map[string, int]
}

// NewMemoryStore keeps sessions in process memory; nodes sharing it must run
// in the same process.
func NewMemoryStore() *memoryStore {
	return &memoryStore{sessions: threadsafe.NewMap[string, int]()}
}

func (s *memoryStore) Create(ctx context.Context) (string, error) {
	for {
		id := newSessionID()
		if s.sessions.SetIfAbsent(id, 0) {
			return id, nil
		}
	}
}

func (s *memoryStore) Exists(ctx context.Context, id string) (bool, error) {
	_, ok := s.sessions.Get(id)
	return ok, nil
}

func (s *memoryStore) Increment(ctx context.Context, id string) (int, error) {
	old, ok := s.sessions.Update(id, func(v int) int { return v + 1 })
	if !ok {
		return 0, ErrNotFound
	}

	return old, nil
}

func (s *memoryStore) Invalidate(ctx context.Context, id string) (bool, error) {
	return s.sessions.Delete(id), nil
}

func (s *memoryStore) Count(ctx context.Context) (int, error) {
	return s.sessions.Len(), nil
}

func (s *memoryStore) Close() error {
	return nil
}
