// Package livescore keeps the point counters of the set currently in play.
// Counters are ephemeral: only recorded sets are persistent.
package livescore

import (
	"context"
	"errors"
	"sync"

	"github.com/Dosada05/tabletennis-bracket/models"
)

// ErrContended is returned when an optimistic update kept losing races.
var ErrContended = errors.New("live score update contended")

// UpdateFunc derives the next counters from the current ones. Returning an
// error aborts the update and leaves the stored pair untouched.
type UpdateFunc func(cur models.SetScore) (models.SetScore, error)

type Store interface {
	Get(ctx context.Context, matchID int) (models.SetScore, error)
	Update(ctx context.Context, matchID int, fn UpdateFunc) (models.SetScore, error)
	Reset(ctx context.Context, matchID int) error
}

type MemoryStore struct {
	mu     sync.Mutex
	points map[int]models.SetScore
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{points: make(map[int]models.SetScore)}
}

func (s *MemoryStore) Get(ctx context.Context, matchID int) (models.SetScore, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.points[matchID], nil
}

func (s *MemoryStore) Update(ctx context.Context, matchID int, fn UpdateFunc) (models.SetScore, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	next, err := fn(s.points[matchID])
	if err != nil {
		return models.SetScore{}, err
	}
	s.points[matchID] = next
	return next, nil
}

func (s *MemoryStore) Reset(ctx context.Context, matchID int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.points, matchID)
	return nil
}
