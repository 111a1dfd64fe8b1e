package tasks

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore keeps tasks in process. It backs local development and tests.
type MemoryStore struct {
	nowFunc func() time.Time

	mu    sync.RWMutex
	tasks map[string]Task
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		nowFunc: time.Now,
		tasks:   make(map[string]Task),
	}
}

func (s *MemoryStore) List(_ context.Context, owner Owner, f Filters) ([]Task, error) {
	if err := checkOwner(owner); err != nil {
		return nil, err
	}
	f = f.Normalize()

	s.mu.RLock()
	out := make([]Task, 0)
	for _, t := range s.tasks {
		if t.UserID == owner.ID && matches(t, f) {
			out = append(out, t)
		}
	}
	s.mu.RUnlock()

	// map order is random; settle ties by creation before the requested sort
	sortTasks(out, SortCreatedAt)
	sortTasks(out, f.Sort)
	return out, nil
}

func (s *MemoryStore) Create(_ context.Context, owner Owner, d Draft) (Task, error) {
	if err := checkOwner(owner); err != nil {
		return Task{}, err
	}
	if err := validateDraft(d); err != nil {
		return Task{}, err
	}
	d = d.normalized()

	now := s.nowFunc().UTC()
	t := Task{
		ID:          uuid.NewString(),
		UserID:      owner.ID,
		Title:       d.Title,
		Description: d.Description,
		Priority:    d.Priority,
		DueDate:     d.DueDate,
		Status:      d.Status,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	s.mu.Lock()
	s.tasks[t.ID] = t
	s.mu.Unlock()
	return t, nil
}

func (s *MemoryStore) Update(_ context.Context, owner Owner, id string, p Patch) (Task, error) {
	if err := checkOwner(owner); err != nil {
		return Task{}, err
	}
	if err := validatePatch(p); err != nil {
		return Task{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok || t.UserID != owner.ID {
		return Task{}, ErrNotFound
	}
	p.apply(&t)
	t.UpdatedAt = s.nowFunc().UTC()
	s.tasks[id] = t
	return t, nil
}

func (s *MemoryStore) Delete(_ context.Context, owner Owner, id string) error {
	if err := checkOwner(owner); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok || t.UserID != owner.ID {
		return ErrNotFound
	}
	delete(s.tasks, id)
	return nil
}

func (s *MemoryStore) ClearCompleted(_ context.Context, owner Owner) (int, error) {
	if err := checkOwner(owner); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, t := range s.tasks {
		if t.UserID == owner.ID && t.Status == StatusCompleted {
			delete(s.tasks, id)
			n++
		}
	}
	return n, nil
}
