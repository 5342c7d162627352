package task

import (
	"context"
	"sort"

	"github.com/Alex1986-rgb/seomagic-saas-tool-sub002/internal/cache"
)

// Store persists tasks. Implementations return copies; callers write changes back with Update.
type Store interface {
	Create(ctx context.Context, t *Task) error
	Get(ctx context.Context, id string) (*Task, error)
	Update(ctx context.Context, t *Task) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]*Task, error)
}

// MemoryStore keeps tasks in process memory.
type MemoryStore struct {
	tasks *cache.Cache[*Task]
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{tasks: cache.New[*Task]()}
}

func (s *MemoryStore) Create(_ context.Context, t *Task) error {
	if _, stored := s.tasks.SetIfAbsent(t.ID, t.Clone()); !stored {
		return ErrExists
	}

	return nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (*Task, error) {
	t, ok := s.tasks.Get(id)
	if !ok {
		return nil, ErrNotFound
	}

	return t.Clone(), nil
}

func (s *MemoryStore) Update(_ context.Context, t *Task) error {
	if _, ok := s.tasks.Get(t.ID); !ok {
		return ErrNotFound
	}

	s.tasks.Set(t.ID, t.Clone())

	return nil
}

func (s *MemoryStore) Delete(_ context.Context, id string) error {
	if !s.tasks.Delete(id) {
		return ErrNotFound
	}

	return nil
}

// List returns all tasks ordered by start time.
func (s *MemoryStore) List(_ context.Context) ([]*Task, error) {
	tasks := make([]*Task, 0, s.tasks.Len())
	s.tasks.Range(func(_ string, t *Task) bool {
		tasks = append(tasks, t.Clone())

		return true
	})

	SortByStart(tasks)

	return tasks, nil
}

// SortByStart orders tasks by start time, then id.
func SortByStart(tasks []*Task) {
	sort.SliceStable(tasks, func(i, j int) bool {
		if tasks[i].StartTime.Equal(tasks[j].StartTime) {
			return tasks[i].ID < tasks[j].ID
		}

		return tasks[i].StartTime.Before(tasks[j].StartTime)
	})
}
