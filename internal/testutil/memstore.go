// Package testutil provides an in-memory backing store for service and
// router tests.
package testutil

import (
	"context"
	"sort"
	"sync"

	"taskdesk/internal/model"
	"taskdesk/internal/repository"
)

// MemStore keeps admins, users and tasks in memory and counts every call.
// Admins, Users and Tasks expose the per-entity store views.
type MemStore struct {
	mu     sync.Mutex
	admins []model.Admin
	users  []model.User
	tasks  []model.Task
	calls  map[string]int

	// Err, when set, is returned by every call.
	Err error
}

func NewMemStore() *MemStore {
	return &MemStore{calls: map[string]int{}}
}

func (m *MemStore) Admins() *AdminStore { return &AdminStore{m} }

func (m *MemStore) Users() *UserStore { return &UserStore{m} }

func (m *MemStore) Tasks() *TaskStore { return &TaskStore{m} }

// Calls returns how often name was invoked, e.g. "tasks.Create".
func (m *MemStore) Calls(name string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[name]
}

// TotalCalls sums every recorded call.
func (m *MemStore) TotalCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	total := 0
	for _, n := range m.calls {
		total += n
	}
	return total
}

// Task returns a copy of the stored task.
func (m *MemStore) Task(id string) (model.Task, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.tasks {
		if t.ID == id {
			return t, true
		}
	}
	return model.Task{}, false
}

// enter locks the store and records the call. Callers unlock.
func (m *MemStore) enter(name string) {
	m.mu.Lock()
	m.calls[name]++
}

type AdminStore struct{ m *MemStore }

func (s *AdminStore) Create(_ context.Context, a *model.Admin) error {
	m := s.m
	m.enter("admins.Create")
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	for _, existing := range m.admins {
		if existing.Email == a.Email {
			return repository.ErrDuplicate
		}
	}
	m.admins = append(m.admins, *a)
	return nil
}

func (s *AdminStore) FindByEmail(_ context.Context, email string) (*model.Admin, error) {
	m := s.m
	m.enter("admins.FindByEmail")
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	for _, a := range m.admins {
		if a.Email == email {
			found := a
			return &found, nil
		}
	}
	return nil, repository.ErrNotFound
}

type UserStore struct{ m *MemStore }

func (s *UserStore) Create(_ context.Context, u *model.User) error {
	m := s.m
	m.enter("users.Create")
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	for _, existing := range m.users {
		if existing.Email == u.Email {
			return repository.ErrDuplicate
		}
	}
	m.users = append(m.users, *u)
	return nil
}

func (s *UserStore) FindByEmail(_ context.Context, email string) (*model.User, error) {
	m := s.m
	m.enter("users.FindByEmail")
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	for _, u := range m.users {
		if u.Email == email {
			found := u
			return &found, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (s *UserStore) Exists(_ context.Context, id string) (bool, error) {
	m := s.m
	m.enter("users.Exists")
	defer m.mu.Unlock()
	if m.Err != nil {
		return false, m.Err
	}
	for _, u := range m.users {
		if u.ID == id {
			return true, nil
		}
	}
	return false, nil
}

func (s *UserStore) List(_ context.Context) ([]model.User, error) {
	m := s.m
	m.enter("users.List")
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	users := append([]model.User{}, m.users...)
	sort.SliceStable(users, func(i, j int) bool {
		return users[i].CreatedAt.Before(users[j].CreatedAt)
	})
	return users, nil
}

type TaskStore struct{ m *MemStore }

func (s *TaskStore) Create(_ context.Context, t *model.Task) error {
	m := s.m
	m.enter("tasks.Create")
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	owned := false
	for _, u := range m.users {
		if u.ID == t.UserID {
			owned = true
			break
		}
	}
	if !owned {
		return repository.ErrNotFound
	}
	m.tasks = append(m.tasks, *t)
	return nil
}

func (s *TaskStore) ListByUser(_ context.Context, userID string) ([]model.Task, error) {
	m := s.m
	m.enter("tasks.ListByUser")
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	tasks := []model.Task{}
	for _, t := range m.tasks {
		if t.UserID == userID {
			tasks = append(tasks, t)
		}
	}
	sort.SliceStable(tasks, func(i, j int) bool {
		return tasks[i].CreatedAt.After(tasks[j].CreatedAt)
	})
	return tasks, nil
}

func (s *TaskStore) MarkCompleted(_ context.Context, taskID string) error {
	m := s.m
	m.enter("tasks.MarkCompleted")
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	for i := range m.tasks {
		if m.tasks[i].ID == taskID {
			m.tasks[i].Status = model.StatusCompleted
			return nil
		}
	}
	return repository.ErrNotFound
}
