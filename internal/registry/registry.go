package registry

import (
	"fmt"
	"sort"
	"sync"
)

// Registry is the flat namespace of tasks.
type Registry struct {
	mu    sync.RWMutex
	tasks map[string]*Task
	index map[string]*Task
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{
		tasks: make(map[string]*Task),
		index: make(map[string]*Task),
	}
}

// Register adds a task. Names and aliases must be unique across the registry.
func (r *Registry) Register(task Task) error {
	if task.Name == "" {
		return fmt.Errorf("task name cannot be empty")
	}
	if task.Run == nil {
		return fmt.Errorf("task %q has no implementation", task.Name)
	}
	seen := map[string]bool{}
	for _, p := range task.Params {
		if err := p.validate(); err != nil {
			return fmt.Errorf("task %q: %w", task.Name, err)
		}
		if seen[p.FlagName()] {
			return fmt.Errorf("task %q: %w: duplicate %s", task.Name, ErrInvalidParameter, p.Name)
		}
		seen[p.FlagName()] = true
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	t := task
	names := t.Names()
	for _, n := range names {
		if existing, ok := r.index[n]; ok {
			return fmt.Errorf("%w: %q (used by %q)", ErrDuplicateTask, n, existing.Name)
		}
	}
	r.tasks[t.Name] = &t
	for _, n := range names {
		r.index[n] = &t
	}
	return nil
}

// MustRegister is Register that panics on error, for static task tables.
func (r *Registry) MustRegister(tasks ...Task) {
	for _, t := range tasks {
		if err := r.Register(t); err != nil {
			panic(err)
		}
	}
}

// Lookup finds a task by name, alias, or their underscore spellings.
func (r *Registry) Lookup(name string) (*Task, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.index[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTask, name)
	}
	return t, nil
}

// Tasks returns all tasks sorted by name.
func (r *Registry) Tasks() []*Task {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tasks := make([]*Task, 0, len(r.tasks))
	for _, t := range r.tasks {
		tasks = append(tasks, t)
	}
	sort.Slice(tasks, func(i, j int) bool {
		return tasks[i].Name < tasks[j].Name
	})
	return tasks
}

// Count returns the number of registered tasks.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tasks)
}
