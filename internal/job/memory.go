package job

import (
	"context"
	"slices"
	"strings"
	"sync"
)

// Compile-time check that MemoryRepository implements Repository.
var _ Repository = (*MemoryRepository)(nil)

// watcher is one open Watch call. Its channel holds at most one pending
// snapshot.
type watcher struct {
	ch     chan *Job
	closed chan struct{}
}

func (w *watcher) close() {
	close(w.ch)
	close(w.closed)
}

// offer replaces any undelivered snapshot with j. Callers hold the
// repository lock, so offer is the only sender on w.ch.
func (w *watcher) offer(j *Job) {
	select {
	case <-w.ch:
	default:
	}
	w.ch <- j
}

// MemoryRepository keeps jobs for the lifetime of the serve process.
type MemoryRepository struct {
	mu       sync.RWMutex
	jobs     map[string]*Job
	watchers map[string][]*watcher
}

// NewMemoryRepository returns an empty repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		jobs:     make(map[string]*Job),
		watchers: make(map[string][]*watcher),
	}
}

// Save stores a snapshot of job and fans it out to its watchers. Watchers
// of a job that reached a terminal state receive it and are then closed.
func (r *MemoryRepository) Save(_ context.Context, job *Job) error {
	snapshot := job.Clone()

	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs[snapshot.ID] = snapshot

	for _, w := range r.watchers[snapshot.ID] {
		w.offer(snapshot.Clone())
	}
	if snapshot.IsTerminal() {
		r.closeWatchers(snapshot.ID)
	}
	return nil
}

func (r *MemoryRepository) FindByID(_ context.Context, id string) (*Job, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	stored, ok := r.jobs[id]
	if !ok {
		return nil, ErrJobNotFound
	}
	return stored.Clone(), nil
}

func (r *MemoryRepository) List(_ context.Context) ([]*Job, error) {
	r.mu.RLock()
	all := make([]*Job, 0, len(r.jobs))
	for _, stored := range r.jobs {
		all = append(all, stored.Clone())
	}
	r.mu.RUnlock()

	slices.SortFunc(all, func(a, b *Job) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return all, nil
}

func (r *MemoryRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.jobs[id]; !ok {
		return ErrJobNotFound
	}
	delete(r.jobs, id)
	r.closeWatchers(id)
	return nil
}

// Watch registers a watcher for id. A job that is already terminal yields
// a channel holding its final snapshot, already closed.
func (r *MemoryRepository) Watch(ctx context.Context, id string) (<-chan *Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.jobs[id]
	if !ok {
		return nil, ErrJobNotFound
	}

	w := &watcher{ch: make(chan *Job, 1), closed: make(chan struct{})}
	w.ch <- stored.Clone()
	if stored.IsTerminal() {
		w.close()
		return w.ch, nil
	}
	r.watchers[id] = append(r.watchers[id], w)

	go func() {
		select {
		case <-ctx.Done():
			r.unwatch(id, w)
		case <-w.closed:
		}
	}()
	return w.ch, nil
}

// unwatch closes w unless Save or Delete already did.
func (r *MemoryRepository) unwatch(id string, w *watcher) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ws := r.watchers[id]
	i := slices.Index(ws, w)
	if i < 0 {
		return
	}
	r.watchers[id] = slices.Delete(ws, i, i+1)
	if len(r.watchers[id]) == 0 {
		delete(r.watchers, id)
	}
	w.close()
}

// closeWatchers closes and forgets every watcher of id. Callers hold mu.
func (r *MemoryRepository) closeWatchers(id string) {
	for _, w := range r.watchers[id] {
		w.close()
	}
	delete(r.watchers, id)
}
