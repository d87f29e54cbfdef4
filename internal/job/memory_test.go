package job

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func (r *MemoryRepository) watcherCount(id string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.watchers[id])
}

// receive waits for the next value on ch, failing the test after a second.
func receive(t *testing.T, ch <-chan *Job) (*Job, bool) {
	t.Helper()
	select {
	case j, ok := <-ch:
		return j, ok
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for a job snapshot")
		return nil, false
	}
}

func TestMemoryRepository_SnapshotIsolation(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	j := NewWithID("job-1")
	j.Result.Files = []string{"frame000000.jpg"}
	if err := repo.Save(ctx, j); err != nil {
		t.Fatalf("save: %v", err)
	}

	// Mutating the caller's job after Save must not leak in.
	j.Progress = 40
	j.Result.Files[0] = "mutated.jpg"

	found, err := repo.FindByID(ctx, "job-1")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if found.Progress != 0 || found.Result.Files[0] != "frame000000.jpg" {
		t.Errorf("stored snapshot changed after Save: progress=%d files=%v", found.Progress, found.Result.Files)
	}

	// Mutating a returned job must not leak back either.
	found.Progress = 99
	listed, _ := repo.List(ctx)
	listed[0].Result.Files[0] = "also-mutated.jpg"

	again, _ := repo.FindByID(ctx, "job-1")
	if again.Progress != 0 || again.Result.Files[0] != "frame000000.jpg" {
		t.Errorf("stored snapshot changed through a read: progress=%d files=%v", again.Progress, again.Result.Files)
	}
}

func TestMemoryRepository_SaveReplaces(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()
	j := NewWithID("job-1")
	_ = repo.Save(ctx, j)

	_ = j.Start()
	j.UpdateProgress(3, 4)
	_ = repo.Save(ctx, j)

	found, _ := repo.FindByID(ctx, "job-1")
	if found.Status != StatusRunning {
		t.Errorf("expected status %s, got %s", StatusRunning, found.Status)
	}
	if found.Progress != 75 {
		t.Errorf("expected progress 75, got %d", found.Progress)
	}
}

func TestMemoryRepository_NotFound(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	if _, err := repo.FindByID(ctx, "missing"); !errors.Is(err, ErrJobNotFound) {
		t.Errorf("FindByID: expected ErrJobNotFound, got %v", err)
	}
	if err := repo.Delete(ctx, "missing"); !errors.Is(err, ErrJobNotFound) {
		t.Errorf("Delete: expected ErrJobNotFound, got %v", err)
	}
	if _, err := repo.Watch(ctx, "missing"); !errors.Is(err, ErrJobNotFound) {
		t.Errorf("Watch: expected ErrJobNotFound, got %v", err)
	}
}

func TestMemoryRepository_List_OldestFirst(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	if jobs, _ := repo.List(ctx); len(jobs) != 0 {
		t.Fatalf("expected empty list, got %d jobs", len(jobs))
	}

	base := time.Now()
	for i, id := range []string{"job-c", "job-a", "job-b"} {
		j := NewWithID(id)
		j.CreatedAt = base.Add(time.Duration(i) * time.Second)
		_ = repo.Save(ctx, j)
	}
	// Same creation time as job-c; ties are ordered by ID.
	tied := NewWithID("job-0")
	tied.CreatedAt = base
	_ = repo.Save(ctx, tied)

	jobs, _ := repo.List(ctx)
	want := []string{"job-0", "job-c", "job-a", "job-b"}
	if len(jobs) != len(want) {
		t.Fatalf("expected %d jobs, got %d", len(want), len(jobs))
	}
	for i, id := range want {
		if jobs[i].ID != id {
			t.Errorf("position %d: expected %s, got %s", i, id, jobs[i].ID)
		}
	}
}

func TestMemoryRepository_Watch_DeliversCurrentThenUpdates(t *testing.T) {
	repo := NewMemoryRepository()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	j := NewWithID("job-1")
	_ = repo.Save(ctx, j)

	updates, err := repo.Watch(ctx, "job-1")
	if err != nil {
		t.Fatalf("watch: %v", err)
	}

	first, ok := receive(t, updates)
	if !ok || first.Status != StatusInQueue {
		t.Fatalf("expected the current IN_QUEUE snapshot first, got %+v (open=%v)", first, ok)
	}

	_ = j.Start()
	_ = repo.Save(ctx, j)

	next, ok := receive(t, updates)
	if !ok || next.Status != StatusRunning {
		t.Fatalf("expected a RUNNING snapshot, got %+v (open=%v)", next, ok)
	}
}

func TestMemoryRepository_Watch_SlowReaderSeesNewest(t *testing.T) {
	repo := NewMemoryRepository()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	j := NewWithID("job-1")
	_ = j.Start()
	_ = repo.Save(ctx, j)

	updates, _ := repo.Watch(ctx, "job-1")

	// Nobody reads while these are saved; only the last may remain.
	for done := 1; done <= 5; done++ {
		j.UpdateProgress(done, 10)
		_ = repo.Save(ctx, j)
	}

	got, _ := receive(t, updates)
	if got.Done != 5 {
		t.Errorf("expected the newest snapshot (done=5), got done=%d", got.Done)
	}
	select {
	case extra := <-updates:
		t.Errorf("expected no further snapshot, got done=%d", extra.Done)
	default:
	}
}

func TestMemoryRepository_Watch_ClosesAfterTerminal(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	j := NewWithID("job-1")
	_ = j.Start()
	_ = repo.Save(ctx, j)

	updates, _ := repo.Watch(ctx, "job-1")
	receive(t, updates)

	_ = j.Complete()
	_ = repo.Save(ctx, j)

	final, ok := receive(t, updates)
	if !ok || final.Status != StatusCompleted {
		t.Fatalf("expected the COMPLETED snapshot, got %+v (open=%v)", final, ok)
	}
	if _, ok := receive(t, updates); ok {
		t.Error("expected the channel to close after a terminal snapshot")
	}
	if n := repo.watcherCount("job-1"); n != 0 {
		t.Errorf("expected no watchers left, got %d", n)
	}

	// Watching a finished job yields its final state and an already closed channel.
	late, err := repo.Watch(ctx, "job-1")
	if err != nil {
		t.Fatalf("watch finished job: %v", err)
	}
	if got, ok := receive(t, late); !ok || got.Status != StatusCompleted {
		t.Errorf("expected the COMPLETED snapshot, got %+v (open=%v)", got, ok)
	}
	if _, ok := receive(t, late); ok {
		t.Error("expected a closed channel for a finished job")
	}
}

func TestMemoryRepository_Watch_ClosedByDelete(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()
	_ = repo.Save(ctx, NewWithID("job-1"))

	updates, _ := repo.Watch(ctx, "job-1")
	receive(t, updates)

	if err := repo.Delete(ctx, "job-1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, ok := receive(t, updates); ok {
		t.Error("expected the channel to close when the job is deleted")
	}
	if _, err := repo.FindByID(ctx, "job-1"); !errors.Is(err, ErrJobNotFound) {
		t.Errorf("expected ErrJobNotFound after delete, got %v", err)
	}
}

func TestMemoryRepository_Watch_ClosedByContext(t *testing.T) {
	repo := NewMemoryRepository()
	_ = repo.Save(context.Background(), NewWithID("job-1"))

	ctx, cancel := context.WithCancel(context.Background())
	updates, _ := repo.Watch(ctx, "job-1")
	receive(t, updates)

	cancel()
	if _, ok := receive(t, updates); ok {
		t.Error("expected the channel to close when ctx is cancelled")
	}
	if n := repo.watcherCount("job-1"); n != 0 {
		t.Errorf("expected the watcher to be removed, got %d", n)
	}

	// Later saves must not panic on the closed channel.
	_ = repo.Save(context.Background(), NewWithID("job-1"))
}

func TestMemoryRepository_ConcurrentSaveAndWatch(t *testing.T) {
	repo := NewMemoryRepository()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	j := NewWithID("job-1")
	_ = j.Start()
	_ = repo.Save(ctx, j)

	var wg sync.WaitGroup
	for range 4 {
		updates, err := repo.Watch(ctx, "job-1")
		if err != nil {
			t.Fatalf("watch: %v", err)
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range updates {
			}
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		for range 100 {
			_, _ = repo.List(ctx)
		}
	}()

	for done := 1; done <= 100; done++ {
		j.UpdateProgress(done, 100)
		_ = repo.Save(ctx, j)
	}
	_ = j.Complete()
	_ = repo.Save(ctx, j)

	wg.Wait()
}
