package job

import (
	"context"
	"errors"
)

// ErrJobNotFound is returned when no job is stored under an ID.
var ErrJobNotFound = errors.New("job not found")

// Repository stores extraction jobs and publishes their changes.
//
// Stored values are snapshots: a job handed to Save may keep changing
// without affecting what the repository holds, and a job returned by
// FindByID, List or a watch channel can be mutated freely.
type Repository interface {
	// Save stores a snapshot of job, replacing any earlier one, and
	// notifies every watcher of that job.
	Save(ctx context.Context, job *Job) error

	// FindByID returns the latest snapshot, or ErrJobNotFound.
	FindByID(ctx context.Context, id string) (*Job, error)

	// List returns every job, oldest first. Jobs created at the same
	// instant are ordered by ID.
	List(ctx context.Context) ([]*Job, error)

	// Delete drops a job and closes its watch channels.
	// Returns ErrJobNotFound if the job does not exist.
	Delete(ctx context.Context, id string) error

	// Watch streams snapshots of one job. The current snapshot is
	// delivered first; later ones follow each Save. A slow reader only
	// ever sees the newest pending snapshot, never a stale one.
	//
	// The channel is closed after a terminal snapshot has been delivered,
	// when the job is deleted, or when ctx is done. Returns ErrJobNotFound
	// if the job does not exist.
	Watch(ctx context.Context, id string) (<-chan *Job, error)
}
