package tss

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gammazero/workerpool"
	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog"
	"go.uber.org/atomic"
)

// DefaultRetainedJobs is the default number of finished jobs kept for polling.
const DefaultRetainedJobs = 1024

var (
	ErrJobNotFound = errors.New("job not found")
	ErrJobsStopped = errors.New("job manager is stopped")
)

// JobStatus is the lifecycle position of a background operation.
type JobStatus string

const (
	JobPending   JobStatus = "pending"
	JobRunning   JobStatus = "running"
	JobSucceeded JobStatus = "succeeded"
	JobFailed    JobStatus = "failed"
	JobCancelled JobStatus = "cancelled"
)

// Finished returns true if the job will not change anymore.
func (s JobStatus) Finished() bool {
	return s == JobSucceeded || s == JobFailed || s == JobCancelled
}

// JobFunc is a long-running operation. It must return once ctx is cancelled.
type JobFunc func(ctx context.Context) (interface{}, error)

// Job is a snapshot of a background operation.
type Job struct {
	ID         string
	Kind       string
	Status     JobStatus
	Result     interface{}
	Err        error
	CreatedAt  time.Time
	FinishedAt time.Time
}

type job struct {
	Job
	cancel context.CancelFunc
}

// Jobs runs long operations in the background on a bounded worker pool and
// hands out job IDs that callers can poll or cancel. Cancelling a job cancels
// its context: the router stops delivering rounds and the running phase is
// recorded as aborted. Only the most recently finished jobs are retained.
type Jobs struct {
	log     zerolog.Logger
	pool    *workerpool.WorkerPool
	stopped *atomic.Bool
	running *atomic.Int64

	mu       sync.RWMutex
	active   map[string]*job
	finished *lru.Cache[string, *job]
}

// NewJobs creates a job manager running at most workers jobs at a time and
// remembering the outcome of the last retained finished jobs.
func NewJobs(log zerolog.Logger, workers int, retained int) (*Jobs, error) {
	if workers < 1 {
		workers = 1
	}
	finished, err := lru.New[string, *job](retained)
	if err != nil {
		return nil, fmt.Errorf("could not create finished jobs cache: %w", err)
	}
	return &Jobs{
		log:      log.With().Str("component", "tss_jobs").Logger(),
		pool:     workerpool.New(workers),
		stopped:  atomic.NewBool(false),
		running:  atomic.NewInt64(0),
		active:   make(map[string]*job),
		finished: finished,
	}, nil
}

// Start schedules fn and returns the ID of the new job.
//
// Expected error returns:
//   - ErrJobsStopped
func (j *Jobs) Start(kind string, fn JobFunc) (string, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.stopped.Load() {
		return "", ErrJobsStopped
	}

	ctx, cancel := context.WithCancel(context.Background())
	entry := &job{
		Job: Job{
			ID:        uuid.NewString(),
			Kind:      kind,
			Status:    JobPending,
			CreatedAt: time.Now().UTC(),
		},
		cancel: cancel,
	}
	j.active[entry.ID] = entry

	// Submit only queues the task, the worker takes the lock later
	j.pool.Submit(func() {
		j.execute(ctx, entry, fn)
	})

	j.log.Debug().Str("job_id", entry.ID).Str("kind", kind).Msg("job scheduled")
	return entry.ID, nil
}

func (j *Jobs) execute(ctx context.Context, entry *job, fn JobFunc) {
	defer entry.cancel()

	j.mu.Lock()
	if entry.Status != JobPending {
		// cancelled before a worker picked it up
		j.mu.Unlock()
		return
	}
	entry.Status = JobRunning
	j.mu.Unlock()

	j.running.Inc()
	start := time.Now()
	result, err := fn(ctx)
	j.running.Dec()

	j.mu.Lock()
	defer j.mu.Unlock()
	entry.FinishedAt = time.Now().UTC()
	entry.Result = result
	entry.Err = err
	switch {
	case err == nil:
		entry.Status = JobSucceeded
	case errors.Is(err, ErrCancelled) || ctx.Err() != nil:
		entry.Status = JobCancelled
	default:
		entry.Status = JobFailed
	}
	j.retire(entry)

	j.log.Info().
		Str("job_id", entry.ID).
		Str("kind", entry.Kind).
		Str("status", string(entry.Status)).
		Int64("duration_ms", time.Since(start).Milliseconds()).
		Msg("job finished")
}

// retire moves a finished job out of the active set. The caller must hold
// the lock.
func (j *Jobs) retire(entry *job) {
	delete(j.active, entry.ID)
	j.finished.Add(entry.ID, entry)
}

// lookup returns the job with id. The caller must hold the lock.
func (j *Jobs) lookup(id string) (*job, error) {
	entry, ok := j.active[id]
	if ok {
		return entry, nil
	}
	entry, ok = j.finished.Peek(id)
	if ok {
		return entry, nil
	}
	return nil, fmt.Errorf("%s: %w", id, ErrJobNotFound)
}

// Status returns a snapshot of the job. Finished jobs are forgotten once
// newer ones displace them.
//
// Expected error returns:
//   - ErrJobNotFound
func (j *Jobs) Status(id string) (Job, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	entry, err := j.lookup(id)
	if err != nil {
		return Job{}, err
	}
	return entry.Job, nil
}

// Cancel stops the job. A pending job never runs; a running job's context is
// cancelled and the job ends as soon as its operation returns.
//
// Expected error returns:
//   - ErrJobNotFound
func (j *Jobs) Cancel(id string) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	entry, err := j.lookup(id)
	if err != nil {
		return err
	}
	j.cancel(entry)
	return nil
}

// cancel must be called with the lock held.
func (j *Jobs) cancel(entry *job) {
	if entry.Status == JobPending {
		entry.Status = JobCancelled
		entry.Err = ErrCancelled
		entry.FinishedAt = time.Now().UTC()
		j.retire(entry)
	}
	entry.cancel()
}

// Running returns the number of jobs currently executing.
func (j *Jobs) Running() int64 {
	return j.running.Load()
}

// Stop cancels all jobs and waits for the workers to exit.
func (j *Jobs) Stop() {
	j.mu.Lock()
	if !j.stopped.CompareAndSwap(false, true) {
		j.mu.Unlock()
		return
	}
	for _, entry := range j.active {
		j.cancel(entry)
	}
	j.mu.Unlock()

	j.pool.StopWait()
}
