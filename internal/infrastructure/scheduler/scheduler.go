package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	// ErrSchedulerNotRunning is returned by Submit before Start or after Stop
	ErrSchedulerNotRunning = errors.New("scheduler is not running")
	// ErrJobQueueFull means the sweep found more expired groups than the queue holds
	ErrJobQueueFull = errors.New("job queue is full")
)

// JobStatus represents the status of a scheduled job
type JobStatus string

const (
	JobStatusPending JobStatus = "PENDING"
	JobStatusRunning JobStatus = "RUNNING"
	JobStatusSuccess JobStatus = "SUCCESS"
	JobStatusFailed  JobStatus = "FAILED"
)

// JobKindExpiry is the kind of jobs run through the JobExecutor
const JobKindExpiry = "expiry"

// Task is background work tied to a group, run by the worker pool instead of
// the JobExecutor
type Task func(ctx context.Context) error

// Job is one unit of work for a group: a deadline transition by default,
// or an arbitrary Task
type Job struct {
	ID          uuid.UUID
	Kind        string
	GroupID     uuid.UUID
	Task        Task
	Status      JobStatus
	Error       string
	Expired     bool
	StartedAt   *time.Time
	CompletedAt *time.Time
	RetryCount  int
	MaxRetries  int
	NextRetryAt *time.Time
}

// NewJob creates a pending job for a group
func NewJob(groupID uuid.UUID, maxRetries int) *Job {
	return &Job{
		ID:         uuid.New(),
		Kind:       JobKindExpiry,
		GroupID:    groupID,
		Status:     JobStatusPending,
		MaxRetries: maxRetries,
	}
}

// NewTaskJob creates a pending job that runs task
func NewTaskJob(kind string, groupID uuid.UUID, task Task, maxRetries int) *Job {
	job := NewJob(groupID, maxRetries)
	job.Kind = kind
	job.Task = task
	return job
}

type jobKey struct {
	kind    string
	groupID uuid.UUID
}

func (j *Job) key() jobKey {
	return jobKey{kind: j.Kind, groupID: j.GroupID}
}

// Start marks the job as running
func (j *Job) Start() {
	now := time.Now()
	j.Status = JobStatusRunning
	j.StartedAt = &now
	j.Error = ""
}

// Complete marks the job as successful
func (j *Job) Complete(expired bool) {
	now := time.Now()
	j.Status = JobStatusSuccess
	j.CompletedAt = &now
	j.Expired = expired
}

// Fail marks the job as failed
func (j *Job) Fail(err string) {
	now := time.Now()
	j.Status = JobStatusFailed
	j.CompletedAt = &now
	j.Error = err
}

// ShouldRetry returns true if the job should be retried
func (j *Job) ShouldRetry() bool {
	return j.Status == JobStatusFailed && j.RetryCount < j.MaxRetries
}

// ScheduleRetry schedules the job for retry
func (j *Job) ScheduleRetry(delay time.Duration) {
	j.RetryCount++
	j.Status = JobStatusPending
	next := time.Now().Add(delay)
	j.NextRetryAt = &next
	j.Error = ""
}

// JobExecutor runs one job and reports whether the group expired
type JobExecutor interface {
	Execute(ctx context.Context, job *Job) (bool, error)
}

// SchedulerConfig holds worker pool configuration
type SchedulerConfig struct {
	Workers       int
	QueueSize     int
	JobTimeout    time.Duration
	RetryAttempts int
	RetryDelay    time.Duration
}

// DefaultSchedulerConfig returns default scheduler configuration
func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		Workers:       4,
		QueueSize:     256,
		JobTimeout:    10 * time.Second,
		RetryAttempts: 2,
		RetryDelay:    5 * time.Second,
	}
}

// JobListener is told about every finished job
type JobListener func(job *Job)

// Scheduler is a fixed worker pool that executes expiry jobs and group tasks.
// A group has at most one job of each kind queued or running at a time.
type Scheduler struct {
	config   SchedulerConfig
	executor JobExecutor
	logger   *zap.Logger
	listener JobListener

	jobs      chan *Job
	inFlight  map[jobKey]struct{}
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool
}

// NewScheduler creates a new scheduler instance
func NewScheduler(config SchedulerConfig, executor JobExecutor, logger *zap.Logger) *Scheduler {
	def := DefaultSchedulerConfig()
	if config.Workers <= 0 {
		config.Workers = def.Workers
	}
	if config.QueueSize <= 0 {
		config.QueueSize = def.QueueSize
	}
	if config.JobTimeout <= 0 {
		config.JobTimeout = def.JobTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		config:   config,
		executor: executor,
		logger:   logger,
		jobs:     make(chan *Job, config.QueueSize),
		inFlight: make(map[jobKey]struct{}),
	}
}

// OnJobDone registers a listener for finished jobs. Call before Start.
func (s *Scheduler) OnJobDone(l JobListener) {
	s.listener = l
}

// Start starts the worker pool
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = true
	s.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	for i := 0; i < s.config.Workers; i++ {
		s.wg.Add(1)
		go s.worker(ctx, i)
	}

	s.logger.Info("Expiry scheduler started",
		zap.Int("workers", s.config.Workers),
		zap.Duration("job_timeout", s.config.JobTimeout),
	)
	return nil
}

// Stop cancels the workers and waits for them within ctx
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = false
	s.mu.Unlock()

	if s.cancel != nil {
		s.cancel()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("Expiry scheduler stopped gracefully")
		return nil
	case <-ctx.Done():
		s.logger.Warn("Expiry scheduler stop timed out")
		return ctx.Err()
	}
}

// SubmitGroup queues an expiry job for the group unless one is already pending.
// It reports whether a job was queued.
func (s *Scheduler) SubmitGroup(groupID uuid.UUID) (bool, error) {
	return s.submit(NewJob(groupID, s.config.RetryAttempts))
}

// SubmitTask queues task under kind for the group unless a task of the same
// kind is already pending for it. Failed tasks are retried like expiry jobs.
func (s *Scheduler) SubmitTask(kind string, groupID uuid.UUID, task func(ctx context.Context) error) (bool, error) {
	return s.submit(NewTaskJob(kind, groupID, task, s.config.RetryAttempts))
}

func (s *Scheduler) submit(job *Job) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.isRunning {
		return false, ErrSchedulerNotRunning
	}
	if _, busy := s.inFlight[job.key()]; busy {
		return false, nil
	}

	select {
	case s.jobs <- job:
		s.inFlight[job.key()] = struct{}{}
		s.logger.Debug("Job submitted",
			zap.String("job_id", job.ID.String()),
			zap.String("kind", job.Kind),
			zap.String("group_id", job.GroupID.String()),
		)
		return true, nil
	default:
		return false, ErrJobQueueFull
	}
}

// Pending returns the number of groups queued or being processed
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.inFlight)
}

func (s *Scheduler) worker(ctx context.Context, workerID int) {
	defer s.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case job := <-s.jobs:
			s.processJob(ctx, job, workerID)
		}
	}
}

func (s *Scheduler) processJob(ctx context.Context, job *Job, workerID int) {
	if job.NextRetryAt != nil {
		wait := time.Until(*job.NextRetryAt)
		if wait > 0 {
			select {
			case <-ctx.Done():
				s.finish(job)
				return
			case <-time.After(wait):
			}
		}
	}

	job.Start()
	jobCtx, cancel := context.WithTimeout(ctx, s.config.JobTimeout)
	var (
		expired bool
		err     error
	)
	if job.Task != nil {
		err = job.Task(jobCtx)
	} else {
		expired, err = s.executor.Execute(jobCtx, job)
	}
	cancel()

	if err != nil {
		job.Fail(err.Error())
		s.logger.Error("Job failed",
			zap.Int("worker_id", workerID),
			zap.String("kind", job.Kind),
			zap.String("group_id", job.GroupID.String()),
			zap.Int("retry_count", job.RetryCount),
			zap.Error(err),
		)
		if job.ShouldRetry() && ctx.Err() == nil {
			job.ScheduleRetry(s.config.RetryDelay)
			select {
			case s.jobs <- job:
				return
			default:
				s.logger.Warn("Failed to re-queue job for retry",
					zap.String("group_id", job.GroupID.String()),
				)
			}
		}
		s.finish(job)
		return
	}

	job.Complete(expired)
	if expired {
		s.logger.Info("Group expired by sweep",
			zap.Int("worker_id", workerID),
			zap.String("group_id", job.GroupID.String()),
		)
	}
	s.finish(job)
}

func (s *Scheduler) finish(job *Job) {
	s.mu.Lock()
	delete(s.inFlight, job.key())
	s.mu.Unlock()
	if s.listener != nil {
		s.listener(job)
	}
}
