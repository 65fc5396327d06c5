// Package scheduler runs periodic background jobs such as inactivity detection.
// Schedules are standard 5-field cron expressions evaluated by robfig/cron in
// the configured location.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/hobby-university/learner-hub/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// JOB INTERFACE
// ══════════════════════════════════════════════════════════════════════════════

// Job defines the interface that all scheduled jobs must implement.
type Job interface {
	// Name returns the unique name of the job.
	Name() string

	// Run executes the job.
	// The context is cancelled when the scheduler is stopping.
	Run(ctx context.Context) error

	// Description returns a human-readable description of the job.
	Description() string
}

// JobResult contains the result of a job execution.
type JobResult struct {
	JobName     string
	StartedAt   time.Time
	CompletedAt time.Time
	Duration    time.Duration
	Success     bool
	Skipped     bool
	Error       error
}

// Locker guards a job against concurrent runs across replicas.
type Locker interface {
	// Acquire returns ok=false when another holder owns name.
	Acquire(ctx context.Context, name string, ttl time.Duration) (release func(), ok bool, err error)
}

// Recorder receives job metrics. *metrics.Metrics satisfies it.
type Recorder interface {
	RecordJob(job string, elapsed time.Duration, success bool)
}

// ══════════════════════════════════════════════════════════════════════════════
// ERRORS
// ══════════════════════════════════════════════════════════════════════════════

var (
	// ErrNilJob is returned when trying to register a nil job.
	ErrNilJob = errors.New("job cannot be nil")

	// ErrJobAlreadyExists is returned when a job with the same name already exists.
	ErrJobAlreadyExists = errors.New("job already exists")

	// ErrJobNotFound is returned when a job is not found.
	ErrJobNotFound = errors.New("job not found")

	// ErrInvalidSchedule is returned for unparsable cron expressions.
	ErrInvalidSchedule = errors.New("invalid schedule")

	// ErrSchedulerAlreadyRunning is returned when Start is called on a running scheduler.
	ErrSchedulerAlreadyRunning = errors.New("scheduler is already running")

	// ErrSchedulerNotRunning is returned when Stop is called on a stopped scheduler.
	ErrSchedulerNotRunning = errors.New("scheduler is not running")
)

// ══════════════════════════════════════════════════════════════════════════════
// SCHEDULER
// ══════════════════════════════════════════════════════════════════════════════

// Scheduler manages and executes scheduled jobs.
type Scheduler struct {
	mu sync.RWMutex

	cron       *cron.Cron
	log        *logger.Logger
	locker     Locker
	recorder   Recorder
	jobTimeout time.Duration

	jobs     map[string]*scheduledJob
	lastRuns map[string]JobResult

	running   bool
	ctx       context.Context
	cancel    context.CancelFunc
	startedAt time.Time
}

type scheduledJob struct {
	job      Job
	spec     string
	entryID  cron.EntryID
	runCount int64
}

// Config contains configuration for the Scheduler.
type Config struct {
	Logger *logger.Logger

	// Location for schedule evaluation (default: UTC).
	Location *time.Location

	// JobTimeout bounds a single run. Zero means no limit.
	JobTimeout time.Duration

	// Locker is optional. Without it every replica runs every job.
	Locker Locker

	Recorder Recorder
}

// New creates a new Scheduler with the given configuration.
func New(cfg Config) *Scheduler {
	if cfg.Logger == nil {
		cfg.Logger = logger.Nop()
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}

	log := cfg.Logger.With(logger.Component("scheduler"))

	return &Scheduler{
		cron: cron.New(
			cron.WithLocation(cfg.Location),
			cron.WithChain(cron.SkipIfStillRunning(cronLogger{log: log})),
		),
		log:        log,
		locker:     cfg.Locker,
		recorder:   cfg.Recorder,
		jobTimeout: cfg.JobTimeout,
		jobs:       make(map[string]*scheduledJob),
		lastRuns:   make(map[string]JobResult),
		ctx:        context.Background(),
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// JOB REGISTRATION
// ══════════════════════════════════════════════════════════════════════════════

// Register adds a job with a cron spec such as "0 9 * * *" or "@every 1h".
func (s *Scheduler) Register(job Job, spec string) error {
	if job == nil {
		return ErrNilJob
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	name := job.Name()
	if _, exists := s.jobs[name]; exists {
		return fmt.Errorf("%w: %s", ErrJobAlreadyExists, name)
	}

	sj := &scheduledJob{job: job, spec: spec}
	id, err := s.cron.AddFunc(spec, func() { s.runJob(s.runContext(), sj) })
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidSchedule, spec, err)
	}
	sj.entryID = id
	s.jobs[name] = sj

	s.log.Info("job registered",
		logger.String("job", name),
		logger.String("schedule", spec),
		logger.String("description", job.Description()),
	)

	return nil
}

func (s *Scheduler) runContext() context.Context {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ctx
}

// ══════════════════════════════════════════════════════════════════════════════
// LIFECYCLE
// ══════════════════════════════════════════════════════════════════════════════

// Start begins firing jobs on their schedules.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return ErrSchedulerAlreadyRunning
	}

	s.ctx, s.cancel = context.WithCancel(ctx)
	s.running = true
	s.startedAt = time.Now()
	count := len(s.jobs)
	s.mu.Unlock()

	s.cron.Start()
	s.log.Info("scheduler started", logger.Int("jobs_count", count))

	return nil
}

// Stop cancels running jobs and waits for them to return.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return ErrSchedulerNotRunning
	}
	s.running = false
	s.cancel()
	s.mu.Unlock()

	<-s.cron.Stop().Done()

	s.log.Info("scheduler stopped", logger.Duration("uptime", time.Since(s.startedAt)))
	return nil
}

// IsRunning returns true if the scheduler is running.
func (s *Scheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// ══════════════════════════════════════════════════════════════════════════════
// EXECUTION
// ══════════════════════════════════════════════════════════════════════════════

// RunNow immediately executes a job by name, ignoring its schedule.
func (s *Scheduler) RunNow(ctx context.Context, jobName string) (JobResult, error) {
	s.mu.RLock()
	sj, ok := s.jobs[jobName]
	s.mu.RUnlock()
	if !ok {
		return JobResult{}, fmt.Errorf("%w: %s", ErrJobNotFound, jobName)
	}

	result := s.runJob(ctx, sj)
	return result, result.Error
}

func (s *Scheduler) runJob(ctx context.Context, sj *scheduledJob) JobResult {
	name := sj.job.Name()
	startedAt := time.Now()
	result := JobResult{JobName: name, StartedAt: startedAt}

	if s.jobTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.jobTimeout)
		defer cancel()
	}

	if s.locker != nil {
		ttl := s.jobTimeout
		if ttl <= 0 {
			ttl = time.Hour
		}
		release, ok, err := s.locker.Acquire(ctx, name, ttl)
		if err != nil {
			s.log.Warn("job lock unavailable, running anyway", logger.String("job", name), logger.Err(err))
		} else if !ok {
			s.log.Info("job skipped, held by another worker", logger.String("job", name))
			result.Skipped = true
			result.Success = true
			result.CompletedAt = time.Now()
			s.record(sj, result)
			return result
		} else {
			defer release()
		}
	}

	s.log.Info("job started", logger.String("job", name))

	err := s.safeRun(ctx, sj.job)

	result.CompletedAt = time.Now()
	result.Duration = result.CompletedAt.Sub(startedAt)
	result.Success = err == nil
	result.Error = err

	if s.recorder != nil {
		s.recorder.RecordJob(name, result.Duration, result.Success)
	}

	if err != nil {
		s.log.Error("job failed",
			logger.String("job", name),
			logger.Duration("duration", result.Duration),
			logger.Err(err),
		)
	} else {
		s.log.Info("job completed",
			logger.String("job", name),
			logger.Duration("duration", result.Duration),
		)
	}

	s.record(sj, result)
	return result
}

func (s *Scheduler) safeRun(ctx context.Context, job Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job panicked: %v", r)
		}
	}()
	return job.Run(ctx)
}

func (s *Scheduler) record(sj *scheduledJob, result JobResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sj.runCount++
	s.lastRuns[result.JobName] = result
}

// ══════════════════════════════════════════════════════════════════════════════
// INTROSPECTION
// ══════════════════════════════════════════════════════════════════════════════

// JobInfo describes a registered job.
type JobInfo struct {
	Name        string
	Description string
	Schedule    string
	NextRun     time.Time
	RunCount    int64
	LastResult  *JobResult
}

// ListJobs returns information about all registered jobs.
func (s *Scheduler) ListJobs() []JobInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	infos := make([]JobInfo, 0, len(s.jobs))
	for name, sj := range s.jobs {
		info := JobInfo{
			Name:        name,
			Description: sj.job.Description(),
			Schedule:    sj.spec,
			NextRun:     s.cron.Entry(sj.entryID).Next,
			RunCount:    sj.runCount,
		}
		if last, ok := s.lastRuns[name]; ok {
			info.LastResult = &last
		}
		infos = append(infos, info)
	}

	return infos
}

// ─────────────────────────────────────────────────────────────────────────────
// cron.Logger adapter
// ─────────────────────────────────────────────────────────────────────────────

type cronLogger struct {
	log *logger.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Zap().Sugar().Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Zap().Sugar().Errorw(msg, append(keysAndValues, "error", err)...)
}
