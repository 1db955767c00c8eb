// Package jobs provides the scheduled sweeps of the pipeline API.
// It uses robfig/cron for cron-based job scheduling.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// ErrUnknownJob is returned when a manual trigger names no registered job
var ErrUnknownJob = errors.New("unknown job")

// Job is a sweep over every active organization that can also be run for one org on demand.
type Job interface {
	// Name identifies the job in logs, config and the manual trigger endpoint
	Name() string
	// Run sweeps all active organizations. Called by the scheduler.
	Run()
	// RunForOrg sweeps a single organization
	RunForOrg(ctx context.Context, orgID uuid.UUID) (*RunResult, error)
}

// RunResult summarizes one sweep of one organization
type RunResult struct {
	Job      string    `json:"job"`
	OrgID    uuid.UUID `json:"org_id"`
	Checked  int       `json:"checked"`
	Matched  int       `json:"matched"`
	Notified int       `json:"notified"`
	Failed   int       `json:"failed"`
}

// Scheduler manages background jobs using cron scheduling.
type Scheduler struct {
	cron     *cron.Cron
	logger   *zap.Logger
	mu       sync.Mutex
	jobs     map[string]cron.EntryID
	registry map[string]Job
}

// NewScheduler creates a new job scheduler with the given logger.
func NewScheduler(logger *zap.Logger) *Scheduler {
	return &Scheduler{
		cron: cron.New(cron.WithSeconds(), cron.WithChain(
			cron.SkipIfStillRunning(cron.DefaultLogger),
			cron.Recover(cron.DefaultLogger),
		)),
		logger:   logger,
		jobs:     make(map[string]cron.EntryID),
		registry: make(map[string]Job),
	}
}

// Start starts the scheduler. Jobs added before this call will begin running.
func (s *Scheduler) Start() {
	s.logger.Info("starting job scheduler")
	s.cron.Start()
}

// Stop gracefully stops the scheduler. Running jobs will complete.
func (s *Scheduler) Stop() context.Context {
	s.logger.Info("stopping job scheduler")
	return s.cron.Stop()
}

// Register makes job available to RunForOrg without scheduling it
func (s *Scheduler) Register(job Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.registry[job.Name()] = job
}

// Schedule registers job and runs it on cronExpr.
// The cronExpr follows standard cron format with optional seconds field.
// Examples:
//   - "0 0 7 * * *" - Every day at 07:00:00 (with seconds field)
//   - "0 7 * * *"   - Every day at 07:00 (standard 5-field format)
//   - "@daily"      - At midnight
func (s *Scheduler) Schedule(job Job, cronExpr string) error {
	s.Register(job)
	return s.AddJob(job.Name(), cronExpr, job.Run)
}

// AddJob adds a job function with the given name and cron expression.
func (s *Scheduler) AddJob(name string, cronExpr string, job func()) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[name]; exists {
		return fmt.Errorf("job %s already exists", name)
	}

	entryID, err := s.cron.AddFunc(cronExpr, func() {
		s.logger.Info("running scheduled job",
			zap.String("job_name", name))
		job()
		s.logger.Info("completed scheduled job",
			zap.String("job_name", name))
	})
	if err != nil {
		return fmt.Errorf("failed to add job %s: %w", name, err)
	}

	s.jobs[name] = entryID
	s.logger.Info("added scheduled job",
		zap.String("job_name", name),
		zap.String("cron_expr", cronExpr))

	return nil
}

// GetJobNames returns the names of all registered jobs, sorted.
func (s *Scheduler) GetJobNames() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	names := make([]string, 0, len(s.registry))
	for name := range s.registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// RunForOrg runs the named job for one organization immediately
func (s *Scheduler) RunForOrg(ctx context.Context, name string, orgID uuid.UUID) (*RunResult, error) {
	s.mu.Lock()
	job, ok := s.registry[name]
	s.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownJob, name)
	}

	s.logger.Info("running job on demand",
		zap.String("job_name", name),
		zap.String("org_id", orgID.String()))
	return job.RunForOrg(ctx, orgID)
}
