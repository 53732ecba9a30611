package worker

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
)

// JobScheduler submits a fixed list of jobs to a pool on every tick.
type JobScheduler struct {
	Name     string
	Interval time.Duration
	Jobs     []JobPayload
	Pool     *WorkingPool
	mu       sync.RWMutex
}

func NewJobScheduler(name string, interval time.Duration, pool *WorkingPool) *JobScheduler {
	return &JobScheduler{
		Name:     name,
		Interval: interval,
		Jobs:     make([]JobPayload, 0),
		Pool:     pool,
	}
}

func (s *JobScheduler) AddJob(name string, run Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Jobs = append(s.Jobs, JobPayload{Name: name, Run: run})
}

func (s *JobScheduler) Run(ctx context.Context) {
	log.Printf("[Scheduler %s] Running every %s.\n", s.Name, s.Interval)
	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.submitJobs(ctx)
		case <-ctx.Done():
			log.Printf("[Scheduler %s] Shutting down.\n", s.Name)
			return
		}
	}
}

func (s *JobScheduler) submitJobs(ctx context.Context) {
	s.mu.RLock()
	jobsToRun := make([]JobPayload, len(s.Jobs))
	copy(jobsToRun, s.Jobs)
	s.mu.RUnlock()

	for _, job := range jobsToRun {
		job.JobID = uuid.NewString()

		submitCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		if err := s.Pool.SubmitJob(submitCtx, job); err != nil {
			log.Printf("[Scheduler %s] FAILED to submit job: %v\n", s.Name, err)
		}
		cancel()
	}
}
