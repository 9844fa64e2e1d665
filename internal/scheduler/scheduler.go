// Package scheduler runs the periodic maintenance jobs on cron schedules.
package scheduler

import (
	"context"
	"fmt"
	"log"

	"github.com/robfig/cron/v3"
)

// Job is one unit of periodic work.
type Job interface {
	// Name identifies the job in logs and for RunByName.
	Name() string
	// Schedule is a standard five-field cron expression. Empty means on-demand only.
	Schedule() string
	Run(ctx context.Context) error
}

type Scheduler struct {
	cron *cron.Cron
	jobs []Job
}

func New() *Scheduler {
	return &Scheduler{
		cron: cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger))),
		jobs: make([]Job, 0),
	}
}

// Register adds a job, scheduling it when it has a cron expression.
func (s *Scheduler) Register(job Job) error {
	schedule := job.Schedule()
	if schedule != "" {
		if _, err := s.cron.AddFunc(schedule, func() { s.execute(context.Background(), job) }); err != nil {
			return fmt.Errorf("schedule %s: %w", job.Name(), err)
		}
		log.Printf("[%s] scheduled with cron: %s", job.Name(), schedule)
	} else {
		log.Printf("[%s] registered as on-demand job", job.Name())
	}

	s.jobs = append(s.jobs, job)
	return nil
}

func (s *Scheduler) execute(ctx context.Context, job Job) {
	log.Printf("[%s] starting", job.Name())
	if err := job.Run(ctx); err != nil {
		log.Printf("[%s] failed: %v", job.Name(), err)
		return
	}
	log.Printf("[%s] done", job.Name())
}

func (s *Scheduler) Start() {
	s.cron.Start()
	log.Printf("Scheduler started with %d jobs", len(s.jobs))
}

// Stop halts scheduling and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	log.Println("Scheduler stopped")
}

// RunByName runs a registered job immediately.
func (s *Scheduler) RunByName(ctx context.Context, name string) error {
	for _, job := range s.jobs {
		if job.Name() == name {
			return job.Run(ctx)
		}
	}
	return fmt.Errorf("job %q not registered", name)
}

func (s *Scheduler) Registered() []string {
	names := make([]string, len(s.jobs))
	for i, job := range s.jobs {
		names[i] = job.Name()
	}
	return names
}
