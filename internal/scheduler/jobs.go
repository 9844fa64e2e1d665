package scheduler

import (
	"context"
	"log"
)

type ChallengeResolver interface {
	ResolveExpired(ctx context.Context) (int, error)
}

type RollingPurger interface {
	PurgeRollingDays(ctx context.Context) (int64, error)
}

type GroupReindexer interface {
	ReindexGroups(ctx context.Context) (int, error)
}

// funcJob adapts a plain function into a Job.
type funcJob struct {
	name     string
	schedule string
	run      func(ctx context.Context) error
}

func (j funcJob) Name() string                  { return j.name }
func (j funcJob) Schedule() string              { return j.schedule }
func (j funcJob) Run(ctx context.Context) error { return j.run(ctx) }

// ChallengeSweep completes active challenges whose end time has passed.
func ChallengeSweep(schedule string, challenges ChallengeResolver) Job {
	return funcJob{
		name:     "challenge-sweep",
		schedule: schedule,
		run: func(ctx context.Context) error {
			n, err := challenges.ResolveExpired(ctx)
			if err != nil {
				return err
			}
			if n > 0 {
				log.Printf("[challenge-sweep] resolved %d challenges", n)
			}
			return nil
		},
	}
}

// RollingGC drops rolling XP buckets older than the tier window.
func RollingGC(schedule string, progression RollingPurger) Job {
	return funcJob{
		name:     "rolling-gc",
		schedule: schedule,
		run: func(ctx context.Context) error {
			n, err := progression.PurgeRollingDays(ctx)
			if err != nil {
				return err
			}
			log.Printf("[rolling-gc] purged %d buckets", n)
			return nil
		},
	}
}

// SearchReindex refreshes the group directory so weekly XP and levels stay current.
func SearchReindex(schedule string, groups GroupReindexer) Job {
	return funcJob{
		name:     "search-reindex",
		schedule: schedule,
		run: func(ctx context.Context) error {
			n, err := groups.ReindexGroups(ctx)
			if err != nil {
				return err
			}
			log.Printf("[search-reindex] indexed %d groups", n)
			return nil
		},
	}
}
