// Package janitor runs periodic housekeeping on a cron schedule.
package janitor

import (
	"context"

	"github.com/idusortus/predictwithfriends/internal/store"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

type Runner struct {
	cron   *cron.Cron
	logger *logrus.Logger
}

func New(logger *logrus.Logger) *Runner {
	return &Runner{
		cron: cron.New(cron.WithChain(
			cron.Recover(cron.PrintfLogger(logger)),
			cron.SkipIfStillRunning(cron.DiscardLogger),
		)),
		logger: logger,
	}
}

// Add schedules job. schedule is a standard five-field cron line or a descriptor
// such as "@every 10m".
func (r *Runner) Add(schedule string, job func()) error {
	_, err := r.cron.AddFunc(schedule, job)
	return err
}

// Run starts the scheduler and blocks until ctx is done. Jobs in flight are
// waited for before it returns.
func (r *Runner) Run(ctx context.Context) error {
	r.cron.Start()
	r.logger.Info("Janitor started")
	<-ctx.Done()
	<-r.cron.Stop().Done()
	r.logger.Info("Janitor stopped")
	return nil
}

// Sweeper is the part of the store the janitor maintains.
type Sweeper interface {
	SweepSessions() int
	Summary() (store.Summary, error)
}

// Sweep returns a job that drops expired sessions and logs journal totals.
func Sweep(s Sweeper, logger *logrus.Logger) func() {
	return func() {
		removed := s.SweepSessions()
		summary, err := s.Summary()
		if err != nil {
			logger.Error("Can't read journal summary: ", err)
			return
		}
		logger.WithFields(logrus.Fields{
			"expiredSessions": removed,
			"users":           summary.Users,
			"markets":         summary.Markets,
			"transactions":    summary.Transactions,
			"forfeited":       summary.Forfeited.StringFixed(2),
		}).Info("Sweep done")
	}
}
