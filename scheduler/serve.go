package scheduler

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

var log = logrus.WithField("component", "scheduler")

// RunFunc executes one backup run and delivers its report to the
// configured notifiers. SweepFunc runs the retention pass afterward.
// Both are supplied by cmd so this package stays free of config and
// pipeline dependencies.
type RunFunc func(ctx context.Context)
type SweepFunc func(ctx context.Context)

// Serve blocks, firing run+sweep at every cron match until ctx is
// canceled. Sleeps are interruptible so shutdown never waits out a
// long gap between fires.
func Serve(ctx context.Context, sched *Schedule, run RunFunc, sweep SweepFunc) {
	for {
		now := time.Now().UTC()
		next := sched.Next(now)
		if next.IsZero() {
			log.Error("cron schedule never matches; scheduler exiting")
			return
		}

		wait := next.Sub(now)
		log.WithField("next_run", next).Infof("sleeping %s until next run", wait)

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			log.Info("scheduler stopping")
			return
		case <-timer.C:
		}

		run(ctx)
		sweep(ctx)
	}
}
