package replay

import (
	"context"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/sirupsen/logrus"
)

// DefaultSweepInterval is how often expired replay records are evicted.
const DefaultSweepInterval = 5 * time.Minute

// ScheduleSweep registers a recurring eviction job for guard on scheduler.
// onSwept, if non-nil, receives the number of records removed by each run.
func ScheduleSweep(scheduler gocron.Scheduler, guard *Guard, interval time.Duration, logger logrus.FieldLogger, onSwept func(int)) (gocron.Job, error) {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	return scheduler.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			removed, err := guard.Sweep(ctx)
			if err != nil {
				logger.WithError(err).Warn("replay sweep failed")
				return
			}
			if removed > 0 {
				logger.WithField("removed", removed).Debug("replay sweep evicted expired claims")
			}
			if onSwept != nil {
				onSwept(removed)
			}
		}),
		gocron.WithName("replay-sweep"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
}
