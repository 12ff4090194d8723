package schedule

import (
	"context"
	"fmt"

	"github.com/calder-west/stowage/logger"
	"github.com/robfig/cron/v3"
)

// Run executes jobFn on the given cron spec until ctx is cancelled. Jobs run
// sequentially: a trigger that fires while a job is still running is skipped
// rather than overlapped, matching the single-invocation contract.
func Run(ctx context.Context, spec string, jobFn func()) error {
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))

	entryID, err := c.AddFunc(spec, func() {
		logger.LogxWithFields("info", "Scheduled backup triggered", map[string]interface{}{
			"package":  "schedule",
			"cronspec": spec,
		})
		jobFn()
	})
	if err != nil {
		return fmt.Errorf("invalid schedule %q: %v", spec, err)
	}

	c.Start()
	logger.LogxWithFields("info", fmt.Sprintf("Scheduler started, next run at %s", c.Entry(entryID).Next), map[string]interface{}{
		"package":  "schedule",
		"cronspec": spec,
	})

	<-ctx.Done()
	stopCtx := c.Stop()
	<-stopCtx.Done()

	logger.LogxWithFields("info", "Scheduler stopped", map[string]interface{}{
		"package": "schedule",
	})
	return nil
}
