package jobs

import (
	"context"

	"github.com/arsyadal/fastblog/src/logging"
	"github.com/arsyadal/fastblog/src/oops"
	"github.com/robfig/cron/v3"
)

// Runs fn on a cron schedule until the job is canceled. Runs never overlap;
// a run that is still going when the next one is due causes that one to be
// skipped.
func Scheduled(name string, spec string, fn func(ctx context.Context) error) (*Job, error) {
	job := New(name)

	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	_, err := c.AddFunc(spec, func() {
		defer logging.LogPanics(&job.Logger)

		job.Logger.Debug().Msg("starting scheduled run")
		if err := fn(job.Ctx); err != nil {
			job.Logger.Error().Err(err).Msg("scheduled run failed")
		}
	})
	if err != nil {
		job.Cancel()
		job.Finish()
		return nil, oops.New(err, "bad schedule '%s' for job %s", spec, name)
	}

	c.Start()
	go func() {
		<-job.Canceled()
		// Stop returns a context that is done once running jobs complete.
		<-c.Stop().Done()
		job.Finish()
	}()

	return job, nil
}
