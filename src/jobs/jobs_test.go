package jobs

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTrackerCancelAndWait(t *testing.T) {
	t.Run("finishes fast enough", func(t *testing.T) {
		testJobs := Jobs{
			FakeJob("Job A", time.Millisecond*100),
			FakeJob("Job B", time.Millisecond*200),
		}

		before := time.Now()
		unfinished := testJobs.CancelAndWait(time.Second * 1)
		after := time.Now()
		assert.WithinDuration(t, after, before, time.Millisecond*500, "jobs did not finish fast enough")
		assert.Len(t, unfinished, 0)
	})
	t.Run("reports unfinished jobs", func(t *testing.T) {
		testJobs := Jobs{
			FakeJob("Job A", time.Millisecond*100),
			FakeJob("Job B", time.Second*10),
		}

		unfinished := testJobs.CancelAndWait(time.Second * 1)
		assert.Equal(t, []string{"Job B"}, unfinished)
	})
	t.Run("noop jobs are already done", func(t *testing.T) {
		unfinished := Jobs{Noop("kafka sink")}.CancelAndWait(time.Millisecond * 10)
		assert.Len(t, unfinished, 0)
	})
}

func TestFinishTwice(t *testing.T) {
	job := New("twice")
	job.Finish()
	assert.NotPanics(t, func() { job.Finish() })
}

func TestScheduled(t *testing.T) {
	t.Run("bad spec", func(t *testing.T) {
		_, err := Scheduled("bad", "every now and then", func(ctx context.Context) error { return nil })
		assert.NotNil(t, err)
	})
	t.Run("runs and stops", func(t *testing.T) {
		var runs int32
		job, err := Scheduled("counter", "@every 1s", func(ctx context.Context) error {
			atomic.AddInt32(&runs, 1)
			return nil
		})
		if !assert.Nil(t, err) {
			return
		}

		assert.Eventually(t, func() bool {
			return atomic.LoadInt32(&runs) >= 1
		}, 3*time.Second, 50*time.Millisecond)

		unfinished := Jobs{job}.CancelAndWait(time.Second)
		assert.Len(t, unfinished, 0)
	})
}

func FakeJob(name string, timeout time.Duration) *Job {
	job := New(name)
	go func() {
		<-job.Ctx.Done()
		timer := time.NewTimer(timeout)
		<-timer.C
		job.Finish()
	}()
	return job
}
