package perf

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBlocks(t *testing.T) {
	rp := MakeNewRequestPerf("GET ^/api/v1/articles$", "GET", "/api/v1/articles")

	outer := rp.StartBlock("SQL", "Fetch articles")
	inner := rp.StartBlock("SQL", "Fetch authors")
	inner.End()
	rp.Checkpoint("ASSEMBLE", "done")
	rp.EndRequest()

	blocks := rp.SnapshotBlocks()
	if assert.Len(t, blocks, 3) {
		for _, b := range blocks {
			assert.False(t, b.End.IsZero(), b.Description)
			assert.True(t, b.DurationMs() >= 0)
		}
	}

	// Ending after the request closed the block is harmless.
	outer.End()
}

func TestConcurrentBlocks(t *testing.T) {
	rp := MakeNewRequestPerf("", "GET", "/")
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rp.StartBlock("SQL", "parallel").End()
		}()
	}
	wg.Wait()
	assert.Len(t, rp.SnapshotBlocks(), 10)
}

func TestNilPerf(t *testing.T) {
	var rp *RequestPerf
	assert.Nil(t, ExtractPerf(context.Background()))
	assert.NotPanics(t, func() {
		rp.StartBlock("SQL", "nothing").End()
		rp.Checkpoint("x", "y")
		rp.EndRequest()
	})
}

func TestContext(t *testing.T) {
	rp := MakeNewRequestPerf("", "GET", "/")
	ctx := AttachPerf(context.Background(), rp)
	assert.Same(t, rp, ExtractPerf(ctx))
}

func TestCollector(t *testing.T) {
	collector, job := RunPerfCollector()

	rp := MakeNewRequestPerf("route", "GET", "/health")
	rp.EndRequest()
	collector.SubmitRun(rp)

	var stored *PerfStorage
	assert.Eventually(t, func() bool {
		stored = collector.GetPerfCopy()
		return len(stored.AllRequests) == 1
	}, time.Second, 10*time.Millisecond)
	assert.Equal(t, "/health", stored.AllRequests[0].Path)

	job.Cancel()
	<-job.Finished()
}
