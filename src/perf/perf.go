package perf

import (
	"context"
	"sync"
	"time"

	"github.com/arsyadal/fastblog/src/jobs"
)

type RequestPerf struct {
	Route  string
	Path   string // the path actually matched
	Method string
	Start  time.Time
	End    time.Time
	Blocks []PerfBlock

	mu sync.Mutex
}

func MakeNewRequestPerf(route string, method string, path string) *RequestPerf {
	return &RequestPerf{
		Start:  time.Now(),
		Route:  route,
		Path:   path,
		Method: method,
	}
}

func (rp *RequestPerf) EndRequest() {
	if rp == nil {
		return
	}

	rp.mu.Lock()
	defer rp.mu.Unlock()

	now := time.Now()
	for i := range rp.Blocks {
		if rp.Blocks[i].End.IsZero() {
			rp.Blocks[i].End = now
		}
	}
	rp.End = now
}

func (rp *RequestPerf) Checkpoint(category, description string) {
	if rp == nil {
		return
	}

	rp.mu.Lock()
	defer rp.mu.Unlock()

	now := time.Now()
	rp.Blocks = append(rp.Blocks, PerfBlock{
		Start:       now,
		End:         now,
		Category:    category,
		Description: description,
	})
}

// Starts a timed block. Blocks may overlap (queries run concurrently within
// one request), so each one is ended through its own handle.
func (rp *RequestPerf) StartBlock(category, description string) *BlockHandle {
	if rp == nil {
		return nil
	}

	rp.mu.Lock()
	defer rp.mu.Unlock()

	rp.Blocks = append(rp.Blocks, PerfBlock{
		Start:       time.Now(),
		Category:    category,
		Description: description,
	})
	return &BlockHandle{
		rp:  rp,
		idx: len(rp.Blocks) - 1,
	}
}

func (rp *RequestPerf) MsFromStart(block *PerfBlock) float64 {
	return float64(block.Start.Sub(rp.Start).Nanoseconds()) / 1000 / 1000
}

// Returns a copy of the blocks, safe to read while the request is running.
func (rp *RequestPerf) SnapshotBlocks() []PerfBlock {
	rp.mu.Lock()
	defer rp.mu.Unlock()
	return append([]PerfBlock(nil), rp.Blocks...)
}

type BlockHandle struct {
	rp  *RequestPerf
	idx int
}

func (b *BlockHandle) End() {
	if b == nil {
		return
	}

	b.rp.mu.Lock()
	defer b.rp.mu.Unlock()

	if b.rp.Blocks[b.idx].End.IsZero() {
		b.rp.Blocks[b.idx].End = time.Now()
	}
}

type PerfBlock struct {
	Start       time.Time
	End         time.Time
	Category    string
	Description string
}

func (pb *PerfBlock) Duration() time.Duration {
	return pb.End.Sub(pb.Start)
}

func (pb *PerfBlock) DurationMs() float64 {
	return float64(pb.Duration().Nanoseconds()) / 1000 / 1000
}

type perfContextKeyType struct{}

var PerfContextKey = perfContextKeyType{}

// Returns the RequestPerf for the current request, or nil outside of a
// request. All RequestPerf methods are fine to call on nil.
func ExtractPerf(ctx context.Context) *RequestPerf {
	if ctx == nil {
		return nil
	}
	p, _ := ctx.Value(PerfContextKey).(*RequestPerf)
	return p
}

func AttachPerf(ctx context.Context, p *RequestPerf) context.Context {
	return context.WithValue(ctx, PerfContextKey, p)
}

// Summary of one finished request. Only the collector's goroutine touches
// the stored history.
type RequestSummary struct {
	Route      string
	Method     string
	Path       string
	Start      time.Time
	DurationMs float64
	NumBlocks  int
}

type PerfStorage struct {
	AllRequests []RequestSummary
}

// How many request summaries the collector keeps around.
const maxStoredRequests = 1000

type PerfCollector struct {
	In          chan<- RequestSummary
	RequestCopy chan<- (chan<- PerfStorage)
}

func RunPerfCollector() (*PerfCollector, *jobs.Job) {
	in := make(chan RequestSummary, 64)
	requestCopy := make(chan (chan<- PerfStorage))

	var storage PerfStorage

	job := jobs.New("perf collector")
	go func() {
		defer job.Finish()

		for {
			select {
			case summary := <-in:
				storage.AllRequests = append(storage.AllRequests, summary)
				if len(storage.AllRequests) > maxStoredRequests {
					storage.AllRequests = storage.AllRequests[len(storage.AllRequests)-maxStoredRequests:]
				}
			case resultChan := <-requestCopy:
				resultChan <- PerfStorage{
					AllRequests: append([]RequestSummary(nil), storage.AllRequests...),
				}
			case <-job.Canceled():
				return
			}
		}
	}()

	return &PerfCollector{
		In:          in,
		RequestCopy: requestCopy,
	}, job
}

// Submits a finished request. Drops it if the collector is backed up rather
// than stall the request goroutine.
func (perfCollector *PerfCollector) SubmitRun(run *RequestPerf) {
	if perfCollector == nil || run == nil {
		return
	}
	blocks := run.SnapshotBlocks()
	summary := RequestSummary{
		Route:      run.Route,
		Method:     run.Method,
		Path:       run.Path,
		Start:      run.Start,
		DurationMs: float64(run.End.Sub(run.Start).Nanoseconds()) / 1000 / 1000,
		NumBlocks:  len(blocks),
	}
	select {
	case perfCollector.In <- summary:
	default:
	}
}

func (perfCollector *PerfCollector) GetPerfCopy() *PerfStorage {
	resultChan := make(chan PerfStorage)
	perfCollector.RequestCopy <- resultChan
	perfStorageCopy := <-resultChan
	return &perfStorageCopy
}
