package pipeline

import (
	"context"
	"sync"

	"github.com/beabigegg/Translate-Tool/internal/logger"
)

// BatchItem is the outcome of one job of a batch.
type BatchItem struct {
	Job    Job
	Result *JobResult
	Err    error
}

// RunBatch processes jobs with at most concurrency workers; a
// non-positive value uses the configured concurrency. Items come back in
// job order. Jobs not started before ctx is cancelled report a stopped
// result.
func (p *Pipeline) RunBatch(ctx context.Context, jobs []Job, concurrency int) []BatchItem {
	if concurrency <= 0 {
		concurrency = p.cfg.Pipeline.Concurrency
	}
	if concurrency <= 0 {
		concurrency = 1
	}
	if concurrency > len(jobs) {
		concurrency = len(jobs)
	}

	items := make([]BatchItem, len(jobs))
	work := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range work {
				res, err := p.Process(ctx, jobs[i])
				items[i] = BatchItem{Job: jobs[i], Result: res, Err: err}
			}
		}()
	}

	for i := range jobs {
		if ctx.Err() != nil {
			items[i] = BatchItem{Job: jobs[i], Result: &JobResult{Input: jobs[i].Input, Stopped: true}}
			continue
		}
		work <- i
	}
	close(work)
	wg.Wait()

	failed := 0
	for _, it := range items {
		if it.Err != nil {
			failed++
		}
	}
	p.log.Info("batch finished",
		logger.Int("jobs", len(jobs)),
		logger.Int("failed", failed),
		logger.Int("workers", concurrency))
	return items
}
