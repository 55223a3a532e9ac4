package backtest

import (
	"context"
	"log/slog"
	"sync"

	"github.com/rmarquis/roboquant/internal/feed"
	"github.com/rmarquis/roboquant/internal/sim"
	"github.com/rmarquis/roboquant/internal/strategy"
)

// Job describes one independent backtest run. Each job gets its own broker
// instance built from Broker, so jobs share no mutable state and need no
// synchronization.
type Job struct {
	Name     string
	Feed     feed.Feed
	Strategy strategy.Strategy
	Broker   sim.Config
}

// RunAll executes the jobs over a bounded set of workers and returns one
// result per job, in job order. The first job error is returned; remaining
// jobs still run to completion.
func RunAll(ctx context.Context, jobs []Job, workers int, log *slog.Logger) ([]*Result, error) {
	if workers < 1 {
		workers = 1
	}
	if workers > len(jobs) {
		workers = len(jobs)
	}
	if log == nil {
		log = slog.Default()
	}

	jobCh := make(chan int, len(jobs))
	for i := range jobs {
		jobCh <- i
	}
	close(jobCh)

	results := make([]*Result, len(jobs))
	errs := make([]error, len(jobs))

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobCh {
				if ctx.Err() != nil {
					errs[i] = ctx.Err()
					continue
				}
				job := jobs[i]
				runner := &Runner{
					Feed:     job.Feed,
					Strategy: job.Strategy,
					Broker:   sim.New(job.Broker),
					Log:      log.With("job", job.Name),
				}
				results[i], errs[i] = runner.Run(ctx)
				if errs[i] != nil {
					log.Error("job failed", "job", job.Name, "error", errs[i])
				}
			}
		}()
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return results, err
		}
	}
	return results, nil
}
