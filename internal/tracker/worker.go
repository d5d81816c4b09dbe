package tracker

import (
	"context"
	"log/slog"
	"sync"
)

// WorkerPool runs groups of request indices on a fixed number of
// goroutines. A group is handled by exactly one worker, in order, so all
// occurrences of one satellite id are merged sequentially.
type WorkerPool struct {
	workers int
	logger  *slog.Logger
}

// NewWorkerPool creates a worker pool with the given number of workers.
func NewWorkerPool(workers int, logger *slog.Logger) *WorkerPool {
	if workers < 1 {
		workers = 1
	}
	return &WorkerPool{
		workers: workers,
		logger:  logger,
	}
}

// Run calls fn for every index of every group and returns once all workers
// have stopped. Groups not yet started when ctx is cancelled are skipped.
func (wp *WorkerPool) Run(ctx context.Context, groups [][]int, fn func(idx int)) {
	if len(groups) == 0 {
		return
	}

	jobs := make(chan []int, wp.workers*2)

	var wg sync.WaitGroup
	for i := 0; i < wp.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for group := range jobs {
				for _, idx := range group {
					if ctx.Err() != nil {
						break
					}
					fn(idx)
				}
			}
		}()
	}

	// Feed jobs.
	go func() {
		defer close(jobs)
		for _, g := range groups {
			select {
			case jobs <- g:
			case <-ctx.Done():
				return
			}
		}
	}()

	wg.Wait()

	wp.logger.Debug("worker pool drained", "groups", len(groups), "workers", wp.workers)
}

// groupByID partitions request indices by satellite id, keeping input order
// within each group and ordering groups by first appearance.
func groupByID(ids []string) [][]int {
	pos := make(map[string]int, len(ids))
	var groups [][]int
	for i, id := range ids {
		g, ok := pos[id]
		if !ok {
			g = len(groups)
			pos[id] = g
			groups = append(groups, nil)
		}
		groups[g] = append(groups[g], i)
	}
	return groups
}
