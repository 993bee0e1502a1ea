package pipeline

import (
	"runtime"
	"sync"

	"github.com/couchcryptid/climate-stats-etl/internal/domain"
)

// Aggregator summarizes groups on a fixed-size worker pool.
type Aggregator struct {
	workers   int
	threshold float64
}

// NewAggregator creates an Aggregator. workers <= 0 uses one worker per CPU.
func NewAggregator(workers int, threshold float64) *Aggregator {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &Aggregator{workers: workers, threshold: threshold}
}

// Workers returns the pool size.
func (a *Aggregator) Workers() int { return a.workers }

// Aggregate partitions rows sequentially, fans the groups out to the pool and
// gathers the summaries once every worker has finished. Each group's buffer is
// touched by exactly one worker, and each result slot by exactly one writer,
// so no locking is needed. Empty groups are omitted.
func (a *Aggregator) Aggregate(rows []domain.Observation, mode domain.Mode) map[domain.AggregateKey]domain.StatSummary {
	groups := domain.Partition(rows, mode)
	results := make([]domain.StatSummary, len(groups))

	jobs := make(chan int)
	var wg sync.WaitGroup
	for range min(a.workers, len(groups)) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				results[i] = domain.Summarize(groups[i], a.threshold)
			}
		}()
	}

	for i := range groups {
		if len(groups[i].Values) == 0 {
			continue
		}
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	out := make(map[domain.AggregateKey]domain.StatSummary, len(groups))
	for i, g := range groups {
		if len(g.Values) == 0 {
			continue
		}
		out[g.Key] = results[i]
	}
	return out
}
