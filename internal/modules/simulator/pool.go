package simulator

import (
	"context"
	"sync"
)

// WorkerPool runs scenario evaluations on a fixed number of goroutines.
type WorkerPool struct {
	numWorkers int
}

// NewWorkerPool creates a pool with the given number of workers.
func NewWorkerPool(numWorkers int) *WorkerPool {
	if numWorkers <= 0 {
		numWorkers = 4
	}
	return &WorkerPool{numWorkers: numWorkers}
}

// Workers returns the configured worker count.
func (wp *WorkerPool) Workers() int {
	return wp.numWorkers
}

// scenarioFunc evaluates the scenario for one price change.
type scenarioFunc func(change float64) (Point, error)

// RunBatch evaluates every change in parallel. Results are in the same order
// as changes. Workers stop picking up new scenarios once ctx is done.
func (wp *WorkerPool) RunBatch(ctx context.Context, changes []float64, eval scenarioFunc) ([]Point, []error) {
	n := len(changes)
	if n == 0 {
		return []Point{}, []error{}
	}

	jobs := make(chan jobItem, n)
	results := make(chan resultItem, n)

	var wg sync.WaitGroup
	workers := wp.numWorkers
	if n < workers {
		workers = n
	}
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			worker(ctx, jobs, results, eval)
		}()
	}

	for idx, change := range changes {
		jobs <- jobItem{index: idx, change: change}
	}
	close(jobs)

	go func() {
		wg.Wait()
		close(results)
	}()

	points := make([]Point, n)
	errs := make([]error, n)
	for r := range results {
		points[r.index] = r.point
		errs[r.index] = r.err
	}
	return points, errs
}

type jobItem struct {
	index  int
	change float64
}

type resultItem struct {
	index int
	point Point
	err   error
}

func worker(ctx context.Context, jobs <-chan jobItem, results chan<- resultItem, eval scenarioFunc) {
	for job := range jobs {
		if err := ctx.Err(); err != nil {
			results <- resultItem{index: job.index, err: err}
			continue
		}
		point, err := eval(job.change)
		results <- resultItem{index: job.index, point: point, err: err}
	}
}
