package analysis

import (
	"context"
	"sync"

	"github.com/oakline/brickfolio/internal/domain"
)

// WorkerPool manages a pool of worker goroutines for parallel property
// analysis
type WorkerPool struct {
	numWorkers int
}

// NewWorkerPool creates a new worker pool with the specified number of
// workers
func NewWorkerPool(numWorkers int) *WorkerPool {
	if numWorkers <= 0 {
		numWorkers = 10 // Default to 10 workers
	}
	return &WorkerPool{
		numWorkers: numWorkers,
	}
}

// BatchResult is the outcome of analyzing one property in a batch.
// Failures are reported per property; one bad property never aborts
// the rest of the batch.
type BatchResult struct {
	PropertyID int64
	Suggestion *domain.Suggestion
	Err        error
}

// AnalyzeFunc analyzes a single property
type AnalyzeFunc func(ctx context.Context, propertyID int64) (*domain.Suggestion, error)

// ProgressFunc receives completion counts as the batch advances
type ProgressFunc func(done, total int)

// AnalyzeBatch runs analyze for each property in parallel and collects
// results in input order. progress may be nil.
func (wp *WorkerPool) AnalyzeBatch(
	ctx context.Context,
	propertyIDs []int64,
	analyze AnalyzeFunc,
	progress ProgressFunc,
) []BatchResult {
	total := len(propertyIDs)
	if total == 0 {
		return []BatchResult{}
	}

	jobs := make(chan jobItem, total)
	results := make(chan resultItem, total)

	var wg sync.WaitGroup
	numActualWorkers := wp.numWorkers
	if total < numActualWorkers {
		numActualWorkers = total // Don't spawn more workers than properties
	}

	for i := 0; i < numActualWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			worker(ctx, jobs, results, analyze)
		}()
	}

	for idx, id := range propertyIDs {
		jobs <- jobItem{index: idx, propertyID: id}
	}
	close(jobs)

	// Drain results while workers run so the progress callback fires
	// as completions happen, not all at the end
	resultSlice := make([]BatchResult, total)
	done := 0
	collected := make(chan struct{})
	go func() {
		defer close(collected)
		for result := range results {
			resultSlice[result.index] = result.batchResult
			done++
			if progress != nil {
				progress(done, total)
			}
		}
	}()

	wg.Wait()
	close(results)
	<-collected

	return resultSlice
}

// jobItem represents a single analysis job
type jobItem struct {
	propertyID int64
	index      int
}

// resultItem represents the result of an analysis job
type resultItem struct {
	batchResult BatchResult
	index       int
}

// worker is the worker goroutine that processes analysis jobs
func worker(
	ctx context.Context,
	jobs <-chan jobItem,
	results chan<- resultItem,
	analyze AnalyzeFunc,
) {
	for job := range jobs {
		if err := ctx.Err(); err != nil {
			results <- resultItem{
				index:       job.index,
				batchResult: BatchResult{PropertyID: job.propertyID, Err: err},
			}
			continue
		}

		suggestion, err := analyze(ctx, job.propertyID)
		results <- resultItem{
			index: job.index,
			batchResult: BatchResult{
				PropertyID: job.propertyID,
				Suggestion: suggestion,
				Err:        err,
			},
		}
	}
}
