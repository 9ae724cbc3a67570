package qp

import "sync"

// ParallelEvaluator fans independent Term evaluations out across a bounded
// worker pool and reassembles results in index order, so that outputs are
// bitwise reproducible across runs at identical inputs (SPEC_FULL §5).
type ParallelEvaluator struct {
	workers int
}

// NewParallelEvaluator creates an evaluator with the given worker count.
// A non-positive count falls back to 1 (sequential evaluation).
func NewParallelEvaluator(workers int) *ParallelEvaluator {
	if workers < 1 {
		workers = 1
	}
	return &ParallelEvaluator{workers: workers}
}

type job struct {
	index int
	term  Term
	xsub  []float64
}

// EvaluateValues runs term.Values(xsub) for each entry concurrently and
// returns the results ordered by input index.
func (pe *ParallelEvaluator) EvaluateValues(terms []Term, xsubs [][]float64) [][]float64 {
	results := make([][]float64, len(terms))
	if len(terms) == 0 {
		return results
	}
	jobs := make(chan job, len(terms))
	for i := range terms {
		jobs <- job{index: i, term: terms[i], xsub: xsubs[i]}
	}
	close(jobs)

	var wg sync.WaitGroup
	n := pe.workers
	if n > len(terms) {
		n = len(terms)
	}
	for w := 0; w < n; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobs {
				results[j.index] = j.term.Values(j.xsub)
			}
		}()
	}
	wg.Wait()
	return results
}

// EvaluateJacobians runs term.Jacobian(xsub) for each entry concurrently
// and returns the results ordered by input index.
func (pe *ParallelEvaluator) EvaluateJacobians(terms []Term, xsubs [][]float64) [][][]float64 {
	results := make([][][]float64, len(terms))
	if len(terms) == 0 {
		return results
	}
	jobs := make(chan job, len(terms))
	for i := range terms {
		jobs <- job{index: i, term: terms[i], xsub: xsubs[i]}
	}
	close(jobs)

	var wg sync.WaitGroup
	n := pe.workers
	if n > len(terms) {
		n = len(terms)
	}
	for w := 0; w < n; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobs {
				results[j.index] = j.term.Jacobian(j.xsub)
			}
		}()
	}
	wg.Wait()
	return results
}
