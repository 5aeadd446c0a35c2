package phonon

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"
)

// Job is one independent strain-map request.
type Job struct {
	Name          string
	Sim           *Simulation
	Delays        []float64
	TempMaps      []*mat.Dense
	DeltaTempMaps []*mat.Dense
}

type JobResult struct {
	Name   string
	Result *Result
	Err    error
}

// RunAll runs jobs with at most workers in flight (workers <= 0 means no
// limit). The first failing job cancels the others; its error is returned
// and every job's outcome is reported in input order.
func RunAll(ctx context.Context, jobs []Job, workers int) ([]JobResult, error) {
	results := make([]JobResult, len(jobs))
	g, gctx := errgroup.WithContext(ctx)
	if workers > 0 {
		g.SetLimit(workers)
	}

	for i, job := range jobs {
		i, job := i, job
		results[i].Name = job.Name
		g.Go(func() error {
			if job.Sim == nil {
				results[i].Err = fmt.Errorf("job %q: no simulation", job.Name)
				return results[i].Err
			}
			res, err := job.Sim.StrainMap(gctx, job.Delays, job.TempMaps, job.DeltaTempMaps)
			results[i].Result = res
			results[i].Err = err
			if err != nil {
				return fmt.Errorf("job %q: %w", job.Name, err)
			}
			return nil
		})
	}

	return results, g.Wait()
}
