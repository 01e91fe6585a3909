package experiment

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// RunParallel runs every experiment of the comparison in its own goroutine.
// Experiments must not share cross products or policies; they may share a machine.
// Analyzers are not run and progress is not printed.
func (c *Comparison) RunParallel(ctx context.Context) ([]*Result, error) {
	if err := c.recordConfig(); err != nil {
		return nil, err
	}

	runs := c.cConfig.Runs
	results := make([]*Result, len(c.Experiments)*runs)

	g, gctx := errgroup.WithContext(ctx)
	if c.cConfig.Parallelism > 0 {
		g.SetLimit(c.cConfig.Parallelism)
	}
	for i, e := range c.Experiments {
		i, e := i, e
		g.Go(func() error {
			for run := 0; run < runs; run++ {
				rCfg := c.prepareRunConfig(gctx, run, 0, false)
				rCfg.Progress = false
				result, err := e.Run(rCfg)
				if result != nil {
					results[i*runs+run] = result
					c.summarize(result)
				}
				if err != nil {
					return err
				}
				e.Reset()
			}
			return nil
		})
	}
	err := g.Wait()

	out := make([]*Result, 0, len(results))
	for _, r := range results {
		if r != nil {
			out = append(out, r)
		}
	}
	return out, err
}
