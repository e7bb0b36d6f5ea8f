package phase

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/vampirenirmal/bookmarketer/internal/modules"
	"github.com/vampirenirmal/bookmarketer/internal/workflow"
)

// ItemResult is the outcome of one RunEach item. Err is a *StepError.
type ItemResult struct {
	Index  int
	Inputs modules.Inputs
	Result Result
	Err    error
}

// RunEach invokes step once per item with at most the configured number in
// flight. Items fail independently: an error never cancels its siblings,
// and each success is completed as soon as it is extracted. Results are in
// item order.
func (r *Runner) RunEach(ctx context.Context, step workflow.StepID, items []modules.Inputs) []ItemResult {
	results := make([]ItemResult, len(items))
	if len(items) == 0 {
		return results
	}

	r.logger.Info("starting fan-out",
		"step", step,
		"item_count", len(items),
		"concurrency", r.concurrency,
	)

	var g errgroup.Group
	g.SetLimit(r.concurrency)
	for i, in := range items {
		g.Go(func() error {
			res, err := r.Run(ctx, step, in)
			results[i] = ItemResult{Index: i, Inputs: in, Result: res, Err: err}
			return nil
		})
	}
	_ = g.Wait()

	failed := 0
	for _, res := range results {
		if res.Err != nil {
			failed++
		}
	}
	r.logger.Info("fan-out finished",
		"step", step,
		"item_count", len(items),
		"failed", failed,
	)
	return results
}
