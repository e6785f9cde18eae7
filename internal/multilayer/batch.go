package multilayer

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Result is the outcome for one input of a batch run.
type Result struct {
	Index  int
	Vector []float32
	Err    error
}

// EmbedBatch embeds every text with up to workers concurrent inputs.
// One input failing does not affect the others: its Result carries the
// error and processing continues. Cancelling ctx stops scheduling new
// inputs and Wait returns the context error; results computed before
// cancellation are kept.
//
// onDone, if non-nil, is called once per finished input, possibly from
// several goroutines at once.
func (c *Composite) EmbedBatch(ctx context.Context, texts []string, workers int, onDone func(Result)) ([]Result, error) {
	if workers <= 0 {
		workers = 1
	}
	results := make([]Result, len(texts))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, text := range texts {
		if gctx.Err() != nil {
			break
		}
		i, text := i, text
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				results[i] = Result{Index: i, Err: err}
				return err
			}
			vec, err := c.Embed(gctx, text)
			results[i] = Result{Index: i, Vector: vec, Err: err}
			if onDone != nil {
				onDone(results[i])
			}
			// Compute errors stay per-input; only cancellation aborts.
			if err != nil && gctx.Err() != nil {
				return gctx.Err()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return results, err
	}
	return results, ctx.Err()
}
