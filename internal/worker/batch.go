package worker

import (
	"context"

	"github.com/plateshare/comms-service/internal/domain"
	"golang.org/x/sync/errgroup"
)

// BatchResult aggregates the outcomes of a batch dispatch. Individual
// failures are counted, never propagated as errors.
type BatchResult struct {
	Total      int                     `json:"total"`
	Successful int                     `json:"successful"`
	Failed     int                     `json:"failed"`
	Results    []domain.DispatchResult `json:"results"`
}

// DispatchBatch fans out messages in chunks of size concurrency. All sends in
// a chunk run concurrently and the next chunk only starts once every send in
// the current one has settled, so at most `concurrency` dispatches are in
// flight at any moment.
func (d *Dispatcher) DispatchBatch(ctx context.Context, messages []domain.Message, concurrency int) BatchResult {
	if concurrency < 1 {
		concurrency = 1
	}

	result := BatchResult{
		Total:   len(messages),
		Results: make([]domain.DispatchResult, len(messages)),
	}

	for start := 0; start < len(messages); start += concurrency {
		end := start + concurrency
		if end > len(messages) {
			end = len(messages)
		}

		g, chunkCtx := errgroup.WithContext(ctx)
		for i := start; i < end; i++ {
			i := i
			g.Go(func() error {
				result.Results[i] = d.Dispatch(chunkCtx, messages[i])
				return nil
			})
		}
		// Workers never return errors; Wait is the chunk barrier.
		g.Wait()
	}

	for _, r := range result.Results {
		if r.Success {
			result.Successful++
		} else {
			result.Failed++
		}
	}

	return result
}
