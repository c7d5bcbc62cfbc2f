package dmring

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// CloseAllSync closes p, then drains and discards every reader in readers
// until each observes ErrClosed, waiting on all of them concurrently via
// errgroup — a single join point for callers that want to know the whole
// fan-out has drained before returning, instead of polling each reader in
// turn. It is pure composition over Close/Slice/Consume and does not
// change the ring's state machine.
func CloseAllSync[T any](ctx context.Context, p *SyncProducer[T], readers []*SyncReader[T]) error {
	if err := p.Close(); err != nil {
		return err
	}

	g, _ := errgroup.WithContext(ctx)
	for _, r := range readers {
		r := r
		g.Go(func() error {
			for {
				view, err := r.Slice()
				if err == ErrClosed {
					return nil
				}
				if err != nil {
					return err
				}
				if err := r.Consume(len(view)); err != nil {
					return err
				}
			}
		})
	}
	return g.Wait()
}
