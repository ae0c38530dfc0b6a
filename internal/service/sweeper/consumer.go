package sweeper

import (
	"context"
	"sync"

	"github.com/nkiryanov/cashbackmart/internal/logger"
)

type Consumer struct {
	countWorkers int
	logger       logger.Logger
}

func (c *Consumer) Consume(ctx context.Context, in <-chan sweep) <-chan struct{} {
	idleStopped := make(chan struct{})

	var wg sync.WaitGroup
	for range c.countWorkers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.worker(ctx, in)
		}()
	}

	go func() {
		defer close(idleStopped)
		wg.Wait()
		c.logger.Debug("Consumer stopped")
	}()

	return idleStopped
}

func (c *Consumer) worker(ctx context.Context, in <-chan sweep) {
	for {
		select {
		case <-ctx.Done():
			return

		case s, ok := <-in:
			if !ok {
				c.logger.Debug("Consumer worker stopped, input channel closed")
				return
			}

			n, err := s.job.Run(ctx, s.now)
			switch {
			case err != nil && ctx.Err() == nil:
				c.logger.Error("Sweep failed", "job", s.job.Name, "settled", n, "error", err)
			case n > 0:
				c.logger.Info("Sweep settled", "job", s.job.Name, "settled", n)
			}
		}
	}
}
