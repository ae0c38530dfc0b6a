package sweeper

import (
	"context"
	"time"

	"github.com/nkiryanov/cashbackmart/internal/logger"
)

type Producer struct {
	interval time.Duration
	jobs     []Job
	now      func() time.Time
	logger   logger.Logger
}

func (p *Producer) Produce(ctx context.Context, out chan<- sweep) <-chan struct{} {
	idleStopped := make(chan struct{})
	p.logger.Debug("Starting producer", "interval", p.interval, "jobs", len(p.jobs))

	go func() {
		defer close(idleStopped)

		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				p.logger.Debug("Producer stopped by context")
				return

			case <-ticker.C:
				now := p.now()
				for _, job := range p.jobs {
					select {
					case <-ctx.Done():
						p.logger.Debug("Producer stopped by context while sending jobs")
						return
					case out <- sweep{job: job, now: now}:
					}
				}
			}
		}
	}()

	return idleStopped
}
