package sweeper

import (
	"context"
	"time"

	"github.com/nkiryanov/cashbackmart/internal/logger"
)

const defaultInterval = time.Minute

// Job settles deadlines that passed by now and reports how many items it moved
type Job struct {
	Name string
	Run  func(ctx context.Context, now time.Time) (int, error)
}

type sweep struct {
	job Job
	now time.Time
}

// Sweeper runs every job on each tick: cashback unblocking and PIX expiry in production
type Sweeper struct {
	producer *Producer
	consumer *Consumer
	logger   logger.Logger
}

// Zero interval means one minute
func New(interval time.Duration, log logger.Logger, jobs ...Job) *Sweeper {
	if interval <= 0 {
		interval = defaultInterval
	}
	log = log.With("component", "sweeper")

	return &Sweeper{
		producer: &Producer{
			interval: interval,
			jobs:     jobs,
			now:      time.Now,
			logger:   log,
		},
		consumer: &Consumer{
			countWorkers: max(len(jobs), 1),
			logger:       log,
		},
		logger: log,
	}
}

// Run until ctx is done, the returned channel is closed when every worker exited
func (s *Sweeper) Run(ctx context.Context) <-chan struct{} {
	idleStopped := make(chan struct{})

	sweeps := make(chan sweep)
	producerStopped := s.producer.Produce(ctx, sweeps)
	consumerStopped := s.consumer.Consume(ctx, sweeps)

	go func() {
		defer close(idleStopped)
		<-producerStopped
		close(sweeps)
		<-consumerStopped
		s.logger.Debug("Sweeper stopped")
	}()

	return idleStopped
}
