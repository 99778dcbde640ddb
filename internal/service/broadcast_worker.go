package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Er1one/telegram-bot-template/internal/queue"
)

const minWorkerConcurrency = 1

// BroadcastWorker feeds queued broadcast jobs to the service. Each worker
// executes one run at a time.
type BroadcastWorker struct {
	consumer    queue.Consumer
	handler     queue.MessageHandler
	concurrency int
	logger      *zap.Logger
}

func NewBroadcastWorker(
	consumer queue.Consumer,
	broadcasts *BroadcastService,
	concurrency int,
	logger *zap.Logger,
) (*BroadcastWorker, error) {
	if consumer == nil {
		return nil, fmt.Errorf("consumer is required")
	}
	if broadcasts == nil {
		return nil, fmt.Errorf("broadcast service is required")
	}
	if concurrency < minWorkerConcurrency {
		concurrency = minWorkerConcurrency
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &BroadcastWorker{
		consumer:    consumer,
		handler:     broadcasts.Execute,
		concurrency: concurrency,
		logger:      logger,
	}, nil
}

// Start consumes broadcast jobs until context cancellation.
func (w *BroadcastWorker) Start(ctx context.Context) error {
	g, groupCtx := errgroup.WithContext(ctx)
	for i := 0; i < w.concurrency; i++ {
		workerID := i + 1

		g.Go(func() error {
			w.logger.Info("broadcast worker started", zap.Int("workerId", workerID))

			if err := w.consumer.Consume(groupCtx, w.handler); err != nil {
				w.logger.Error("broadcast worker stopped with error",
					zap.Int("workerId", workerID),
					zap.Error(err),
				)
				return err
			}

			w.logger.Info("broadcast worker stopped", zap.Int("workerId", workerID))
			return nil
		})
	}

	return g.Wait()
}
