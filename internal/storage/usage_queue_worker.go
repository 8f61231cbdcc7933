package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"llm_share/internal/models"
	"llm_share/internal/queue"
	"llm_share/internal/utils"
)

// UsageInserter is the subset of UsageRepository the worker needs,
// separated so tests can substitute a fake store.
type UsageInserter interface {
	Insert(ctx context.Context, log *models.ResourceUsageLog) error
	InsertBatch(ctx context.Context, logs []*models.ResourceUsageLog) error
}

// UsageQueueWorker drains the usage queue and persists log records in
// batches. Failed batches fall back to individual inserts with retries;
// records that still fail land in the dead letter queue.
type UsageQueueWorker struct {
	queue       queue.Queue
	dlq         queue.DeadLetterQueue
	store       UsageInserter
	config      *queue.Config
	logger      *utils.Logger
	stopChan    chan struct{}
	stoppedChan chan struct{}
}

// NewUsageQueueWorker creates a new usage queue worker.
func NewUsageQueueWorker(q queue.Queue, dlq queue.DeadLetterQueue, store UsageInserter, config *queue.Config) *UsageQueueWorker {
	if config == nil {
		config = queue.DefaultConfig("usage")
	}

	return &UsageQueueWorker{
		queue:       q,
		dlq:         dlq,
		store:       store,
		config:      config,
		logger:      utils.NewLogger("usage-worker"),
		stopChan:    make(chan struct{}),
		stoppedChan: make(chan struct{}),
	}
}

// Start starts the worker goroutine.
func (w *UsageQueueWorker) Start(ctx context.Context) {
	go w.run(ctx)
}

// Stop gracefully stops the worker.
func (w *UsageQueueWorker) Stop() error {
	close(w.stopChan)
	<-w.stoppedChan
	return nil
}

// Enqueue adds a usage log record to the queue.
func (w *UsageQueueWorker) Enqueue(ctx context.Context, log *models.ResourceUsageLog) error {
	return w.queue.Enqueue(ctx, log)
}

func (w *UsageQueueWorker) run(ctx context.Context) {
	defer close(w.stoppedChan)

	for {
		select {
		case <-w.stopChan:
			w.logger.Info("Usage worker stopping")
			return
		case <-ctx.Done():
			w.logger.Info("Usage worker context cancelled")
			return
		default:
			w.processBatch(ctx)
		}
	}
}

func (w *UsageQueueWorker) processBatch(ctx context.Context) {
	items, err := w.queue.DequeueWithTimeout(ctx, w.config.BatchSize, w.config.BatchTimeout)
	if err != nil {
		w.logger.Error("Failed to dequeue usage logs", "error", err)
		time.Sleep(1 * time.Second) // Back off on error
		return
	}
	if len(items) == 0 {
		return
	}

	logs := make([]*models.ResourceUsageLog, 0, len(items))
	for _, item := range items {
		var log models.ResourceUsageLog
		if err := w.unmarshalItem(item, &log); err != nil {
			w.logger.Error("Failed to unmarshal usage log", "error", err)
			continue
		}
		logs = append(logs, &log)
	}
	if len(logs) == 0 {
		return
	}

	if err := w.store.InsertBatch(ctx, logs); err != nil {
		w.logger.Error("Failed to insert batch, falling back to individual inserts", "error", err)
		for _, log := range logs {
			if err := w.processItem(ctx, log); err != nil {
				w.logger.Error("Failed to process usage log", "error", err)
			}
		}
	}
}

func (w *UsageQueueWorker) processItem(ctx context.Context, log *models.ResourceUsageLog) error {
	var lastErr error
	for attempt := 0; attempt <= w.config.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := w.config.RetryBackoff * time.Duration(1<<uint(attempt-1))
			time.Sleep(backoff)
		}

		if err := w.store.Insert(ctx, log); err != nil {
			lastErr = err
			continue
		}
		return nil
	}

	if w.dlq != nil {
		if err := w.dlq.Add(ctx, log, lastErr); err != nil {
			w.logger.Error("Failed to add to dead letter queue", "error", err)
		} else {
			w.logger.Warn("Usage log moved to DLQ", "id", log.ID, "error", lastErr)
		}
	}
	return fmt.Errorf("max retries exceeded: %w", lastErr)
}

func (w *UsageQueueWorker) unmarshalItem(item any, log *models.ResourceUsageLog) error {
	switch v := item.(type) {
	case *models.ResourceUsageLog:
		*log = *v
		return nil
	case models.ResourceUsageLog:
		*log = v
		return nil
	case []byte:
		return json.Unmarshal(v, log)
	case json.RawMessage:
		return json.Unmarshal(v, log)
	default:
		data, err := json.Marshal(item)
		if err != nil {
			return fmt.Errorf("failed to marshal item: %w", err)
		}
		return json.Unmarshal(data, log)
	}
}

// QueueLength returns the current queue length.
func (w *UsageQueueWorker) QueueLength(ctx context.Context) (int, error) {
	return w.queue.Length(ctx)
}
