package httpapi

import (
	"context"

	"llm_share/internal/logging"
	"llm_share/internal/models"
	"llm_share/internal/storage"
	"llm_share/internal/utils"
)

// UsageWriter appends finished usage log records. The relay handlers
// treat it as fire-and-forget: append failures never alter a response
// already committed to the caller.
type UsageWriter interface {
	Append(ctx context.Context, log *models.ResourceUsageLog) error
}

// QueueUsageWriter enqueues records for the background persistence
// worker and tees them into the optional archive sink.
type QueueUsageWriter struct {
	worker  *storage.UsageQueueWorker
	archive logging.Sink
	logger  *utils.Logger
}

func NewQueueUsageWriter(worker *storage.UsageQueueWorker, archive logging.Sink) *QueueUsageWriter {
	if archive == nil {
		archive = logging.NewNoopSink()
	}
	return &QueueUsageWriter{
		worker:  worker,
		archive: archive,
		logger:  utils.NewLogger("usage-writer"),
	}
}

func (w *QueueUsageWriter) Append(ctx context.Context, log *models.ResourceUsageLog) error {
	if err := w.archive.Enqueue(log); err != nil {
		w.logger.Warn("Failed to archive usage log", "id", log.ID, "error", err)
	}
	return w.worker.Enqueue(ctx, log)
}
