// Package logging archives finished usage log records to cold storage,
// separate from the hot Postgres persistence path.
package logging

import (
	"context"
	"errors"
	"time"

	"llm_share/internal/models"
	"llm_share/internal/utils"
)

// Sink receives finished usage log records for archival.
type Sink interface {
	Enqueue(log *models.ResourceUsageLog) error
	Shutdown(ctx context.Context) error
}

// NoopSink discards records; used when no archive is configured.
type NoopSink struct{}

func NewNoopSink() *NoopSink {
	return &NoopSink{}
}

func (s *NoopSink) Enqueue(log *models.ResourceUsageLog) error {
	return nil
}

func (s *NoopSink) Shutdown(ctx context.Context) error {
	return nil
}

// BatchWriter persists one batch of records and returns its location.
type BatchWriter interface {
	WriteBatch(ctx context.Context, records []*models.ResourceUsageLog) (string, error)
}

// S3SinkConfig holds buffering and flush settings for the archive sink.
type S3SinkConfig struct {
	BufferSize    int
	FlushSize     int
	FlushInterval time.Duration
}

// S3Sink buffers usage records in memory and flushes them in batches
// through a BatchWriter. Enqueue never blocks the request path: a full
// buffer drops the record with an error the caller may log.
type S3Sink struct {
	writer      BatchWriter
	config      S3SinkConfig
	buffer      chan *models.ResourceUsageLog
	stopChan    chan struct{}
	stoppedChan chan struct{}
	logger      *utils.Logger
}

// ErrBufferFull is returned when the archive buffer cannot accept more
// records.
var ErrBufferFull = errors.New("archive buffer is full")

// NewS3Sink creates the sink and starts its background flusher.
func NewS3Sink(writer BatchWriter, config S3SinkConfig) *S3Sink {
	if config.BufferSize <= 0 {
		config.BufferSize = 10000
	}
	if config.FlushSize <= 0 {
		config.FlushSize = 1000
	}
	if config.FlushInterval <= 0 {
		config.FlushInterval = 5 * time.Minute
	}

	s := &S3Sink{
		writer:      writer,
		config:      config,
		buffer:      make(chan *models.ResourceUsageLog, config.BufferSize),
		stopChan:    make(chan struct{}),
		stoppedChan: make(chan struct{}),
		logger:      utils.NewLogger("archive-sink"),
	}
	go s.run()
	return s
}

// Enqueue adds a record to the archive buffer.
func (s *S3Sink) Enqueue(log *models.ResourceUsageLog) error {
	select {
	case s.buffer <- log:
		return nil
	default:
		return ErrBufferFull
	}
}

// Shutdown stops the flusher and writes any buffered records.
func (s *S3Sink) Shutdown(ctx context.Context) error {
	close(s.stopChan)
	select {
	case <-s.stoppedChan:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *S3Sink) run() {
	defer close(s.stoppedChan)

	ticker := time.NewTicker(s.config.FlushInterval)
	defer ticker.Stop()

	batch := make([]*models.ResourceUsageLog, 0, s.config.FlushSize)

	flush := func() {
		if len(batch) == 0 {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		if _, err := s.writer.WriteBatch(ctx, batch); err != nil {
			s.logger.Error("Failed to flush archive batch", "error", err, "count", len(batch))
		}
		cancel()
		batch = batch[:0]
	}

	for {
		select {
		case rec := <-s.buffer:
			batch = append(batch, rec)
			if len(batch) >= s.config.FlushSize {
				flush()
			}
		case <-ticker.C:
			flush()
		case <-s.stopChan:
			// Drain whatever arrived before the stop signal.
			for {
				select {
				case rec := <-s.buffer:
					batch = append(batch, rec)
				default:
					flush()
					return
				}
			}
		}
	}
}
