package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"secmon-service/internal/models"
	"secmon-service/internal/repository/clickhouse"
)

const (
	defaultMaxBufferSize = 100
	defaultFlushInterval = 5 * time.Second
)

// MessageReader is the Kafka read side the consumer drains.
type MessageReader interface {
	ConsumeMessage(ctx context.Context) (*kafka.Message, error)
}

// Consumer drains the audit.events topic into the ClickHouse audit store.
// Records are buffered and written in batches, flushed on size or on a
// timer. Run does a final synchronous flush before returning, so once it
// has returned no buffered records remain.
type Consumer struct {
	reader MessageReader
	repo   clickhouse.AuditRepository
	logger *zap.Logger

	mu            sync.Mutex
	buffer        []models.AuditRecord
	maxBufferSize int
	flushInterval time.Duration
}

func NewConsumer(reader MessageReader, repo clickhouse.AuditRepository, logger *zap.Logger) *Consumer {
	return &Consumer{
		reader:        reader,
		repo:          repo,
		logger:        logger,
		buffer:        make([]models.AuditRecord, 0, defaultMaxBufferSize),
		maxBufferSize: defaultMaxBufferSize,
		flushInterval: defaultFlushInterval,
	}
}

// Run consumes until the context is cancelled or the reader is closed.
// Undecodable messages are logged and skipped; their offsets still commit
// so they are not re-read. The final flush runs after the ticker goroutine
// has stopped, on a fresh context so cancellation cannot drop the batch.
func (c *Consumer) Run(ctx context.Context) error {
	flusherCtx, stopFlusher := context.WithCancel(ctx)
	flusherDone := make(chan struct{})
	go func() {
		defer close(flusherDone)
		c.runFlusher(flusherCtx)
	}()

	c.logger.Info("Audit ingest consumer started")

	for {
		msg, err := c.reader.ConsumeMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, io.EOF) {
				c.logger.Info("Audit ingest consumer stopping")
				stopFlusher()
				<-flusherDone
				c.flush(context.Background())
				return nil
			}
			c.logger.Error("Failed to read audit message", zap.Error(err))
			continue
		}

		var rec models.AuditRecord
		if err := json.Unmarshal(msg.Value, &rec); err != nil {
			c.logger.Error("Failed to decode audit message",
				zap.ByteString("key", msg.Key),
				zap.Error(err))
			continue
		}

		c.mu.Lock()
		c.buffer = append(c.buffer, rec)
		full := len(c.buffer) >= c.maxBufferSize
		c.mu.Unlock()

		if full {
			c.flush(ctx)
		}
	}
}

func (c *Consumer) runFlusher(ctx context.Context) {
	ticker := time.NewTicker(c.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.flush(ctx)
		}
	}
}

func (c *Consumer) flush(ctx context.Context) {
	c.mu.Lock()
	if len(c.buffer) == 0 {
		c.mu.Unlock()
		return
	}
	batch := make([]models.AuditRecord, len(c.buffer))
	copy(batch, c.buffer)
	c.buffer = c.buffer[:0]
	c.mu.Unlock()

	if err := c.repo.InsertBatch(ctx, batch); err != nil {
		c.logger.Error("Failed to flush audit batch",
			zap.Int("record_count", len(batch)),
			zap.Error(err))
		return
	}

	c.logger.Debug("Flushed audit batch", zap.Int("record_count", len(batch)))
}
