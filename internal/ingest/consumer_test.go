package ingest

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"secmon-service/internal/models"
)

type fakeReader struct {
	msgs chan kafka.Message
}

func (f *fakeReader) ConsumeMessage(ctx context.Context) (*kafka.Message, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case msg, ok := <-f.msgs:
		if !ok {
			return nil, io.EOF
		}
		return &msg, nil
	}
}

type fakeAuditStore struct {
	mu      sync.Mutex
	batches [][]models.AuditRecord
}

func (s *fakeAuditStore) InsertBatch(ctx context.Context, records []models.AuditRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	batch := make([]models.AuditRecord, len(records))
	copy(batch, records)
	s.batches = append(s.batches, batch)
	return nil
}

func (s *fakeAuditStore) ListByAction(ctx context.Context, action string, limit int) ([]models.AuditRecord, error) {
	return nil, nil
}

func (s *fakeAuditStore) HealthCheck(ctx context.Context) error { return nil }

func (s *fakeAuditStore) batchCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.batches)
}

func (s *fakeAuditStore) records() []models.AuditRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	var all []models.AuditRecord
	for _, batch := range s.batches {
		all = append(all, batch...)
	}
	return all
}

func auditMessage(t *testing.T, id string) kafka.Message {
	t.Helper()
	payload, err := json.Marshal(models.AuditRecord{
		ID:        id,
		Action:    "auth.failed",
		IPAddress: "203.0.113.7",
		Timestamp: time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("failed to encode audit record: %v", err)
	}
	return kafka.Message{Key: []byte(id), Value: payload}
}

func TestConsumerFlushesWhenBufferFills(t *testing.T) {
	reader := &fakeReader{msgs: make(chan kafka.Message, 3)}
	reader.msgs <- auditMessage(t, "r1")
	reader.msgs <- auditMessage(t, "r2")
	close(reader.msgs)

	store := &fakeAuditStore{}
	c := NewConsumer(reader, store, zap.NewNop())
	c.maxBufferSize = 2
	c.flushInterval = time.Hour

	if err := c.Run(context.Background()); err != nil {
		t.Fatalf("run failed: %v", err)
	}

	if store.batchCount() != 1 {
		t.Fatalf("got %d batches, want 1 (size-triggered flush)", store.batchCount())
	}
	if got := len(store.records()); got != 2 {
		t.Fatalf("got %d records, want 2", got)
	}
}

func TestConsumerFlushesOnInterval(t *testing.T) {
	reader := &fakeReader{msgs: make(chan kafka.Message, 1)}
	reader.msgs <- auditMessage(t, "r1")

	store := &fakeAuditStore{}
	c := NewConsumer(reader, store, zap.NewNop())
	c.flushInterval = 20 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	for store.batchCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("interval flush never happened")
		}
		time.Sleep(5 * time.Millisecond)
	}

	cancel()
	if err := <-done; err != nil {
		t.Fatalf("run failed: %v", err)
	}

	recs := store.records()
	if len(recs) != 1 || recs[0].ID != "r1" {
		t.Fatalf("unexpected records %+v", recs)
	}
}

func TestConsumerDrainsBufferBeforeReturning(t *testing.T) {
	reader := &fakeReader{msgs: make(chan kafka.Message, 1)}
	reader.msgs <- auditMessage(t, "r1")
	close(reader.msgs)

	store := &fakeAuditStore{}
	c := NewConsumer(reader, store, zap.NewNop())
	c.flushInterval = time.Hour

	if err := c.Run(context.Background()); err != nil {
		t.Fatalf("run failed: %v", err)
	}

	// Run has returned, so the record must already be stored.
	recs := store.records()
	if len(recs) != 1 || recs[0].ID != "r1" {
		t.Fatalf("buffered record not drained at shutdown, got %+v", recs)
	}
}

func TestConsumerDrainsBufferOnCancel(t *testing.T) {
	reader := &fakeReader{msgs: make(chan kafka.Message, 1)}
	reader.msgs <- auditMessage(t, "r1")

	store := &fakeAuditStore{}
	c := NewConsumer(reader, store, zap.NewNop())
	c.flushInterval = time.Hour

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	for {
		c.mu.Lock()
		buffered := len(c.buffer)
		c.mu.Unlock()
		if buffered == 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("message never reached the buffer")
		}
		time.Sleep(5 * time.Millisecond)
	}

	cancel()
	if err := <-done; err != nil {
		t.Fatalf("run failed: %v", err)
	}

	recs := store.records()
	if len(recs) != 1 || recs[0].ID != "r1" {
		t.Fatalf("buffered record not drained on cancel, got %+v", recs)
	}
}

func TestConsumerSkipsUndecodableMessages(t *testing.T) {
	reader := &fakeReader{msgs: make(chan kafka.Message, 2)}
	reader.msgs <- kafka.Message{Key: []byte("bad"), Value: []byte("{not json")}
	reader.msgs <- auditMessage(t, "r1")
	close(reader.msgs)

	store := &fakeAuditStore{}
	c := NewConsumer(reader, store, zap.NewNop())
	c.flushInterval = time.Hour

	if err := c.Run(context.Background()); err != nil {
		t.Fatalf("run failed: %v", err)
	}

	recs := store.records()
	if len(recs) != 1 || recs[0].ID != "r1" {
		t.Fatalf("got %+v, want only the decodable record", recs)
	}
}
