package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/mawtrade/mawbot/internal/bus"
	"github.com/mawtrade/mawbot/internal/domain"
)

// journalFlushLimit caps how many entries are re-queued after a failed
// upload so a dead blob backend cannot grow the buffer without bound.
const journalFlushLimit = 10_000

type journalEntry struct {
	Time    time.Time `json:"time"`
	Topic   string    `json:"topic"`
	Payload any       `json:"payload"`
}

// EventJournal buffers every domain event from the bus and periodically
// flushes the batch to blob storage as one JSONL object. Uploads are
// best-effort: a failed flush re-queues the batch for the next tick.
type EventJournal struct {
	writer   domain.BlobWriter
	interval time.Duration
	logger   *slog.Logger

	mu  sync.Mutex
	buf []journalEntry
}

// NewEventJournal wires the journal onto the event bus.
func NewEventJournal(b *bus.Bus, writer domain.BlobWriter, interval time.Duration, logger *slog.Logger) *EventJournal {
	if interval <= 0 {
		interval = time.Minute
	}
	j := &EventJournal{
		writer:   writer,
		interval: interval,
		logger:   logger.With(slog.String("component", "journal")),
	}

	for _, topic := range []string{
		domain.EventPositionOpened,
		domain.EventPositionUpdated,
		domain.EventPositionClosed,
	} {
		b.Subscribe(topic, func(ctx context.Context, payload any) error {
			j.record(topic, payload)
			return nil
		})
	}

	return j
}

func (j *EventJournal) record(topic string, payload any) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.buf = append(j.buf, journalEntry{
		Time:    time.Now().UTC(),
		Topic:   topic,
		Payload: payload,
	})
}

// Run flushes the buffer on the configured interval until the context is
// cancelled, then performs one final flush so shutdown loses nothing.
func (j *EventJournal) Run(ctx context.Context) error {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			if err := j.Flush(flushCtx); err != nil {
				j.logger.Error("final journal flush failed", slog.Any("error", err))
			}
			cancel()
			return ctx.Err()
		case <-ticker.C:
			if err := j.Flush(ctx); err != nil {
				j.logger.Warn("journal flush failed", slog.Any("error", err))
			}
		}
	}
}

// Flush uploads the buffered entries as one JSONL object named after the
// flush time. An empty buffer is a no-op.
func (j *EventJournal) Flush(ctx context.Context) error {
	j.mu.Lock()
	batch := j.buf
	j.buf = nil
	j.mu.Unlock()

	if len(batch) == 0 {
		return nil
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	for i, entry := range batch {
		if err := enc.Encode(entry); err != nil {
			return fmt.Errorf("service: journal encode entry %d: %w", i, err)
		}
	}

	path := fmt.Sprintf("journal/%s/%s.jsonl",
		batch[0].Time.Format("2006-01-02"),
		batch[len(batch)-1].Time.Format("150405.000000000"))

	if err := j.writer.Put(ctx, path, bytes.NewReader(buf.Bytes()), "application/x-ndjson"); err != nil {
		j.requeue(batch)
		return fmt.Errorf("service: journal upload: %w", err)
	}

	j.logger.Debug("journal flushed",
		slog.String("path", path),
		slog.Int("entries", len(batch)))
	return nil
}

func (j *EventJournal) requeue(batch []journalEntry) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.buf = append(batch, j.buf...)
	if len(j.buf) > journalFlushLimit {
		j.buf = j.buf[len(j.buf)-journalFlushLimit:]
	}
}
